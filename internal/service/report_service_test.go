package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/innovation-cell/research-portal-api/internal/models"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
)

func publishedPaperForReport(id string) *models.Submission {
	sub := pendingPaper(id)
	sub.Status = models.StatusPublish
	reviewer := "Dr. Rao"
	reviewedAt := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	sub.ReviewerName = &reviewer
	sub.ReviewedAt = &reviewedAt
	sub.UpdatedAt = time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)
	return sub
}

func TestPublishedWorksCSV(t *testing.T) {
	store := newSubmissionStoreStub()
	store.add(publishedPaperForReport("sub-1"))
	store.add(pendingPaper("sub-2"))
	svc := NewReportService(store, nil)

	payload, contentType, err := svc.PublishedWorks(context.Background(), models.KindPaper, "csv", adminClaims("adm-1"))
	require.NoError(t, err)
	require.Equal(t, "text/csv", contentType)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Title,Reviewer,Reviewed At,Published", lines[0])
	require.Equal(t, "Graph Partitioning,Dr. Rao,2026-02-14,2026-02-20", lines[1])
}

func TestPublishedWorksPDF(t *testing.T) {
	store := newSubmissionStoreStub()
	store.add(publishedPaperForReport("sub-1"))
	svc := NewReportService(store, nil)

	payload, contentType, err := svc.PublishedWorks(context.Background(), models.KindPaper, "pdf", adminClaims("adm-1"))
	require.NoError(t, err)
	require.Equal(t, "application/pdf", contentType)
	require.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestPublishedWorksAdminOnly(t *testing.T) {
	svc := NewReportService(newSubmissionStoreStub(), nil)

	_, _, err := svc.PublishedWorks(context.Background(), models.KindPaper, "csv", facultyClaims("fac-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPublishedWorksUnknownFormat(t *testing.T) {
	svc := NewReportService(newSubmissionStoreStub(), nil)

	_, _, err := svc.PublishedWorks(context.Background(), models.KindPaper, "xlsx", adminClaims("adm-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
