package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/innovation-cell/research-portal-api/internal/models"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
	"github.com/innovation-cell/research-portal-api/pkg/export"
)

const reportPageSize = 100

type reportSubmissionStore interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
}

// ReportService produces the admin published-works report in CSV or PDF.
type ReportService struct {
	submissions reportSubmissionStore
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(submissions reportSubmissionStore, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		submissions: submissions,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// PublishedWorks renders every published submission of the given kind in the
// requested format. Format is "csv" or "pdf".
func (s *ReportService) PublishedWorks(ctx context.Context, kind models.SubmissionKind, format string, actor *models.JWTClaims) ([]byte, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, "", appErrors.ErrForbidden
	}
	if !kind.Valid() {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported submission kind %q", kind))
	}

	dataset, err := s.buildDataset(ctx, kind)
	if err != nil {
		return nil, "", err
	}

	switch strings.ToLower(format) {
	case "csv":
		payload, err := s.csv.Render(*dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(*dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return payload, "application/pdf", nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
}

func (s *ReportService) buildDataset(ctx context.Context, kind models.SubmissionKind) (*export.Dataset, error) {
	dataset := &export.Dataset{
		Title:       fmt.Sprintf("Published %ss", strings.ToLower(string(kind))),
		GeneratedAt: time.Now().UTC(),
		Headers:     []string{"Title", "Reviewer", "Reviewed At", "Published"},
	}

	page := 1
	for {
		submissions, total, err := s.submissions.List(ctx, models.SubmissionFilter{
			Kind:     kind,
			Status:   []models.SubmissionStatus{models.StatusPublish},
			Page:     page,
			PageSize: reportPageSize,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list published submissions")
		}

		for _, submission := range submissions {
			var reviewer, reviewedAt string
			if submission.ReviewerName != nil {
				reviewer = *submission.ReviewerName
			}
			if submission.ReviewedAt != nil {
				reviewedAt = submission.ReviewedAt.Format(time.DateOnly)
			}
			dataset.AppendRow(submission.Title, reviewer, reviewedAt, submission.UpdatedAt.Format(time.DateOnly))
		}

		if page*reportPageSize >= total || len(submissions) == 0 {
			break
		}
		page++
	}

	return dataset, nil
}
