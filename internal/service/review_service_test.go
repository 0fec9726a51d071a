package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/innovation-cell/research-portal-api/internal/dto"
	"github.com/innovation-cell/research-portal-api/internal/models"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
)

func pendingPaper(id string) *models.Submission {
	return &models.Submission{
		ID:             id,
		Kind:           models.KindPaper,
		Title:          "Graph Partitioning",
		Status:         models.StatusUpload,
		ReviewerStatus: models.ReviewPending,
	}
}

func reviewServiceForTest(store *submissionStoreStub, users *userStoreStub) (*ReviewService, *auditStub) {
	audit := &auditStub{}
	return NewReviewService(store, users, audit, nil, nil), audit
}

func TestAssignReviewerByAdmin(t *testing.T) {
	store := newSubmissionStoreStub()
	store.add(pendingPaper("sub-1"))
	users := newUserStoreStub(&models.User{ID: "fac-1", FullName: "Dr. Rao", Email: "rao@uni.edu", Role: models.RoleFaculty, Active: true})
	svc, audit := reviewServiceForTest(store, users)

	sub, err := svc.AssignReviewer(context.Background(), "sub-1", "fac-1", adminClaims("adm-1"))
	require.NoError(t, err)
	require.NotNil(t, sub.ReviewerID)
	require.Equal(t, "fac-1", *sub.ReviewerID)
	require.Equal(t, models.ReviewPending, sub.ReviewerStatus)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionReviewerAssign, audit.logs[0].Action)
}

func TestAssignReviewerFacultySelfOnly(t *testing.T) {
	store := newSubmissionStoreStub()
	store.add(pendingPaper("sub-1"))
	users := newUserStoreStub(
		&models.User{ID: "fac-1", Role: models.RoleFaculty, Active: true},
		&models.User{ID: "fac-2", Role: models.RoleFaculty, Active: true},
	)
	svc, _ := reviewServiceForTest(store, users)

	_, err := svc.AssignReviewer(context.Background(), "sub-1", "fac-2", facultyClaims("fac-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	sub, err := svc.AssignReviewer(context.Background(), "sub-1", "fac-1", facultyClaims("fac-1"))
	require.NoError(t, err)
	require.Equal(t, "fac-1", *sub.ReviewerID)
}

func TestAssignReviewerRejectsStudentTarget(t *testing.T) {
	store := newSubmissionStoreStub()
	store.add(pendingPaper("sub-1"))
	users := newUserStoreStub(&models.User{ID: "stu-1", Role: models.RoleStudent, Active: true})
	svc, _ := reviewServiceForTest(store, users)

	_, err := svc.AssignReviewer(context.Background(), "sub-1", "stu-1", adminClaims("adm-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReassignmentResetsReviewState(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := pendingPaper("sub-1")
	reviewerID := "fac-1"
	comments := "solid work"
	sub.ReviewerID = &reviewerID
	sub.ReviewerStatus = models.ReviewAccepted
	sub.ReviewerComments = &comments
	store.add(sub)
	users := newUserStoreStub(&models.User{ID: "fac-2", Role: models.RoleFaculty, Active: true})
	svc, _ := reviewServiceForTest(store, users)

	updated, err := svc.AssignReviewer(context.Background(), "sub-1", "fac-2", adminClaims("adm-1"))
	require.NoError(t, err)
	require.Equal(t, "fac-2", *updated.ReviewerID)
	require.Equal(t, models.ReviewPending, updated.ReviewerStatus)
	require.Nil(t, updated.ReviewerComments)
}

func TestDecideFirstDecisionClaims(t *testing.T) {
	store := newSubmissionStoreStub()
	store.add(pendingPaper("sub-1"))
	users := newUserStoreStub()
	svc, _ := reviewServiceForTest(store, users)

	sub, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: dto.DecisionApprove, Comments: "good"}, facultyClaims("fac-1"))
	require.NoError(t, err)
	require.Equal(t, "fac-1", *sub.ReviewerID)
	require.Equal(t, models.ReviewAccepted, sub.ReviewerStatus)
	require.Equal(t, models.StatusOnReview, sub.Status)
	require.NotNil(t, sub.ReviewerComments)
}

func TestDecideConcurrentClaimLoser(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := pendingPaper("sub-1")
	store.add(sub)
	users := newUserStoreStub()
	svc, _ := reviewServiceForTest(store, users)

	// First reviewer wins the claim.
	_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: dto.DecisionApprove}, facultyClaims("fac-1"))
	require.NoError(t, err)

	// Second reviewer acting on a stale read is rejected once the claim
	// conditional write finds the slot taken.
	_, err = svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: dto.DecisionReject}, facultyClaims("fac-2"))
	require.Error(t, err)
	typed := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, typed.Code)
	require.Contains(t, typed.Message, "not the assigned reviewer")

	final, err := store.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, "fac-1", *final.ReviewerID)
	require.Equal(t, models.ReviewAccepted, final.ReviewerStatus)
}

func TestDecideAdminOverridesAssignedReviewer(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := pendingPaper("sub-1")
	reviewerID := "fac-1"
	sub.ReviewerID = &reviewerID
	store.add(sub)
	svc, _ := reviewServiceForTest(store, newUserStoreStub())

	_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: dto.DecisionApprove}, adminClaims("adm-1"))
	require.NoError(t, err)
}

func TestDecideStudentForbidden(t *testing.T) {
	store := newSubmissionStoreStub()
	store.add(pendingPaper("sub-1"))
	svc, _ := reviewServiceForTest(store, newUserStoreStub())

	_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: dto.DecisionApprove}, studentClaims("stu-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDecidePublishGateAdminOnly(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := pendingPaper("sub-1")
	reviewerID := "fac-1"
	sub.ReviewerID = &reviewerID
	sub.ReviewerStatus = models.ReviewAccepted
	store.add(sub)
	svc, _ := reviewServiceForTest(store, newUserStoreStub())

	_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: dto.DecisionAcceptForPublish}, facultyClaims("fac-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: dto.DecisionAcceptForPublish}, adminClaims("adm-1"))
	require.NoError(t, err)
	require.Equal(t, models.ReviewAcceptedForPublish, updated.ReviewerStatus)
	require.Equal(t, models.StatusPublish, updated.Status)
}

func TestDecideIllegalTransitionConflict(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := pendingPaper("sub-1")
	reviewerID := "fac-1"
	sub.ReviewerID = &reviewerID
	sub.ReviewerStatus = models.ReviewPending
	store.add(sub)
	svc, _ := reviewServiceForTest(store, newUserStoreStub())

	_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: dto.DecisionAcceptForPublish}, adminClaims("adm-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDecideProjectKeepsLifecycleStatus(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := &models.Submission{
		ID:             "proj-1",
		Kind:           models.KindProject,
		Status:         models.StatusOngoing,
		ReviewerStatus: models.ReviewPending,
	}
	store.add(sub)
	svc, _ := reviewServiceForTest(store, newUserStoreStub())

	updated, err := svc.Decide(context.Background(), "proj-1", dto.DecisionRequest{Decision: dto.DecisionApprove}, facultyClaims("fac-1"))
	require.NoError(t, err)
	require.Equal(t, models.ReviewAccepted, updated.ReviewerStatus)
	require.Equal(t, models.StatusOngoing, updated.Status)
}

func TestDecideUnknownSubmission(t *testing.T) {
	svc, _ := reviewServiceForTest(newSubmissionStoreStub(), newUserStoreStub())

	_, err := svc.Decide(context.Background(), "missing", dto.DecisionRequest{Decision: dto.DecisionApprove}, facultyClaims("fac-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
