package workflow

import (
	"fmt"

	"github.com/innovation-cell/research-portal-api/internal/models"
)

// Event enumerates the actions that move a submission along the
// review-decision axis.
type Event string

const (
	EventAssignReviewer   Event = "ASSIGN_REVIEWER"
	EventApprove          Event = "APPROVE"
	EventReject           Event = "REJECT"
	EventRequestUpdates   Event = "REQUEST_UPDATES"
	EventSubmitRevision   Event = "SUBMIT_REVISION"
	EventAcceptForPublish Event = "ACCEPT_FOR_PUBLISH"
	EventRejectForPublish Event = "REJECT_FOR_PUBLISH"
)

// TransitionError reports an event applied in a state that does not accept it.
type TransitionError struct {
	From  models.ReviewerStatus
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %s is not allowed in state %s", e.Event, e.From)
}

// transitions is the canonical (state, event) table. Reassigning a reviewer
// resets any state back to PENDING; the publish-gate states are terminal for
// reviewer decisions.
var transitions = map[models.ReviewerStatus]map[Event]models.ReviewerStatus{
	models.ReviewPending: {
		EventAssignReviewer: models.ReviewPending,
		EventApprove:        models.ReviewAccepted,
		EventReject:         models.ReviewRejected,
		EventRequestUpdates: models.ReviewNeedsUpdates,
	},
	models.ReviewNeedsUpdates: {
		EventAssignReviewer: models.ReviewPending,
		EventApprove:        models.ReviewAccepted,
		EventReject:         models.ReviewRejected,
		EventRequestUpdates: models.ReviewNeedsUpdates,
		EventSubmitRevision: models.ReviewPending,
	},
	models.ReviewAccepted: {
		EventAssignReviewer:   models.ReviewPending,
		EventApprove:          models.ReviewAccepted,
		EventReject:           models.ReviewRejected,
		EventRequestUpdates:   models.ReviewNeedsUpdates,
		EventAcceptForPublish: models.ReviewAcceptedForPublish,
		EventRejectForPublish: models.ReviewRejectedForPublish,
	},
	models.ReviewRejected: {
		EventAssignReviewer: models.ReviewPending,
		EventApprove:        models.ReviewAccepted,
		EventReject:         models.ReviewRejected,
	},
	models.ReviewAcceptedForPublish: {
		EventAssignReviewer: models.ReviewPending,
	},
	models.ReviewRejectedForPublish: {
		EventAssignReviewer: models.ReviewPending,
	},
}

// Next returns the reviewer status resulting from applying event in state.
func Next(state models.ReviewerStatus, event Event) (models.ReviewerStatus, error) {
	row, ok := transitions[state]
	if !ok {
		return "", fmt.Errorf("unknown reviewer status %q", state)
	}
	next, ok := row[event]
	if !ok {
		return "", &TransitionError{From: state, Event: event}
	}
	return next, nil
}

// Allowed reports whether event may be applied in state.
func Allowed(state models.ReviewerStatus, event Event) bool {
	_, err := Next(state, event)
	return err == nil
}

// StatusEffect returns the lifecycle status a submission moves to as a side
// effect of a reviewer-axis event, if any. Paper approval parks the entity in
// ON_REVIEW as an intermediate gate; the publish-gate decisions move papers
// to their terminal public status.
func StatusEffect(kind models.SubmissionKind, event Event) (models.SubmissionStatus, bool) {
	if kind != models.KindPaper {
		return "", false
	}
	switch event {
	case EventApprove:
		return models.StatusOnReview, true
	case EventAcceptForPublish:
		return models.StatusPublish, true
	case EventRejectForPublish:
		return models.StatusReject, true
	}
	return "", false
}

// AdminAction enumerates the publication-gate actions available to admins.
type AdminAction string

const (
	AdminAccept   AdminAction = "accept"
	AdminReject   AdminAction = "reject"
	AdminPublish  AdminAction = "publish"
	AdminComplete AdminAction = "complete"
)

// Valid reports whether the action is known.
func (a AdminAction) Valid() bool {
	switch a {
	case AdminAccept, AdminReject, AdminPublish, AdminComplete:
		return true
	}
	return false
}

// AdminStatus resolves the target lifecycle status for an admin action.
// Accept is an explicit escape hatch that bypasses reviewer state entirely;
// publish requires the reviewer-approved precondition checked by the caller.
func AdminStatus(kind models.SubmissionKind, action AdminAction) (models.SubmissionStatus, error) {
	switch action {
	case AdminAccept:
		if kind != models.KindProject {
			return "", fmt.Errorf("accept applies to projects only")
		}
		return models.StatusOngoing, nil
	case AdminReject:
		if kind == models.KindPaper {
			return models.StatusReject, nil
		}
		return models.StatusCancelled, nil
	case AdminPublish:
		return models.StatusPublish, nil
	case AdminComplete:
		if kind != models.KindProject {
			return "", fmt.Errorf("complete applies to projects only")
		}
		return models.StatusCompleted, nil
	}
	return "", fmt.Errorf("unknown admin action %q", action)
}
