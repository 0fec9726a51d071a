package dto

import "time"

// Decision values accepted by the review endpoint.
const (
	DecisionApprove          = "approve"
	DecisionReject           = "reject"
	DecisionAcceptForPublish = "accept_for_publish"
	DecisionRejectForPublish = "reject_for_publish"
)

// AssignReviewerRequest names the user to assign as reviewer.
type AssignReviewerRequest struct {
	ReviewerID string `json:"reviewer_id" validate:"required"`
}

// DecisionRequest is a reviewer decision payload.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject accept_for_publish reject_for_publish"`
	Comments string `json:"comments"`
}

// RequestUpdatesRequest asks the student for changes.
type RequestUpdatesRequest struct {
	Message  string     `json:"message" validate:"required"`
	Deadline *time.Time `json:"deadline"`
}

// SubmitRevisionRequest is the student response to an update request.
// The optional fields overwrite the corresponding submission fields.
type SubmitRevisionRequest struct {
	Comments     string  `json:"comments" validate:"required"`
	DocumentLink *string `json:"document_link" validate:"omitempty,url"`
	ImageLink    *string `json:"image_link" validate:"omitempty,url"`
	Abstract     *string `json:"abstract"`
}

// AdminActionRequest is the publication-gate payload.
type AdminActionRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject publish complete"`
}

// BulkPublishRequest publishes a set of submissions atomically.
type BulkPublishRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}
