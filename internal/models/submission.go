package models

import "time"

// SubmissionKind distinguishes the two entity kinds governed by the review
// workflow.
type SubmissionKind string

const (
	KindPaper   SubmissionKind = "PAPER"
	KindProject SubmissionKind = "PROJECT"
)

// Valid reports whether the kind is known.
func (k SubmissionKind) Valid() bool {
	return k == KindPaper || k == KindProject
}

// SubmissionStatus is the entity lifecycle axis. Papers use UPLOAD,
// ON_REVIEW, PUBLISH, REJECT; projects use UPLOAD, ONGOING, COMPLETED,
// PUBLISH, CANCELLED.
type SubmissionStatus string

const (
	StatusUpload    SubmissionStatus = "UPLOAD"
	StatusOnReview  SubmissionStatus = "ON_REVIEW"
	StatusPublish   SubmissionStatus = "PUBLISH"
	StatusReject    SubmissionStatus = "REJECT"
	StatusOngoing   SubmissionStatus = "ONGOING"
	StatusCompleted SubmissionStatus = "COMPLETED"
	StatusCancelled SubmissionStatus = "CANCELLED"
)

// ReviewerStatus is the review-decision axis, distinct from the entity
// lifecycle status.
type ReviewerStatus string

const (
	ReviewPending            ReviewerStatus = "PENDING"
	ReviewAccepted           ReviewerStatus = "ACCEPTED"
	ReviewRejected           ReviewerStatus = "REJECTED"
	ReviewNeedsUpdates       ReviewerStatus = "NEEDS_UPDATES"
	ReviewAcceptedForPublish ReviewerStatus = "ACCEPTED_FOR_PUBLISH"
	ReviewRejectedForPublish ReviewerStatus = "REJECTED_FOR_PUBLISH"
)

// Submission is a research paper or ongoing project moving through the
// review workflow. Reviewer name and email are cached copies of the assigned
// user record; the revision scalar fields mirror the latest revision round.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	Kind         SubmissionKind   `db:"kind" json:"kind"`
	Title        string           `db:"title" json:"title"`
	Abstract     string           `db:"abstract" json:"abstract"`
	DocumentLink string           `db:"document_link" json:"document_link"`
	ImageLink    string           `db:"image_link" json:"image_link"`
	Status       SubmissionStatus `db:"status" json:"status"`

	ReviewerStatus   ReviewerStatus `db:"reviewer_status" json:"reviewer_status"`
	ReviewerID       *string        `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewerName     *string        `db:"reviewer_name" json:"reviewer_name,omitempty"`
	ReviewerEmail    *string        `db:"reviewer_email" json:"reviewer_email,omitempty"`
	ReviewerComments *string        `db:"reviewer_comments" json:"reviewer_comments,omitempty"`
	ReviewedAt       *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`

	NeedsUpdate           bool       `db:"needs_update" json:"needs_update"`
	UpdateRequest         *string    `db:"update_request" json:"update_request,omitempty"`
	UpdateDeadline        *time.Time `db:"update_deadline" json:"update_deadline,omitempty"`
	StudentUpdateComments *string    `db:"student_update_comments" json:"student_update_comments,omitempty"`
	StudentUpdatedAt      *time.Time `db:"student_updated_at" json:"student_updated_at,omitempty"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Authors  []UserRef `db:"-" json:"authors,omitempty"`
	Advisors []UserRef `db:"-" json:"advisors,omitempty"`
}

// HasReviewer reports whether a reviewer has been assigned.
func (s *Submission) HasReviewer() bool {
	return s.ReviewerID != nil && *s.ReviewerID != ""
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	Kind           SubmissionKind
	Status         []SubmissionStatus
	ReviewerStatus []ReviewerStatus
	AuthorID       string
	ReviewerID     string
	NeedsUpdate    *bool
	Search         string
	Page           int
	PageSize       int
}

// RevisionRound is one request/response pair in the revision cycle.
// Rounds are append-only so the back-and-forth survives as an audit trail.
type RevisionRound struct {
	ID               string     `db:"id" json:"id"`
	SubmissionID     string     `db:"submission_id" json:"submission_id"`
	Sequence         int        `db:"sequence" json:"sequence"`
	RequestMessage   string     `db:"request_message" json:"request_message"`
	RequestedBy      string     `db:"requested_by" json:"requested_by"`
	RequestedAt      time.Time  `db:"requested_at" json:"requested_at"`
	Deadline         *time.Time `db:"deadline" json:"deadline,omitempty"`
	ResponseComments *string    `db:"response_comments" json:"response_comments,omitempty"`
	RespondedAt      *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}

// Open reports whether the round is still awaiting the student response.
func (r *RevisionRound) Open() bool {
	return r.RespondedAt == nil
}
