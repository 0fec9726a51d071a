package dto

import "github.com/innovation-cell/research-portal-api/internal/models"

// CreateSubmissionRequest is the payload for submitting a paper or project.
type CreateSubmissionRequest struct {
	Title        string   `json:"title" validate:"required,min=3"`
	Abstract     string   `json:"abstract" validate:"required"`
	DocumentLink string   `json:"document_link" validate:"omitempty,url"`
	ImageLink    string   `json:"image_link" validate:"omitempty,url"`
	AuthorIDs    []string `json:"author_ids" validate:"required,min=1,dive,required"`
	AdvisorIDs   []string `json:"advisor_ids" validate:"required,min=1,dive,required"`
}

// SubmissionQuery captures list filters from query parameters.
type SubmissionQuery struct {
	Status         []models.SubmissionStatus
	ReviewerStatus []models.ReviewerStatus
	NeedsUpdate    *bool
	Search         string
	Page           int
	PageSize       int
}

// DeleteSubmissionsRequest targets a set of submissions for removal.
type DeleteSubmissionsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}
