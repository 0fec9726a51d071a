package dto

// CreateUserRequest is the admin payload for provisioning a user.
type CreateUserRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	FullName   string `json:"full_name" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=STUDENT FACULTY ADMIN"`
	Department string `json:"department"`
}

// UpdateUserRequest carries the mutable user fields. Role changes flow
// through this single path.
type UpdateUserRequest struct {
	FullName   *string `json:"full_name"`
	Role       *string `json:"role" validate:"omitempty,oneof=STUDENT FACULTY ADMIN"`
	Department *string `json:"department"`
	Active     *bool   `json:"active"`
}

// UserQuery captures user list filters.
type UserQuery struct {
	Role     string
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
