package dto

import (
	"time"

	"github.com/spec-kit/notification-service/internal/domain"
)

// UserResponse is the public shape of an account. Password and reset
// token fields never leave the service.
type UserResponse struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
	DepartmentID   *string     `json:"department_id"`
	DepartmentName string      `json:"department_name,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Email:        u.Email,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// NewUserViewResponse maps a user joined with its department name.
func NewUserViewResponse(v domain.UserView) UserResponse {
	resp := NewUserResponse(v.User)
	resp.DepartmentName = v.DepartmentName
	return resp
}

// NewUserResponses maps a slice of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}
