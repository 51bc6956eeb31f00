package dto

import (
	"time"

	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/service"
)

// NotificationRequest is the create/update payload. It binds from JSON or
// from multipart form fields; the attachment travels as the "file" part.
type NotificationRequest struct {
	Title        string `json:"title" form:"title"`
	Description  string `json:"description" form:"description"`
	DepartmentID string `json:"department_id" form:"department_id"`
	Category     string `json:"category" form:"category"`
	Date         string `json:"date" form:"date"`
}

// NotificationResponse is the public shape of a notification.
type NotificationResponse struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	DepartmentID   string          `json:"department_id"`
	DepartmentName string          `json:"department_name,omitempty"`
	Category       domain.Category `json:"category"`
	Date           time.Time       `json:"date"`
	AttachmentURL  string          `json:"attachment_url,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedByName  string          `json:"created_by_name,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreateNotificationResponse pairs the notification with its dispatch summary.
type CreateNotificationResponse struct {
	Notification NotificationResponse   `json:"notification"`
	Dispatch     domain.DispatchSummary `json:"dispatch"`
}

func NewNotificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            n.ID,
		Title:         n.Title,
		Description:   n.Description,
		DepartmentID:  n.DepartmentID,
		Category:      n.Category,
		Date:          n.Date,
		AttachmentURL: n.AttachmentRef,
		CreatedBy:     n.CreatedBy,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

func NewNotificationViewResponse(v domain.NotificationView) NotificationResponse {
	resp := NewNotificationResponse(v.Notification)
	resp.DepartmentName = v.DepartmentName
	resp.CreatedByName = v.CreatedByName
	return resp
}

func NewNotificationViewResponses(views []domain.NotificationView) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(views))
	for _, v := range views {
		out = append(out, NewNotificationViewResponse(v))
	}
	return out
}

func NewCreateNotificationResponse(res service.CreateResult) CreateNotificationResponse {
	return CreateNotificationResponse{
		Notification: NewNotificationResponse(*res.Notification),
		Dispatch:     res.Dispatch,
	}
}
