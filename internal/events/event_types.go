package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/notification-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDepartmentCreated   EventType = "department_created"
	EventDepartmentUpdated   EventType = "department_updated"
	EventDepartmentDeleted   EventType = "department_deleted"
	EventUserCreated         EventType = "user_created"
	EventUserUpdated         EventType = "user_updated"
	EventUserDeleted         EventType = "user_deleted"
	EventNotificationCreated EventType = "notification_created"
	EventNotificationUpdated EventType = "notification_updated"
	EventNotificationDeleted EventType = "notification_deleted"
	EventPasswordReset       EventType = "password_reset"
)

// AllTypes lists every event type, for subscribers that observe everything.
func AllTypes() []EventType {
	return []EventType{
		EventDepartmentCreated,
		EventDepartmentUpdated,
		EventDepartmentDeleted,
		EventUserCreated,
		EventUserUpdated,
		EventUserDeleted,
		EventNotificationCreated,
		EventNotificationUpdated,
		EventNotificationDeleted,
		EventPasswordReset,
	}
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id,omitempty"`
	Role domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	ResourceID string      `json:"resource_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, resourceID string, actor *domain.Actor, payload interface{}) Event {
	e := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ResourceID: resourceID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
	if actor != nil {
		e.Actor = Actor{ID: actor.ID, Role: actor.Role}
	}
	return e
}

// DepartmentPayload payload.
type DepartmentPayload struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	Name         string      `json:"name"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Role         domain.Role `json:"role"`
	DepartmentID string      `json:"department_id,omitempty"`
}

// UserChangedPayload payload for updates and deletes.
type UserChangedPayload struct {
	Role         domain.Role `json:"role"`
	DepartmentID string      `json:"department_id,omitempty"`
}

// NotificationCreatedPayload payload.
type NotificationCreatedPayload struct {
	DepartmentID string                 `json:"department_id"`
	Category     domain.Category        `json:"category"`
	Title        string                 `json:"title"`
	Dispatch     domain.DispatchSummary `json:"dispatch"`
}

// NotificationChangedPayload payload for updates and deletes.
type NotificationChangedPayload struct {
	DepartmentID       string `json:"department_id"`
	AttachmentReleased bool   `json:"attachment_released"`
}
