// Package notify turns a created notification into per-student emails.
package notify

import (
	"context"
	"strings"

	"github.com/spec-kit/notification-service/internal/domain"
)

// Recipient is one addressee of a notification email.
type Recipient struct {
	Name  string
	Email string
}

// RecipientSource lists candidate students of a department.
type RecipientSource interface {
	ListRecipients(ctx context.Context, departmentID string) ([]domain.User, error)
}

// Resolver computes the recipients of a department's notifications. Every
// call queries the store again; nothing is cached.
type Resolver struct {
	users RecipientSource
}

// NewResolver builds a Resolver.
func NewResolver(users RecipientSource) *Resolver {
	return &Resolver{users: users}
}

// Resolve returns the students of departmentID that have an email address,
// in the order the store returns them. An empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, departmentID string) ([]Recipient, error) {
	users, err := r.users.ListRecipients(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	out := make([]Recipient, 0, len(users))
	for _, u := range users {
		email := strings.TrimSpace(u.Email)
		if email == "" || u.Role != domain.RoleStudent || u.Department() != departmentID {
			continue
		}
		out = append(out, Recipient{Name: u.Name, Email: email})
	}
	return out, nil
}
