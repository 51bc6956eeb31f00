// Package worker holds the event subscribers that run beside the request
// path: audit logging, welcome mail and dispatch report bookkeeping.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/mail"
	"github.com/spec-kit/notification-service/internal/notify"
)

const welcomeSubject = "Welcome to the College Notification System"

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #eee; border-radius: 5px;">
  <h2 style="color: #2c3e50; margin-bottom: 20px;">Welcome, {{.Name}}!</h2>
  <p>Your account has been created in the College Notification System.</p>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin-bottom: 20px;">
    <p style="margin: 5px 0;"><strong>Username:</strong> {{.Username}}</p>
  </div>
  <p>Sign in at <a href="{{.LoginURL}}">{{.LoginURL}}</a> with the password your administrator gave you.</p>
  <p style="margin-top: 30px; font-size: 12px; color: #6c757d;">This is an automated email. Please do not reply.</p>
</div>`))

// Dependencies wires the worker.
type Dependencies struct {
	Events  events.Dispatcher
	Reports notify.ReportStore
	Mailer  mail.Transport
	From    mail.Address
	BaseURL string
	Logger  *zap.Logger
}

// NotificationWorker reacts to lifecycle events.
type NotificationWorker struct {
	dispatcher events.Dispatcher
	reports    notify.ReportStore
	mailer     mail.Transport
	from       mail.Address
	baseURL    string
	logger     *zap.Logger
}

// NewNotificationWorker creates the worker.
func NewNotificationWorker(deps Dependencies) *NotificationWorker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		dispatcher: deps.Events,
		reports:    deps.Reports,
		mailer:     deps.Mailer,
		from:       deps.From,
		baseURL:    deps.BaseURL,
		logger:     logger,
	}
}

// StartNotificationWorker registers the worker's handlers.
func StartNotificationWorker(w *NotificationWorker) {
	if w == nil {
		return
	}
	w.RegisterHandlers()
}

// RegisterHandlers subscribes to events.
func (w *NotificationWorker) RegisterHandlers() {
	if w.dispatcher == nil {
		return
	}
	for _, t := range events.AllTypes() {
		w.dispatcher.Subscribe(t, w.handleAudit)
	}
	w.dispatcher.Subscribe(events.EventUserCreated, w.handleUserCreated)
	w.dispatcher.Subscribe(events.EventNotificationCreated, w.handleNotificationCreated)
	w.dispatcher.Subscribe(events.EventNotificationDeleted, w.handleNotificationDeleted)
}

func (w *NotificationWorker) handleAudit(_ context.Context, event events.Event) error {
	w.logger.Info("audit",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("resource_id", event.ResourceID),
		zap.String("actor_id", event.Actor.ID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload))
	return nil
}

// handleUserCreated sends the welcome email. It never carries the password.
func (w *NotificationWorker) handleUserCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserCreatedPayload)
	if !ok || w.mailer == nil || payload.Email == "" {
		return nil
	}

	var body bytes.Buffer
	err := welcomeTemplate.Execute(&body, struct {
		Name     string
		Username string
		LoginURL string
	}{payload.Name, payload.Username, w.baseURL + "/auth/login"})
	if err != nil {
		return fmt.Errorf("render welcome email: %w", err)
	}

	msg := mail.Message{
		From:     w.from,
		To:       mail.Address{Name: payload.Name, Email: payload.Email},
		Subject:  welcomeSubject,
		HTMLBody: body.String(),
		TextBody: fmt.Sprintf("Welcome, %s! Your account has been created. Username: %s", payload.Name, payload.Username),
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		w.logger.Warn("send welcome email", zap.String("user_id", event.ResourceID), zap.Error(err))
		return fmt.Errorf("send welcome email: %w", err)
	}
	return nil
}

func (w *NotificationWorker) handleNotificationCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationCreatedPayload)
	if !ok || w.reports == nil {
		return nil
	}
	summary := payload.Dispatch
	if summary.NotificationID == "" {
		summary.NotificationID = event.ResourceID
	}
	if err := w.reports.Save(ctx, summary); err != nil {
		return fmt.Errorf("save dispatch report: %w", err)
	}
	return nil
}

func (w *NotificationWorker) handleNotificationDeleted(ctx context.Context, event events.Event) error {
	if w.reports == nil {
		return nil
	}
	if err := w.reports.Delete(ctx, event.ResourceID); err != nil {
		return fmt.Errorf("delete dispatch report: %w", err)
	}
	return nil
}
