package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/access"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/notify"
	"github.com/spec-kit/notification-service/internal/repository"
	"github.com/spec-kit/notification-service/internal/storage"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

// NotificationInput carries the fields of a new notification. An empty
// category defaults to Academic and a nil date to now.
type NotificationInput struct {
	Title        string          `json:"title" validate:"required,max=100"`
	Description  string          `json:"description" validate:"required,max=1000"`
	DepartmentID string          `json:"department_id" validate:"required"`
	Category     domain.Category `json:"category" validate:"required,category"`
	Date         *time.Time      `json:"date"`
}

// NotificationUpdateInput carries edits. DepartmentID is optional and only
// honored for super admins.
type NotificationUpdateInput struct {
	Title        string          `json:"title" validate:"required,max=100"`
	Description  string          `json:"description" validate:"required,max=1000"`
	DepartmentID string          `json:"department_id"`
	Category     domain.Category `json:"category" validate:"required,category"`
	Date         *time.Time      `json:"date"`
}

// NotificationListFilter narrows an admin listing.
type NotificationListFilter struct {
	DepartmentID string
	Category     domain.Category
	Search       string
	Page         int
}

// CreateResult pairs the persisted notification with its dispatch outcome.
type CreateResult struct {
	Notification *domain.Notification  `json:"notification"`
	Dispatch     domain.DispatchSummary `json:"dispatch"`
}

// RecipientResolver lists the students a notification goes to.
type RecipientResolver interface {
	Resolve(ctx context.Context, departmentID string) ([]notify.Recipient, error)
}

// EmailDispatcher fans a notification out to its recipients.
type EmailDispatcher interface {
	Dispatch(ctx context.Context, n domain.Notification, departmentName string, recipients []notify.Recipient) domain.DispatchSummary
}

// NotificationDependencies wires the lifecycle manager.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	DepartmentRepo   repository.DepartmentRepository
	Attachments      storage.AttachmentStore
	Resolver         RecipientResolver
	Dispatcher       EmailDispatcher
	Reports          notify.ReportStore
	Events           events.Dispatcher
	Logger           *zap.Logger
}

// NotificationService owns the notification lifecycle: every mutation is
// gated by the access policy, creation fans out email, and attachments are
// released when replaced or deleted.
type NotificationService struct {
	notifications repository.NotificationRepository
	departments   repository.DepartmentRepository
	attachments   storage.AttachmentStore
	resolver      RecipientResolver
	dispatcher    EmailDispatcher
	reports       notify.ReportStore
	events        events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		departments:   deps.DepartmentRepo,
		attachments:   deps.Attachments,
		resolver:      deps.Resolver,
		dispatcher:    deps.Dispatcher,
		reports:       deps.Reports,
		events:        deps.Events,
		logger:        logger,
		now:           time.Now,
	}
}

// Create validates, gates and persists a notification, then emails the
// department's students. Dispatch problems never fail the call.
func (s *NotificationService) Create(ctx context.Context, actor *domain.Actor, input NotificationInput, upload *storage.Upload) (*CreateResult, error) {
	input.Title = trim(input.Title)
	input.DepartmentID = trim(input.DepartmentID)
	if input.Category == "" {
		input.Category = domain.CategoryAcademic
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	dept, err := s.requireDepartment(ctx, input.DepartmentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(access.Request{
		Actor:      actor,
		Kind:       access.KindNotification,
		Department: dept.ID,
		Op:         access.OpCreate,
	}); err != nil {
		return nil, err
	}

	n := &domain.Notification{
		Title:        input.Title,
		Description:  input.Description,
		DepartmentID: dept.ID,
		Category:     input.Category,
		Date:         s.dateOrNow(input.Date),
		CreatedBy:    actor.ID,
	}
	if upload != nil {
		ref, err := s.saveAttachment(ctx, *upload)
		if err != nil {
			return nil, err
		}
		n.AttachmentRef = ref
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		s.release(ctx, n.AttachmentRef, n.ID)
		return nil, apperrors.MapError(err)
	}

	// Sends already in flight, and the report they produce, outlive the caller.
	detached := context.WithoutCancel(ctx)
	summary := s.dispatch(detached, *n, dept.Name)

	publish(detached, s.events, s.logger, events.New(events.EventNotificationCreated, n.ID, actor, events.NotificationCreatedPayload{
		DepartmentID: n.DepartmentID,
		Category:     n.Category,
		Title:        n.Title,
		Dispatch:     summary,
	}))
	return &CreateResult{Notification: n, Dispatch: summary}, nil
}

func (s *NotificationService) dispatch(ctx context.Context, n domain.Notification, departmentName string) domain.DispatchSummary {
	recipients, err := s.resolver.Resolve(ctx, n.DepartmentID)
	if err != nil {
		s.logger.Error("resolve notification recipients",
			zap.String("notification_id", n.ID), zap.Error(err))
		return domain.DispatchSummary{
			NotificationID:  n.ID,
			FailedAddresses: []string{},
			TransportError:  "resolve recipients: " + err.Error(),
			DispatchedAt:    s.now(),
		}
	}
	return s.dispatcher.Dispatch(ctx, n, departmentName, recipients)
}

// Update gates on the notification's current department. A department
// change by anyone who may not reassign is dropped without error. A new
// attachment replaces the old one, which is released once the record no
// longer points at it.
func (s *NotificationService) Update(ctx context.Context, actor *domain.Actor, id string, input NotificationUpdateInput, upload *storage.Upload) (*domain.Notification, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "notification")
	}
	if err := authorize(access.Request{
		Actor:      actor,
		Kind:       access.KindNotification,
		Department: n.DepartmentID,
		Op:         access.OpUpdate,
	}); err != nil {
		return nil, err
	}

	input.Title = trim(input.Title)
	input.DepartmentID = trim(input.DepartmentID)
	if input.Category == "" {
		input.Category = n.Category
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	departmentID := n.DepartmentID
	if input.DepartmentID != "" && input.DepartmentID != n.DepartmentID {
		reassign := access.Decide(access.Request{
			Actor:      actor,
			Kind:       access.KindNotification,
			Department: n.DepartmentID,
			Op:         access.OpReassign,
		})
		if reassign.Allowed {
			dept, err := s.requireDepartment(ctx, input.DepartmentID)
			if err != nil {
				return nil, err
			}
			departmentID = dept.ID
		} else {
			s.logger.Debug("ignoring department change",
				zap.String("notification_id", n.ID),
				zap.String("actor_id", actor.ID),
				zap.String("reason", reassign.Reason))
		}
	}

	oldRef := n.AttachmentRef
	newRef := ""
	if upload != nil {
		ref, err := s.saveAttachment(ctx, *upload)
		if err != nil {
			return nil, err
		}
		newRef = ref
	}

	n.Title = input.Title
	n.Description = input.Description
	n.Category = input.Category
	n.DepartmentID = departmentID
	if input.Date != nil {
		n.Date = *input.Date
	}
	if newRef != "" {
		n.AttachmentRef = newRef
	}

	if err := s.notifications.Update(ctx, n); err != nil {
		s.release(ctx, newRef, n.ID)
		return nil, lookupError(err, "notification")
	}

	released := false
	if newRef != "" && oldRef != "" {
		released = s.release(ctx, oldRef, n.ID)
	}

	publish(ctx, s.events, s.logger, events.New(events.EventNotificationUpdated, n.ID, actor,
		events.NotificationChangedPayload{DepartmentID: n.DepartmentID, AttachmentReleased: released}))
	return n, nil
}

// Delete removes a notification and releases its attachment.
func (s *NotificationService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "notification")
	}
	if err := authorize(access.Request{
		Actor:      actor,
		Kind:       access.KindNotification,
		Department: n.DepartmentID,
		Op:         access.OpDelete,
	}); err != nil {
		return err
	}

	if err := s.notifications.Delete(ctx, n.ID); err != nil {
		return lookupError(err, "notification")
	}
	released := false
	if n.HasAttachment() {
		released = s.release(ctx, n.AttachmentRef, n.ID)
	}

	publish(ctx, s.events, s.logger, events.New(events.EventNotificationDeleted, n.ID, actor,
		events.NotificationChangedPayload{DepartmentID: n.DepartmentID, AttachmentReleased: released}))
	return nil
}

// Get returns a notification with department and author names.
func (s *NotificationService) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.NotificationView, error) {
	view, err := s.notifications.GetView(ctx, id)
	if err != nil {
		return nil, lookupError(err, "notification")
	}
	if err := authorize(access.Request{
		Actor:      actor,
		Kind:       access.KindNotification,
		Department: view.DepartmentID,
		Op:         access.OpRead,
	}); err != nil {
		return nil, err
	}
	return view, nil
}

// List pages through notifications for admins, newest first. Department
// admins are pinned to their own department.
func (s *NotificationService) List(ctx context.Context, actor *domain.Actor, filter NotificationListFilter) (Page[domain.NotificationView], error) {
	if err := requireAdmin(actor); err != nil {
		return Page[domain.NotificationView]{}, err
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return Page[domain.NotificationView]{}, apperrors.NewValidationError("invalid category",
			map[string]any{"category": string(filter.Category)})
	}

	query := repository.NotificationFilter{
		DepartmentID: trim(filter.DepartmentID),
		Category:     filter.Category,
		Search:       filter.Search,
		Sort:         repository.Sort{Field: "createdAt", Direction: repository.SortDesc},
		Page:         repository.NormalizePage(filter.Page),
	}
	if actor.Role == domain.RoleDeptAdmin {
		query.DepartmentID = actor.DepartmentID
	}
	return s.list(ctx, query)
}

// Feed lists the notifications of the actor's own department, newest first.
func (s *NotificationService) Feed(ctx context.Context, actor *domain.Actor, category domain.Category, page int) (Page[domain.NotificationView], error) {
	if err := authorize(access.Request{
		Actor:      actor,
		Kind:       access.KindNotification,
		Department: actorDepartment(actor),
		Op:         access.OpRead,
	}); err != nil {
		return Page[domain.NotificationView]{}, err
	}
	if category != "" && !category.Valid() {
		return Page[domain.NotificationView]{}, apperrors.NewValidationError("invalid category",
			map[string]any{"category": string(category)})
	}
	return s.list(ctx, repository.NotificationFilter{
		DepartmentID: actor.DepartmentID,
		Category:     category,
		Sort:         repository.Sort{Field: "createdAt", Direction: repository.SortDesc},
		Page:         repository.NormalizePage(page),
	})
}

func (s *NotificationService) list(ctx context.Context, query repository.NotificationFilter) (Page[domain.NotificationView], error) {
	items, total, err := s.notifications.List(ctx, query)
	if err != nil {
		return Page[domain.NotificationView]{}, apperrors.MapError(err)
	}
	return newPage(items, total, query.Page), nil
}

// DispatchReport returns the last dispatch summary stored for a notification.
func (s *NotificationService) DispatchReport(ctx context.Context, actor *domain.Actor, id string) (*domain.DispatchSummary, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "notification")
	}
	if err := authorize(access.Request{
		Actor:      actor,
		Kind:       access.KindNotification,
		Department: n.DepartmentID,
		Op:         access.OpRead,
	}); err != nil {
		return nil, err
	}
	if s.reports == nil {
		return nil, apperrors.NewNotFound("dispatch report", map[string]any{"notification_id": id})
	}

	summary, err := s.reports.Get(ctx, n.ID)
	if errors.Is(err, notify.ErrReportNotFound) {
		return nil, apperrors.NewNotFound("dispatch report", map[string]any{"notification_id": id})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return summary, nil
}

// requireDepartment loads a referenced department. A missing one is a
// validation failure of the request, not a missing resource.
func (s *NotificationService) requireDepartment(ctx context.Context, id string) (*domain.Department, error) {
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("Department not found", map[string]any{"department_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}

func (s *NotificationService) saveAttachment(ctx context.Context, upload storage.Upload) (string, error) {
	if s.attachments == nil {
		return "", apperrors.NewValidationError("attachments are not supported", nil)
	}
	ref, err := s.attachments.Save(ctx, upload)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) {
			return "", apperrors.NewValidationError(err.Error(), map[string]any{"file": upload.Filename})
		}
		return "", apperrors.MapError(err)
	}
	return ref, nil
}

// release frees an attachment reference, logging failures. It reports
// whether the release succeeded.
func (s *NotificationService) release(ctx context.Context, ref, notificationID string) bool {
	if ref == "" || s.attachments == nil {
		return false
	}
	if err := s.attachments.Release(ctx, ref); err != nil {
		s.logger.Error("release attachment",
			zap.String("notification_id", notificationID),
			zap.String("ref", ref),
			zap.Error(err))
		return false
	}
	return true
}

func (s *NotificationService) dateOrNow(d *time.Time) time.Time {
	if d == nil || d.IsZero() {
		return s.now()
	}
	return *d
}

func actorDepartment(actor *domain.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.DepartmentID
}
