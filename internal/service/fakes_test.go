package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/notification-service/internal/config"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/mail"
	"github.com/spec-kit/notification-service/internal/notify"
	"github.com/spec-kit/notification-service/internal/repository"
	"github.com/spec-kit/notification-service/internal/storage"
)

// memStore backs the three in-memory repositories so counts and joins stay
// consistent across them.
type memStore struct {
	mu            sync.Mutex
	departments   map[string]*domain.Department
	users         map[string]*domain.User
	notifications map[string]*domain.Notification
	order         []string
	// staleExists makes the existence checks miss rows, as when a concurrent
	// insert has not committed yet. The unique constraints still hold.
	staleExists bool

	failNotificationCreate error
	failNotificationUpdate error
	writes                 int
}

func newMemStore() *memStore {
	return &memStore{
		departments:   map[string]*domain.Department{},
		users:         map[string]*domain.User{},
		notifications: map[string]*domain.Notification{},
	}
}

func (m *memStore) repos() (repository.DepartmentRepository, repository.UserRepository, repository.NotificationRepository) {
	return &memDepartments{m}, &memUsers{m}, &memNotifications{m}
}

func (m *memStore) addDepartment(name, code string) *domain.Department {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &domain.Department{ID: uuid.NewString(), Name: name, Code: code, CreatedAt: time.Now()}
	m.departments[d.ID] = d
	return d
}

func (m *memStore) addUser(name string, role domain.Role, departmentID string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  strings.ToLower(strings.ReplaceAll(name, " ", ".")),
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@campus.test",
		Role:      role,
		CreatedAt: time.Now(),
	}
	if departmentID != "" {
		id := departmentID
		u.DepartmentID = &id
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addNotification(title, departmentID, ref string) *domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := &domain.Notification{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   title + " details",
		DepartmentID:  departmentID,
		Category:      domain.CategoryExam,
		Date:          time.Now(),
		AttachmentRef: ref,
		CreatedAt:     time.Now(),
	}
	m.notifications[n.ID] = n
	m.order = append(m.order, n.ID)
	return n
}

func (m *memStore) notification(id string) domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.notifications[id]
}

type memDepartments struct{ m *memStore }

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (r *memDepartments) conflict(dept *domain.Department) error {
	for _, d := range r.m.departments {
		if d.ID == dept.ID {
			continue
		}
		if d.Name == dept.Name {
			return uniqueViolation("departments_name_key")
		}
		if d.Code == dept.Code {
			return uniqueViolation("departments_code_key")
		}
	}
	return nil
}

func (r *memDepartments) Create(_ context.Context, dept *domain.Department) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.conflict(dept); err != nil {
		return err
	}
	dept.ID = uuid.NewString()
	dept.CreatedAt = time.Now()
	cp := *dept
	r.m.departments[dept.ID] = &cp
	r.m.writes++
	return nil
}

func (r *memDepartments) Update(_ context.Context, dept *domain.Department) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.departments[dept.ID]; !ok {
		return pgx.ErrNoRows
	}
	if err := r.conflict(dept); err != nil {
		return err
	}
	cp := *dept
	r.m.departments[dept.ID] = &cp
	r.m.writes++
	return nil
}

func (r *memDepartments) GetByID(_ context.Context, id string) (*domain.Department, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (r *memDepartments) List(_ context.Context) ([]domain.Department, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]domain.Department, 0, len(r.m.departments))
	for _, d := range r.m.departments {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memDepartments) ListStats(ctx context.Context) ([]domain.DepartmentStats, error) {
	depts, _ := r.List(ctx)
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]domain.DepartmentStats, 0, len(depts))
	for _, d := range depts {
		s := domain.DepartmentStats{Department: d}
		for _, u := range r.m.users {
			if u.Department() != d.ID {
				continue
			}
			switch u.Role {
			case domain.RoleStudent:
				s.StudentCount++
			case domain.RoleDeptAdmin:
				s.AdminCount++
			}
		}
		for _, n := range r.m.notifications {
			if n.DepartmentID == d.ID {
				s.NotificationCount++
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memDepartments) ExistsByNameOrCode(_ context.Context, name, code, excludeID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.staleExists {
		return false, nil
	}
	for _, d := range r.m.departments {
		if d.ID == excludeID {
			continue
		}
		if d.Name == name || d.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memDepartments) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.departments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.departments, id)
	r.m.writes++
	return nil
}

type memUsers struct{ m *memStore }

func (r *memUsers) conflict(user *domain.User) error {
	for _, u := range r.m.users {
		if u.ID == user.ID {
			continue
		}
		if u.Username == user.Username {
			return uniqueViolation("users_username_key")
		}
		if u.Email == user.Email {
			return uniqueViolation("users_email_key")
		}
	}
	return nil
}

func (r *memUsers) Create(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.conflict(user); err != nil {
		return err
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	cp := *user
	r.m.users[user.ID] = &cp
	r.m.writes++
	return nil
}

func (r *memUsers) Update(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	if err := r.conflict(user); err != nil {
		return err
	}
	cp := *user
	r.m.users[user.ID] = &cp
	r.m.writes++
	return nil
}

func (r *memUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *memUsers) GetByLogin(_ context.Context, identifier string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == identifier || u.Username == identifier })
}

func (r *memUsers) ExistsByUsernameOrEmail(_ context.Context, username, email, excludeID string) (bool, error) {
	r.m.mu.Lock()
	stale := r.m.staleExists
	r.m.mu.Unlock()
	if stale {
		return false, nil
	}
	_, err := r.find(func(u *domain.User) bool {
		if u.ID == excludeID {
			return false
		}
		return (username != "" && u.Username == username) || u.Email == email
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *memUsers) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash ||
			u.ResetTokenExpiry == nil || !u.ResetTokenExpiry.After(now) {
			continue
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash = nil
		u.ResetTokenExpiry = nil
		r.m.writes++
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *memUsers) List(_ context.Context, filter repository.UserFilter) ([]domain.UserView, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []domain.UserView
	for _, u := range r.m.users {
		if filter.DepartmentID != "" && u.Department() != filter.DepartmentID {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Username+" "+u.Email), strings.ToLower(filter.Search)) {
			continue
		}
		view := domain.UserView{User: *u}
		if d, ok := r.m.departments[u.Department()]; ok {
			view.DepartmentName = d.Name
		}
		all = append(all, view)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	start, end := repository.PageBounds(len(all), filter.Page, repository.PageSize)
	return all[start:end], int64(len(all)), nil
}

func (r *memUsers) ListByDepartment(_ context.Context, departmentID string) ([]domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.User
	for _, u := range r.m.users {
		if u.Department() == departmentID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memUsers) ListRecipients(ctx context.Context, departmentID string) ([]domain.User, error) {
	users, _ := r.ListByDepartment(ctx, departmentID)
	var out []domain.User
	for _, u := range users {
		if u.Role == domain.RoleStudent && u.Email != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUsers) CountByDepartment(ctx context.Context, departmentID string) (int64, error) {
	users, _ := r.ListByDepartment(ctx, departmentID)
	return int64(len(users)), nil
}

func (r *memUsers) CountByRole(_ context.Context, departmentID string) (map[domain.Role]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := map[domain.Role]int64{}
	for _, role := range domain.Roles() {
		out[role] = 0
	}
	for _, u := range r.m.users {
		if departmentID == "" || u.Department() == departmentID {
			out[u.Role]++
		}
	}
	return out, nil
}

func (r *memUsers) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.users, id)
	r.m.writes++
	return nil
}

type memNotifications struct{ m *memStore }

func (r *memNotifications) Create(_ context.Context, n *domain.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failNotificationCreate != nil {
		return r.m.failNotificationCreate
	}
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	cp := *n
	r.m.notifications[n.ID] = &cp
	r.m.order = append(r.m.order, n.ID)
	r.m.writes++
	return nil
}

func (r *memNotifications) Update(_ context.Context, n *domain.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failNotificationUpdate != nil {
		return r.m.failNotificationUpdate
	}
	if _, ok := r.m.notifications[n.ID]; !ok {
		return pgx.ErrNoRows
	}
	n.UpdatedAt = time.Now()
	cp := *n
	r.m.notifications[n.ID] = &cp
	r.m.writes++
	return nil
}

func (r *memNotifications) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n, ok := r.m.notifications[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *n
	return &cp, nil
}

func (r *memNotifications) view(n *domain.Notification) domain.NotificationView {
	v := domain.NotificationView{Notification: *n}
	if d, ok := r.m.departments[n.DepartmentID]; ok {
		v.DepartmentName = d.Name
	}
	if u, ok := r.m.users[n.CreatedBy]; ok {
		v.CreatedByName = u.Name
	}
	return v
}

func (r *memNotifications) GetView(_ context.Context, id string) (*domain.NotificationView, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n, ok := r.m.notifications[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	v := r.view(n)
	return &v, nil
}

// List returns newest first by insertion order.
func (r *memNotifications) List(_ context.Context, filter repository.NotificationFilter) ([]domain.NotificationView, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []domain.NotificationView
	for i := len(r.m.order) - 1; i >= 0; i-- {
		n, ok := r.m.notifications[r.m.order[i]]
		if !ok {
			continue
		}
		if filter.DepartmentID != "" && n.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.Category != "" && n.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(n.Title+" "+n.Description), strings.ToLower(filter.Search)) {
			continue
		}
		all = append(all, r.view(n))
	}
	size := repository.PageSize
	if filter.Limit > 0 {
		size = filter.Limit
	}
	start, end := repository.PageBounds(len(all), filter.Page, size)
	return all[start:end], int64(len(all)), nil
}

func (r *memNotifications) CountByCategory(_ context.Context, departmentID string) ([]domain.CategoryCount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sparse := map[domain.Category]int64{}
	for _, n := range r.m.notifications {
		if departmentID == "" || n.DepartmentID == departmentID {
			sparse[n.Category]++
		}
	}
	return domain.FillCategoryCounts(sparse), nil
}

func (r *memNotifications) CountByDepartment(_ context.Context, departmentID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var count int64
	for _, n := range r.m.notifications {
		if departmentID == "" || n.DepartmentID == departmentID {
			count++
		}
	}
	return count, nil
}

func (r *memNotifications) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.notifications[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.notifications, id)
	r.m.writes++
	return nil
}

// fakeAttachments records saves and releases by reference.
type fakeAttachments struct {
	mu       sync.Mutex
	saved    []string
	released []string
	saveErr  error
}

func (f *fakeAttachments) Save(_ context.Context, upload storage.Upload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	ref := "/uploads/" + uuid.NewString() + "-" + upload.Filename
	f.saved = append(f.saved, ref)
	return ref, nil
}

func (f *fakeAttachments) Open(_ context.Context, ref string) (*storage.Blob, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeAttachments) Release(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, ref)
	return nil
}

func (f *fakeAttachments) releasedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

// scriptedDispatcher fails the listed addresses and records every call.
type scriptedDispatcher struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls [][]notify.Recipient
	// after runs once the fan-out has finished, e.g. to expire the request.
	after func()
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, n domain.Notification, _ string, recipients []notify.Recipient) domain.DispatchSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, recipients)
	summary := domain.DispatchSummary{NotificationID: n.ID, TotalAttempted: len(recipients), FailedAddresses: []string{}}
	for _, r := range recipients {
		if d.fail[r.Email] {
			summary.Failed++
			summary.FailedAddresses = append(summary.FailedAddresses, r.Email)
			continue
		}
		summary.Successful++
	}
	if d.after != nil {
		d.after()
	}
	return summary
}

type memReports struct {
	mu      sync.Mutex
	reports map[string]domain.DispatchSummary
}

func newMemReports() *memReports {
	return &memReports{reports: map[string]domain.DispatchSummary{}}
}

func (r *memReports) Save(_ context.Context, summary domain.DispatchSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[summary.NotificationID] = summary
	return nil
}

func (r *memReports) Get(_ context.Context, id string) (*domain.DispatchSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.reports[id]
	if !ok {
		return nil, notify.ErrReportNotFound
	}
	return &s, nil
}

func (r *memReports) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reports, id)
	return nil
}

// outbox is a mail transport that keeps what it sends.
type outbox struct {
	mu      sync.Mutex
	sent    []mail.Message
	sendErr error
}

func (o *outbox) Verify(context.Context) error { return nil }

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sendErr != nil {
		return o.sendErr
	}
	o.sent = append(o.sent, msg)
	return nil
}

// recordingEvents is an event bus that remembers published types.
type recordingEvents struct {
	events.Dispatcher
	mu        sync.Mutex
	published []events.EventType
	ctxErrs   map[events.EventType]error
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{
		Dispatcher: events.NewInMemoryDispatcher(),
		ctxErrs:    map[events.EventType]error{},
	}
}

func (r *recordingEvents) Publish(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	r.published = append(r.published, e.Type)
	r.ctxErrs[e.Type] = ctx.Err()
	r.mu.Unlock()
	return r.Dispatcher.Publish(ctx, e)
}

func (r *recordingEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.published...)
}

func testConfig() config.Config {
	return config.Config{
		App:  config.AppConfig{BaseURL: "http://campus.test"},
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, PasswordResetTTLMinutes: 10, BcryptCost: 4},
		Mail: config.MailConfig{FromAddress: "noreply@campus.test", FromName: "Campus"},
	}
}

func actorOf(u *domain.User) *domain.Actor {
	return u.Actor()
}
