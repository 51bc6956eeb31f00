package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/notify"
	"github.com/spec-kit/notification-service/internal/storage"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

type notificationFixture struct {
	store       *memStore
	svc         *NotificationService
	attachments *fakeAttachments
	dispatcher  *scriptedDispatcher
	reports     *memReports
	events      *recordingEvents

	cs, ee     *domain.Department
	csAdmin    *domain.User
	eeAdmin    *domain.User
	super      *domain.User
	csStudent  *domain.User
	csStudents []*domain.User
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	f := &notificationFixture{
		store:       newMemStore(),
		attachments: &fakeAttachments{},
		dispatcher:  &scriptedDispatcher{fail: map[string]bool{}},
		reports:     newMemReports(),
		events:      newRecordingEvents(),
	}
	f.cs = f.store.addDepartment("Computer Science", "CS01")
	f.ee = f.store.addDepartment("Electrical", "EE01")
	f.csAdmin = f.store.addUser("Ada Admin", domain.RoleDeptAdmin, f.cs.ID)
	f.eeAdmin = f.store.addUser("Eve Admin", domain.RoleDeptAdmin, f.ee.ID)
	f.super = f.store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	for _, name := range []string{"Alice", "Bob", "Carol", "Dan", "Erin", "Frank"} {
		f.csStudents = append(f.csStudents, f.store.addUser(name, domain.RoleStudent, f.cs.ID))
	}
	f.csStudent = f.csStudents[0]
	f.store.addUser("Zed", domain.RoleStudent, f.ee.ID)

	depts, users, notes := f.store.repos()
	f.svc = NewNotificationService(NotificationDependencies{
		NotificationRepo: notes,
		DepartmentRepo:   depts,
		Attachments:      f.attachments,
		Resolver:         notify.NewResolver(users),
		Dispatcher:       f.dispatcher,
		Reports:          f.reports,
		Events:           f.events,
	})
	return f
}

func noticeInput(title, departmentID string) NotificationInput {
	return NotificationInput{
		Title:        title,
		Description:  "Midterm schedule is out",
		DepartmentID: departmentID,
		Category:     domain.CategoryExam,
	}
}

func pdfUpload(name string) *storage.Upload {
	return &storage.Upload{Filename: name, ContentType: "application/pdf", Size: 3, Content: bytes.NewReader([]byte("pdf"))}
}

func TestCreateDispatchesToDepartmentStudents(t *testing.T) {
	f := newNotificationFixture(t)

	res, err := f.svc.Create(context.Background(), actorOf(f.csAdmin), noticeInput("Midterms", f.cs.ID), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Notification.ID)
	assert.Equal(t, f.csAdmin.ID, res.Notification.CreatedBy)
	assert.False(t, res.Notification.Date.IsZero())
	assert.Equal(t, 6, res.Dispatch.TotalAttempted)
	assert.Equal(t, 6, res.Dispatch.Successful)
	require.Len(t, f.dispatcher.calls, 1)
	for _, r := range f.dispatcher.calls[0] {
		assert.NotEqual(t, "zed@campus.test", r.Email)
	}
	assert.Contains(t, f.events.types(), events.EventNotificationCreated)
}

func TestCreatePublishesAfterRequestExpires(t *testing.T) {
	f := newNotificationFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.dispatcher.after = cancel

	_, err := f.svc.Create(ctx, actorOf(f.csAdmin), noticeInput("Long fan-out", f.cs.ID), nil)
	require.NoError(t, err)

	require.Error(t, ctx.Err())
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	errAtPublish, ok := f.events.ctxErrs[events.EventNotificationCreated]
	require.True(t, ok)
	assert.NoError(t, errAtPublish)
}

func TestCreateDefaultsCategory(t *testing.T) {
	f := newNotificationFixture(t)
	in := noticeInput("Welcome", f.cs.ID)
	in.Category = ""

	res, err := f.svc.Create(context.Background(), actorOf(f.csAdmin), in, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAcademic, res.Notification.Category)
}

func TestCreatePartialFailureKeepsNotification(t *testing.T) {
	f := newNotificationFixture(t)
	f.dispatcher.fail[f.csStudents[1].Email] = true
	f.dispatcher.fail[f.csStudents[4].Email] = true

	res, err := f.svc.Create(context.Background(), actorOf(f.csAdmin), noticeInput("Placement drive", f.cs.ID), nil)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Dispatch.TotalAttempted)
	assert.Equal(t, 4, res.Dispatch.Successful)
	assert.Equal(t, 2, res.Dispatch.Failed)
	assert.ElementsMatch(t, []string{f.csStudents[1].Email, f.csStudents[4].Email}, res.Dispatch.FailedAddresses)
	assert.Equal(t, "Placement drive", f.store.notification(res.Notification.ID).Title)
}

func TestCreateRejectsUnknownDepartment(t *testing.T) {
	f := newNotificationFixture(t)

	_, err := f.svc.Create(context.Background(), actorOf(f.super), noticeInput("Ghost", "8c1f6f55-0000-4000-8000-000000000000"), pdfUpload("a.pdf"))
	require.Error(t, err)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, f.store.writes)
	assert.Empty(t, f.attachments.saved)
	assert.Empty(t, f.dispatcher.calls)
}

func TestCreateOutsideOwnDepartmentIsForbidden(t *testing.T) {
	f := newNotificationFixture(t)

	_, err := f.svc.Create(context.Background(), actorOf(f.csAdmin), noticeInput("Sneaky", f.ee.ID), pdfUpload("a.pdf"))
	require.Error(t, err)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.Zero(t, f.store.writes)
	assert.Empty(t, f.attachments.saved)
	assert.Empty(t, f.dispatcher.calls)
}

func TestCreateByStudentIsForbidden(t *testing.T) {
	f := newNotificationFixture(t)

	_, err := f.svc.Create(context.Background(), actorOf(f.csStudent), noticeInput("Party", f.cs.ID), nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestCreateValidatesFields(t *testing.T) {
	f := newNotificationFixture(t)
	in := noticeInput("", f.cs.ID)
	in.Category = "Gossip"

	_, err := f.svc.Create(context.Background(), actorOf(f.csAdmin), in, nil)
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Contains(t, de.Details, "title")
	assert.Contains(t, de.Details, "category")
}

func TestCreateReleasesUploadWhenPersistFails(t *testing.T) {
	f := newNotificationFixture(t)
	f.store.failNotificationCreate = errors.New("connection reset")

	_, err := f.svc.Create(context.Background(), actorOf(f.csAdmin), noticeInput("Broken", f.cs.ID), pdfUpload("a.pdf"))
	require.Error(t, err)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	require.Len(t, f.attachments.saved, 1)
	assert.Equal(t, f.attachments.saved, f.attachments.releasedRefs())
	assert.Empty(t, f.dispatcher.calls)
}

func TestCreateRejectsUnsupportedUpload(t *testing.T) {
	f := newNotificationFixture(t)
	f.attachments.saveErr = storage.ErrUnsupportedType

	_, err := f.svc.Create(context.Background(), actorOf(f.csAdmin), noticeInput("Bad file", f.cs.ID), pdfUpload("a.exe"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, f.store.writes)
}

func TestUpdateOtherDepartmentIsForbiddenWithoutMutation(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("EE lab", f.ee.ID, "/uploads/old.pdf")

	_, err := f.svc.Update(context.Background(), actorOf(f.csAdmin), n.ID, NotificationUpdateInput{
		Title:       "Hijacked",
		Description: "x",
		Category:    domain.CategoryNews,
	}, pdfUpload("new.pdf"))
	require.Error(t, err)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.Equal(t, "EE lab", f.store.notification(n.ID).Title)
	assert.Empty(t, f.attachments.saved)
	assert.Empty(t, f.attachments.releasedRefs())
}

func TestUpdateReplacesAttachmentAndReleasesOldOnce(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("CS lab", f.cs.ID, "/uploads/old.pdf")

	updated, err := f.svc.Update(context.Background(), actorOf(f.csAdmin), n.ID, NotificationUpdateInput{
		Title:       "CS lab moved",
		Description: "Room 101",
		Category:    domain.CategoryAcademic,
	}, pdfUpload("new.pdf"))
	require.NoError(t, err)

	require.Len(t, f.attachments.saved, 1)
	assert.Equal(t, f.attachments.saved[0], updated.AttachmentRef)
	assert.Equal(t, []string{"/uploads/old.pdf"}, f.attachments.releasedRefs())
	assert.Equal(t, "CS lab moved", f.store.notification(n.ID).Title)
	assert.Empty(t, f.dispatcher.calls, "updates never re-dispatch")
}

func TestUpdateKeepsAttachmentWithoutUpload(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("CS lab", f.cs.ID, "/uploads/old.pdf")

	updated, err := f.svc.Update(context.Background(), actorOf(f.csAdmin), n.ID, NotificationUpdateInput{
		Title:       "CS lab",
		Description: "same",
		Category:    domain.CategoryAcademic,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/old.pdf", updated.AttachmentRef)
	assert.Empty(t, f.attachments.releasedRefs())
}

func TestUpdatePersistFailureReleasesNewUploadOnly(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("CS lab", f.cs.ID, "/uploads/old.pdf")
	f.store.failNotificationUpdate = errors.New("deadlock")

	_, err := f.svc.Update(context.Background(), actorOf(f.csAdmin), n.ID, NotificationUpdateInput{
		Title:       "CS lab",
		Description: "x",
		Category:    domain.CategoryAcademic,
	}, pdfUpload("new.pdf"))
	require.Error(t, err)

	require.Len(t, f.attachments.saved, 1)
	assert.Equal(t, f.attachments.saved, f.attachments.releasedRefs())
	assert.Equal(t, "/uploads/old.pdf", f.store.notification(n.ID).AttachmentRef)
}

func TestUpdateIgnoresDepartmentChangeByDeptAdmin(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("CS seminar", f.cs.ID, "")

	updated, err := f.svc.Update(context.Background(), actorOf(f.csAdmin), n.ID, NotificationUpdateInput{
		Title:        "CS seminar",
		Description:  "moved",
		DepartmentID: f.ee.ID,
		Category:     domain.CategoryEvent,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, f.cs.ID, updated.DepartmentID)
	assert.Equal(t, f.cs.ID, f.store.notification(n.ID).DepartmentID)
	assert.Equal(t, "moved", f.store.notification(n.ID).Description)
}

func TestUpdateSuperAdminMovesDepartment(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("Shared", f.cs.ID, "")

	updated, err := f.svc.Update(context.Background(), actorOf(f.super), n.ID, NotificationUpdateInput{
		Title:        "Shared",
		Description:  "now EE",
		DepartmentID: f.ee.ID,
		Category:     domain.CategoryEvent,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, f.ee.ID, updated.DepartmentID)

	_, err = f.svc.Update(context.Background(), actorOf(f.super), n.ID, NotificationUpdateInput{
		Title:        "Shared",
		Description:  "nowhere",
		DepartmentID: "1c1f6f55-0000-4000-8000-000000000000",
		Category:     domain.CategoryEvent,
	}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, f.ee.ID, f.store.notification(n.ID).DepartmentID)
}

func TestUpdateMissingNotification(t *testing.T) {
	f := newNotificationFixture(t)

	_, err := f.svc.Update(context.Background(), actorOf(f.super), "missing", NotificationUpdateInput{
		Title: "x", Description: "y", Category: domain.CategoryNews,
	}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDeleteReleasesAttachment(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("Old", f.cs.ID, "/uploads/old.pdf")

	require.NoError(t, f.svc.Delete(context.Background(), actorOf(f.csAdmin), n.ID))

	_, err := f.svc.Get(context.Background(), actorOf(f.csAdmin), n.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Equal(t, []string{"/uploads/old.pdf"}, f.attachments.releasedRefs())
	assert.Contains(t, f.events.types(), events.EventNotificationDeleted)
}

func TestDeleteOtherDepartmentIsForbidden(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("EE only", f.ee.ID, "/uploads/ee.pdf")

	err := f.svc.Delete(context.Background(), actorOf(f.csAdmin), n.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.Empty(t, f.attachments.releasedRefs())
	assert.Equal(t, "EE only", f.store.notification(n.ID).Title)
}

func TestGetScopesStudents(t *testing.T) {
	f := newNotificationFixture(t)
	own := f.store.addNotification("Ours", f.cs.ID, "")
	other := f.store.addNotification("Theirs", f.ee.ID, "")

	view, err := f.svc.Get(context.Background(), actorOf(f.csStudent), own.ID)
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", view.DepartmentName)

	_, err = f.svc.Get(context.Background(), actorOf(f.csStudent), other.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestListPinsDeptAdminToOwnDepartment(t *testing.T) {
	f := newNotificationFixture(t)
	f.store.addNotification("CS 1", f.cs.ID, "")
	f.store.addNotification("EE 1", f.ee.ID, "")
	f.store.addNotification("CS 2", f.cs.ID, "")

	page, err := f.svc.List(context.Background(), actorOf(f.csAdmin), NotificationListFilter{DepartmentID: f.ee.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "CS 2", page.Items[0].Title)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.TotalPages)

	all, err := f.svc.List(context.Background(), actorOf(f.super), NotificationListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	_, err = f.svc.List(context.Background(), actorOf(f.csStudent), NotificationListFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestListPaginates(t *testing.T) {
	f := newNotificationFixture(t)
	for i := 0; i < 23; i++ {
		f.store.addNotification("n", f.cs.ID, "")
	}

	page, err := f.svc.List(context.Background(), actorOf(f.super), NotificationListFilter{Page: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(23), page.Total)
}

func TestFeedFiltersByCategory(t *testing.T) {
	f := newNotificationFixture(t)
	exam := f.store.addNotification("Exam", f.cs.ID, "")
	f.store.addNotification("Other dept", f.ee.ID, "")
	news := f.store.addNotification("News", f.cs.ID, "")
	f.store.mu.Lock()
	f.store.notifications[news.ID].Category = domain.CategoryNews
	f.store.mu.Unlock()

	page, err := f.svc.Feed(context.Background(), actorOf(f.csStudent), domain.CategoryExam, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, exam.ID, page.Items[0].ID)

	all, err := f.svc.Feed(context.Background(), actorOf(f.csStudent), "", 1)
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	_, err = f.svc.Feed(context.Background(), actorOf(f.csStudent), "Gossip", 1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestDispatchReport(t *testing.T) {
	f := newNotificationFixture(t)
	n := f.store.addNotification("Reported", f.cs.ID, "")

	_, err := f.svc.DispatchReport(context.Background(), actorOf(f.csAdmin), n.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	require.NoError(t, f.reports.Save(context.Background(), domain.DispatchSummary{NotificationID: n.ID, TotalAttempted: 6, Successful: 5, Failed: 1}))
	summary, err := f.svc.DispatchReport(context.Background(), actorOf(f.csAdmin), n.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Successful)

	_, err = f.svc.DispatchReport(context.Background(), actorOf(f.eeAdmin), n.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
