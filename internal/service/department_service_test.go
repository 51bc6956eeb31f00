package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/notification-service/internal/domain"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

func newDepartmentService(store *memStore) *DepartmentService {
	depts, users, notes := store.repos()
	return NewDepartmentService(DepartmentDependencies{
		DepartmentRepo:   depts,
		UserRepo:         users,
		NotificationRepo: notes,
		Events:           newRecordingEvents(),
	})
}

func TestDepartmentCreateRejectsDuplicateCode(t *testing.T) {
	store := newMemStore()
	store.addDepartment("Computer Science", "CS01")
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	svc := newDepartmentService(store)

	_, err := svc.Create(context.Background(), actorOf(super), DepartmentInput{Name: "Computing", Code: "CS01"})
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Equal(t, "Department with that name or code already exists", de.Message)
	assert.Zero(t, store.writes)
}

func TestDepartmentCreateDuplicateRaisedByStore(t *testing.T) {
	store := newMemStore()
	store.addDepartment("Computer Science", "CS01")
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	store.staleExists = true
	svc := newDepartmentService(store)

	_, err := svc.Create(context.Background(), actorOf(super), DepartmentInput{Name: "Computing", Code: "CS01"})
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Equal(t, "Department with that name or code already exists", de.Message)
	assert.Zero(t, store.writes)
}

func TestDepartmentCreateRequiresSuperAdmin(t *testing.T) {
	store := newMemStore()
	cs := store.addDepartment("Computer Science", "CS01")
	admin := store.addUser("Ada Admin", domain.RoleDeptAdmin, cs.ID)
	svc := newDepartmentService(store)

	_, err := svc.Create(context.Background(), actorOf(admin), DepartmentInput{Name: "Maths", Code: "MA01"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = svc.Create(context.Background(), nil, DepartmentInput{Name: "Maths", Code: "MA01"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestDepartmentCreateValidatesLengths(t *testing.T) {
	store := newMemStore()
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	svc := newDepartmentService(store)

	_, err := svc.Create(context.Background(), actorOf(super), DepartmentInput{Name: "  ", Code: "WAY-TOO-LONG-CODE"})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Contains(t, de.Details, "name")
	assert.Contains(t, de.Details, "code")
}

func TestDepartmentUpdateExcludesItselfFromUniqueness(t *testing.T) {
	store := newMemStore()
	cs := store.addDepartment("Computer Science", "CS01")
	store.addDepartment("Electrical", "EE01")
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	svc := newDepartmentService(store)

	updated, err := svc.Update(context.Background(), actorOf(super), cs.ID, DepartmentInput{Name: "Computer Science", Code: "CS01", Description: "Bits"})
	require.NoError(t, err)
	assert.Equal(t, "Bits", updated.Description)

	_, err = svc.Update(context.Background(), actorOf(super), cs.ID, DepartmentInput{Name: "Computer Science", Code: "EE01"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestDepartmentDeleteBlockedByUsers(t *testing.T) {
	store := newMemStore()
	cs := store.addDepartment("Computer Science", "CS01")
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	store.addUser("Alice", domain.RoleStudent, cs.ID)
	store.addUser("Bob", domain.RoleStudent, cs.ID)
	store.addNotification("Exam", cs.ID, "")
	svc := newDepartmentService(store)

	err := svc.Delete(context.Background(), actorOf(super), cs.ID)
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeReferentialIntegrity, de.Code)
	assert.Equal(t, "Cannot delete department. It has 2 users associated with it.", de.Message)
	assert.Equal(t, int64(2), de.Details["users"])
}

func TestDepartmentDeleteBlockedByNotifications(t *testing.T) {
	store := newMemStore()
	cs := store.addDepartment("Computer Science", "CS01")
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	store.addNotification("Exam", cs.ID, "")
	svc := newDepartmentService(store)

	err := svc.Delete(context.Background(), actorOf(super), cs.ID)
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeReferentialIntegrity, de.Code)
	assert.Equal(t, int64(1), de.Details["notifications"])
}

func TestDepartmentDeleteEmpty(t *testing.T) {
	store := newMemStore()
	cs := store.addDepartment("Computer Science", "CS01")
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	svc := newDepartmentService(store)

	require.NoError(t, svc.Delete(context.Background(), actorOf(super), cs.ID))

	_, err := svc.Get(context.Background(), actorOf(super), cs.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDepartmentDataScopedToOwnDepartment(t *testing.T) {
	store := newMemStore()
	cs := store.addDepartment("Computer Science", "CS01")
	ee := store.addDepartment("Electrical", "EE01")
	admin := store.addUser("Ada Admin", domain.RoleDeptAdmin, cs.ID)
	store.addUser("Bob", domain.RoleStudent, cs.ID)
	store.addUser("Alice", domain.RoleStudent, cs.ID)
	store.addNotification("Exam", cs.ID, "")
	svc := newDepartmentService(store)

	data, err := svc.Data(context.Background(), actorOf(admin), cs.ID)
	require.NoError(t, err)
	require.Len(t, data.Users, 3)
	assert.Equal(t, "Ada Admin", data.Users[0].Name)
	assert.Equal(t, "Alice", data.Users[1].Name)
	assert.Len(t, data.CategoryCounts, len(domain.Categories()))
	assert.Equal(t, int64(1), data.TotalNotifications)
	assert.Equal(t, int64(2), data.RoleCounts[domain.RoleStudent])

	_, err = svc.Data(context.Background(), actorOf(admin), ee.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestDepartmentListStatsSuperAdminOnly(t *testing.T) {
	store := newMemStore()
	cs := store.addDepartment("Computer Science", "CS01")
	store.addDepartment("Art", "AR01")
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	admin := store.addUser("Ada Admin", domain.RoleDeptAdmin, cs.ID)
	store.addUser("Alice", domain.RoleStudent, cs.ID)
	svc := newDepartmentService(store)

	stats, err := svc.ListStats(context.Background(), actorOf(super))
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Art", stats[0].Name)
	assert.Equal(t, int64(1), stats[1].StudentCount)
	assert.Equal(t, int64(1), stats[1].AdminCount)

	_, err = svc.ListStats(context.Background(), actorOf(admin))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
