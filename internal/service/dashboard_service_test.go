package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/notification-service/internal/domain"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

func TestDashboardPerRole(t *testing.T) {
	store := newMemStore()
	cs := store.addDepartment("Computer Science", "CS01")
	ee := store.addDepartment("Electrical", "EE01")
	admin := store.addUser("Ada Admin", domain.RoleDeptAdmin, cs.ID)
	student := store.addUser("Alice", domain.RoleStudent, cs.ID)
	store.addUser("Bob", domain.RoleStudent, cs.ID)
	store.addUser("Zed", domain.RoleStudent, ee.ID)
	super := store.addUser("Sam Super", domain.RoleSuperAdmin, "")
	for i := 0; i < 7; i++ {
		store.addNotification("cs", cs.ID, "")
	}
	store.addNotification("ee", ee.ID, "")

	depts, users, notes := store.repos()
	svc := NewDashboardService(DashboardDependencies{DepartmentRepo: depts, UserRepo: users, NotificationRepo: notes})

	t.Run("student", func(t *testing.T) {
		d, err := svc.For(context.Background(), actorOf(student))
		require.NoError(t, err)
		assert.Equal(t, cs.ID, d.Department.ID)
		assert.Equal(t, int64(7), d.TotalNotifications)
		assert.Len(t, d.RecentNotifications, 5)
		assert.Len(t, d.CategoryCounts, len(domain.Categories()))
		assert.Nil(t, d.StudentCount)
		assert.Nil(t, d.RoleCounts)
	})

	t.Run("department admin", func(t *testing.T) {
		d, err := svc.For(context.Background(), actorOf(admin))
		require.NoError(t, err)
		require.NotNil(t, d.StudentCount)
		assert.Equal(t, int64(2), *d.StudentCount)
	})

	t.Run("super admin", func(t *testing.T) {
		d, err := svc.For(context.Background(), actorOf(super))
		require.NoError(t, err)
		assert.Nil(t, d.Department)
		assert.Equal(t, int64(8), d.TotalNotifications)
		assert.Equal(t, int64(3), d.RoleCounts[domain.RoleStudent])
		assert.Equal(t, int64(1), d.RoleCounts[domain.RoleSuperAdmin])
		assert.Len(t, d.Departments, 2)
		assert.Equal(t, "ee", d.RecentNotifications[0].Title)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := svc.For(context.Background(), nil)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	})
}
