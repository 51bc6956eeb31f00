package domain

import "time"

// Department represents an academic department that scopes users and notifications.
type Department struct {
	ID          string
	Name        string
	Code        string
	Description string
	CreatedAt   time.Time
}

// DepartmentStats decorates a department with membership and notification counts.
type DepartmentStats struct {
	Department
	StudentCount      int64
	AdminCount        int64
	NotificationCount int64
}
