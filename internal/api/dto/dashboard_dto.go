package dto

import (
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/service"
)

// DashboardResponse is the role-specific landing summary.
type DashboardResponse struct {
	Role                domain.Role               `json:"role"`
	Department          *DepartmentResponse       `json:"department,omitempty"`
	TotalNotifications  int64                     `json:"total_notifications"`
	CategoryCounts      []domain.CategoryCount    `json:"category_counts"`
	RecentNotifications []NotificationResponse    `json:"recent_notifications"`
	StudentCount        *int64                    `json:"student_count,omitempty"`
	RoleCounts          map[domain.Role]int64     `json:"role_counts,omitempty"`
	Departments         []DepartmentStatsResponse `json:"departments,omitempty"`
}

func NewDashboardResponse(d service.Dashboard) DashboardResponse {
	resp := DashboardResponse{
		Role:                d.Role,
		TotalNotifications:  d.TotalNotifications,
		CategoryCounts:      d.CategoryCounts,
		RecentNotifications: NewNotificationViewResponses(d.RecentNotifications),
		StudentCount:        d.StudentCount,
		RoleCounts:          d.RoleCounts,
	}
	if d.Department != nil {
		dept := NewDepartmentResponse(*d.Department)
		resp.Department = &dept
	}
	if d.Departments != nil {
		resp.Departments = NewDepartmentStatsResponses(d.Departments)
	}
	return resp
}
