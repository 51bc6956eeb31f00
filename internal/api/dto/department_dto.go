package dto

import (
	"time"

	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/service"
)

// DepartmentResponse is the public shape of a department.
type DepartmentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DepartmentStatsResponse adds membership and notification counts.
type DepartmentStatsResponse struct {
	DepartmentResponse
	StudentCount      int64 `json:"student_count"`
	AdminCount        int64 `json:"admin_count"`
	NotificationCount int64 `json:"notification_count"`
}

// DepartmentDataResponse is the admin view of one department.
type DepartmentDataResponse struct {
	Department         DepartmentResponse     `json:"department"`
	Users              []UserResponse         `json:"users"`
	CategoryCounts     []domain.CategoryCount `json:"category_counts"`
	TotalNotifications int64                  `json:"total_notifications"`
	TotalUsers         int64                  `json:"total_users"`
	RoleCounts         map[domain.Role]int64  `json:"role_counts"`
}

func NewDepartmentResponse(d domain.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:          d.ID,
		Name:        d.Name,
		Code:        d.Code,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}

func NewDepartmentResponses(depts []domain.Department) []DepartmentResponse {
	out := make([]DepartmentResponse, 0, len(depts))
	for _, d := range depts {
		out = append(out, NewDepartmentResponse(d))
	}
	return out
}

func NewDepartmentStatsResponses(stats []domain.DepartmentStats) []DepartmentStatsResponse {
	out := make([]DepartmentStatsResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, DepartmentStatsResponse{
			DepartmentResponse: NewDepartmentResponse(s.Department),
			StudentCount:       s.StudentCount,
			AdminCount:         s.AdminCount,
			NotificationCount:  s.NotificationCount,
		})
	}
	return out
}

func NewDepartmentDataResponse(d service.DepartmentData) DepartmentDataResponse {
	return DepartmentDataResponse{
		Department:         NewDepartmentResponse(d.Department),
		Users:              NewUserResponses(d.Users),
		CategoryCounts:     d.CategoryCounts,
		TotalNotifications: d.TotalNotifications,
		TotalUsers:         d.TotalUsers,
		RoleCounts:         d.RoleCounts,
	}
}
