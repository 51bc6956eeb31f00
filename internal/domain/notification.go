package domain

import "time"

// Category classifies a notification.
type Category string

const (
	CategoryEvent       Category = "Event"
	CategoryAcademic    Category = "Academic"
	CategoryExam        Category = "Exam"
	CategoryPlacement   Category = "Placement"
	CategoryScholarship Category = "Scholarship"
	CategoryNews        Category = "News"
	CategoryOffice      Category = "Office"
)

// categories is the closed set, in declaration order. Validation and
// aggregation both read from here.
var categories = []Category{
	CategoryEvent,
	CategoryAcademic,
	CategoryExam,
	CategoryPlacement,
	CategoryScholarship,
	CategoryNews,
	CategoryOffice,
}

// Categories returns a copy of the declared categories.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Notification is an announcement scoped to one department.
type Notification struct {
	ID            string
	Title         string
	Description   string
	DepartmentID  string
	Category      Category
	Date          time.Time
	AttachmentRef string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasAttachment reports whether an attachment reference is set.
func (n *Notification) HasAttachment() bool {
	return n != nil && n.AttachmentRef != ""
}

// NotificationView is a notification joined with department and author names.
type NotificationView struct {
	Notification
	DepartmentName string
	CreatedByName  string
}

// CategoryCount is the number of notifications in one category.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
}

// FillCategoryCounts expands sparse counts into one entry per declared
// category, in declaration order, with zero for missing categories.
func FillCategoryCounts(sparse map[Category]int64) []CategoryCount {
	out := make([]CategoryCount, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryCount{Category: c, Count: sparse[c]})
	}
	return out
}
