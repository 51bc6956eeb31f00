package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/notification-service/internal/domain"
)

// NotificationFilter captures listing parameters.
type NotificationFilter struct {
	DepartmentID string
	Category     domain.Category
	Search       string
	Sort         Sort
	Page         int
	// Limit overrides PageSize when positive.
	Limit int
}

// NotificationRepository encapsulates notification persistence.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	Update(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	GetView(ctx context.Context, id string) (*domain.NotificationView, error)
	List(ctx context.Context, filter NotificationFilter) ([]domain.NotificationView, int64, error)
	// CountByCategory always returns every declared category; an empty
	// departmentID counts globally.
	CountByCategory(ctx context.Context, departmentID string) ([]domain.CategoryCount, error)
	CountByDepartment(ctx context.Context, departmentID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationViewSelect = `
        SELECT n.id, n.title, n.description, n.department_id::text, n.category, n.date, n.attachment_ref,
               COALESCE(n.created_by::text, ''), n.created_at, n.updated_at,
               d.name, COALESCE(u.name, '')
        FROM notifications n
        JOIN departments d ON d.id = n.department_id
        LEFT JOIN users u ON u.id = n.created_by`

var notificationSortColumns = map[string]string{
	"title":     "n.title",
	"category":  "n.category",
	"date":      "n.date",
	"createdAt": "n.created_at",
	"updatedAt": "n.updated_at",
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (title, description, department_id, category, date, attachment_ref, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7, '')::uuid)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		n.Title,
		n.Description,
		n.DepartmentID,
		n.Category,
		n.Date,
		n.AttachmentRef,
		n.CreatedBy,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
}

func (r *notificationRepository) Update(ctx context.Context, n *domain.Notification) error {
	if !validID(n.ID) {
		return pgx.ErrNoRows
	}
	const query = `
        UPDATE notifications SET title=$1, description=$2, department_id=$3, category=$4, date=$5,
            attachment_ref=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		n.Title,
		n.Description,
		n.DepartmentID,
		n.Category,
		n.Date,
		n.AttachmentRef,
		n.ID,
	).Scan(&n.UpdatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	const query = `
        SELECT id, title, description, department_id::text, category, date, attachment_ref,
               COALESCE(created_by::text, ''), created_at, updated_at
        FROM notifications WHERE id=$1`
	var n domain.Notification
	if err := r.pool.QueryRow(ctx, query, id).Scan(notificationScanTargets(&n)...); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) GetView(ctx context.Context, id string) (*domain.NotificationView, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	var view domain.NotificationView
	if err := scanNotificationView(r.pool.QueryRow(ctx, notificationViewSelect+` WHERE n.id=$1`, id), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// buildNotificationListQuery renders the page and count queries for a filter.
func buildNotificationListQuery(filter NotificationFilter) (string, string, []any) {
	var b queryBuilder
	b.eq("n.department_id", filter.DepartmentID)
	b.eq("n.category", string(filter.Category))
	b.search(filter.Search, "n.title", "n.description")

	size := PageSize
	if filter.Limit > 0 {
		size = filter.Limit
	}

	where := b.where()
	list := notificationViewSelect + where +
		orderBy(filter.Sort, notificationSortColumns, Sort{Field: "createdAt", Direction: SortDesc}) +
		limitOffset(filter.Page, size)
	count := `SELECT COUNT(*) FROM notifications n` + where
	return list, count, b.args
}

func (r *notificationRepository) List(ctx context.Context, filter NotificationFilter) ([]domain.NotificationView, int64, error) {
	if filter.DepartmentID != "" && !validID(filter.DepartmentID) {
		return nil, 0, nil
	}
	list, count, args := buildNotificationListQuery(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, count, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, list, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.NotificationView
	for rows.Next() {
		var view domain.NotificationView
		if err := scanNotificationView(rows, &view); err != nil {
			return nil, 0, err
		}
		result = append(result, view)
	}
	return result, total, rows.Err()
}

func (r *notificationRepository) CountByCategory(ctx context.Context, departmentID string) ([]domain.CategoryCount, error) {
	if departmentID != "" && !validID(departmentID) {
		return domain.FillCategoryCounts(nil), nil
	}
	var b queryBuilder
	b.eq("department_id", departmentID)

	rows, err := r.pool.Query(ctx, `SELECT category, COUNT(*) FROM notifications`+b.where()+` GROUP BY category`, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sparse := make(map[domain.Category]int64)
	for rows.Next() {
		var category domain.Category
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		sparse[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.FillCategoryCounts(sparse), nil
}

func (r *notificationRepository) CountByDepartment(ctx context.Context, departmentID string) (int64, error) {
	if departmentID != "" && !validID(departmentID) {
		return 0, nil
	}
	var b queryBuilder
	b.eq("department_id", departmentID)

	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+b.where(), b.args...).Scan(&count)
	return count, err
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return pgx.ErrNoRows
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func notificationScanTargets(n *domain.Notification) []any {
	return []any{
		&n.ID,
		&n.Title,
		&n.Description,
		&n.DepartmentID,
		&n.Category,
		&n.Date,
		&n.AttachmentRef,
		&n.CreatedBy,
		&n.CreatedAt,
		&n.UpdatedAt,
	}
}

func scanNotificationView(row pgx.Row, view *domain.NotificationView) error {
	targets := append(notificationScanTargets(&view.Notification), &view.DepartmentName, &view.CreatedByName)
	return row.Scan(targets...)
}
