package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/notification-service/internal/domain"
)

// UserFilter narrows a user listing.
type UserFilter struct {
	DepartmentID string
	Role         domain.Role
	Search       string
	Sort         Sort
	Page         int
}

// UserRepository defines persistence access for accounts of every role.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByLogin matches either the username or the email.
	GetByLogin(ctx context.Context, identifier string) (*domain.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email, excludeID string) (bool, error)
	// ConsumeResetToken sets passwordHash and clears the token in one statement,
	// only while tokenHash is held with an expiry after now. A spent, expired or
	// unknown token yields pgx.ErrNoRows.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.UserView, int64, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]domain.User, error)
	// ListRecipients returns students of a department with a non-empty email, by name.
	ListRecipients(ctx context.Context, departmentID string) ([]domain.User, error)
	CountByDepartment(ctx context.Context, departmentID string) (int64, error)
	// CountByRole counts users per role; an empty departmentID counts globally.
	CountByRole(ctx context.Context, departmentID string) (map[domain.Role]int64, error)
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `u.id, u.name, u.username, u.email, u.password_hash, u.role, u.department_id::text,
               u.reset_token_hash, u.reset_token_expiry, u.created_at, u.updated_at`

var userSortColumns = map[string]string{
	"name":      "u.name",
	"username":  "u.username",
	"email":     "u.email",
	"role":      "u.role",
	"createdAt": "u.created_at",
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, username, email, password_hash, role, department_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Name,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.DepartmentID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	if !validID(user.ID) {
		return pgx.ErrNoRows
	}
	const query = `
        UPDATE users SET name=$1, username=$2, email=$3, password_hash=$4, role=$5, department_id=$6,
            reset_token_hash=$7, reset_token_expiry=$8, updated_at=NOW()
        WHERE id=$9`

	cmd, err := r.pool.Exec(ctx, query,
		user.Name,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.DepartmentID,
		user.ResetTokenHash,
		user.ResetTokenExpiry,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email=$1`, email)
}

func (r *userRepository) GetByLogin(ctx context.Context, identifier string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username=$1 OR u.email=$1 LIMIT 1`, identifier)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := scanUser(r.pool.QueryRow(ctx, query, args...), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE (username=$1 OR email=$2)`
	args := []any{username, email}
	if validID(excludeID) {
		query += ` AND id <> $3`
		args = append(args, excludeID)
	}
	query += `)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	return r.fetchSingle(ctx, `
        UPDATE users u SET password_hash=$1, reset_token_hash=NULL, reset_token_expiry=NULL, updated_at=NOW()
        WHERE u.reset_token_hash=$2 AND u.reset_token_expiry > $3
        RETURNING `+userColumns,
		passwordHash, tokenHash, now)
}

// buildUserListQuery renders the page and count queries for a filter.
func buildUserListQuery(filter UserFilter) (string, string, []any) {
	var b queryBuilder
	b.eq("u.department_id", filter.DepartmentID)
	b.eq("u.role", string(filter.Role))
	b.search(filter.Search, "u.name", "u.username", "u.email")

	where := b.where()
	list := `SELECT ` + userColumns + `, COALESCE(d.name, '')
        FROM users u LEFT JOIN departments d ON d.id = u.department_id` + where +
		orderBy(filter.Sort, userSortColumns, Sort{Field: "createdAt", Direction: SortDesc}) +
		limitOffset(filter.Page, PageSize)
	count := `SELECT COUNT(*) FROM users u` + where
	return list, count, b.args
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.UserView, int64, error) {
	if filter.DepartmentID != "" && !validID(filter.DepartmentID) {
		return nil, 0, nil
	}
	list, count, args := buildUserListQuery(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, count, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, list, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.UserView
	for rows.Next() {
		var view domain.UserView
		if err := rows.Scan(append(userScanTargets(&view.User), &view.DepartmentName)...); err != nil {
			return nil, 0, err
		}
		result = append(result, view)
	}
	return result, total, rows.Err()
}

func (r *userRepository) ListByDepartment(ctx context.Context, departmentID string) ([]domain.User, error) {
	if !validID(departmentID) {
		return nil, nil
	}
	return r.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.department_id=$1 ORDER BY u.name ASC`, departmentID)
}

func (r *userRepository) ListRecipients(ctx context.Context, departmentID string) ([]domain.User, error) {
	if !validID(departmentID) {
		return nil, nil
	}
	return r.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users u
         WHERE u.department_id=$1 AND u.role='student' AND u.email <> ''
         ORDER BY u.name ASC`, departmentID)
}

func (r *userRepository) queryUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func (r *userRepository) CountByDepartment(ctx context.Context, departmentID string) (int64, error) {
	if !validID(departmentID) {
		return 0, nil
	}
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE department_id=$1`, departmentID).Scan(&count)
	return count, err
}

func (r *userRepository) CountByRole(ctx context.Context, departmentID string) (map[domain.Role]int64, error) {
	var b queryBuilder
	b.eq("department_id", departmentID)
	if departmentID != "" && !validID(departmentID) {
		return map[domain.Role]int64{}, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM users`+b.where()+` GROUP BY role`, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Role]int64, len(domain.Roles()))
	for _, role := range domain.Roles() {
		counts[role] = 0
	}
	for rows.Next() {
		var role domain.Role
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return pgx.ErrNoRows
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func userScanTargets(u *domain.User) []any {
	return []any{
		&u.ID,
		&u.Name,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.DepartmentID,
		&u.ResetTokenHash,
		&u.ResetTokenExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
}

func scanUser(row pgx.Row, u *domain.User) error {
	return row.Scan(userScanTargets(u)...)
}
