package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	"github.com/kader009/trustedge-backend/pkg/database"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

const userColumns = `id, name, email, password_hash, phone, address, image, role, status, is_deleted, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Phone,
		u.Address,
		u.Image,
		string(u.Role),
		string(u.Status),
		u.IsDeleted,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a live user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND NOT is_deleted`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, lookupErr(err, "user", id)
	}
	return u, nil
}

// GetByEmail retrieves a live user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) AND NOT is_deleted`

	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, lookupErr(err, "user", email)
	}
	return u, nil
}

// List returns live users matching the filter with the total count.
func (r *UserRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	conditions := []string{"NOT is_deleted"}
	var args []any
	argIndex := 1

	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIndex))
		args = append(args, filter.Role)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(`(name ILIKE $%d ESCAPE '\' OR email ILIKE $%d ESCAPE '\')`, argIndex, argIndex))
		args = append(args, containsPattern(filter.Search))
		argIndex++
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM users
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		userColumns, strings.Join(conditions, " AND "), argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	total := 0
	for rows.Next() {
		u, err := scanUser(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}
	rows.Close()

	if len(users) == 0 && filter.Offset > 0 {
		total, err = countMatches(ctx, r.db, "FROM users WHERE "+strings.Join(conditions, " AND "), args[:len(args)-2])
		if err != nil {
			return nil, 0, err
		}
	}

	return users, total, nil
}

// Update modifies the mutable fields of a live user.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, phone = $5, address = $6, image = $7,
		    role = $8, status = $9, updated_at = $10
		WHERE id = $1 AND NOT is_deleted`

	tag, err := r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Phone,
		u.Address,
		u.Image,
		string(u.Role),
		string(u.Status),
		u.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}

	return nil
}

// SoftDelete flags the user deleted and inactive.
func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_deleted = TRUE, status = 'inactive', updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

func scanUser(row rowScanner, extra ...any) (*domain.User, error) {
	var (
		u      domain.User
		role   string
		status string
	)

	dest := []any{
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.Address,
		&u.Image,
		&role,
		&status,
		&u.IsDeleted,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	return &u, nil
}
