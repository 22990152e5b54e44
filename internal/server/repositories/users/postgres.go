package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/dbx"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/google/uuid"
)

const emailConstraint = "users_email_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrorNotFound
	case dbx.IsUniqueViolation(err, emailConstraint):
		return common.ErrEmailTaken
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

// Create inserts user, assigning an id when it has none, and fills in the
// stored timestamps.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query :=
		`INSERT INTO users (id, email, password_hash, name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID.String(), user.Email, user.PasswordHash, user.Name, user.Role).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, name, role, created_at, updated_at
		 FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, name, role, created_at, updated_at
		 FROM users WHERE email = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// Update writes email, name and role of user and bumps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`UPDATE users SET email = $2, name = $3, role = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, user.ID.String(), user.Email, user.Name, user.Role).
		Scan(&user.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return user, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// List returns users newest first.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	query :=
		`SELECT id, email, password_hash, name, role, created_at, updated_at
		 FROM users
		 ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]models.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
