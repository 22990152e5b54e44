// Package users persists user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/google/uuid"
)

// Repository is the user store. Lookups of unknown records return
// common.ErrorNotFound; a duplicate email returns common.ErrEmailTaken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}
