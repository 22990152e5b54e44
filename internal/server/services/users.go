package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/dbx"
	"github.com/dmitrijs2005/webshelf/internal/logging"
	"github.com/dmitrijs2005/webshelf/internal/server/lock"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/users"
	"github.com/google/uuid"
)

// Locker is the part of *lock.Locker the user service needs.
type Locker interface {
	Enabled() bool
	TryLock(ctx context.Context, key string) lock.Attempt
}

const createLockPrefix = "lock:user:create:"

// CreateUserInput is a new account. An empty Role means models.RoleUser.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	locker      Locker
	logger      logging.Logger
}

// NewUserService constructs a UserService. locker may be nil, in which case
// creation runs unserialized and relies on the email unique constraint.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, locker Locker, logger logging.Logger) *UserService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		locker:      locker,
		logger:      logger.With("module", "users"),
	}
}

// Register creates an ordinary account.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	return s.Create(ctx, CreateUserInput{Name: name, Email: email, Password: password, Role: models.RoleUser})
}

// Create stores a new account with a hashed password. Concurrent creations
// for the same email are serialized through the distributed lock; losing
// the race yields common.ErrOperationInProgress. When the lock store is
// unavailable creation goes ahead unlocked.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrInvalidInput, role)
	}

	release, err := s.lockCreate(ctx, email)
	if err != nil {
		return nil, err
	}
	defer release()

	repo := s.repomanager.Users(s.db)

	_, err = repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrEmailTaken
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error checking email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	user, err := repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *UserService) lockCreate(ctx context.Context, email string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	attempt := s.locker.TryLock(ctx, createLockPrefix+email)
	switch attempt.Outcome {
	case lock.Acquired:
		s.logger.Debug(ctx, "create lock acquired", "key", attempt.Guard.Key())
		return func() { _ = attempt.Guard.Release(ctx) }, nil
	case lock.Denied:
		return nil, common.ErrOperationInProgress
	default:
		if s.locker.Enabled() {
			s.logger.Warn(ctx, "creating user without lock", "error", attempt.Err)
		} else {
			s.logger.Debug(ctx, "lock store not configured, creating user unlocked")
		}
		return noop, nil
	}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.repomanager.Users(s.db).FindByID(ctx, id)
}

// Update applies a partial update. An email change is checked against
// other accounts before the write. With a database the read and write run
// in one transaction.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email is required", common.ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Role != nil && !models.ValidRole(*upd.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrInvalidInput, *upd.Role)
	}

	var updated *models.User
	apply := func(ctx context.Context, repo users.Repository) error {
		user, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if upd.Empty() {
			updated = user
			return nil
		}

		if upd.Email != nil && *upd.Email != user.Email {
			other, err := repo.FindByEmail(ctx, *upd.Email)
			switch {
			case err == nil && other.ID != id:
				return common.ErrEmailTaken
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return fmt.Errorf("error checking email: %w", err)
			}
		}

		upd.Apply(user)
		updated, err = repo.Update(ctx, user)
		return err
	}

	var err error
	if s.db != nil {
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return apply(ctx, s.repomanager.Users(tx))
		})
	} else {
		err = apply(ctx, s.repomanager.Users(nil))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user updated", "user_id", id)
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// List returns one page of users, newest first.
func (s *UserService) List(ctx context.Context, req models.PageRequest) (*models.UserPage, error) {
	req = req.Normalize()
	repo := s.repomanager.Users(s.db)

	total, err := repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting users: %w", err)
	}
	list, err := repo.List(ctx, req.PerPage, req.Offset())
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	return &models.UserPage{
		Users:      list,
		Total:      total,
		Page:       req.Page,
		PerPage:    req.PerPage,
		TotalPages: models.TotalPages(total, req.PerPage),
	}, nil
}
