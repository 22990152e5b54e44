package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. It backs the memory://
// database DSN used for local runs and handler tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]models.User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]models.User),
		byEmail: make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return nil, common.ErrEmailTaken
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryRepository) Update(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[user.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if owner, taken := r.byEmail[user.Email]; taken && owner != user.ID {
		return nil, common.ErrEmailTaken
	}

	delete(r.byEmail, cur.Email)
	cur.Email, cur.Name, cur.Role = user.Email, user.Name, user.Role
	cur.UpdatedAt = r.now().UTC()
	r.byID[cur.ID] = cur
	r.byEmail[cur.Email] = cur.ID

	user.UpdatedAt = cur.UpdatedAt
	return user, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, limit, offset int) ([]models.User, error) {
	r.mu.RLock()
	all := make([]models.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, u)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	if offset >= len(all) {
		return []models.User{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *MemoryRepository) Count(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}
