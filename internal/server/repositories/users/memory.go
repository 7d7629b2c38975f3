package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is a process-local Repository used when no database is
// configured and in tests. Records are copied in and out.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[string]*models.User),
		now:   time.Now,
	}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if matchesAny(u, user.UserName, user.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}

	u := clone(user)
	u.ID = uuid.NewString()
	u.RefreshToken = ""
	u.CreatedAt = r.now().UTC()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = u
	return clone(u), nil
}

func (r *MemoryRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byEmail := identifierColumn(identifier) == "email"
	for _, u := range r.users {
		if (byEmail && u.Email == identifier) || (!byEmail && u.UserName == identifier) {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func matchesAny(u *models.User, values ...string) bool {
	for _, v := range values {
		if u.UserName == v || u.Email == v {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if matchesAny(u, username, email) {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) UpdateFields(ctx context.Context, id string, fields Fields) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if fields.empty() {
		return clone(u), nil
	}
	if fields.Email != nil {
		for otherID, other := range r.users {
			if otherID != id && matchesAny(other, *fields.Email) {
				return nil, common.ErrorAlreadyExists
			}
		}
	}

	if fields.FullName != nil {
		u.FullName = *fields.FullName
	}
	if fields.Email != nil {
		u.Email = *fields.Email
	}
	if fields.Avatar != nil {
		u.Avatar = *fields.Avatar
	}
	if fields.CoverImage != nil {
		u.CoverImage = *fields.CoverImage
	}
	if fields.PasswordHash != nil {
		u.PasswordHash = *fields.PasswordHash
	}
	u.UpdatedAt = r.now().UTC()
	return clone(u), nil
}

func (r *MemoryRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = token
	return nil
}

// Delete removes a user record. Deleting an unknown id is not an error.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, id)
	return nil
}
