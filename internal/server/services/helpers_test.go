package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/server/auth"
	"github.com/dmitrijs2005/gophaccount/internal/server/config"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeUploader records uploads and removes the local file like the real one.
type fakeUploader struct {
	mu      sync.Mutex
	err     error
	errFor  map[string]error
	uploads []string
}

func (u *fakeUploader) Upload(ctx context.Context, localPath string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	defer os.Remove(localPath)

	u.uploads = append(u.uploads, localPath)
	if err, ok := u.errFor[filepath.Base(localPath)]; ok {
		return "", err
	}
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.example/avatars/" + filepath.Base(localPath), nil
}

// flakyUsers wraps a repository and fails selected calls.
type flakyUsers struct {
	users.Repository
	findErr       error
	setRefreshErr error
	createErr     error
}

func (f *flakyUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Repository.FindByID(ctx, id)
}

func (f *flakyUsers) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Repository.FindByIdentifier(ctx, identifier)
}

func (f *flakyUsers) SetRefreshToken(ctx context.Context, id, token string) error {
	if f.setRefreshErr != nil {
		return f.setRefreshErr
	}
	return f.Repository.SetRefreshToken(ctx, id, token)
}

func (f *flakyUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Repository.Create(ctx, u)
}

type flakyManager struct {
	*repomanager.MemoryRepositoryManager
	users *flakyUsers
}

func (m *flakyManager) Users() users.Repository { return m.users }

func (m *flakyManager) WithTx(ctx context.Context, fn repomanager.TxFunc) error {
	return fn(ctx, m.users)
}

type testEnv struct {
	manager  *repomanager.MemoryRepositoryManager
	clock    *fakeClock
	codec    *auth.Codec
	uploader *fakeUploader
	cfg      *config.Config
	sessions *SessionManager
	users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, repomanager.NewMemoryRepositoryManager())
}

func newTestEnvWith(t *testing.T, mem *repomanager.MemoryRepositoryManager) *testEnv {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	cfg := &config.Config{
		BcryptCost:                   bcrypt.MinCost,
		AccessTokenSecret:            "access-secret",
		RefreshTokenSecret:           "refresh-secret",
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 240 * time.Hour,
		AvatarRequired:               true,
		CoverImageEnabled:            true,
	}
	codec := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenValidityDuration,
		RefreshTTL:    cfg.RefreshTokenValidityDuration,
		Now:           clock.Now,
	})
	up := &fakeUploader{}
	return &testEnv{
		manager:  mem,
		clock:    clock,
		codec:    codec,
		uploader: up,
		cfg:      cfg,
		sessions: NewSessionManager(mem, codec, logging.Nop()),
		users:    NewUserService(mem, up, cfg, logging.Nop()),
	}
}

func seedUser(t *testing.T, repo users.Repository, username, email, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	u, err := repo.Create(context.Background(), &models.User{
		UserName:     username,
		Email:        email,
		FullName:     "Test " + username,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return u
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o600))
	return path
}
