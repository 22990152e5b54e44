package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/dbx"
	"github.com/dmitrijs2005/webshelf/internal/server/auth"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_IssuesTokenForRegisteredUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	u, err := f.users.Register(ctx, "Una", "u@example.com", "Secret123")
	require.NoError(t, err)

	res, err := f.auth.Login(ctx, "u@example.com", "Secret123")
	require.NoError(t, err)

	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, u.ID.String(), res.UserID)
	assert.Equal(t, models.RoleUser, res.Role)

	claims, err := auth.Decode(res.Token, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.users.Register(ctx, "Una", "U@Example.com", "Secret123")
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, "  u@EXAMPLE.com ", "Secret123")
	require.NoError(t, err)
}

func TestLogin_UniformFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.users.Register(ctx, "Una", "u@example.com", "Secret123")
	require.NoError(t, err)

	_, wrongPassword := f.auth.Login(ctx, "u@example.com", "nope")
	_, unknownEmail := f.auth.Login(ctx, "ghost@example.com", "Secret123")

	require.ErrorIs(t, wrongPassword, common.ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, common.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

// countingHasher records Verify calls so the dummy check can be observed.
type countingHasher struct {
	PasswordHasher
	verifies int
	hashes   []string
}

func (c *countingHasher) Verify(password, encoded string) (bool, error) {
	c.verifies++
	c.hashes = append(c.hashes, encoded)
	return c.PasswordHasher.Verify(password, encoded)
}

func TestLogin_UnknownEmailStillVerifies(t *testing.T) {
	h := &countingHasher{PasswordHasher: testHasher}
	svc := NewAuthService(nil, repomanager.NewMemoryRepositoryManager(), h, testConfig(), nil, nil)

	_, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	require.Equal(t, 1, h.verifies)
	assert.Equal(t, svc.dummyHash, h.hashes[0])
}

func TestLogin_MalformedStoredHashIsInternal(t *testing.T) {
	ctx := context.Background()
	rm := repomanager.NewMemoryRepositoryManager()
	_, err := rm.Users(nil).Create(ctx, &models.User{Email: "c@example.com", PasswordHash: "garbage", Role: models.RoleUser})
	require.NoError(t, err)

	svc := NewAuthService(nil, rm, testHasher, testConfig(), nil, nil)
	_, err = svc.Login(ctx, "c@example.com", "Secret123")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)
}

// failingManager returns a repository whose lookups fail.
type failingManager struct {
	repomanager.RepositoryManager
}

type failingRepo struct {
	users.Repository
}

func (failingRepo) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, errors.New("db error: connection reset")
}

func (failingRepo) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	return nil, errors.New("db error: connection reset")
}

func (failingManager) Users(dbx.DBTX) users.Repository { return failingRepo{} }

func TestLogin_StoreFailureIsInternal(t *testing.T) {
	svc := NewAuthService(nil, failingManager{}, testHasher, testConfig(), nil, nil)

	_, err := svc.Login(context.Background(), "u@example.com", "Secret123")
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	u, err := f.users.Register(ctx, "Una", "u@example.com", "Secret123")
	require.NoError(t, err)
	res, err := f.auth.Login(ctx, "u@example.com", "Secret123")
	require.NoError(t, err)

	got, err := f.auth.ValidateToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	t.Run("role change is seen immediately", func(t *testing.T) {
		admin := models.RoleAdmin
		_, err := f.users.Update(ctx, u.ID, models.UserUpdate{Role: &admin})
		require.NoError(t, err)

		got, err := f.auth.ValidateToken(ctx, res.Token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, got.Role)
	})

	t.Run("deleted subject", func(t *testing.T) {
		require.NoError(t, f.users.Delete(ctx, u.ID))

		_, err := f.auth.ValidateToken(ctx, res.Token)
		require.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestValidateToken_TokenErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.auth.ValidateToken(ctx, "not.a.token")
	require.ErrorIs(t, err, auth.ErrMalformed)

	other, err := auth.Encode(uuid.NewString(), models.RoleUser, []byte("another-secret-another-secret-xx"), time.Hour)
	require.NoError(t, err)
	_, err = f.auth.ValidateToken(ctx, other)
	require.ErrorIs(t, err, auth.ErrBadSignature)

	notUUID, err := auth.Encode("alice", models.RoleUser, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	_, err = f.auth.ValidateToken(ctx, notUUID)
	require.ErrorIs(t, err, auth.ErrMalformed)
}

func TestValidateToken_StoreFailureIsInternal(t *testing.T) {
	svc := NewAuthService(nil, failingManager{}, testHasher, testConfig(), nil, nil)
	tok, err := auth.Encode(uuid.NewString(), models.RoleUser, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), tok)
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestIssueToken(t *testing.T) {
	f := newFixture(t, nil)
	u := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	tok, err := f.auth.IssueToken(u)
	require.NoError(t, err)

	claims, err := auth.Decode(tok, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}
