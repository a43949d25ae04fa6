package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickfit/clickfit/internal/db"
	"github.com/clickfit/clickfit/internal/model"
)

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.Init("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), conn.DB, "sqlite"))
	return conn
}

func newUser(email string, created time.Time) *model.User {
	return &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "$2a$10$hash",
		Type:         model.UserTypeUser,
		Active:       true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestUserRepositoryCreateAndGet(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	user := newUser("john@example.com", now)
	user.Type = model.UserTypeTrainer
	require.NoError(t, repo.Create(ctx, user))

	byID, err := repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", byID.Email)
	assert.Equal(t, model.UserTypeTrainer, byID.Type)
	assert.True(t, byID.Active)
	assert.True(t, now.Equal(byID.CreatedAt))

	byEmail, err := repo.ByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("jane@example.com", time.Now())))
	err := repo.Create(ctx, newUser("jane@example.com", time.Now()))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepositoryNotFound(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()

	_, err := repo.ByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.ByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepositoryListAndCount(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Create(ctx, newUser("old@example.com", base.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, newUser("new@example.com", base)))

	users, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "new@example.com", users[0].Email)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
