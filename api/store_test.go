package api

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/umlhub/umlhub/api/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Diagram{},
		&models.DiagramVersion{},
		&models.ShareLink{},
	))
	return db
}

func TestGormUserStore(t *testing.T) {
	db := testDB(t)
	store := NewGormUserStore(db)
	ctx := context.Background()

	user := &models.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, store.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	t.Run("get by id", func(t *testing.T) {
		got, err := store.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Name)
	})

	t.Run("get by email is case insensitive", func(t *testing.T) {
		got, err := store.GetByEmail(ctx, "ALICE@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("missing rows map to ErrNotFound", func(t *testing.T) {
		_, err := store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list searches name and email", func(t *testing.T) {
		bob := &models.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "hash"}
		require.NoError(t, store.Create(ctx, bob))

		users, total, err := store.List(ctx, "", 10, 0)
		require.NoError(t, err)
		assert.Len(t, users, 2)
		assert.EqualValues(t, 2, total)

		users, total, err = store.List(ctx, "ALICE", 10, 0)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, user.ID, users[0].ID)
		assert.EqualValues(t, 1, total)

		// Total counts all matches even when the page holds fewer
		users, total, err = store.List(ctx, "", 1, 1)
		require.NoError(t, err)
		assert.Len(t, users, 1)
		assert.EqualValues(t, 2, total)
	})

	t.Run("update rewrites profile and password hash", func(t *testing.T) {
		user.Name = "Alice Cooper"
		user.Email = "alice.cooper@example.com"
		user.PasswordHash = "new-hash"
		require.NoError(t, store.Update(ctx, user))

		got, err := store.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice Cooper", got.Name)
		assert.Equal(t, "alice.cooper@example.com", got.Email)
		assert.Equal(t, "new-hash", got.PasswordHash)

		missing := &models.User{ID: uuid.New(), Name: "Ghost", Email: "ghost@example.com"}
		assert.ErrorIs(t, store.Update(ctx, missing), ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, user.ID))
		_, err := store.GetByID(ctx, user.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, user.ID), ErrNotFound)
	})
}

func TestGormProjectStore(t *testing.T) {
	db := testDB(t)
	store := NewGormProjectStore(db)
	ctx := context.Background()

	owner := uuid.New()
	other := uuid.New()
	require.NoError(t, store.Create(ctx, &models.Project{Name: "Mine", OwnerID: &owner}))
	require.NoError(t, store.Create(ctx, &models.Project{Name: "Theirs", OwnerID: &other}))

	t.Run("list filters by owner", func(t *testing.T) {
		projects, err := store.List(ctx, &owner)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "Mine", projects[0].Name)
	})

	t.Run("list without owner returns everything", func(t *testing.T) {
		projects, err := store.List(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, projects, 2)
	})

	t.Run("get missing project", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update renames", func(t *testing.T) {
		projects, err := store.List(ctx, &owner)
		require.NoError(t, err)
		require.Len(t, projects, 1)

		project := projects[0]
		project.Name = "Renamed"
		require.NoError(t, store.Update(ctx, &project))

		got, err := store.Get(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)

		missing := &models.Project{ID: uuid.New(), Name: "Ghost"}
		assert.ErrorIs(t, store.Update(ctx, missing), ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		projects, err := store.List(ctx, &owner)
		require.NoError(t, err)
		require.Len(t, projects, 1)

		require.NoError(t, store.Delete(ctx, projects[0].ID))
		_, err = store.Get(ctx, projects[0].ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGormDiagramStore(t *testing.T) {
	db := testDB(t)
	store := NewGormDiagramStore(db)
	ctx := context.Background()
	projectID := uuid.New()

	diagram := &models.Diagram{ProjectID: projectID, Name: "Architecture"}
	require.NoError(t, store.Create(ctx, diagram))
	assert.Equal(t, "class", diagram.Kind, "kind defaults to class")

	t.Run("update appends a version row", func(t *testing.T) {
		diagram.Name = "Architecture v2"
		diagram.ModelJSON = []byte(`{"nodeDataArray":[]}`)
		versionID, err := store.Update(ctx, diagram)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, versionID)

		diagram.ModelJSON = []byte(`{"nodeDataArray":[{"key":1}]}`)
		_, err = store.Update(ctx, diagram)
		require.NoError(t, err)

		versions, err := store.ListVersions(ctx, diagram.ID)
		require.NoError(t, err)
		assert.Len(t, versions, 2)

		got, err := store.Get(ctx, diagram.ID)
		require.NoError(t, err)
		assert.Equal(t, "Architecture v2", got.Name)
	})

	t.Run("update of a missing diagram", func(t *testing.T) {
		_, err := store.Update(ctx, &models.Diagram{ID: uuid.New(), Name: "ghost"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete removes the version history too", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, diagram.ID))
		_, err := store.Get(ctx, diagram.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		versions, err := store.ListVersions(ctx, diagram.ID)
		require.NoError(t, err)
		assert.Empty(t, versions)
	})
}

func TestGormShareStore(t *testing.T) {
	db := testDB(t)
	store := NewGormShareStore(db)
	ctx := context.Background()

	link := &models.ShareLink{
		DiagramID:  uuid.New(),
		Permission: "view",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(ctx, link))
	require.NotEqual(t, uuid.Nil, link.JTI)

	t.Run("active before revocation", func(t *testing.T) {
		active, err := store.IsShareActive(ctx, link.JTI)
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("revoked links go inactive", func(t *testing.T) {
		require.NoError(t, store.Revoke(ctx, link.JTI, time.Now()))
		active, err := store.IsShareActive(ctx, link.JTI)
		require.NoError(t, err)
		assert.False(t, active)

		got, err := store.GetByJTI(ctx, link.JTI)
		require.NoError(t, err)
		assert.NotNil(t, got.RevokedAt)
	})

	t.Run("expired links are inactive", func(t *testing.T) {
		expired := &models.ShareLink{
			DiagramID:  uuid.New(),
			Permission: "edit",
			ExpiresAt:  time.Now().Add(-time.Minute),
		}
		require.NoError(t, store.Create(ctx, expired))

		active, err := store.IsShareActive(ctx, expired.JTI)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("unknown jti is inactive, not an error", func(t *testing.T) {
		active, err := store.IsShareActive(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, active)
	})
}
