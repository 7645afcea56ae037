package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (RegistryRepository, func()) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, EnsureIndexes(ctx, repo))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestGetRegistry_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	doc, err := repo.GetRegistry(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrRegistryNotFound)
	assert.Nil(t, doc)
}

func TestSaveRegistry_Upserts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.SaveRegistry(ctx, &RegistryDocument{SessionID: "s1", Version: 1, Payload: `{"version":1}`})
	require.NoError(t, err)

	err = repo.SaveRegistry(ctx, &RegistryDocument{SessionID: "s1", Version: 1, Payload: `{"version":1,"activeStoreId":"a"}`})
	require.NoError(t, err)

	doc, err := repo.GetRegistry(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", doc.SessionID)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, `{"version":1,"activeStoreId":"a"}`, doc.Payload)
	assert.False(t, doc.UpdatedAt.IsZero())
}

func TestDeleteRegistry(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveRegistry(ctx, &RegistryDocument{SessionID: "s1", Version: 1, Payload: "{}"}))

	require.NoError(t, repo.DeleteRegistry(ctx, "s1"))

	_, err := repo.GetRegistry(ctx, "s1")
	assert.ErrorIs(t, err, ErrRegistryNotFound)
	assert.ErrorIs(t, repo.DeleteRegistry(ctx, "s1"), ErrRegistryNotFound)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)

	_, err := repo.GetRegistry(ctx, "s1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
