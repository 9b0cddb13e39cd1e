package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorgarciatw/graphQL-Library/internal/id"
	"github.com/hectorgarciatw/graphQL-Library/pkg/model"
	"github.com/hectorgarciatw/graphQL-Library/pkg/storage"
)

// Integration test against a live MongoDB. Set LIBRARY_TEST_MONGO_URI to run,
// e.g. LIBRARY_TEST_MONGO_URI=mongodb://localhost:27017 go test ./pkg/storage/mongo
func TestStoreIntegration(t *testing.T) {
	uri := os.Getenv("LIBRARY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LIBRARY_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Open(ctx, uri, "library_test_"+id.New()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.client.Database(store.authors.Database().Name()).Drop(context.Background())
		_ = store.Close(context.Background())
	})

	require.NoError(t, store.EnsureIndexes(ctx))
	require.NoError(t, store.Ping(ctx))

	t.Run("author uniqueness", func(t *testing.T) {
		require.NoError(t, store.InsertAuthor(ctx, &model.Author{ID: id.New(), Name: "Tolkien"}))
		err := store.InsertAuthor(ctx, &model.Author{ID: id.New(), Name: "Tolkien"})
		assert.ErrorIs(t, err, storage.ErrDuplicate)
	})

	t.Run("find by name and not found", func(t *testing.T) {
		a, err := store.FindAuthorByName(ctx, "Tolkien")
		require.NoError(t, err)
		assert.Equal(t, "Tolkien", a.Name)

		_, err = store.FindAuthorByName(ctx, "nobody")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("book filters", func(t *testing.T) {
		a, err := store.FindAuthorByName(ctx, "Tolkien")
		require.NoError(t, err)

		require.NoError(t, store.InsertBook(ctx, &model.Book{
			ID: id.New(), Title: "The Hobbit", Published: 1937,
			Genres: []string{"fantasy", "classic"}, AuthorID: a.ID,
		}))

		byGenre, err := store.ListBooks(ctx, storage.BookFilter{Genre: "classic"})
		require.NoError(t, err)
		require.Len(t, byGenre, 1)
		assert.Equal(t, "The Hobbit", byGenre[0].Title)

		count, err := store.CountBooksByAuthor(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("set born", func(t *testing.T) {
		a, err := store.FindAuthorByName(ctx, "Tolkien")
		require.NoError(t, err)

		require.NoError(t, store.SetAuthorBorn(ctx, a.ID, 1892))
		got, err := store.FindAuthorByID(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Born)
		assert.Equal(t, 1892, *got.Born)

		assert.ErrorIs(t, store.SetAuthorBorn(ctx, "missing", 1), storage.ErrNotFound)
	})

	t.Run("user uniqueness", func(t *testing.T) {
		require.NoError(t, store.InsertUser(ctx, &model.User{
			ID: id.New(), Username: "frodo", FavoriteGenre: "fantasy", PasswordHash: "h",
		}))
		err := store.InsertUser(ctx, &model.User{
			ID: id.New(), Username: "frodo", FavoriteGenre: "horror", PasswordHash: "h",
		})
		assert.ErrorIs(t, err, storage.ErrDuplicate)
	})
}
