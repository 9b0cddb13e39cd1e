// Package mongo implements the storage interfaces on top of MongoDB.
// Uniqueness of author names and usernames is enforced by unique indexes,
// created at startup by EnsureIndexes.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hectorgarciatw/graphQL-Library/pkg/model"
	"github.com/hectorgarciatw/graphQL-Library/pkg/storage"
)

// Collection names.
const (
	authorsCollection = "authors"
	booksCollection   = "books"
	usersCollection   = "users"
)

// Store is a storage.Store backed by a MongoDB database.
type Store struct {
	client  *mongo.Client
	authors *mongo.Collection
	books   *mongo.Collection
	users   *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// Open connects to MongoDB, verifies the connection with a ping, and returns
// a Store bound to the named database. Callers should run EnsureIndexes
// before serving traffic.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:  client,
		authors: db.Collection(authorsCollection),
		books:   db.Collection(booksCollection),
		users:   db.Collection(usersCollection),
	}, nil
}

// EnsureIndexes creates the unique indexes backing the catalog's constraints
// and the author-reference index used by book counting.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.authors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("create authors.name index: %w", err)
	}

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("create users.username index: %w", err)
	}

	if _, err := s.books.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "authorId", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create books.authorId index: %w", err)
	}

	return nil
}

func (s *Store) InsertAuthor(ctx context.Context, a *model.Author) error {
	if _, err := s.authors.InsertOne(ctx, a); err != nil {
		return translateInsertErr("author", a.Name, err)
	}
	return nil
}

func (s *Store) FindAuthorByName(ctx context.Context, name string) (*model.Author, error) {
	var a model.Author
	if err := s.authors.FindOne(ctx, bson.M{"name": name}).Decode(&a); err != nil {
		return nil, translateFindErr("author", name, err)
	}
	return &a, nil
}

func (s *Store) FindAuthorByID(ctx context.Context, id string) (*model.Author, error) {
	var a model.Author
	if err := s.authors.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, translateFindErr("author", id, err)
	}
	return &a, nil
}

func (s *Store) ListAuthors(ctx context.Context) ([]*model.Author, error) {
	cursor, err := s.authors.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}

	var out []*model.Author
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode authors: %w", err)
	}
	return out, nil
}

func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	n, err := s.authors.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count authors: %w", err)
	}
	return int(n), nil
}

func (s *Store) SetAuthorBorn(ctx context.Context, id string, born int) error {
	res, err := s.authors.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"born": born}},
	)
	if err != nil {
		return fmt.Errorf("update author %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("author id %q: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) InsertBook(ctx context.Context, b *model.Book) error {
	if _, err := s.books.InsertOne(ctx, b); err != nil {
		return translateInsertErr("book", b.Title, err)
	}
	return nil
}

func (s *Store) ListBooks(ctx context.Context, filter storage.BookFilter) ([]*model.Book, error) {
	query := bson.M{}
	if filter.AuthorID != "" {
		query["authorId"] = filter.AuthorID
	}
	if filter.Genre != "" {
		// Matching a scalar against an array field is a membership test.
		query["genres"] = filter.Genre
	}

	cursor, err := s.books.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	var out []*model.Book
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	return out, nil
}

func (s *Store) CountBooks(ctx context.Context) (int, error) {
	n, err := s.books.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return int(n), nil
}

func (s *Store) CountBooksByAuthor(ctx context.Context, authorID string) (int, error) {
	n, err := s.books.CountDocuments(ctx, bson.M{"authorId": authorID})
	if err != nil {
		return 0, fmt.Errorf("count books by author: %w", err)
	}
	return int(n), nil
}

func (s *Store) InsertUser(ctx context.Context, u *model.User) error {
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		return translateInsertErr("user", u.Username, err)
	}
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, translateFindErr("user", username, err)
	}
	return &u, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translateFindErr("user", id, err)
	}
	return &u, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translateInsertErr(kind, name string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %q: %w", kind, name, storage.ErrDuplicate)
	}
	return fmt.Errorf("insert %s %q: %w", kind, name, err)
}

func translateFindErr(kind, key string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %q: %w", kind, key, storage.ErrNotFound)
	}
	return fmt.Errorf("find %s %q: %w", kind, key, err)
}
