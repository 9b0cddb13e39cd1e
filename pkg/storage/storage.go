// Package storage defines the persistence interfaces for the library catalog
// and provides an in-memory implementation. The MongoDB-backed implementation
// lives in the mongo subpackage.
package storage

import (
	"context"

	"github.com/hectorgarciatw/graphQL-Library/pkg/model"
)

// BookFilter selects a subset of books. Zero-value fields are ignored;
// set fields compose with logical AND.
type BookFilter struct {
	// AuthorID restricts results to books referencing this author.
	AuthorID string
	// Genre restricts results to books whose genre list contains this value.
	Genre string
}

// AuthorStore persists Author records. Author names are unique; Insert
// reports a violation as ErrDuplicate.
type AuthorStore interface {
	InsertAuthor(ctx context.Context, a *model.Author) error

	// FindAuthorByName looks up an author by exact name match.
	// Returns ErrNotFound if no author has that name.
	FindAuthorByName(ctx context.Context, name string) (*model.Author, error)

	// FindAuthorByID returns ErrNotFound for an unknown ID.
	FindAuthorByID(ctx context.Context, id string) (*model.Author, error)

	ListAuthors(ctx context.Context) ([]*model.Author, error)

	CountAuthors(ctx context.Context) (int, error)

	// SetAuthorBorn overwrites the author's birth year.
	// Returns ErrNotFound for an unknown ID.
	SetAuthorBorn(ctx context.Context, id string, born int) error
}

// BookStore persists Book records. Books are created once and never updated
// or deleted.
type BookStore interface {
	InsertBook(ctx context.Context, b *model.Book) error

	ListBooks(ctx context.Context, filter BookFilter) ([]*model.Book, error)

	CountBooks(ctx context.Context) (int, error)

	// CountBooksByAuthor counts the books referencing the given author.
	CountBooksByAuthor(ctx context.Context, authorID string) (int, error)
}

// UserStore persists User records. Usernames are unique; Insert reports a
// violation as ErrDuplicate.
type UserStore interface {
	InsertUser(ctx context.Context, u *model.User) error

	// FindUserByUsername returns ErrNotFound for an unknown username.
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)

	// FindUserByID returns ErrNotFound for an unknown ID.
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// Store aggregates the three record stores behind a single handle with a
// lifecycle owned by the process bootstrap.
type Store interface {
	AuthorStore
	BookStore
	UserStore

	// Ping reports whether the backing store is reachable. The server uses
	// it as the ready signal before accepting requests.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}
