package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hectorgarciatw/graphQL-Library/pkg/model"
)

// MemoryStore is an in-memory Store implementation. It enforces the same
// uniqueness constraints as the MongoDB store and is used by tests and by
// servers running without a database.
//
// Callers never alias internal state: records are copied on insert and on
// every read.
type MemoryStore struct {
	mu      sync.RWMutex
	authors map[string]*model.Author
	books   map[string]*model.Book
	users   map[string]*model.User
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		authors: make(map[string]*model.Author),
		books:   make(map[string]*model.Book),
		users:   make(map[string]*model.User),
	}
}

func (s *MemoryStore) InsertAuthor(_ context.Context, a *model.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.authors {
		if existing.Name == a.Name {
			return fmt.Errorf("author %q: %w", a.Name, ErrDuplicate)
		}
	}
	if _, exists := s.authors[a.ID]; exists {
		return fmt.Errorf("author id %q: %w", a.ID, ErrDuplicate)
	}

	s.authors[a.ID] = copyAuthor(a)
	return nil
}

func (s *MemoryStore) FindAuthorByName(_ context.Context, name string) (*model.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.authors {
		if a.Name == name {
			return copyAuthor(a), nil
		}
	}
	return nil, fmt.Errorf("author %q: %w", name, ErrNotFound)
}

func (s *MemoryStore) FindAuthorByID(_ context.Context, id string) (*model.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return nil, fmt.Errorf("author id %q: %w", id, ErrNotFound)
	}
	return copyAuthor(a), nil
}

func (s *MemoryStore) ListAuthors(_ context.Context) ([]*model.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Author, 0, len(s.authors))
	for _, a := range s.authors {
		out = append(out, copyAuthor(a))
	}
	return out, nil
}

func (s *MemoryStore) CountAuthors(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.authors), nil
}

func (s *MemoryStore) SetAuthorBorn(_ context.Context, id string, born int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authors[id]
	if !ok {
		return fmt.Errorf("author id %q: %w", id, ErrNotFound)
	}
	b := born
	a.Born = &b
	return nil
}

func (s *MemoryStore) InsertBook(_ context.Context, b *model.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.books[b.ID]; exists {
		return fmt.Errorf("book id %q: %w", b.ID, ErrDuplicate)
	}
	s.books[b.ID] = copyBook(b)
	return nil
}

func (s *MemoryStore) ListBooks(_ context.Context, filter BookFilter) ([]*model.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Book, 0, len(s.books))
	for _, b := range s.books {
		if filter.AuthorID != "" && b.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Genre != "" && !slices.Contains(b.Genres, filter.Genre) {
			continue
		}
		out = append(out, copyBook(b))
	}
	return out, nil
}

func (s *MemoryStore) CountBooks(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books), nil
}

func (s *MemoryStore) CountBooksByAuthor(_ context.Context, authorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, b := range s.books {
		if b.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) InsertUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
		}
	}
	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user id %q: %w", u.ID, ErrDuplicate)
	}

	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *MemoryStore) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (s *MemoryStore) FindUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user id %q: %w", id, ErrNotFound)
	}
	return copyUser(u), nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close(_ context.Context) error { return nil }

func copyAuthor(a *model.Author) *model.Author {
	out := *a
	if a.Born != nil {
		born := *a.Born
		out.Born = &born
	}
	return &out
}

func copyBook(b *model.Book) *model.Book {
	out := *b
	out.Genres = slices.Clone(b.Genres)
	return &out
}

func copyUser(u *model.User) *model.User {
	out := *u
	return &out
}
