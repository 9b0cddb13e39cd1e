// Package resolver binds the library's domain operations to the GraphQL
// schema: catalog queries, the book and author mutations, authentication,
// and the book-added subscription.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hectorgarciatw/graphQL-Library/internal/id"
	"github.com/hectorgarciatw/graphQL-Library/pkg/auth"
	"github.com/hectorgarciatw/graphQL-Library/pkg/graphql"
	"github.com/hectorgarciatw/graphQL-Library/pkg/model"
	"github.com/hectorgarciatw/graphQL-Library/pkg/pubsub"
	"github.com/hectorgarciatw/graphQL-Library/pkg/storage"
)

// TopicBookAdded is the bus topic carrying newly added books.
const TopicBookAdded = "book-added"

// Resolver implements every field of the library schema on top of a Store,
// a token issuer, and the event bus.
type Resolver struct {
	store  storage.Store
	issuer *auth.TokenIssuer
	bus    *pubsub.Bus
	log    *slog.Logger
}

// New creates a Resolver.
func New(store storage.Store, issuer *auth.TokenIssuer, bus *pubsub.Bus, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		store:  store,
		issuer: issuer,
		bus:    bus,
		log:    log,
	}
}

// Register binds every schema field to its resolver.
func (r *Resolver) Register(exec *graphql.Executor) {
	exec.RegisterQuery("bookCount", r.bookCount)
	exec.RegisterQuery("authorCount", r.authorCount)
	exec.RegisterQuery("allBooks", r.allBooks)
	exec.RegisterQuery("allAuthors", r.allAuthors)
	exec.RegisterQuery("me", r.me)

	exec.RegisterField("Author", "bookCount", r.authorBookCount)
	exec.RegisterField("Book", "author", r.bookAuthor)

	exec.RegisterMutation("addBook", r.addBook)
	exec.RegisterMutation("editAuthor", r.editAuthor)
	exec.RegisterMutation("createUser", r.createUser)
	exec.RegisterMutation("login", r.login)

	exec.RegisterSubscription("bookAdded", r.bookAdded)
}

func (r *Resolver) bookCount(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return r.store.CountBooks(ctx)
}

func (r *Resolver) authorCount(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return r.store.CountAuthors(ctx)
}

func (r *Resolver) allBooks(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var filter storage.BookFilter

	if name := stringArg(args, "author"); name != "" {
		author, err := r.store.FindAuthorByName(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			// Unknown author filters everything out, it is not an error.
			return []*model.Book{}, nil
		}
		if err != nil {
			return nil, err
		}
		filter.AuthorID = author.ID
	}
	filter.Genre = stringArg(args, "genre")

	books, err := r.store.ListBooks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []*model.Book{}
	}
	return books, nil
}

func (r *Resolver) allAuthors(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	authors, err := r.store.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}
	if authors == nil {
		authors = []*model.Author{}
	}
	return authors, nil
}

func (r *Resolver) me(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	user, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, nil
	}
	return user, nil
}

// authorBookCount counts the author's books on every call rather than
// caching, so concurrent addBook calls are always reflected.
func (r *Resolver) authorBookCount(ctx context.Context, source, _ map[string]interface{}) (interface{}, error) {
	authorID, _ := source["id"].(string)
	return r.store.CountBooksByAuthor(ctx, authorID)
}

func (r *Resolver) bookAuthor(ctx context.Context, source, _ map[string]interface{}) (interface{}, error) {
	authorID, _ := source["authorId"].(string)
	author, err := r.store.FindAuthorByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("resolving book author: %w", err)
	}
	return author, nil
}

func (r *Resolver) addBook(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if _, ok := auth.CurrentUser(ctx); !ok {
		return nil, graphql.ErrUnauthenticated()
	}

	title := stringArg(args, "title")
	authorName := stringArg(args, "author")
	published, err := intArg(args, "published")
	if err != nil {
		return nil, graphql.ErrBadUserInput(err.Error(), err)
	}
	genres := stringListArg(args, "genres")

	author, err := r.findOrCreateAuthor(ctx, authorName)
	if err != nil {
		return nil, err
	}

	book := &model.Book{
		ID:        id.New(),
		Title:     title,
		Published: published,
		Genres:    genres,
		AuthorID:  author.ID,
	}
	if err := r.store.InsertBook(ctx, book); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, graphql.ErrBadUserInput("saving book: "+err.Error(), err)
		}
		return nil, err
	}

	delivered := r.bus.Publish(TopicBookAdded, book)
	r.log.Debug("book added",
		"title", book.Title,
		"author", author.Name,
		"subscribers", delivered,
	)

	return book, nil
}

// findOrCreateAuthor looks up an author by name, creating the record when it
// does not exist yet. A concurrent creator can win the insert; the unique
// index surfaces that as a duplicate and the lookup is retried.
func (r *Resolver) findOrCreateAuthor(ctx context.Context, name string) (*model.Author, error) {
	for {
		author, err := r.store.FindAuthorByName(ctx, name)
		if err == nil {
			return author, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		author = &model.Author{ID: id.New(), Name: name}
		err = r.store.InsertAuthor(ctx, author)
		if err == nil {
			return author, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return nil, graphql.ErrBadUserInput("saving author: "+err.Error(), err)
		}
		// Lost the race, the next lookup finds the winner's record.
	}
}

func (r *Resolver) editAuthor(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if _, ok := auth.CurrentUser(ctx); !ok {
		return nil, graphql.ErrUnauthenticated()
	}

	name := stringArg(args, "name")
	born, err := intArg(args, "setBornTo")
	if err != nil {
		return nil, graphql.ErrBadUserInput(err.Error(), err)
	}

	author, err := r.store.FindAuthorByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, graphql.ErrNotFound("author not found")
	}
	if err != nil {
		return nil, err
	}

	if err := r.store.SetAuthorBorn(ctx, author.ID, born); err != nil {
		return nil, err
	}

	author.Born = &born
	return author, nil
}

func (r *Resolver) createUser(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	username := stringArg(args, "username")
	favoriteGenre := stringArg(args, "favoriteGenre")
	password := stringArg(args, "password")

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:            id.New(),
		Username:      username,
		FavoriteGenre: favoriteGenre,
		PasswordHash:  hash,
	}
	if err := r.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, graphql.ErrBadUserInput("username already taken", err)
		}
		return nil, err
	}

	r.log.Info("user created", "username", username)
	return user, nil
}

func (r *Resolver) login(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	username := stringArg(args, "username")
	password := stringArg(args, "password")

	user, err := r.store.FindUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, graphql.ErrBadUserInput("unknown username", err)
	}
	if err != nil {
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, graphql.ErrBadUserInput("wrong credentials", nil)
	}

	value, err := r.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	r.log.Info("user logged in", "username", username)
	return &model.Token{
		Value:         value,
		FavoriteGenre: user.FavoriteGenre,
	}, nil
}

func (r *Resolver) bookAdded(ctx context.Context, _ map[string]interface{}) (<-chan interface{}, error) {
	return r.bus.Subscribe(ctx, TopicBookAdded), nil
}
