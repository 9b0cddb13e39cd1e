// Package model defines the persistent records and value objects of the
// library catalog: authors, books, users, and the token returned at login.
//
// JSON tags name the fields the executor sees when it projects a record,
// mostly matching the GraphQL schema; authorId is carried for field
// resolution even though the schema never exposes it. BSON tags map the
// same records onto their MongoDB collections.
package model

// Author is a book author. Name is unique across the system. Born is
// optional and unset for authors created implicitly by addBook.
type Author struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
	Born *int   `bson:"born,omitempty" json:"born"`
}

// Book is a catalog entry. The author is held as a foreign reference to an
// Author record, never as an embedded copy; the GraphQL layer resolves it
// on demand.
type Book struct {
	ID        string   `bson:"_id" json:"id"`
	Title     string   `bson:"title" json:"title"`
	Published int      `bson:"published" json:"published"`
	Genres    []string `bson:"genres" json:"genres"`
	AuthorID  string   `bson:"authorId" json:"authorId"`
}

// User is an account that can authenticate against the API. Username is
// unique. PasswordHash is write-only from the API's perspective: it is set
// at signup, read internally for verification, and never serialized into a
// response.
type User struct {
	ID            string `bson:"_id" json:"id"`
	Username      string `bson:"username" json:"username"`
	FavoriteGenre string `bson:"favoriteGenre" json:"favoriteGenre"`
	PasswordHash  string `bson:"passwordHash" json:"-"`
}

// Token is the value returned by a successful login. It is never persisted.
// FavoriteGenre is denormalized from the user at sign-in time for client
// convenience.
type Token struct {
	Value         string `json:"value"`
	FavoriteGenre string `json:"favoriteGenre"`
}
