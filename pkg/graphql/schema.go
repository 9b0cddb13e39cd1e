package graphql

import (
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// SDL is the library catalog schema served by this API.
const SDL = `
type Author {
  name: String!
  id: ID!
  born: Int
  bookCount: Int!
}

type Book {
  title: String!
  published: Int!
  author: Author!
  genres: [String!]!
  id: ID!
}

type User {
  username: String!
  favoriteGenre: String!
  id: ID!
}

type Token {
  value: String!
  favoriteGenre: String!
}

type Query {
  bookCount: Int!
  authorCount: Int!
  allBooks(author: String, genre: String): [Book!]!
  allAuthors: [Author!]!
  me: User
}

type Mutation {
  addBook(
    title: String!
    author: String!
    published: Int!
    genres: [String!]!
  ): Book
  editAuthor(name: String!, setBornTo: Int!): Author
  createUser(
    username: String!
    favoriteGenre: String!
    password: String!
  ): User
  login(username: String!, password: String!): Token
}

type Subscription {
  bookAdded: Book!
}
`

// Schema represents a parsed GraphQL schema with convenient accessors
// for types, queries, mutations, and subscriptions.
type Schema struct {
	ast           *ast.Schema
	types         map[string]*ast.Definition
	queries       map[string]*ast.FieldDefinition
	mutations     map[string]*ast.FieldDefinition
	subscriptions map[string]*ast.FieldDefinition
}

// ParseSchema parses a GraphQL SDL string and returns a Schema.
func ParseSchema(sdl string) (*Schema, error) {
	source := &ast.Source{
		Name:  "schema",
		Input: sdl,
	}

	schema, err := gqlparser.LoadSchema(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL schema: %w", err)
	}

	return newSchema(schema), nil
}

// newSchema creates a new Schema from a parsed ast.Schema.
func newSchema(schema *ast.Schema) *Schema {
	s := &Schema{
		ast:           schema,
		types:         make(map[string]*ast.Definition),
		queries:       make(map[string]*ast.FieldDefinition),
		mutations:     make(map[string]*ast.FieldDefinition),
		subscriptions: make(map[string]*ast.FieldDefinition),
	}

	for name, def := range schema.Types {
		s.types[name] = def
	}

	// Index root fields (excluding introspection fields)
	if schema.Query != nil {
		for _, field := range schema.Query.Fields {
			if !isIntrospectionField(field.Name) {
				s.queries[field.Name] = field
			}
		}
	}
	if schema.Mutation != nil {
		for _, field := range schema.Mutation.Fields {
			s.mutations[field.Name] = field
		}
	}
	if schema.Subscription != nil {
		for _, field := range schema.Subscription.Fields {
			s.subscriptions[field.Name] = field
		}
	}

	return s
}

// isIntrospectionField returns true if the field name is a built-in introspection field.
func isIntrospectionField(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}

// AST returns the underlying gqlparser AST schema.
func (s *Schema) AST() *ast.Schema {
	return s.ast
}

// GetType returns a type definition by name, or nil if not found.
func (s *Schema) GetType(name string) *ast.Definition {
	return s.types[name]
}

// GetQueryField returns a query field definition by name, or nil if not found.
func (s *Schema) GetQueryField(name string) *ast.FieldDefinition {
	return s.queries[name]
}

// GetMutationField returns a mutation field definition by name, or nil if not found.
func (s *Schema) GetMutationField(name string) *ast.FieldDefinition {
	return s.mutations[name]
}

// GetSubscriptionField returns a subscription field definition by name, or nil if not found.
func (s *Schema) GetSubscriptionField(name string) *ast.FieldDefinition {
	return s.subscriptions[name]
}

// GetField returns a field definition by type and field name.
func (s *Schema) GetField(typeName, fieldName string) *ast.FieldDefinition {
	def := s.GetType(typeName)
	if def == nil {
		return nil
	}

	for _, field := range def.Fields {
		if field.Name == fieldName {
			return field
		}
	}
	return nil
}

// ListQueries returns all query field names in sorted order.
func (s *Schema) ListQueries() []string {
	names := make([]string, 0, len(s.queries))
	for name := range s.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListMutations returns all mutation field names in sorted order.
func (s *Schema) ListMutations() []string {
	names := make([]string, 0, len(s.mutations))
	for name := range s.mutations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListSubscriptions returns all subscription field names in sorted order.
func (s *Schema) ListSubscriptions() []string {
	names := make([]string, 0, len(s.subscriptions))
	for name := range s.subscriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasQuery returns true if the schema has a query type with fields.
func (s *Schema) HasQuery() bool {
	return s.ast.Query != nil && len(s.ast.Query.Fields) > 0
}

// HasMutation returns true if the schema has a mutation type with fields.
func (s *Schema) HasMutation() bool {
	return s.ast.Mutation != nil && len(s.ast.Mutation.Fields) > 0
}

// HasSubscription returns true if the schema has a subscription type with fields.
func (s *Schema) HasSubscription() bool {
	return s.ast.Subscription != nil && len(s.ast.Subscription.Fields) > 0
}

// IsScalarType returns true if the given type name is a scalar type.
func (s *Schema) IsScalarType(name string) bool {
	switch name {
	case "Int", "Float", "String", "Boolean", "ID":
		return true
	}

	def := s.GetType(name)
	return def != nil && def.Kind == ast.Scalar
}

// IsObjectType returns true if the given type name is an object type.
func (s *Schema) IsObjectType(name string) bool {
	def := s.GetType(name)
	return def != nil && def.Kind == ast.Object
}
