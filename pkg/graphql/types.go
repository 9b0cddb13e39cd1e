package graphql

// Request represents an incoming GraphQL request.
type Request struct {
	// Query is the GraphQL query string.
	Query string `json:"query"`
	// OperationName is the name of the operation to execute (for multi-operation documents).
	OperationName string `json:"operationName,omitempty"`
	// Variables are the variable values for the query.
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// Response represents a GraphQL response.
type Response struct {
	// Data contains the result of the query execution.
	Data interface{} `json:"data,omitempty"`
	// Errors contains any errors that occurred during execution.
	Errors []ResponseError `json:"errors,omitempty"`
}

// ResponseError represents a GraphQL error in the response format.
type ResponseError struct {
	// Message is the error message.
	Message string `json:"message"`
	// Path is the response field path where the error occurred.
	Path []interface{} `json:"path,omitempty"`
	// Extensions contains additional error metadata, including the
	// machine-checkable "code" value.
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// FieldPath represents a path to a field in the schema (e.g., "Query.allBooks"
// or "Mutation.addBook").
type FieldPath struct {
	// TypeName is the parent type name (e.g., "Query", "Mutation", "Author").
	TypeName string
	// FieldName is the field name.
	FieldName string
}

// String returns the string representation of the field path.
func (fp FieldPath) String() string {
	return fp.TypeName + "." + fp.FieldName
}

// ParseFieldPath parses a field path string (e.g., "Query.allBooks") into a FieldPath.
func ParseFieldPath(path string) FieldPath {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return FieldPath{
				TypeName:  path[:i],
				FieldName: path[i+1:],
			}
		}
	}
	// No dot found, treat the whole string as a field name
	return FieldPath{FieldName: path}
}
