package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/validator"
)

// RootFunc resolves a root query or mutation field.
type RootFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// FieldFunc resolves a computed field on an object type. The source is the
// parent object projected to a map.
type FieldFunc func(ctx context.Context, source map[string]interface{}, args map[string]interface{}) (interface{}, error)

// SubscriptionFunc starts a subscription and returns the event channel. The
// channel must be closed when ctx is cancelled.
type SubscriptionFunc func(ctx context.Context, args map[string]interface{}) (<-chan interface{}, error)

// Executor executes GraphQL operations against registered resolvers.
type Executor struct {
	schema        *Schema
	roots         map[string]RootFunc // "Query.bookCount", "Mutation.addBook"
	fields        map[string]FieldFunc
	subscriptions map[string]SubscriptionFunc
}

// NewExecutor creates a new GraphQL executor for the given schema.
func NewExecutor(schema *Schema) *Executor {
	return &Executor{
		schema:        schema,
		roots:         make(map[string]RootFunc),
		fields:        make(map[string]FieldFunc),
		subscriptions: make(map[string]SubscriptionFunc),
	}
}

// Schema returns the schema this executor serves.
func (e *Executor) Schema() *Schema {
	return e.schema
}

// RegisterQuery binds a resolver to a Query root field.
func (e *Executor) RegisterQuery(name string, fn RootFunc) {
	e.roots[FieldPath{TypeName: "Query", FieldName: name}.String()] = fn
}

// RegisterMutation binds a resolver to a Mutation root field.
func (e *Executor) RegisterMutation(name string, fn RootFunc) {
	e.roots[FieldPath{TypeName: "Mutation", FieldName: name}.String()] = fn
}

// RegisterField binds a resolver to a computed field on an object type.
func (e *Executor) RegisterField(typeName, fieldName string, fn FieldFunc) {
	e.fields[FieldPath{TypeName: typeName, FieldName: fieldName}.String()] = fn
}

// RegisterSubscription binds a resolver to a Subscription root field.
func (e *Executor) RegisterSubscription(name string, fn SubscriptionFunc) {
	e.subscriptions[name] = fn
}

// Execute runs a query or mutation and returns the response.
func (e *Executor) Execute(ctx context.Context, req *Request) *Response {
	if req == nil || req.Query == "" {
		return &Response{
			Errors: []ResponseError{{Message: "query is required"}},
		}
	}

	doc, err := e.parseQuery(req.Query)
	if err != nil {
		return &Response{
			Errors: []ResponseError{{Message: err.Error()}},
		}
	}

	op, err := e.findOperation(doc, req.OperationName)
	if err != nil {
		return &Response{
			Errors: []ResponseError{{Message: err.Error()}},
		}
	}

	var opType string
	switch op.Operation {
	case ast.Query:
		opType = "Query"
	case ast.Mutation:
		opType = "Mutation"
	case ast.Subscription:
		return &Response{
			Errors: []ResponseError{{Message: "subscriptions must use the WebSocket transport"}},
		}
	default:
		return &Response{
			Errors: []ResponseError{{Message: "unsupported operation type"}},
		}
	}

	variables, err := e.coerceVariables(op, req.Variables)
	if err != nil {
		return &Response{
			Errors: []ResponseError{{Message: err.Error()}},
		}
	}

	data, errs := e.executeRootSelections(ctx, doc, opType, op.SelectionSet, variables)

	return &Response{Data: data, Errors: errs}
}

// parseQuery parses and validates a GraphQL query against the schema.
func (e *Executor) parseQuery(query string) (*ast.QueryDocument, error) {
	doc, parseErr := gqlparser.LoadQuery(e.schema.AST(), query)
	if parseErr != nil {
		// Return first error for simplicity
		if len(parseErr) > 0 {
			return nil, fmt.Errorf("parse error: %s", parseErr[0].Message)
		}
		return nil, fmt.Errorf("parse error")
	}

	validationErrs := validator.Validate(e.schema.AST(), doc)
	if len(validationErrs) > 0 {
		return nil, fmt.Errorf("validation error: %s", validationErrs[0].Message)
	}

	return doc, nil
}

// findOperation locates the operation to execute in a query document.
func (e *Executor) findOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	for _, op := range doc.Operations {
		if name == "" || op.Name == name {
			return op, nil
		}
	}

	if name != "" {
		return nil, fmt.Errorf("operation %q not found", name)
	}
	return nil, fmt.Errorf("no operation found in query")
}

// coerceVariables checks the supplied variable values against the operation's
// variable definitions. Document validation only covers variable usage inside
// the query text, not the values the client sends alongside it, so defaults,
// non-null checks, and scalar kind checks happen here.
func (e *Executor) coerceVariables(op *ast.OperationDefinition, variables map[string]interface{}) (map[string]interface{}, error) {
	coerced := make(map[string]interface{}, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		value, present := variables[def.Variable]
		if !present && def.DefaultValue != nil {
			coerced[def.Variable] = e.resolveValue(def.DefaultValue, nil)
			continue
		}
		if value == nil {
			if def.Type.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", def.Variable, def.Type.String())
			}
			continue
		}
		v, err := coerceVariableValue(def.Type, value)
		if err != nil {
			return nil, fmt.Errorf("variable $%s: %s", def.Variable, err)
		}
		coerced[def.Variable] = v
	}
	return coerced, nil
}

// coerceVariableValue coerces one non-nil variable value to the Go
// representation of its declared type.
func coerceVariableValue(typ *ast.Type, value interface{}) (interface{}, error) {
	if typ.Elem != nil {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected a list of %s, got %T", typ.Elem.String(), value)
		}
		out := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i).Interface()
			if item == nil {
				if typ.Elem.NonNull {
					return nil, fmt.Errorf("list of %s must not contain null", typ.Elem.String())
				}
				out = append(out, nil)
				continue
			}
			cv, err := coerceVariableValue(typ.Elem, item)
			if err != nil {
				return nil, err
			}
			out = append(out, cv)
		}
		return out, nil
	}

	switch typ.NamedType {
	case "Int":
		switch n := value.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("expected Int, got %v", n)
			}
			return int64(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("expected Int, got %v", n)
			}
			return i, nil
		}
		return nil, fmt.Errorf("expected Int, got %T", value)
	case "Float":
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("expected Float, got %v", n)
			}
			return f, nil
		}
		return nil, fmt.Errorf("expected Float, got %T", value)
	case "String", "ID":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected %s, got %T", typ.NamedType, value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected Boolean, got %T", value)
	default:
		return value, nil
	}
}

// executeRootSelections executes the top-level selection set of a query or
// mutation. Fields run serially in document order, so mutations observe the
// effects of earlier mutations in the same document.
func (e *Executor) executeRootSelections(ctx context.Context, doc *ast.QueryDocument, opType string, selections ast.SelectionSet, variables map[string]interface{}) (map[string]interface{}, []ResponseError) {
	result := make(map[string]interface{})
	var errs []ResponseError

	for _, sel := range e.expandSelections(doc, selections) {
		field, ok := sel.(*ast.Field)
		if !ok {
			continue
		}

		alias := field.Alias
		if alias == "" {
			alias = field.Name
		}

		if field.Name == "__typename" {
			result[alias] = opType
			continue
		}

		path := FieldPath{TypeName: opType, FieldName: field.Name}.String()
		fn, ok := e.roots[path]
		if !ok {
			result[alias] = nil
			errs = append(errs, ResponseError{
				Message: fmt.Sprintf("no resolver registered for %s", path),
				Path:    []interface{}{alias},
			})
			continue
		}

		args := e.extractArguments(field, variables)

		value, err := fn(ctx, args)
		if err == nil {
			value, err = e.completeValue(ctx, doc, field.Definition.Type, field.SelectionSet, variables, value)
		}
		if err != nil {
			result[alias] = nil
			errs = append(errs, toResponseError(err, []interface{}{alias}))
			continue
		}

		result[alias] = value
	}

	return result, errs
}

// completeValue shapes a resolver result according to the schema type of the
// field and the requested selection set.
func (e *Executor) completeValue(ctx context.Context, doc *ast.QueryDocument, typ *ast.Type, selections ast.SelectionSet, variables map[string]interface{}, value interface{}) (interface{}, error) {
	if isNil(value) {
		return nil, nil
	}

	// Lists recurse element-wise.
	if typ.Elem != nil {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected a list value, got %T", value)
		}
		out := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := e.completeValue(ctx, doc, typ.Elem, selections, variables, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}

	if e.schema.IsScalarType(typ.NamedType) {
		return value, nil
	}

	source, err := toMap(value)
	if err != nil {
		return nil, err
	}

	return e.projectObject(ctx, doc, typ.NamedType, selections, variables, source)
}

// projectObject builds the response object for one selection set over a
// resolved source value.
func (e *Executor) projectObject(ctx context.Context, doc *ast.QueryDocument, typeName string, selections ast.SelectionSet, variables map[string]interface{}, source map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for _, sel := range e.expandSelections(doc, selections) {
		field, ok := sel.(*ast.Field)
		if !ok {
			continue
		}

		alias := field.Alias
		if alias == "" {
			alias = field.Name
		}

		if field.Name == "__typename" {
			result[alias] = typeName
			continue
		}

		var value interface{}
		var err error

		if fn, ok := e.fields[FieldPath{TypeName: typeName, FieldName: field.Name}.String()]; ok {
			value, err = fn(ctx, source, e.extractArguments(field, variables))
		} else {
			value = source[field.Name]
		}
		if err != nil {
			return nil, err
		}

		value, err = e.completeValue(ctx, doc, field.Definition.Type, field.SelectionSet, variables, value)
		if err != nil {
			return nil, err
		}
		result[alias] = value
	}

	return result, nil
}

// expandSelections expands fragment spreads and inline fragments in a
// selection set to their field definitions.
func (e *Executor) expandSelections(doc *ast.QueryDocument, selections ast.SelectionSet) ast.SelectionSet {
	if doc == nil {
		return selections
	}

	var expanded ast.SelectionSet
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			expanded = append(expanded, s)
		case *ast.FragmentSpread:
			for _, frag := range doc.Fragments {
				if frag.Name == s.Name {
					expanded = append(expanded, e.expandSelections(doc, frag.SelectionSet)...)
					break
				}
			}
		case *ast.InlineFragment:
			expanded = append(expanded, e.expandSelections(doc, s.SelectionSet)...)
		}
	}
	return expanded
}

// extractArguments extracts argument values from a field.
func (e *Executor) extractArguments(field *ast.Field, variables map[string]interface{}) map[string]interface{} {
	args := make(map[string]interface{})
	for _, arg := range field.Arguments {
		args[arg.Name] = e.resolveValue(arg.Value, variables)
	}
	return args
}

// resolveValue resolves an AST value to a Go value.
func (e *Executor) resolveValue(value *ast.Value, variables map[string]interface{}) interface{} {
	if value == nil {
		return nil
	}

	switch value.Kind {
	case ast.Variable:
		if variables != nil {
			return variables[value.Raw]
		}
		return nil
	case ast.IntValue:
		var n int64
		_, _ = fmt.Sscanf(value.Raw, "%d", &n)
		return n
	case ast.FloatValue:
		var f float64
		_, _ = fmt.Sscanf(value.Raw, "%f", &f)
		return f
	case ast.StringValue, ast.BlockValue:
		return value.Raw
	case ast.BooleanValue:
		return value.Raw == "true"
	case ast.NullValue:
		return nil
	case ast.EnumValue:
		return value.Raw
	case ast.ListValue:
		var list []interface{}
		for _, child := range value.Children {
			list = append(list, e.resolveValue(child.Value, variables))
		}
		return list
	case ast.ObjectValue:
		obj := make(map[string]interface{})
		for _, child := range value.Children {
			obj[child.Name] = e.resolveValue(child.Value, variables)
		}
		return obj
	default:
		return value.Raw
	}
}

// Subscription is an active subscription stream started by Subscribe.
type Subscription struct {
	exec      *Executor
	doc       *ast.QueryDocument
	field     *ast.Field
	alias     string
	variables map[string]interface{}
	events    <-chan interface{}
}

// Events returns the channel of raw resolver events. The channel closes when
// the subscription's context is cancelled.
func (s *Subscription) Events() <-chan interface{} {
	return s.events
}

// Project shapes one event through the subscription's selection set into a
// full response, ready to send to the client.
func (s *Subscription) Project(ctx context.Context, event interface{}) *Response {
	value, err := s.exec.completeValue(ctx, s.doc, s.field.Definition.Type, s.field.SelectionSet, s.variables, event)
	if err != nil {
		return &Response{Errors: []ResponseError{toResponseError(err, []interface{}{s.alias})}}
	}
	return &Response{Data: map[string]interface{}{s.alias: value}}
}

// Subscribe validates a subscription request and starts its event stream.
// The stream ends when ctx is cancelled.
func (e *Executor) Subscribe(ctx context.Context, req *Request) (*Subscription, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	doc, err := e.parseQuery(req.Query)
	if err != nil {
		return nil, err
	}

	op, err := e.findOperation(doc, req.OperationName)
	if err != nil {
		return nil, err
	}
	if op.Operation != ast.Subscription {
		return nil, fmt.Errorf("operation is not a subscription")
	}

	// A subscription operation has exactly one root field.
	var field *ast.Field
	for _, sel := range e.expandSelections(doc, op.SelectionSet) {
		f, ok := sel.(*ast.Field)
		if !ok || isIntrospectionField(f.Name) {
			continue
		}
		if field != nil {
			return nil, fmt.Errorf("subscriptions must select exactly one field")
		}
		field = f
	}
	if field == nil || e.schema.GetSubscriptionField(field.Name) == nil {
		return nil, fmt.Errorf("subscription field not found")
	}

	fn, ok := e.subscriptions[field.Name]
	if !ok {
		return nil, fmt.Errorf("no resolver registered for Subscription.%s", field.Name)
	}

	variables, err := e.coerceVariables(op, req.Variables)
	if err != nil {
		return nil, err
	}

	events, err := fn(ctx, e.extractArguments(field, variables))
	if err != nil {
		return nil, err
	}

	alias := field.Alias
	if alias == "" {
		alias = field.Name
	}

	return &Subscription{
		exec:      e,
		doc:       doc,
		field:     field,
		alias:     alias,
		variables: variables,
		events:    events,
	}, nil
}

// toMap converts a resolver result (typically a model struct) to a generic
// map through its JSON representation, so field names line up with the
// schema's.
func toMap(value interface{}) (map[string]interface{}, error) {
	if m, ok := value.(map[string]interface{}); ok {
		return m, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cannot project %T: %w", value, err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("cannot project %T: %w", value, err)
	}
	return m, nil
}

// isNil reports whether a resolver result is nil, including typed nil
// pointers and slices hiding inside a non-nil interface.
func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
