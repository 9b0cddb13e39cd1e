package graphql

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// MaxRequestBodySize is the maximum allowed request body size (1MB).
const MaxRequestBodySize = 1 << 20 // 1MB

// Handler handles GraphQL HTTP requests.
type Handler struct {
	executor *Executor
	log      *slog.Logger
}

// NewHandler creates a new GraphQL HTTP handler.
func NewHandler(executor *Executor, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		executor: executor,
		log:      log,
	}
}

// ServeHTTP handles GraphQL requests. It supports POST with both
// application/json and application/graphql content types, and GET with
// query parameters.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	// Preflight requests (CORS headers are set by outer middleware)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req *Request
	var err error

	if r.Method == http.MethodGet {
		req, err = h.parseGetRequest(r)
	} else {
		req, err = h.parsePostRequest(r)
	}

	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := h.executor.Execute(r.Context(), req)
	h.writeResponse(w, resp)

	h.log.Debug("graphql request",
		"operation", h.operationType(req),
		"operationName", req.OperationName,
		"errors", len(resp.Errors),
		"duration", time.Since(startTime),
	)
}

// operationType detects the GraphQL operation type from a request.
func (h *Handler) operationType(req *Request) string {
	if req == nil || req.Query == "" {
		return "unknown"
	}

	query := strings.TrimSpace(req.Query)

	// Shorthand query syntax has no keyword
	if strings.HasPrefix(query, "{") {
		return "query"
	}

	queryLower := strings.ToLower(query)
	if strings.HasPrefix(queryLower, "mutation") {
		return "mutation"
	}
	if strings.HasPrefix(queryLower, "subscription") {
		return "subscription"
	}
	return "query"
}

// parseGetRequest parses a GraphQL request from GET query parameters.
func (h *Handler) parseGetRequest(r *http.Request) (*Request, error) {
	query := r.URL.Query()

	req := &Request{
		Query:         query.Get("query"),
		OperationName: query.Get("operationName"),
	}

	if varsStr := query.Get("variables"); varsStr != "" {
		var variables map[string]interface{}
		if err := json.Unmarshal([]byte(varsStr), &variables); err != nil {
			return nil, &parseError{message: "invalid variables JSON"}
		}
		req.Variables = variables
	}

	return req, nil
}

// parsePostRequest parses a GraphQL request from a POST body.
func (h *Handler) parsePostRequest(r *http.Request) (*Request, error) {
	contentType := r.Header.Get("Content-Type")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize))
	if err != nil {
		return nil, &parseError{message: "failed to read request body"}
	}
	defer func() { _ = r.Body.Close() }()

	if len(body) == 0 {
		return nil, &parseError{message: "empty request body"}
	}

	if strings.HasPrefix(contentType, "application/graphql") {
		return &Request{Query: string(body)}, nil
	}

	// Default to application/json
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &parseError{message: "invalid JSON request body"}
	}

	return &req, nil
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := &Response{
		Errors: []ResponseError{{Message: message}},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// writeResponse writes a GraphQL response.
func (h *Handler) writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(resp)
}

// parseError represents a request parsing error.
type parseError struct {
	message string
}

func (e *parseError) Error() string {
	return e.message
}
