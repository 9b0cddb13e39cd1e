package graphql

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(newTestExecutor(t), nil)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) *Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return &resp
}

func TestHandlerPostJSON(t *testing.T) {
	handler := newTestHandler(t)

	body := `{"query": "{ bookCount }"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := decodeResponse(t, rec)
	if len(resp.Errors) != 0 {
		t.Fatalf("errors = %v", resp.Errors)
	}
	data := resp.Data.(map[string]interface{})
	if data["bookCount"] != float64(2) {
		t.Errorf("bookCount = %v, want 2", data["bookCount"])
	}
}

func TestHandlerPostGraphQLContentType(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{ authorCount }`))
	req.Header.Set("Content-Type", "application/graphql")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if len(resp.Errors) != 0 {
		t.Fatalf("errors = %v", resp.Errors)
	}
	data := resp.Data.(map[string]interface{})
	if data["authorCount"] != float64(1) {
		t.Errorf("authorCount = %v, want 1", data["authorCount"])
	}
}

func TestHandlerGet(t *testing.T) {
	handler := newTestHandler(t)

	params := url.Values{}
	params.Set("query", `query Books($g: String) { allBooks(genre: $g) { title } }`)
	params.Set("variables", `{"g": "mythology"}`)

	req := httptest.NewRequest(http.MethodGet, "/graphql?"+params.Encode(), nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if len(resp.Errors) != 0 {
		t.Fatalf("errors = %v", resp.Errors)
	}
	data := resp.Data.(map[string]interface{})
	books := data["allBooks"].([]interface{})
	if len(books) != 1 {
		t.Fatalf("allBooks has %d items, want 1", len(books))
	}
}

func TestHandlerGetInvalidVariables(t *testing.T) {
	handler := newTestHandler(t)

	params := url.Values{}
	params.Set("query", `{ bookCount }`)
	params.Set("variables", `{not json`)

	req := httptest.NewRequest(http.MethodGet, "/graphql?"+params.Encode(), nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerInvalidJSONBody(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{broken`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if len(resp.Errors) != 1 {
		t.Fatalf("errors = %v, want one parse error", resp.Errors)
	}
}

func TestHandlerEmptyBody(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/graphql", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandlerOptions(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandlerOperationType(t *testing.T) {
	handler := newTestHandler(t)

	cases := []struct {
		query string
		want  string
	}{
		{"{ bookCount }", "query"},
		{"query { bookCount }", "query"},
		{"mutation { login(username: \"a\", password: \"b\") { value } }", "mutation"},
		{"subscription { bookAdded { title } }", "subscription"},
		{"", "unknown"},
	}

	for _, tc := range cases {
		got := handler.operationType(&Request{Query: tc.query})
		if got != tc.want {
			t.Errorf("operationType(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}
