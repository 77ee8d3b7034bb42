package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	users := services.NewUserService(repo, 4)
	ledger := services.NewLedgerService(repo, nil)
	srv := NewServer(":0", users, ledger)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func registerUser(t *testing.T, srv *Server) int64 {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/users",
		`{"username":"alice","email":"alice@example.com","password":"correct-horse"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.ID
}

func incomeTag(t *testing.T, srv *Server, userID int64) int64 {
	t.Helper()
	rr := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/tags/%d", userID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list tags status=%d", rr.Code)
	}
	var tags []struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &tags); err != nil {
		t.Fatalf("decode tags: %v", err)
	}
	for _, tag := range tags {
		if tag.Type == "income" {
			return tag.ID
		}
	}
	t.Fatal("no income tag")
	return 0
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestRegisterAndGetUser(t *testing.T) {
	srv := newTestServer(t)
	id := registerUser(t, srv)

	rr := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/users/%d", id), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get user status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"alice"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	// Password hash must never leak
	if strings.Contains(rr.Body.String(), "password") {
		t.Fatalf("response leaks credentials: %s", rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/users/9999", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing user status=%d", rr.Code)
	}
}

func TestTransactionFlow(t *testing.T) {
	srv := newTestServer(t)
	userID := registerUser(t, srv)
	tagID := incomeTag(t, srv, userID)

	body := fmt.Sprintf(
		`{"user_id":%d,"tag_id":%d,"value":"100.00","date":"2024-06-15","time":"10:30","note":"salary"}`,
		userID, tagID)
	rr := doJSON(t, srv, http.MethodPost, "/transactions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID    int64  `json:"id"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Value != "100.00" {
		t.Fatalf("value = %q, want 100.00", created.Value)
	}

	// Month summary reflects the create
	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/summaries/%d", userID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summaries status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"income":"100.00"`) {
		t.Fatalf("unexpected summaries: %s", rr.Body.String())
	}

	// Partial update: only the value
	rr = doJSON(t, srv, http.MethodPatch,
		fmt.Sprintf("/transactions/%d", created.ID), `{"value":150.00}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"value":"150.00"`) {
		t.Fatalf("unexpected update body: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"note":"salary"`) {
		t.Fatalf("partial update dropped the note: %s", rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/transactions/%d", created.ID), "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/transactions/%d", created.ID), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	userID := registerUser(t, srv)
	tagID := incomeTag(t, srv, userID)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed json", http.MethodPost, "/transactions", `{"user_id":`, http.StatusBadRequest},
		{"zero value", http.MethodPost, "/transactions",
			fmt.Sprintf(`{"user_id":%d,"tag_id":%d,"value":"0","date":"2024-06-15","time":"10:30"}`, userID, tagID),
			http.StatusBadRequest},
		{"bad date", http.MethodPost, "/transactions",
			fmt.Sprintf(`{"user_id":%d,"tag_id":%d,"value":"10","date":"15/06/2024","time":"10:30"}`, userID, tagID),
			http.StatusBadRequest},
		{"unknown tag", http.MethodPost, "/transactions",
			fmt.Sprintf(`{"user_id":%d,"tag_id":9999,"value":"10","date":"2024-06-15","time":"10:30"}`, userID),
			http.StatusNotFound},
		{"duplicate tag", http.MethodPost, "/tags",
			fmt.Sprintf(`{"user_id":%d,"tag":"other-income","type":"expense"}`, userID),
			http.StatusConflict},
		{"delete default tag", http.MethodDelete,
			fmt.Sprintf("/tags/%d?user_id=%d", tagID, userID), "",
			http.StatusForbidden},
		{"delete tag without user_id", http.MethodDelete,
			fmt.Sprintf("/tags/%d", tagID), "",
			http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, tc.method, tc.path, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status=%d, want %d (body: %s)", rr.Code, tc.status, rr.Body.String())
			}
			var body errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body not JSON: %s", rr.Body.String())
			}
			if body.Error.Kind == "" || body.Error.Message == "" {
				t.Fatalf("incomplete error body: %s", rr.Body.String())
			}
		})
	}
}

func TestCreateAndDeleteCustomTag(t *testing.T) {
	srv := newTestServer(t)
	userID := registerUser(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/tags",
		fmt.Sprintf(`{"user_id":%d,"tag":"groceries","type":"expense"}`, userID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create tag status=%d body=%s", rr.Code, rr.Body.String())
	}
	var tag struct {
		ID    int64  `json:"id"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &tag); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag.Value != "0.00" {
		t.Fatalf("new tag value = %q, want 0.00", tag.Value)
	}

	rr = doJSON(t, srv, http.MethodDelete,
		fmt.Sprintf("/tags/%d?user_id=%d", tag.ID, userID), "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete tag status=%d body=%s", rr.Code, rr.Body.String())
	}
}
