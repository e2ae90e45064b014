package mutualsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateCaseSendsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/create-case" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing session token, got %q", got)
		}
		var doc CaseStudy
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"caseStudy":     map[string]any{"title": doc.Title, "partOfTeam": true, "type": "Signal"},
			"changeRequest": map[string]any{"number": 7, "htmlUrl": "https://github.com/acme/library/pull/7"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", "tok")
	pub, err := c.CreateCase(context.Background(), CaseStudy{Title: "Loyalty pilot", PartOfTeam: "true"})
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	if pub.ChangeRequest.Number != 7 || pub.CaseStudy.Title != "Loyalty pilot" || !pub.CaseStudy.PartOfTeam {
		t.Fatalf("unexpected publication: %+v", pub)
	}
}

func TestAPIErrorCarriesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"validation_failed","message":"email: must be a valid email address","details":{"fields":[{"field":"email","code":"invalid_email","message":"must be a valid email address"}]}}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").SaveDraft(context.Background(), CaseStudy{Email: "nope"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "validation_failed" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "email" {
		t.Fatalf("unexpected fields: %+v", apiErr.Fields)
	}
}

func TestPullsAuthorFilterAndDelete(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/pulls":
			if r.URL.Query().Get("author") != "ada" {
				t.Errorf("author filter not sent: %s", r.URL.RawQuery)
			}
			w.Write([]byte(`[{"number":1,"title":"Loyalty pilot","htmlUrl":"https://x/1","user":{"login":"ada"}}]`))
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	pulls, err := c.Pulls(context.Background(), "ada")
	if err != nil {
		t.Fatalf("pulls: %v", err)
	}
	if len(pulls) != 1 || pulls[0].User.Login != "ada" {
		t.Fatalf("unexpected pulls: %+v", pulls)
	}
	if err := c.DeleteDraft(context.Background(), "d-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != "/drafts/d-1" {
		t.Fatalf("unexpected delete path %s", deleted)
	}
}
