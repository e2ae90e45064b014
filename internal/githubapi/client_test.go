package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"mutual/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGitHub struct {
	mu        sync.Mutex
	refs      map[string]bool
	files     map[string]string
	pulls     []map[string]any
	createPRs int
	failList  int
}

func newStub() *stubGitHub {
	return &stubGitHub{refs: map[string]bool{"heads/main": true}, files: map[string]string{}}
}

func (s *stubGitHub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/library/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ref": "refs/heads/main", "object": map[string]any{"sha": "base-sha", "type": "commit"}})
	})
	mux.HandleFunc("POST /repos/acme/library/git/refs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		name := strings.TrimPrefix(body.Ref, "refs/")
		if s.refs[name] {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "Reference already exists"})
			return
		}
		s.refs[name] = true
		writeJSON(w, http.StatusCreated, map[string]any{"ref": body.Ref, "object": map[string]any{"sha": body.SHA}})
	})
	mux.HandleFunc("PUT /repos/acme/library/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content []byte `json:"content"`
			Branch  string `json:"branch"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		key := body.Branch + ":" + r.PathValue("path")
		if _, ok := s.files[key]; ok {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "Invalid request.\n\n\"sha\" wasn't supplied."})
			return
		}
		s.files[key] = string(body.Content)
		writeJSON(w, http.StatusCreated, map[string]any{"content": map[string]any{"path": r.PathValue("path")}})
	})
	mux.HandleFunc("POST /repos/acme/library/pulls", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title string `json:"title"`
			Head  string `json:"head"`
			Body  string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.createPRs++
		for _, pr := range s.pulls {
			if pr["head"].(map[string]any)["ref"] == body.Head {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"message": "Validation Failed",
					"errors":  []map[string]any{{"resource": "PullRequest", "code": "custom", "message": "A pull request already exists for acme:" + body.Head + "."}},
				})
				return
			}
		}
		pr := s.addPull(body.Title, body.Head, body.Body)
		writeJSON(w, http.StatusCreated, pr)
	})
	mux.HandleFunc("GET /repos/acme/library/pulls", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failList > 0 {
			s.failList--
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom"})
			return
		}
		head := strings.TrimPrefix(r.URL.Query().Get("head"), "acme:")
		var matched []map[string]any
		for _, pr := range s.pulls {
			if head == "" || pr["head"].(map[string]any)["ref"] == head {
				matched = append(matched, pr)
			}
		}
		// Two per page so pagination is exercised.
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		start := (page - 1) * 2
		if start > len(matched) {
			start = len(matched)
		}
		end := start + 2
		if end < len(matched) {
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/acme/library/pulls?page=%d>; rel="next"`, r.Host, page+1))
		} else {
			end = len(matched)
		}
		out := matched[start:end]
		if out == nil {
			out = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, out)
	})
	return mux
}

func (s *stubGitHub) addPull(title, head, body string) map[string]any {
	n := len(s.pulls) + 1
	pr := map[string]any{
		"number":   n,
		"title":    title,
		"body":     body,
		"state":    "open",
		"html_url": fmt.Sprintf("https://github.com/acme/library/pull/%d", n),
		"user":     map[string]any{"login": "mutual-bot"},
		"head":     map[string]any{"ref": head},
	}
	s.pulls = append(s.pulls, pr)
	return pr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, stub *stubGitHub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	c, err := New(Config{Owner: "acme", Repo: "library", BaseBranch: "main", Token: "t", APIURL: srv.URL})
	require.NoError(t, err)
	return c
}

func sampleDoc() domain.CaseStudy {
	md := "# Findings\n\n```go\nfmt.Println(1)\n```\n"
	u := "https://example.com"
	return domain.CaseStudy{
		Email:            "ada@example.com",
		Name:             "Ada",
		Title:            "Cooperative Supply: Year One!",
		OrganizationName: "Mutual",
		Industry:         "Logistics",
		PartOfTeam:       true,
		URL:              &u,
		Markdown:         &md,
		Type:             domain.StudyTypeInterview,
	}
}

func TestCreateChangeRequestIsIdempotent(t *testing.T) {
	stub := newStub()
	c := newTestClient(t, stub)
	ctx := context.Background()

	sub, err := BuildSubmission("case-studies", sampleDoc(), strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, "case-study/cooperative-supply-year-one-abababababab", sub.Branch)
	assert.Equal(t, "case-studies/cooperative-supply-year-one-abababab.md", sub.Path)

	first, err := c.CreateChangeRequest(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "mutual-bot", first.AuthorLogin)
	assert.Equal(t, sub.Branch, first.HeadBranch)

	second, err := c.CreateChangeRequest(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, first.Number, second.Number)
	assert.Len(t, stub.pulls, 1)
	assert.Equal(t, 2, stub.createPRs)

	content := stub.files[sub.Branch+":"+sub.Path]
	assert.True(t, strings.HasPrefix(content, "---\n"))
	assert.True(t, strings.HasSuffix(content, *sampleDoc().Markdown))
}

func TestListOpenPaginatesAndFilters(t *testing.T) {
	stub := newStub()
	for i := 0; i < 5; i++ {
		stub.addPull(fmt.Sprintf("PR %d", i), fmt.Sprintf("case-study/b%d", i), "")
	}
	c := newTestClient(t, stub)
	ctx := context.Background()

	all, err := c.ListOpen(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "PR 4", all[4].Title)

	one, err := c.ListOpen(ctx, "case-study/b3")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 4, one[0].Number)
}

func TestListOpenEmptyIsNotAnError(t *testing.T) {
	c := newTestClient(t, newStub())
	prs, err := c.ListOpen(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, prs)
	assert.Empty(t, prs)
}

func TestErrorsAreClassified(t *testing.T) {
	stub := newStub()
	stub.failList = 1
	c := newTestClient(t, stub)
	_, err := c.ListOpen(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.False(t, Indeterminate(err))

	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
	}))
	defer unauthorized.Close()
	c2, err := New(Config{Owner: "acme", Repo: "library", APIURL: unauthorized.URL})
	require.NoError(t, err)
	_, err = c2.CreateChangeRequest(context.Background(), Submission{Branch: "b", Path: "p"})
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "slow down"})
	}))
	defer limited.Close()
	c3, err := New(Config{Owner: "acme", Repo: "library", APIURL: limited.URL})
	require.NoError(t, err)
	_, err = c3.ListOpen(context.Background(), "")
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestTransportErrorsAreIndeterminate(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, err := New(Config{Owner: "acme", Repo: "library", APIURL: url})
	require.NoError(t, err)
	_, err = c.ListOpen(context.Background(), "")
	require.Error(t, err)
	assert.True(t, Indeterminate(err))
	assert.Equal(t, KindUnavailable, KindOf(err))
}
