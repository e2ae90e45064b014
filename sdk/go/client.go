package mutualsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Mutual HTTP API client.
type Client struct {
	BaseURL      string
	SessionToken string
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, e.g. http://localhost:8080/api.
func New(baseURL, sessionToken string) *Client {
	return &Client{
		BaseURL:      baseURL,
		SessionToken: sessionToken,
		Timeout:      30 * time.Second,
	}
}

// Signature is a wallet signature over a case study, value hex encoded.
type Signature struct {
	Value         string `json:"value"`
	SignerAddress string `json:"signerAddress"`
}

// CaseStudy is the submission document. PartOfTeam is "true" or "false".
type CaseStudy struct {
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Title            string     `json:"title"`
	OrganizationName string     `json:"organizationName"`
	Industry         string     `json:"industry"`
	PartOfTeam       string     `json:"partOfTeam"`
	URL              string     `json:"url,omitempty"`
	Markdown         string     `json:"markdown,omitempty"`
	Type             string     `json:"type,omitempty"`
	Signature        *Signature `json:"signature,omitempty"`
}

// StoredCaseStudy is a case study as the API returns it.
type StoredCaseStudy struct {
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Title            string     `json:"title"`
	OrganizationName string     `json:"organizationName"`
	Industry         string     `json:"industry"`
	PartOfTeam       bool       `json:"partOfTeam"`
	URL              *string    `json:"url,omitempty"`
	Markdown         *string    `json:"markdown,omitempty"`
	Type             string     `json:"type"`
	Signature        *Signature `json:"signature,omitempty"`
}

type Draft struct {
	ID        string          `json:"id"`
	Owner     string          `json:"owner"`
	CaseStudy StoredCaseStudy `json:"caseStudy"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

type ChangeRequest struct {
	Number      int    `json:"number"`
	HTMLURL     string `json:"htmlUrl"`
	Title       string `json:"title"`
	AuthorLogin string `json:"authorLogin"`
	State       string `json:"state"`
	HeadBranch  string `json:"headBranch,omitempty"`
}

type Publication struct {
	CaseStudy     StoredCaseStudy `json:"caseStudy"`
	ChangeRequest ChangeRequest   `json:"changeRequest"`
}

// Pull is an open case study in the registry.
type Pull struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"htmlUrl"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
}

type Me struct {
	Authenticated bool   `json:"authenticated"`
	Owner         string `json:"owner,omitempty"`
	Login         string `json:"login,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Wallet        string `json:"wallet,omitempty"`
}

// FieldError is one violated rule reported by a 422 response.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     []FieldError
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Health checks the API is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

// Me returns the identity behind the session token.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var resp Me
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// Pulls lists open case studies, optionally only those opened by author.
func (c *Client) Pulls(ctx context.Context, author string) ([]Pull, error) {
	endpoint := "pulls"
	if author != "" {
		endpoint += "?author=" + url.QueryEscape(author)
	}
	var resp []Pull
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Drafts lists the caller's drafts, most recently updated first.
func (c *Client) Drafts(ctx context.Context) ([]Draft, error) {
	var resp []Draft
	err := c.do(ctx, http.MethodGet, "drafts", nil, &resp)
	return resp, err
}

// SaveDraft stores doc, replacing the caller's draft with the same title.
func (c *Client) SaveDraft(ctx context.Context, doc CaseStudy) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodPost, "drafts", doc, &resp)
	return resp, err
}

// DeleteDraft removes a draft.
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "drafts/"+url.PathEscape(id), nil, nil)
}

// CreateCase publishes doc as a pull request.
func (c *Client) CreateCase(ctx context.Context, doc CaseStudy) (Publication, error) {
	var resp Publication
	err := c.do(ctx, http.MethodPost, "create-case", doc, &resp)
	return resp, err
}

// DevLogin mints a session token on servers with dev login enabled and
// stores it on the client.
func (c *Client) DevLogin(ctx context.Context, login string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/dev/login", map[string]string{"login": login}, &resp); err != nil {
		return "", err
	}
	c.SessionToken = resp.Token
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.SessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.SessionToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Fields []FieldError `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Fields = env.Error.Details.Fields
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
