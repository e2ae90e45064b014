package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// StudyType is the submission category of a case study.
type StudyType string

const (
	StudyTypeSignal    StudyType = "Signal"
	StudyTypeResearch  StudyType = "Research"
	StudyTypeInterview StudyType = "Interview"
)

// StudyTypes lists the categories accepted by the validator.
var StudyTypes = []StudyType{StudyTypeSignal, StudyTypeResearch, StudyTypeInterview}

// Boolean tokens accepted for partOfTeam at the boundary.
const (
	BoolTrue  = "true"
	BoolFalse = "false"
)

// BoolString carries the raw partOfTeam token. It accepts a JSON string or a
// JSON boolean; any other JSON value is kept verbatim so the validator can reject it.
type BoolString string

func (b *BoolString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*b = BoolString(s)
		return nil
	}
	var v bool
	if err := json.Unmarshal(trimmed, &v); err == nil {
		if v {
			*b = BoolTrue
		} else {
			*b = BoolFalse
		}
		return nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		*b = ""
		return nil
	}
	*b = BoolString(trimmed)
	return nil
}

// RawCaseStudy is a case study as authored, before validation and normalization.
type RawCaseStudy struct {
	Email            string     `json:"email" yaml:"email"`
	Name             string     `json:"name" yaml:"name"`
	Title            string     `json:"title" yaml:"title"`
	OrganizationName string     `json:"organizationName" yaml:"organizationName"`
	Industry         string     `json:"industry" yaml:"industry"`
	PartOfTeam       BoolString `json:"partOfTeam" yaml:"partOfTeam"`
	URL              string     `json:"url,omitempty" yaml:"url,omitempty"`
	Markdown         string     `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	Type             StudyType  `json:"type,omitempty" yaml:"type,omitempty"`
	Signature        *Signature `json:"signature,omitempty" yaml:"signature,omitempty"`
}

// CaseStudy is a validated, normalized submission.
type CaseStudy struct {
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Title            string     `json:"title"`
	OrganizationName string     `json:"organizationName"`
	Industry         string     `json:"industry"`
	PartOfTeam       bool       `json:"partOfTeam"`
	URL              *string    `json:"url,omitempty"`
	Markdown         *string    `json:"markdown,omitempty"`
	Type             StudyType  `json:"type"`
	Signature        *Signature `json:"signature,omitempty"`
}

// Raw converts a normalized case study back to its boundary form.
func (c CaseStudy) Raw() RawCaseStudy {
	raw := RawCaseStudy{
		Email:            c.Email,
		Name:             c.Name,
		Title:            c.Title,
		OrganizationName: c.OrganizationName,
		Industry:         c.Industry,
		PartOfTeam:       BoolFalse,
		Type:             c.Type,
		Signature:        c.Signature,
	}
	if c.PartOfTeam {
		raw.PartOfTeam = BoolTrue
	}
	if c.URL != nil {
		raw.URL = *c.URL
	}
	if c.Markdown != nil {
		raw.Markdown = *c.Markdown
	}
	return raw
}

// Unsigned returns a copy without the signature.
func (c CaseStudy) Unsigned() CaseStudy {
	c.Signature = nil
	return c
}

// Signature binds a wallet address to the canonical bytes of a case study.
type Signature struct {
	Value         hexutil.Bytes `json:"value" yaml:"value"`
	SignerAddress string        `json:"signerAddress" yaml:"signerAddress"`
}

// Draft is a saved, unpublished case study owned by one identity.
type Draft struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	CaseStudy CaseStudy `json:"caseStudy"`
	CreatedAt string    `json:"createdAt" format:"date-time"`
	UpdatedAt string    `json:"updatedAt" format:"date-time"`
}

// ChangeRequest mirrors an open pull request in the content repository.
type ChangeRequest struct {
	Number      int    `json:"number"`
	HTMLURL     string `json:"htmlUrl"`
	Title       string `json:"title"`
	AuthorLogin string `json:"authorLogin"`
	State       string `json:"state"`
	HeadBranch  string `json:"headBranch,omitempty"`
}

// Publication is the result of externalizing a case study.
type Publication struct {
	CaseStudy     CaseStudy     `json:"caseStudy"`
	ChangeRequest ChangeRequest `json:"changeRequest"`
}

// PublicationRecord is a ledger row tying an idempotency key to its change request.
type PublicationRecord struct {
	IdempotencyKey string `json:"idempotency_key"`
	Owner          string `json:"owner"`
	Branch         string `json:"branch"`
	Number         int    `json:"number"`
	HTMLURL        string `json:"html_url"`
	Title          string `json:"title"`
	AuthorLogin    string `json:"author_login"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

type OAuthIdentity struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type WalletIdentity struct {
	Address string `json:"address"`
}

// Identity is the authenticated context of a request. Either part may be absent.
type Identity struct {
	OAuth  *OAuthIdentity  `json:"oauth,omitempty"`
	Wallet *WalletIdentity `json:"wallet,omitempty"`
}

// Authenticated reports whether an OAuth identity is present.
func (i Identity) Authenticated() bool {
	return i.OAuth != nil && (i.OAuth.Login != "" || i.OAuth.Email != "")
}

// Owner returns the key drafts and publications are scoped to.
func (i Identity) Owner() string {
	if i.OAuth == nil {
		return ""
	}
	if i.OAuth.Login != "" {
		return "github:" + strings.ToLower(i.OAuth.Login)
	}
	if i.OAuth.Email != "" {
		return "email:" + strings.ToLower(i.OAuth.Email)
	}
	return ""
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
