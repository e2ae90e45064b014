package server

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"mutual/internal/domain"
	"mutual/internal/validator"
)

// Request payloads

// PartOfTeam accepts "true", "false" or a JSON boolean.
type PartOfTeam string

func (p *PartOfTeam) UnmarshalJSON(data []byte) error {
	var b domain.BoolString
	if err := b.UnmarshalJSON(data); err != nil {
		return err
	}
	*p = PartOfTeam(b)
	return nil
}

func (PartOfTeam) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		OneOf: []*huma.Schema{
			{Type: huma.TypeString, Enum: []any{domain.BoolTrue, domain.BoolFalse}},
			{Type: huma.TypeBoolean},
		},
	}
}

type SignatureRequest struct {
	Value         string `json:"value" example:"0x3f1c..."`
	SignerAddress string `json:"signerAddress" example:"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"`
}

type CaseStudyRequest struct {
	Email            string            `json:"email,omitempty" example:"ada@example.com"`
	Name             string            `json:"name,omitempty"`
	Title            string            `json:"title,omitempty"`
	OrganizationName string            `json:"organizationName,omitempty"`
	Industry         string            `json:"industry,omitempty"`
	PartOfTeam       PartOfTeam        `json:"partOfTeam,omitempty"`
	URL              string            `json:"url,omitempty"`
	Markdown         string            `json:"markdown,omitempty"`
	Type             string            `json:"type,omitempty" enum:"Signal,Research,Interview"`
	Signature        *SignatureRequest `json:"signature,omitempty"`
}

// document validates the request into a normalized case study.
func (r CaseStudyRequest) document() (domain.CaseStudy, error) {
	raw := domain.RawCaseStudy{
		Email:            r.Email,
		Name:             r.Name,
		Title:            r.Title,
		OrganizationName: r.OrganizationName,
		Industry:         r.Industry,
		PartOfTeam:       domain.BoolString(r.PartOfTeam),
		URL:              r.URL,
		Markdown:         r.Markdown,
		Type:             domain.StudyType(r.Type),
	}
	if r.Signature != nil {
		value, err := hexutil.Decode(strings.TrimSpace(r.Signature.Value))
		if err != nil {
			return domain.CaseStudy{}, validator.Errors{{
				Field:   "signature",
				Code:    validator.CodeInvalidSignature,
				Message: "signature value must be 0x-prefixed hex",
			}}
		}
		raw.Signature = &domain.Signature{Value: value, SignerAddress: r.Signature.SignerAddress}
	}
	return validator.Validate(raw)
}

type DevLoginRequest struct {
	Login   string `json:"login" example:"octocat"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
}

// Response payloads

type PullUser struct {
	Login string `json:"login"`
}

type PullResponse struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	HTMLURL string   `json:"htmlUrl"`
	User    PullUser `json:"user"`
}

func pullResponse(cr domain.ChangeRequest) PullResponse {
	return PullResponse{
		Number:  cr.Number,
		Title:   cr.Title,
		HTMLURL: cr.HTMLURL,
		User:    PullUser{Login: cr.AuthorLogin},
	}
}

func mapPulls(items []domain.ChangeRequest) []PullResponse {
	out := make([]PullResponse, 0, len(items))
	for _, cr := range items {
		out = append(out, pullResponse(cr))
	}
	return out
}

type MeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Owner         string `json:"owner,omitempty"`
	Login         string `json:"login,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Wallet        string `json:"wallet,omitempty"`
}

func meResponse(id domain.Identity) MeResponse {
	resp := MeResponse{Authenticated: id.Authenticated(), Owner: id.Owner()}
	if id.OAuth != nil {
		resp.Login = id.OAuth.Login
		resp.Name = id.OAuth.Name
		resp.Email = id.OAuth.Email
		resp.Picture = id.OAuth.AvatarURL
	}
	if id.Wallet != nil {
		resp.Wallet = id.Wallet.Address
	}
	return resp
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
