// Package validator checks and normalizes case studies at the boundary.
package validator

import (
	"errors"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"mutual/internal/domain"
)

// Error codes reported in FieldError.Code.
const (
	CodeRequired          = "required"
	CodeInvalidEmail      = "invalid_email"
	CodeInvalidURL        = "invalid_url"
	CodeInvalidPartOfTeam = "invalid_part_of_team"
	CodeInvalidType       = "invalid_type"
	CodeInvalidSignature  = "invalid_signature"
)

// fieldOrder is the order errors are reported in, matching the form layout.
var fieldOrder = []string{"email", "name", "title", "organizationName", "industry", "partOfTeam", "url", "markdown", "type", "signature"}

var studyTypes = func() []interface{} {
	out := make([]interface{}, 0, len(domain.StudyTypes))
	for _, t := range domain.StudyTypes {
		out = append(out, t)
	}
	return out
}()

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors lists every rule a document violates.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the names of the offending fields in report order.
func (e Errors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, fe := range e {
		out = append(out, fe.Field)
	}
	return out
}

// For returns the errors reported for one field.
func (e Errors) For(field string) []FieldError {
	var out []FieldError
	for _, fe := range e {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}

// AsErrors extracts field errors from err.
func AsErrors(err error) (Errors, bool) {
	var ve Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func required(field string) validation.Rule {
	return validation.Required.ErrorObject(validation.NewError(CodeRequired, field+" is required"))
}

// Validate checks raw against the case-study rules and returns its normalized form.
// Empty url and markdown become absent; type defaults to Signal.
func Validate(raw domain.RawCaseStudy) (domain.CaseStudy, error) {
	if raw.Type == "" {
		raw.Type = domain.StudyTypeSignal
	}
	err := validation.ValidateStruct(&raw,
		validation.Field(&raw.Email,
			required("email"),
			is.EmailFormat.ErrorObject(validation.NewError(CodeInvalidEmail, "must be a valid email address")),
		),
		validation.Field(&raw.Name, required("name")),
		validation.Field(&raw.Title, required("title")),
		validation.Field(&raw.OrganizationName, required("organizationName")),
		validation.Field(&raw.Industry, required("industry")),
		validation.Field(&raw.PartOfTeam, validation.By(partOfTeamRule)),
		validation.Field(&raw.URL,
			is.URL.ErrorObject(validation.NewError(CodeInvalidURL, "must be a valid URL")),
			validation.By(httpSchemeRule),
		),
		validation.Field(&raw.Type,
			validation.In(studyTypes...).ErrorObject(validation.NewError(CodeInvalidType, "must be one of Signal, Research, Interview")),
		),
		validation.Field(&raw.Signature, validation.By(signatureRule)),
	)
	if err != nil {
		return domain.CaseStudy{}, convert(err)
	}
	doc := domain.CaseStudy{
		Email:            raw.Email,
		Name:             raw.Name,
		Title:            raw.Title,
		OrganizationName: raw.OrganizationName,
		Industry:         raw.Industry,
		PartOfTeam:       raw.PartOfTeam == domain.BoolTrue,
		Type:             raw.Type,
		Signature:        raw.Signature,
	}
	if raw.URL != "" {
		u := raw.URL
		doc.URL = &u
	}
	if raw.Markdown != "" {
		md := raw.Markdown
		doc.Markdown = &md
	}
	return doc, nil
}

// Revalidate re-checks an already normalized document.
func Revalidate(doc domain.CaseStudy) error {
	if doc.URL != nil && *doc.URL == "" {
		return Errors{{Field: "url", Code: CodeInvalidURL, Message: "must be absent rather than empty"}}
	}
	if doc.Markdown != nil && *doc.Markdown == "" {
		return Errors{{Field: "markdown", Code: CodeRequired, Message: "must be absent rather than empty"}}
	}
	_, err := Validate(doc.Raw())
	return err
}

func partOfTeamRule(value interface{}) error {
	v, _ := value.(domain.BoolString)
	if v == domain.BoolTrue || v == domain.BoolFalse {
		return nil
	}
	return validation.NewError(CodeInvalidPartOfTeam, `must be "true" or "false"`)
}

func httpSchemeRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validation.NewError(CodeInvalidURL, "must be an http or https URL")
	}
	return nil
}

func signatureRule(value interface{}) error {
	sig, _ := value.(*domain.Signature)
	if sig == nil {
		return nil
	}
	if !common.IsHexAddress(sig.SignerAddress) {
		return validation.NewError(CodeInvalidSignature, "signerAddress must be a 20-byte hex address")
	}
	if len(sig.Value) != 65 {
		return validation.NewError(CodeInvalidSignature, "value must be a 65-byte signature")
	}
	return nil
}

func convert(err error) error {
	var ve validation.Errors
	if !errors.As(err, &ve) {
		return err
	}
	var out Errors
	for _, field := range fieldOrder {
		fieldErr, ok := ve[field]
		if !ok || fieldErr == nil {
			continue
		}
		fe := FieldError{Field: field, Code: "invalid", Message: fieldErr.Error()}
		var vErr validation.Error
		if errors.As(fieldErr, &vErr) {
			fe.Code = vErr.Code()
			fe.Message = vErr.Message()
		}
		out = append(out, fe)
	}
	if len(out) == 0 {
		return err
	}
	return out
}
