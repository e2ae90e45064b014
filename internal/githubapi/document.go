package githubapi

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"mutual/internal/domain"
	"mutual/internal/signing"
)

const (
	branchPrefix  = "case-study/"
	jsonFenceOpen = "```json\n"
	jsonFenceEnd  = "\n```"
	maxSlugLen    = 48
)

// Submission is everything needed to open one change request.
type Submission struct {
	Branch        string
	Path          string
	Content       []byte
	CommitMessage string
	Title         string
	Body          string
}

// Slug turns a title into a lowercase, dash separated path component.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if len(s) > maxSlugLen {
		s = strings.TrimSuffix(s[:maxSlugLen], "-")
	}
	if s == "" {
		return "case-study"
	}
	return s
}

// BranchName is the head branch a document with the given idempotency key is proposed from.
func BranchName(doc domain.CaseStudy, key string) string {
	return branchPrefix + Slug(doc.Title) + "-" + short(key, 12)
}

// FilePath is where the document lands inside the content directory.
func FilePath(contentDir string, doc domain.CaseStudy, key string) string {
	return path.Join(contentDir, Slug(doc.Title)+"-"+short(key, 8)+".md")
}

func short(key string, n int) string {
	if len(key) < n {
		return key
	}
	return key[:n]
}

type frontMatter struct {
	Title            string           `yaml:"title"`
	Name             string           `yaml:"name"`
	Email            string           `yaml:"email"`
	OrganizationName string           `yaml:"organizationName"`
	Industry         string           `yaml:"industry"`
	PartOfTeam       bool             `yaml:"partOfTeam"`
	URL              string           `yaml:"url,omitempty"`
	Type             domain.StudyType `yaml:"type"`
	Signature        *frontSignature  `yaml:"signature,omitempty"`
}

type frontSignature struct {
	Value         string `yaml:"value"`
	SignerAddress string `yaml:"signerAddress"`
}

// RenderFile renders the committed markdown file: YAML front matter followed by
// the markdown body verbatim.
func RenderFile(doc domain.CaseStudy) ([]byte, error) {
	fm := frontMatter{
		Title:            doc.Title,
		Name:             doc.Name,
		Email:            doc.Email,
		OrganizationName: doc.OrganizationName,
		Industry:         doc.Industry,
		PartOfTeam:       doc.PartOfTeam,
		Type:             doc.Type,
	}
	if doc.URL != nil {
		fm.URL = *doc.URL
	}
	if doc.Signature != nil {
		fm.Signature = &frontSignature{Value: doc.Signature.Value.String(), SignerAddress: doc.Signature.SignerAddress}
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, errors.Wrap(err, "render front matter")
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n")
	if doc.Markdown != nil {
		b.WriteString(*doc.Markdown)
	}
	return []byte(b.String()), nil
}

// RenderBody renders the change-request description. The fenced JSON block
// carries the full document so DecodeChangeRequestBody can recover it.
func RenderBody(doc domain.CaseStudy) (string, error) {
	envelope, err := signing.Envelope(doc)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", doc.Title)
	fmt.Fprintf(&b, "- **Author:** %s <%s>\n", doc.Name, doc.Email)
	fmt.Fprintf(&b, "- **Organization:** %s (%s)\n", doc.OrganizationName, doc.Industry)
	fmt.Fprintf(&b, "- **Type:** %s\n", doc.Type)
	if doc.PartOfTeam {
		b.WriteString("- **Part of team:** yes\n")
	} else {
		b.WriteString("- **Part of team:** no\n")
	}
	if doc.URL != nil {
		fmt.Fprintf(&b, "- **Link:** %s\n", *doc.URL)
	}
	if doc.Signature != nil {
		fmt.Fprintf(&b, "- **Signed by:** `%s`\n", doc.Signature.SignerAddress)
	}
	b.WriteString("\n")
	b.WriteString(jsonFenceOpen)
	b.Write(envelope)
	b.WriteString(jsonFenceEnd)
	b.WriteString("\n")
	return b.String(), nil
}

// DecodeChangeRequestBody recovers the document embedded by RenderBody.
func DecodeChangeRequestBody(body string) (domain.CaseStudy, error) {
	var doc domain.CaseStudy
	start := strings.Index(body, jsonFenceOpen)
	if start < 0 {
		return doc, errors.New("change request body has no json block")
	}
	rest := body[start+len(jsonFenceOpen):]
	end := strings.Index(rest, jsonFenceEnd)
	if end < 0 {
		return doc, errors.New("change request body has an unterminated json block")
	}
	if err := json.Unmarshal([]byte(rest[:end]), &doc); err != nil {
		return doc, errors.Wrap(err, "decode change request body")
	}
	return doc, nil
}

// BuildSubmission renders doc into the branch, file and pull request it is
// proposed as.
func BuildSubmission(contentDir string, doc domain.CaseStudy, key string) (Submission, error) {
	content, err := RenderFile(doc)
	if err != nil {
		return Submission{}, err
	}
	body, err := RenderBody(doc)
	if err != nil {
		return Submission{}, err
	}
	return Submission{
		Branch:        BranchName(doc, key),
		Path:          FilePath(contentDir, doc, key),
		Content:       content,
		CommitMessage: "Add case study: " + doc.Title,
		Title:         "Case study: " + doc.Title,
		Body:          body,
	}, nil
}
