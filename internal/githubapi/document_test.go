package githubapi

import (
	"strings"
	"testing"

	"mutual/internal/domain"
	"mutual/internal/signing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSlug(t *testing.T) {
	assert.Equal(t, "hello-world", Slug("Hello, World"))
	assert.Equal(t, "leading-trailing", Slug("  --Leading & trailing--"))
	assert.Equal(t, "case-study", Slug("!!!"))
	assert.Equal(t, strings.Repeat("a", 48), Slug(strings.Repeat("a", 60)))
}

func TestBodyRoundTripsDocument(t *testing.T) {
	signer, err := signing.GenerateKeySigner()
	require.NoError(t, err)
	doc := sampleDoc()
	sig, err := signing.Sign(t.Context(), doc, signer)
	require.NoError(t, err)
	doc.Signature = &sig

	body, err := RenderBody(doc)
	require.NoError(t, err)
	assert.Contains(t, body, signer.Address())

	got, err := DecodeChangeRequestBody(body)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
	assert.NoError(t, signing.Verify(got, *got.Signature))
}

func TestBodyRoundTripsUnsignedMinimalDocument(t *testing.T) {
	doc := domain.CaseStudy{Email: "a@b.co", Name: "A", Title: "T", OrganizationName: "O", Industry: "I", Type: domain.StudyTypeSignal}
	body, err := RenderBody(doc)
	require.NoError(t, err)
	got, err := DecodeChangeRequestBody(body)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
	assert.Nil(t, got.URL)
	assert.Nil(t, got.Markdown)
}

func TestDecodeRejectsBodiesWithoutDocument(t *testing.T) {
	_, err := DecodeChangeRequestBody("just text")
	assert.Error(t, err)
	_, err = DecodeChangeRequestBody("```json\n{\"email\":")
	assert.Error(t, err)
}

func TestRenderFileFrontMatter(t *testing.T) {
	out, err := RenderFile(sampleDoc())
	require.NoError(t, err)
	parts := strings.SplitN(string(out), "---\n", 3)
	require.Len(t, parts, 3)
	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "Cooperative Supply: Year One!", fm.Title)
	assert.Equal(t, domain.StudyTypeInterview, fm.Type)
	assert.True(t, fm.PartOfTeam)
	assert.Equal(t, *sampleDoc().Markdown, parts[2])
}
