package validator

import (
	"encoding/json"
	"strings"
	"testing"

	"mutual/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() domain.RawCaseStudy {
	return domain.RawCaseStudy{
		Email:            "ada@example.com",
		Name:             "Ada",
		Title:            "Cooperative supply",
		OrganizationName: "Mutual",
		Industry:         "Logistics",
		PartOfTeam:       domain.BoolTrue,
		Type:             domain.StudyTypeResearch,
	}
}

func TestValidateNormalizes(t *testing.T) {
	raw := validRaw()
	raw.URL = "https://example.com/study"
	raw.Markdown = "# Findings"
	doc, err := Validate(raw)
	require.NoError(t, err)
	assert.True(t, doc.PartOfTeam)
	assert.Equal(t, domain.StudyTypeResearch, doc.Type)
	require.NotNil(t, doc.URL)
	assert.Equal(t, "https://example.com/study", *doc.URL)
	require.NotNil(t, doc.Markdown)
	assert.Equal(t, "# Findings", *doc.Markdown)
}

func TestEmptyOptionalFieldsBecomeAbsent(t *testing.T) {
	raw := validRaw()
	raw.URL = ""
	raw.Markdown = ""
	doc, err := Validate(raw)
	require.NoError(t, err)
	assert.Nil(t, doc.URL)
	assert.Nil(t, doc.Markdown)
	assert.NoError(t, Revalidate(doc))
}

func TestWhitespaceMarkdownIsKept(t *testing.T) {
	raw := validRaw()
	raw.Markdown = "   \n"
	doc, err := Validate(raw)
	require.NoError(t, err)
	require.NotNil(t, doc.Markdown)
	assert.Equal(t, "   \n", *doc.Markdown)
}

func TestTypeDefaultsToSignal(t *testing.T) {
	raw := validRaw()
	raw.Type = ""
	doc, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.StudyTypeSignal, doc.Type)
}

func TestMissingFieldsAreAllReported(t *testing.T) {
	_, err := Validate(domain.RawCaseStudy{})
	ve, ok := AsErrors(err)
	require.True(t, ok, "expected field errors, got %v", err)
	assert.Equal(t, []string{"email", "name", "title", "organizationName", "industry", "partOfTeam"}, ve.Fields())
	assert.Equal(t, CodeRequired, ve.For("email")[0].Code)
	assert.Equal(t, CodeInvalidPartOfTeam, ve.For("partOfTeam")[0].Code)
}

func TestShapeRules(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(r *domain.RawCaseStudy)
		field string
		code  string
	}{
		{"bad email", func(r *domain.RawCaseStudy) { r.Email = "not-an-email" }, "email", CodeInvalidEmail},
		{"bad url", func(r *domain.RawCaseStudy) { r.URL = "not a url" }, "url", CodeInvalidURL},
		{"non http url", func(r *domain.RawCaseStudy) { r.URL = "ftp://example.com/file" }, "url", CodeInvalidURL},
		{"yes is not a boolean", func(r *domain.RawCaseStudy) { r.PartOfTeam = "yes" }, "partOfTeam", CodeInvalidPartOfTeam},
		{"unknown type", func(r *domain.RawCaseStudy) { r.Type = "Essay" }, "type", CodeInvalidType},
		{"bad signer", func(r *domain.RawCaseStudy) {
			r.Signature = &domain.Signature{Value: make([]byte, 65), SignerAddress: "0x123"}
		}, "signature", CodeInvalidSignature},
		{"short signature", func(r *domain.RawCaseStudy) {
			r.Signature = &domain.Signature{Value: []byte{1, 2}, SignerAddress: "0x" + strings.Repeat("ab", 20)}
		}, "signature", CodeInvalidSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw()
			tc.edit(&raw)
			_, err := Validate(raw)
			ve, ok := AsErrors(err)
			require.True(t, ok, "expected field errors, got %v", err)
			require.Len(t, ve, 1)
			assert.Equal(t, tc.field, ve[0].Field)
			assert.Equal(t, tc.code, ve[0].Code)
		})
	}
}

func TestPartOfTeamAcceptsJSONBooleans(t *testing.T) {
	var raw domain.RawCaseStudy
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@b.co","name":"A","title":"T","organizationName":"O","industry":"I","partOfTeam":false}`), &raw))
	doc, err := Validate(raw)
	require.NoError(t, err)
	assert.False(t, doc.PartOfTeam)

	require.NoError(t, json.Unmarshal([]byte(`{"partOfTeam":1}`), &raw))
	_, err = Validate(raw)
	ve, ok := AsErrors(err)
	require.True(t, ok)
	assert.Len(t, ve.For("partOfTeam"), 1)
}

func TestRevalidateRejectsEmptyOptional(t *testing.T) {
	doc, err := Validate(validRaw())
	require.NoError(t, err)
	empty := ""
	doc.URL = &empty
	assert.Error(t, Revalidate(doc))
}
