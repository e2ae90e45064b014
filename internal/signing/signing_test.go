package signing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"mutual/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() domain.CaseStudy {
	md := "<b>body</b> & more"
	return domain.CaseStudy{
		Email:            "a@b.co",
		Name:             "N",
		Title:            "T",
		OrganizationName: "O",
		Industry:         "I",
		PartOfTeam:       true,
		Markdown:         &md,
		Type:             domain.StudyTypeSignal,
	}
}

func TestCanonicalizeIsSortedAndCompact(t *testing.T) {
	b, err := Canonicalize(sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, `{"email":"a@b.co","industry":"I","markdown":"<b>body</b> & more","name":"N","organizationName":"O","partOfTeam":true,"title":"T","type":"Signal"}`, string(b))
}

func TestCanonicalizeExcludesSignature(t *testing.T) {
	doc := sampleDoc()
	unsigned, err := Canonicalize(doc)
	require.NoError(t, err)
	doc.Signature = &domain.Signature{Value: []byte{1}, SignerAddress: "0x0"}
	signed, err := Canonicalize(doc)
	require.NoError(t, err)
	assert.Equal(t, unsigned, signed)
}

func TestIdempotencyKey(t *testing.T) {
	a, err := IdempotencyKey(sampleDoc())
	require.NoError(t, err)
	b, err := IdempotencyKey(sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := sampleDoc()
	changed.Industry = "Energy"
	c, err := IdempotencyKey(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSignAndVerify(t *testing.T) {
	signer, err := GenerateKeySigner()
	require.NoError(t, err)
	doc := sampleDoc()

	sig, err := Sign(context.Background(), doc, signer)
	require.NoError(t, err)
	require.Len(t, sig.Value, 65)
	assert.Contains(t, []byte{27, 28}, sig.Value[64])
	assert.Equal(t, signer.Address(), sig.SignerAddress)

	require.NoError(t, Verify(doc, sig))

	lower := sig
	lower.SignerAddress = strings.ToLower(sig.SignerAddress)
	assert.NoError(t, Verify(doc, lower), "address comparison is case-insensitive")

	tampered := doc
	tampered.Title = "Other"
	assert.ErrorIs(t, Verify(tampered, sig), ErrSignatureMismatch)
}

func TestKeySignerFromHex(t *testing.T) {
	signer, err := NewKeySigner("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", signer.Address())

	_, err = NewKeySigner("zz")
	assert.Error(t, err)
}

func TestPromptSigner(t *testing.T) {
	key, err := GenerateKeySigner()
	require.NoError(t, err)
	ctx := context.Background()

	var out bytes.Buffer
	yes := &PromptSigner{Next: key, In: strings.NewReader("yes\n"), Out: &out}
	sig, err := Sign(ctx, sampleDoc(), yes)
	require.NoError(t, err)
	assert.NoError(t, Verify(sampleDoc(), sig))
	assert.Contains(t, out.String(), key.Address())

	no := &PromptSigner{Next: key, In: strings.NewReader("n\n")}
	_, err = Sign(ctx, sampleDoc(), no)
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, errors.Is(err, ErrUnavailable))

	closed := &PromptSigner{Next: key, In: strings.NewReader("")}
	_, err = Sign(ctx, sampleDoc(), closed)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSignWithoutWallet(t *testing.T) {
	_, err := Sign(context.Background(), sampleDoc(), nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

type failingSigner struct{}

func (failingSigner) Address() string { return "0x0000000000000000000000000000000000000000" }
func (failingSigner) SignMessage(context.Context, string) ([]byte, error) {
	return nil, errors.New("wallet disconnected")
}

func TestSignWrapsForeignErrorsAsUnavailable(t *testing.T) {
	_, err := Sign(context.Background(), sampleDoc(), failingSigner{})
	var se *SigningError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Unavailable, se.Kind)
}
