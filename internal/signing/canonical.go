package signing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"mutual/internal/domain"
)

func documentFields(doc domain.CaseStudy) map[string]any {
	m := map[string]any{
		"email":            doc.Email,
		"name":             doc.Name,
		"title":            doc.Title,
		"organizationName": doc.OrganizationName,
		"industry":         doc.Industry,
		"partOfTeam":       doc.PartOfTeam,
		"type":             string(doc.Type),
	}
	if doc.URL != nil {
		m["url"] = *doc.URL
	}
	if doc.Markdown != nil {
		m["markdown"] = *doc.Markdown
	}
	return m
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Canonicalize returns the bytes a wallet signs: compact JSON with sorted keys,
// absent optional fields omitted and the signature excluded.
func Canonicalize(doc domain.CaseStudy) ([]byte, error) {
	b, err := encode(documentFields(doc))
	if err != nil {
		return nil, fmt.Errorf("canonicalize case study: %w", err)
	}
	return b, nil
}

// Envelope is the canonical document with its signature attached, as embedded
// in a change request.
func Envelope(doc domain.CaseStudy) ([]byte, error) {
	m := documentFields(doc)
	if doc.Signature != nil {
		m["signature"] = map[string]any{
			"signerAddress": doc.Signature.SignerAddress,
			"value":         doc.Signature.Value.String(),
		}
	}
	b, err := encode(m)
	if err != nil {
		return nil, fmt.Errorf("encode case study envelope: %w", err)
	}
	return b, nil
}

// IdempotencyKey is the hex SHA-256 of the envelope. Equal documents, signature
// included, share a key.
func IdempotencyKey(doc domain.CaseStudy) (string, error) {
	b, err := Envelope(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
