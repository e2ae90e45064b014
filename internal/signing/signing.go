// Package signing binds case studies to wallet addresses with EIP-191
// personal_sign signatures.
package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"mutual/internal/domain"
)

var (
	ErrRejected          = errors.New("signing rejected")
	ErrUnavailable       = errors.New("signer unavailable")
	ErrSignatureMismatch = errors.New("signature does not match signer address")
)

type Kind int

const (
	Rejected Kind = iota + 1
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Rejected:
		return "rejected"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// SigningError reports why no signature was produced.
type SigningError struct {
	Kind Kind
	Err  error
}

func (e *SigningError) Error() string {
	if e.Err == nil {
		return "signing " + e.Kind.String()
	}
	return fmt.Sprintf("signing %s: %v", e.Kind, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

func (e *SigningError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return e.Kind == Rejected
	case ErrUnavailable:
		return e.Kind == Unavailable
	}
	return false
}

// WalletSigner produces personal_sign signatures for one address.
type WalletSigner interface {
	Address() string
	SignMessage(ctx context.Context, message string) ([]byte, error)
}

// Sign asks signer to sign the canonical form of doc. Errors that are not
// already a SigningError are reported as Unavailable.
func Sign(ctx context.Context, doc domain.CaseStudy, signer WalletSigner) (domain.Signature, error) {
	if signer == nil {
		return domain.Signature{}, &SigningError{Kind: Unavailable, Err: errors.New("no wallet connected")}
	}
	msg, err := Canonicalize(doc.Unsigned())
	if err != nil {
		return domain.Signature{}, &SigningError{Kind: Unavailable, Err: err}
	}
	value, err := signer.SignMessage(ctx, string(msg))
	if err != nil {
		var se *SigningError
		if errors.As(err, &se) {
			return domain.Signature{}, err
		}
		return domain.Signature{}, &SigningError{Kind: Unavailable, Err: err}
	}
	return domain.Signature{Value: value, SignerAddress: signer.Address()}, nil
}

// Recover returns the address that produced sig over doc's canonical bytes.
func Recover(doc domain.CaseStudy, sig domain.Signature) (common.Address, error) {
	msg, err := Canonicalize(doc.Unsigned())
	if err != nil {
		return common.Address{}, err
	}
	if len(sig.Value) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig.Value))
	}
	raw := make([]byte, len(sig.Value))
	copy(raw, sig.Value)
	if raw[crypto.RecoveryIDOffset] >= 27 {
		raw[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that sig was made by its SignerAddress over doc.
func Verify(doc domain.CaseStudy, sig domain.Signature) error {
	if !common.IsHexAddress(sig.SignerAddress) {
		return fmt.Errorf("%w: malformed signer address %q", ErrSignatureMismatch, sig.SignerAddress)
	}
	addr, err := Recover(doc, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if !strings.EqualFold(addr.Hex(), sig.SignerAddress) {
		return fmt.Errorf("%w: recovered %s", ErrSignatureMismatch, addr.Hex())
	}
	return nil
}
