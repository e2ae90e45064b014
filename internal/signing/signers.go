package signing

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs with a local secp256k1 key.
type KeySigner struct {
	key *ecdsa.PrivateKey
}

// NewKeySigner parses a hex private key, with or without 0x.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &KeySigner{key: key}, nil
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &KeySigner{key: key}, nil
}

func (k *KeySigner) Address() string {
	return crypto.PubkeyToAddress(k.key.PublicKey).Hex()
}

// SignMessage returns a 65-byte [R || S || V] signature with V in {27, 28}.
func (k *KeySigner) SignMessage(ctx context.Context, message string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SigningError{Kind: Unavailable, Err: err}
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), k.key)
	if err != nil {
		return nil, &SigningError{Kind: Unavailable, Err: err}
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// PromptSigner asks for confirmation before delegating to Next. Anything other
// than y or yes is a rejection; a closed input means nobody is there to answer.
type PromptSigner struct {
	Next WalletSigner
	In   io.Reader
	Out  io.Writer
}

func (p *PromptSigner) Address() string { return p.Next.Address() }

func (p *PromptSigner) SignMessage(ctx context.Context, message string) ([]byte, error) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, "Sign this message with %s?\n%s\n[y/N]: ", p.Next.Address(), message)
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, &SigningError{Kind: Unavailable, Err: fmt.Errorf("read confirmation: %w", err)}
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return p.Next.SignMessage(ctx, message)
	default:
		return nil, &SigningError{Kind: Rejected, Err: fmt.Errorf("declined by user")}
	}
}
