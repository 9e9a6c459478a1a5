// Package hashlock derives public swap identifiers from a private secret.
//
// Each chain checks the secret with its own native hash, so the same secret
// yields a different identifier per variant. A swap only settles when every
// side hashes byte-identical secret material; there is no fallback between
// encodings or variants.
package hashlock

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonvault/internal/swap"
)

// MaxSecretLen is the largest secret that fits in a single cell (1023 bits)
const MaxSecretLen = 127

var (
	ErrInvalidSecret = errors.New("invalid secret")
	ErrHashMismatch  = errors.New("secret does not match swap id")
)

// Variant selects the hash convention used to derive a swap id
type Variant string

const (
	// VariantSHA256 hashes the raw secret bytes with SHA-256
	VariantSHA256 Variant = "sha256"
	// VariantCellHash takes the representation hash of a cell holding the secret
	VariantCellHash Variant = "cell"
	// VariantKeccak256 hashes the raw secret bytes with Keccak-256 as EVM escrows do
	VariantKeccak256 Variant = "keccak256"
)

// ParseVariant parses a variant name
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(s)); v {
	case VariantSHA256, VariantCellHash, VariantKeccak256:
		return v, nil
	default:
		return "", fmt.Errorf("unknown hashlock variant %q", s)
	}
}

// Secret is the raw preimage of a hashlock
type Secret []byte

// NewSecret draws n random bytes
func NewSecret(n int) (Secret, error) {
	if n <= 0 || n > MaxSecretLen {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSecret, n)
	}
	s := make(Secret, n)
	if _, err := rand.Read(s); err != nil {
		return nil, fmt.Errorf("failed to read random secret: %w", err)
	}
	return s, nil
}

// ParseSecretHex decodes a hex secret, with or without 0x prefix
func ParseSecretHex(s string) (Secret, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return validate(b)
}

// SecretFromString uses the UTF-8 bytes of s as the secret. A hex-looking
// string is NOT decoded; use ParseSecretHex for that.
func SecretFromString(s string) (Secret, error) {
	return validate([]byte(s))
}

func validate(b []byte) (Secret, error) {
	if len(b) == 0 || len(b) > MaxSecretLen {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSecret, len(b))
	}
	return Secret(b), nil
}

// Hex returns the 0x-prefixed hex encoding of the secret
func (s Secret) Hex() string {
	return "0x" + hex.EncodeToString(s)
}

// DeriveSHA256 returns sha256(secret)
func DeriveSHA256(secret Secret) (swap.ID, error) {
	if _, err := validate(secret); err != nil {
		return swap.ID{}, err
	}
	return swap.ID(sha256.Sum256(secret)), nil
}

// DeriveCellHash returns the hash of SecretCell(secret)
func DeriveCellHash(secret Secret) (swap.ID, error) {
	c, err := SecretCell(secret)
	if err != nil {
		return swap.ID{}, err
	}
	var id swap.ID
	copy(id[:], c.Hash())
	return id, nil
}

// DeriveKeccak256 returns keccak256(secret)
func DeriveKeccak256(secret Secret) (swap.ID, error) {
	if _, err := validate(secret); err != nil {
		return swap.ID{}, err
	}
	var id swap.ID
	copy(id[:], crypto.Keccak256(secret))
	return id, nil
}

// Derive dispatches on variant
func Derive(v Variant, secret Secret) (swap.ID, error) {
	switch v {
	case VariantSHA256:
		return DeriveSHA256(secret)
	case VariantCellHash:
		return DeriveCellHash(secret)
	case VariantKeccak256:
		return DeriveKeccak256(secret)
	default:
		return swap.ID{}, fmt.Errorf("unknown hashlock variant %q", v)
	}
}

// Verify recomputes the id for secret under v and compares it to want
func Verify(v Variant, secret Secret, want swap.ID) error {
	got, err := Derive(v, secret)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %s variant gives %s, expected %s", ErrHashMismatch, v, got.Hex(), want.Hex())
	}
	return nil
}

// SecretCell stores the secret bytes, and nothing else, in an ordinary cell
func SecretCell(secret Secret) (*cell.Cell, error) {
	if _, err := validate(secret); err != nil {
		return nil, err
	}
	b := cell.BeginCell()
	if err := b.StoreSlice(secret, uint(len(secret)*8)); err != nil {
		return nil, fmt.Errorf("failed to store secret: %w", err)
	}
	return b.EndCell(), nil
}

// Commitment bundles every id derived from one secret
type Commitment struct {
	Secret    Secret
	SHA256    swap.ID
	CellHash  swap.ID
	Keccak256 swap.ID
}

// Commit derives all variants from the same secret bytes
func Commit(secret Secret) (*Commitment, error) {
	c := &Commitment{Secret: secret}
	var err error
	if c.SHA256, err = DeriveSHA256(secret); err != nil {
		return nil, err
	}
	if c.CellHash, err = DeriveCellHash(secret); err != nil {
		return nil, err
	}
	if c.Keccak256, err = DeriveKeccak256(secret); err != nil {
		return nil, err
	}
	return c, nil
}
