// Package signing produces the SHA256SUMS file published with a release and
// its detached OpenPGP signature.
package signing

import (
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

// Asset names of the checksum file and its signature.
const (
	ChecksumsName = "SHA256SUMS"
	SignatureName = "SHA256SUMS.asc"
)

const maxKeyFileSize = 1024 * 1024

var (
	ErrEmptyKey        = errors.New("signing key cannot be empty")
	ErrNotPrivateKey   = errors.New("signing key is not a private key")
	ErrWrongPassphrase = errors.New("failed to unlock signing key")
)

// Signer makes armored detached signatures with one private key.
type Signer struct {
	keyRing     *crypto.KeyRing
	fingerprint string
}

// NewSigner parses an armored private key, unlocking it with passphrase when
// the key is protected.
func NewSigner(armoredKey string, passphrase []byte) (*Signer, error) {
	if armoredKey == "" {
		return nil, ErrEmptyKey
	}

	key, err := crypto.NewKeyFromArmored(armoredKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PGP key: %w", err)
	}
	if !key.IsPrivate() {
		return nil, ErrNotPrivateKey
	}

	locked, err := key.IsLocked()
	if err != nil {
		return nil, fmt.Errorf("failed to inspect PGP key: %w", err)
	}
	if locked {
		key, err = key.Unlock(passphrase)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWrongPassphrase, err)
		}
	}

	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyring: %w", err)
	}

	return &Signer{
		keyRing:     keyRing,
		fingerprint: key.GetFingerprint(),
	}, nil
}

// LoadSigner reads an armored private key from path.
func LoadSigner(path string, passphrase []byte) (*Signer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat signing key: %w", err)
	}
	if info.Size() > maxKeyFileSize {
		return nil, fmt.Errorf("signing key %s is too large (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return NewSigner(string(data), passphrase)
}

// Fingerprint returns the fingerprint of the signing key.
func (s *Signer) Fingerprint() string {
	return s.fingerprint
}

// Sign returns an armored detached signature of data.
func (s *Signer) Sign(data []byte) (string, error) {
	signature, err := s.keyRing.SignDetached(crypto.NewPlainMessage(data))
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}

	armored, err := signature.GetArmored()
	if err != nil {
		return "", fmt.Errorf("failed to armor signature: %w", err)
	}
	return armored, nil
}

// Verify checks an armored detached signature of data against an armored
// public key.
func Verify(armoredPublicKey string, data []byte, armoredSignature string) error {
	key, err := crypto.NewKeyFromArmored(armoredPublicKey)
	if err != nil {
		return fmt.Errorf("failed to parse PGP key: %w", err)
	}
	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return fmt.Errorf("failed to create keyring: %w", err)
	}

	signature, err := crypto.NewPGPSignatureFromArmored(armoredSignature)
	if err != nil {
		return fmt.Errorf("failed to parse signature: %w", err)
	}

	if err := keyRing.VerifyDetached(crypto.NewPlainMessage(data), signature, crypto.GetUnixTime()); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
