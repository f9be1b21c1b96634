// Package gpg provides functions to load the armored key used to sign release tags and commits.
package gpg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

var (
	ErrEmptyKeyRing = errors.New("armored key ring holds no key")
	ErrNoPrivateKey = errors.New("armored key has no private key")
)

type Options struct {
	Passphrase string
}

// FromArmored reads an armored keyring buffer and returns the first key pair, decrypted with the passphrase when one
// is given.
func FromArmored(reader io.Reader, opts *Options) (*openpgp.Entity, error) {
	entityList, err := openpgp.ReadArmoredKeyRing(reader)
	if err != nil {
		return nil, fmt.Errorf("reading armored key ring: %w", err)
	}

	if len(entityList) == 0 {
		return nil, ErrEmptyKeyRing
	}

	entity := entityList[0]

	if entity.PrivateKey == nil {
		return nil, ErrNoPrivateKey
	}

	if opts != nil && opts.Passphrase != "" && entity.PrivateKey.Encrypted {
		if err = entity.PrivateKey.Decrypt([]byte(opts.Passphrase)); err != nil {
			return nil, fmt.Errorf("decrypting private key: %w", err)
		}
	}

	return entity, nil
}

// Load reads the armored key stored at path. An empty path returns a nil entity: signing is disabled.
func Load(path string, opts *Options) (*openpgp.Entity, error) {
	if path == "" {
		return nil, nil
	}

	armoredKey, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading armored key: %w", err)
	}

	return FromArmored(bytes.NewReader(armoredKey), opts)
}
