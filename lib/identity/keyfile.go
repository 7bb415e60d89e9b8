// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// Keypair is an identity together with its signing key.
type Keypair struct {
	identity Identity
	private  ed25519.PrivateKey
}

// Generate creates a fresh keypair from crypto/rand.
func Generate() (*Keypair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	keypair := &Keypair{private: private}
	copy(keypair.identity[:], public)
	return keypair, nil
}

// FromPrivateKey wraps an existing Ed25519 private key.
func FromPrivateKey(private ed25519.PrivateKey) (*Keypair, error) {
	if len(private) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is %d bytes, want %d", len(private), ed25519.PrivateKeySize)
	}
	keypair := &Keypair{private: private}
	copy(keypair.identity[:], private.Public().(ed25519.PublicKey))
	return keypair, nil
}

// Identity returns the public half.
func (k *Keypair) Identity() Identity { return k.identity }

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// keyfileContent is the on-disk keyfile shape. Comments and trailing
// commas are allowed on read; WriteKeyfile emits plain JSON.
type keyfileContent struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// LoadKeyfile reads a JSONC keyfile and verifies that the public key
// matches the private key.
func LoadKeyfile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var content keyfileContent
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&content); err != nil {
		return nil, fmt.Errorf("parsing keyfile %s: %w", path, err)
	}

	privateBytes, err := base64.StdEncoding.DecodeString(content.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("keyfile %s: private_key: %w", path, err)
	}
	keypair, err := FromPrivateKey(ed25519.PrivateKey(privateBytes))
	if err != nil {
		return nil, fmt.Errorf("keyfile %s: %w", path, err)
	}

	if content.PublicKey != "" {
		declared, err := ParseIdentity(content.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("keyfile %s: public_key: %w", path, err)
		}
		if declared != keypair.identity {
			return nil, fmt.Errorf("keyfile %s: public_key does not match private_key", path)
		}
	}
	return keypair, nil
}

// WriteKeyfile writes keypair to path with mode 0600, creating parent
// directories. An existing file is replaced atomically.
func WriteKeyfile(path string, keypair *Keypair) error {
	content := keyfileContent{
		PublicKey:  keypair.identity.Base64(),
		PrivateKey: base64.StdEncoding.EncodeToString(keypair.private),
	}
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating keyfile directory: %w", err)
	}
	temporary, err := os.CreateTemp(filepath.Dir(path), ".keyfile-*")
	if err != nil {
		return fmt.Errorf("creating keyfile: %w", err)
	}
	defer os.Remove(temporary.Name())

	if err := temporary.Chmod(0o600); err != nil {
		temporary.Close()
		return fmt.Errorf("restricting keyfile permissions: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing keyfile: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("writing keyfile: %w", err)
	}
	return os.Rename(temporary.Name(), path)
}

// LoadOrGenerateKeyfile loads the keyfile at path, or generates a new
// keypair and writes it there if the file does not exist. The boolean
// reports whether a new keypair was created. Any other read or parse
// error is returned; a corrupt keyfile is never silently replaced.
func LoadOrGenerateKeyfile(path string) (*Keypair, bool, error) {
	keypair, err := LoadKeyfile(path)
	if err == nil {
		return keypair, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	keypair, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := WriteKeyfile(path, keypair); err != nil {
		return nil, false, fmt.Errorf("saving generated keyfile: %w", err)
	}
	return keypair, true, nil
}
