package sshview

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// hostKeyComment is embedded in the PEM header of a freshly generated
// viewer host key, purely informational.
const hostKeyComment = "botty-viewer"

// EnsureHostKey loads the ed25519 signer at path, generating and persisting
// a new one at 0600 on first run. The viewer has no other identity: the
// same key is presented to every client for the life of the directory.
func EnsureHostKey(path string) (ssh.Signer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ssh host key path is required")
	}

	signer, err := loadHostKey(path)
	if err == nil {
		return signer, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return generateHostKey(path)
}

func loadHostKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse host key %s: %w", path, err)
	}
	return signer, nil
}

func generateHostKey(path string) (ssh.Signer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create host key dir: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, hostKeyComment)
	if err != nil {
		return nil, fmt.Errorf("marshal host key: %w", err)
	}
	if err := writePEM(path, block); err != nil {
		return nil, err
	}
	return ssh.NewSignerFromKey(priv)
}

// writePEM writes block to path atomically-ish via O_EXCL: two servers
// racing to bootstrap the same host key path fail rather than one silently
// overwriting the other's key mid-write.
func writePEM(path string, block *pem.Block) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("write host key: %w", err)
	}
	defer file.Close()
	if err := pem.Encode(file, block); err != nil {
		return fmt.Errorf("encode host key: %w", err)
	}
	return nil
}
