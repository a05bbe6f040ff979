// Package securefile persists the session token in a single owner-only file,
// sealed with NaCl secretbox under a key derived from a device secret.
//
// File layout: version(1) | salt(16) | nonce(24) | sealed token.
package securefile

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
)

const (
	formatVersion = 1
	saltSize      = 16
	nonceSize     = 24
	keySize       = 32
	headerSize    = 1 + saltSize + nonceSize

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	ErrNoSecret   = errors.New("securefile: secret is required")
	errCorrupted  = errors.New("token file is corrupted or was sealed with another secret")
	errBadVersion = errors.New("unsupported token file version")
)

// Store implements ports.SessionStore on the local filesystem.
type Store struct {
	path   string
	secret []byte
}

var _ ports.SessionStore = (*Store)(nil)

// New returns a Store writing to path. The secret never touches disk.
func New(path, secret string) (*Store, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if path == "" {
		return nil, errors.New("securefile: path is required")
	}
	return &Store{path: path, secret: []byte(secret)}, nil
}

func (s *Store) Get(_ context.Context) (string, bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.StorageError{Op: "get", Err: err}
	}

	token, err := s.open(raw)
	if err != nil {
		return "", false, &domain.StorageError{Op: "get", Err: err}
	}
	return token, true, nil
}

func (s *Store) Set(_ context.Context, token string) error {
	sealed, err := s.seal(token)
	if err != nil {
		return &domain.StorageError{Op: "set", Err: err}
	}
	if err := writeAtomic(s.path, sealed); err != nil {
		return &domain.StorageError{Op: "set", Err: err}
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.StorageError{Op: "clear", Err: err}
	}
	return nil
}

func (s *Store) key(salt []byte) *[keySize]byte {
	var key [keySize]byte
	copy(key[:], argon2.IDKey(s.secret, salt, argonTime, argonMemory, argonThreads, keySize))
	return &key
}

func (s *Store) seal(token string) ([]byte, error) {
	header := make([]byte, headerSize)
	header[0] = formatVersion
	if _, err := io.ReadFull(rand.Reader, header[1:]); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], header[1+saltSize:])

	return secretbox.Seal(header, []byte(token), &nonce, s.key(header[1:1+saltSize])), nil
}

func (s *Store) open(raw []byte) (string, error) {
	if len(raw) < headerSize+secretbox.Overhead {
		return "", errCorrupted
	}
	if raw[0] != formatVersion {
		return "", errBadVersion
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[1+saltSize:headerSize])

	plain, ok := secretbox.Open(nil, raw[headerSize:], &nonce, s.key(raw[1:1+saltSize]))
	if !ok {
		return "", errCorrupted
	}
	return string(plain), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
