// Package storage provides a key-addressed blob store on local disk with
// time-limited signed access links. Keys are opaque random names chosen by
// the caller at creation time; an assigned key never changes, re-uploading
// to an existing key overwrites the bytes in place.
package storage

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that could escape the store directory.
var ErrInvalidKey = errors.New("storage: invalid object key")

// downloadAudience marks link tokens so they can never pass for login
// tokens signed under the same key, and vice versa.
const downloadAudience = "download"

// Store manages blobs under a single directory and signs download links.
type Store struct {
	dir     string
	baseURL string
	secret  []byte
	ttl     time.Duration
}

// New creates a Store rooted at dir, creating it if missing. baseURL is the
// externally reachable prefix signed links are built on; ttl is the default
// link lifetime.
func New(dir, baseURL, secret string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create data dir %s: %w", dir, err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		ttl:     ttl,
	}, nil
}

// DefaultTTL returns the configured signed link lifetime.
func (s *Store) DefaultTTL() time.Duration { return s.ttl }

// RandomKey generates a collision-free object key preserving the extension
// of the original filename.
func RandomKey(originalName string) string {
	ext := filepath.Ext(filepath.Base(originalName))
	return uuid.NewString() + ext
}

func (s *Store) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, key), nil
}

// Exists reports whether an object with the given key is present.
func (s *Store) Exists(key string) bool {
	p, err := s.path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Upload writes the object, overwriting any previous content under the same
// key. The write goes through a temp file and an atomic rename so readers
// never observe partial content.
func (s *Store) Upload(key string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	tmp := p + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("storage: write object %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: close object %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: rename object %s: %w", key, err)
	}
	return nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete object %s: %w", key, err)
	}
	return nil
}

// Open opens the object for reading. The caller must close the file.
func (s *Store) Open(key string) (*os.File, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// SignedURL issues a time-limited link granting read access to the object.
// The link embeds an HS256 token bound to the key; it is never persisted
// and is recomputed on every read.
func (s *Store) SignedURL(key string, ttl time.Duration) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", err
	}
	claims := jwt.RegisteredClaims{
		Subject:   key,
		Audience:  jwt.ClaimStrings{downloadAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/files/%s?token=%s", s.baseURL, url.PathEscape(key), url.QueryEscape(token)), nil
}

// VerifyToken validates a signed link token and returns the object key it
// grants access to.
func (s *Store) VerifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithAudience(downloadAudience))
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid link token")
	}
	return claims.Subject, nil
}

// ResolveLink checks object existence and, if present, issues a signed URL
// with the default lifetime. Missing objects yield ok=false and no link.
func (s *Store) ResolveLink(key string) (string, bool) {
	if key == "" || !s.Exists(key) {
		return "", false
	}
	link, err := s.SignedURL(key, s.ttl)
	if err != nil {
		return "", false
	}
	return link, true
}
