// Package cookie persists sessions in an encrypted, authenticated cookie.
package cookie

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/ports"
	"golang.org/x/crypto/hkdf"
)

// MinPasswordLength matches the 32 character floor of sealed-cookie schemes
const MinPasswordLength = 32

const (
	DefaultName   = "basetips_siwe"
	DefaultMaxAge = 14 * 24 * time.Hour
)

var _ ports.SessionStore = &Store{}

// Options holds options for Store
type Options struct {
	Name     string
	Password string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
}

// Store implements ports.SessionStore with a single cookie holding the
// AES-256 encrypted, HMAC-SHA256 signed session JSON.
type Store struct {
	name   string
	domain string
	maxAge time.Duration
	secure bool
	codec  *securecookie.SecureCookie
}

// NewStore derives the cookie keys from opts.Password
func NewStore(opts Options) (*Store, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if len(opts.Password) < MinPasswordLength {
		return nil, fmt.Errorf("session password must be at least %d characters", MinPasswordLength)
	}

	hashKey, err := deriveKey(opts.Password, "session-hash", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(opts.Password, "session-block", 32)
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(opts.MaxAge / time.Second))

	return &Store{
		name:   opts.Name,
		domain: opts.Domain,
		maxAge: opts.MaxAge,
		secure: opts.Secure,
		codec:  codec,
	}, nil
}

func deriveKey(password, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	r := hkdf.New(sha256.New, []byte(password), []byte("basetips"), []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", info, err)
	}
	return key, nil
}

// Load returns the session from the request cookie. The returned session is
// never nil, so handlers can mutate and save it even when err is non-nil.
func (s *Store) Load(r *http.Request) (*core.Session, error) {
	c, err := r.Cookie(s.name)
	if err != nil {
		return &core.Session{}, core.ErrNoSession
	}

	session := &core.Session{}
	if err := s.codec.Decode(s.name, c.Value, session); err != nil {
		return &core.Session{}, errors.Join(core.ErrNoSession, err)
	}

	return session, nil
}

// Save writes the session cookie
func (s *Store) Save(w http.ResponseWriter, session *core.Session) error {
	encoded, err := s.codec.Encode(s.name, session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	c := s.makeCookie(encoded)
	c.MaxAge = int(s.maxAge / time.Second)
	c.Expires = time.Now().Add(s.maxAge)
	http.SetCookie(w, c)

	return nil
}

// Clear expires the session cookie
func (s *Store) Clear(w http.ResponseWriter) {
	c := s.makeCookie("")
	c.MaxAge = -1
	c.Expires = time.Now().Add(-time.Hour)
	http.SetCookie(w, c)
}

// MaxAge is how long a session cookie stays valid
func (s *Store) MaxAge() time.Duration {
	return s.maxAge
}

func (s *Store) makeCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		Domain:   s.domain,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
