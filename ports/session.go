package ports

import (
	"net/http"

	"github.com/layer-3/basetips/core"
)

// SessionStore loads and persists the per-client session record
type SessionStore interface {
	// Load returns the session carried by the request. A missing or
	// unreadable cookie yields an empty session and core.ErrNoSession.
	Load(r *http.Request) (*core.Session, error)
	Save(w http.ResponseWriter, s *core.Session) error
	Clear(w http.ResponseWriter)
}
