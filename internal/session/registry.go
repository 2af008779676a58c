// The session package tracks which connections are authenticated under
// which username and handles the login, register, and logout requests.
package session

import (
	"sync"

	"github.com/sethcallen/harbinger/internal/client"
)

// Registry is the reverse lookup from username to connection for every
// logged-in session. At most one session may hold a username at a time.
type Registry struct {
	mu     sync.RWMutex
	online map[string]*client.Client
}

func NewRegistry() *Registry {
	return &Registry{online: make(map[string]*client.Client)}
}

// Bind installs the username -> connection mapping for a successful login.
// It returns false if the username is already bound to another session.
func (r *Registry) Bind(username string, c *client.Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.online[username]; taken {
		return false
	}
	r.online[username] = c
	return true
}

// Unbind removes the mapping installed by Bind. Only the session holding
// the username may release it.
func (r *Registry) Unbind(username string, c *client.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.online[username]; ok && bound == c {
		delete(r.online, username)
	}
}

// Lookup returns the connection a username is logged in on.
func (r *Registry) Lookup(username string) (*client.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.online[username]
	return c, ok
}

// IsOnline reports whether the username has a logged-in session.
func (r *Registry) IsOnline(username string) bool {
	_, ok := r.Lookup(username)
	return ok
}

// Count returns the number of logged-in sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.online)
}
