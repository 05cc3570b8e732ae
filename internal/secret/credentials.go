// Package secret holds third-party login material in memory only.
// Credentials never implement json.Marshaler or fmt.Stringer with their
// contents; every holder is expected to defer Wipe.
package secret

import "sync"

// Credentials is a login pair for an external site.
type Credentials struct {
	mu       sync.Mutex
	login    []byte
	password []byte
}

// New copies login and password into a fresh Credentials value.
func New(login, password string) *Credentials {
	return &Credentials{
		login:    []byte(login),
		password: []byte(password),
	}
}

// Login returns a copy of the login.
func (c *Credentials) Login() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.login)
}

// Password returns a copy of the password.
func (c *Credentials) Password() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.password)
}

// Empty reports whether either half is missing or the value was wiped.
func (c *Credentials) Empty() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.login) == 0 || len(c.password) == 0
}

// Clone returns an independent copy that must be wiped separately.
func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Credentials{
		login:    append([]byte(nil), c.login...),
		password: append([]byte(nil), c.password...),
	}
}

// Wipe zeroes the backing buffers. It is safe to call more than once.
func (c *Credentials) Wipe() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	zero(c.login)
	zero(c.password)
	c.login = nil
	c.password = nil
}

// String never reveals the contents.
func (c *Credentials) String() string {
	return "[REDACTED]"
}

// GoString keeps %#v from printing the buffers.
func (c *Credentials) GoString() string {
	return "secret.Credentials{[REDACTED]}"
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
