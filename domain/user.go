package domain

import (
	"fmt"
	"strings"
)

const (
	UsernameMinLen     = 3
	UsernameMaxLen     = 20
	MinPasswordLen     = 8
	MaxUsernameChanges = 3
	MaxAvatarBytes     = 16 * 1024

	// Derived username bases are kept short so suffixed candidates stay
	// well under UsernameMaxLen.
	usernameBaseMaxLen = 15
)

// Settings represents user configurable options.
type Settings struct {
	Theme    string `json:"theme"`
	Sound    bool   `json:"sound"`
	Language string `json:"language"`
}

// User is the account record. The password hash never leaves the server.
type User struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Username        string   `json:"username"`
	PasswordHash    string   `json:"-"`
	CreatedAt       int64    `json:"createdAt"`
	UsernameChanges int      `json:"usernameChanges"`
	Settings        Settings `json:"settings"`
	Avatar          string   `json:"avatar,omitempty"`
}

// ValidUsername reports whether name satisfies the username format:
// 3-20 characters, ASCII letters, digits and underscore.
func ValidUsername(name string) bool {
	if len(name) < UsernameMinLen || len(name) > UsernameMaxLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

// ValidEmail performs a structural check, not RFC validation. Uniqueness is
// enforced elsewhere; this only rejects obviously broken input.
func ValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.IndexByte(email, ' ') >= 0 {
		return false
	}
	domainPart := email[at+1:]
	dot := strings.IndexByte(domainPart, '.')
	return dot > 0 && dot < len(domainPart)-1
}

// UsernameBase derives a username candidate from an email address: the local
// part stripped of non-alphanumerics, lowercased, padded to the minimum
// length and truncated to the base maximum.
func UsernameBase(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	var b strings.Builder
	for i := 0; i < len(local); i++ {
		c := local[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	base := b.String()
	if base == "" {
		base = "user"
	}
	for len(base) < UsernameMinLen {
		base += "0"
	}
	if len(base) > usernameBaseMaxLen {
		base = base[:usernameBaseMaxLen]
	}
	return base
}

// SuffixedCandidate appends a 4-digit numeric suffix to base. n is taken
// modulo 10000 so callers can pass any random value.
func SuffixedCandidate(base string, n int) string {
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%s%04d", base, n%10000)
}

// NormalizeIdentifier lowercases an email or username for use as a lookup key.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
