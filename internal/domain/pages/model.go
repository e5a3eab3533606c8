package pages

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page is a published document addressed by its slug.
type Page struct {
	Slug      string
	Title     string
	Content   string
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
	EditToken EditToken
	Views     int64
	OwnerID   OwnerID
}

// Owned reports whether the page was created by an authenticated identity.
func (p *Page) Owned() bool {
	return p != nil && !p.OwnerID.IsZero()
}

// Summary is the listing view of a page. It never carries the edit token.
type Summary struct {
	Slug      string
	Title     string
	Author    string
	Views     int64
	CreatedAt time.Time
}

// Summarize strips the page down to its listing fields.
func (p *Page) Summarize() Summary {
	return Summary{
		Slug:      p.Slug,
		Title:     p.Title,
		Author:    p.Author,
		Views:     p.Views,
		CreatedAt: p.CreatedAt,
	}
}

// PageUpdate carries the fields to merge into an existing page. Nil fields are left untouched.
type PageUpdate struct {
	Title   *string
	Content *string
	Author  *string
	Views   *int64
}

// Empty reports whether the update would change nothing.
func (u PageUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Author == nil && u.Views == nil
}

// OwnerID identifies an authenticated creator (the bot user id).
type OwnerID string

// IsZero reports whether no identity is present.
func (o OwnerID) IsZero() bool {
	return strings.TrimSpace(string(o)) == ""
}

func (o OwnerID) String() string {
	return string(o)
}

// EditToken is the capability secret handed out when a page is created.
// Its String and MarshalText forms are redacted so it cannot leak into logs.
type EditToken struct {
	value string
}

const redactedToken = "[redacted]"

// NewEditToken generates a fresh 32 character token.
func NewEditToken() EditToken {
	return EditToken{value: strings.ReplaceAll(uuid.NewString(), "-", "")}
}

// ParseEditToken wraps a token supplied by a client or loaded from the store.
func ParseEditToken(raw string) EditToken {
	return EditToken{value: strings.TrimSpace(raw)}
}

// Reveal returns the raw secret. Call only when handing the token to its holder or the store.
func (t EditToken) Reveal() string {
	return t.value
}

// IsZero reports whether the token is empty.
func (t EditToken) IsZero() bool {
	return t.value == ""
}

// Equal compares tokens in constant time. Empty tokens never match.
func (t EditToken) Equal(other EditToken) bool {
	if t.IsZero() || other.IsZero() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t.value), []byte(other.value)) == 1
}

func (t EditToken) String() string {
	if t.IsZero() {
		return ""
	}
	return redactedToken
}

// MarshalText keeps the token out of structured log output.
func (t EditToken) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
