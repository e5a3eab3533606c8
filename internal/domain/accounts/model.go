package accounts

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var (
	// ErrUserNotFound is returned when no bot user exists for an id.
	ErrUserNotFound = eris.New("user not found")
	// ErrInvalidLoginToken is returned for unknown or expired login tokens.
	ErrInvalidLoginToken = eris.New("invalid or expired login token")
)

// User is a chat-bot user who can log into the website.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Profile is the sender information the bot receives with a start command.
type Profile struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
}

// FullName picks the best display name available on the profile.
func (p Profile) FullName() string {
	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)

	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case strings.TrimSpace(p.Username) != "":
		return strings.TrimSpace(p.Username)
	default:
		return "Anonymous User"
	}
}

// LoginToken lets the holder sign in as UserID until ExpiresAt.
type LoginToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Account is the summary the bot shows after a start command.
type Account struct {
	User      User
	PostCount int
	LoginURL  string
}
