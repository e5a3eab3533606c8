package http

import (
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

const (
	sessionCookieName = "shareme_session"
	sessionIssuer     = "shareme"
)

// Session is the identity carried by the signed session cookie.
type Session struct {
	UserID string
	Name   string
}

type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// SessionManager signs and verifies HS256 session cookies.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager constructs a session manager. Cookies are marked Secure when secure is true.
func NewSessionManager(secret string, ttl time.Duration, secure bool) (*SessionManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, eris.New("session secret is required")
	}
	if ttl <= 0 {
		return nil, eris.New("session ttl must be greater than zero")
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}, nil
}

// Issue signs a session for the user and returns the cookie to set.
func (m *SessionManager) Issue(session Session) (*stdhttp.Cookie, error) {
	if strings.TrimSpace(session.UserID) == "" {
		return nil, eris.New("session user id is required")
	}

	now := m.now()
	expires := now.Add(m.ttl)
	claims := sessionClaims{
		Name: session.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, eris.Wrap(err, "signing session token")
	}

	return &stdhttp.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: stdhttp.SameSiteLaxMode,
	}, nil
}

// Clear returns a cookie that removes the session.
func (m *SessionManager) Clear() *stdhttp.Cookie {
	return &stdhttp.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: stdhttp.SameSiteLaxMode,
	}
}

// Parse verifies a signed session value.
func (m *SessionManager) Parse(value string) (Session, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Session{}, eris.Wrap(err, "parsing session token")
	}
	if !token.Valid || claims.Subject == "" {
		return Session{}, eris.New("session token is invalid")
	}

	return Session{UserID: claims.Subject, Name: claims.Name}, nil
}

// FromRequest reads and verifies the session cookie on the request.
func (m *SessionManager) FromRequest(r *stdhttp.Request) (Session, bool) {
	if m == nil || r == nil {
		return Session{}, false
	}
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, false
	}
	session, err := m.Parse(cookie.Value)
	if err != nil {
		return Session{}, false
	}
	return session, true
}
