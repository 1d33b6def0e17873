// Package session keeps the logged-in user in a signed cookie.
//
// The cookie holds an HS256 token whose subject is the user id and which
// carries the display name. Nothing is stored server side, so clearing the
// cookie is all logout has to do.
package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/o2a/bapsim/config"
)

const (
	CookieName = "bapsim_session"
	defaultTTL = 24 * time.Hour
)

// ErrNoSession is returned when the request carries no valid session.
var ErrNoSession = errors.New("no session")

// Session is the authenticated user attached to a request.
type Session struct {
	UserID    string
	UserName  string
	ExpiresAt time.Time
}

type claims struct {
	UserName string `json:"user_name"`
	jwt.RegisteredClaims
}

// Manager issues, reads and clears session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(cfg config.SessionConfig) (*Manager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("session secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		secure: cfg.SecureCookie,
		now:    time.Now,
	}, nil
}

// Issue starts a session for the user and writes the cookie.
func (m *Manager) Issue(w http.ResponseWriter, userID, userName string) (Session, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserName: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return Session{UserID: userID, UserName: userName, ExpiresAt: expires}, nil
}

// Load returns the session carried by the request, or ErrNoSession.
func (m *Manager) Load(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return Session{}, ErrNoSession
	}

	var parsed claims
	token, err := jwt.ParseWithClaims(cookie.Value, &parsed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Session{}, ErrNoSession
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Session{}, ErrNoSession
	}

	session := Session{UserID: parsed.Subject, UserName: parsed.UserName}
	if parsed.ExpiresAt != nil {
		session.ExpiresAt = parsed.ExpiresAt.Time
	}
	return session, nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
