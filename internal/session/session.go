package session

import (
	"net/http"

	"github.com/example/laundry-storefront/internal/internaltypes"
)

// Names are the backend cookie names the storefront reads the customer's
// session from.
type Names struct {
	Token string
	User  string
}

// Session is the customer's backend session. It is passed explicitly to every
// backend call instead of being looked up from ambient request state.
type Session struct {
	AccessToken string
	UserID      string

	names Names
}

func New(names Names, token, userID string) Session {
	return Session{AccessToken: token, UserID: userID, names: names}
}

// FromRequest reads the session from the request's cookies. Both cookies are
// required.
func FromRequest(r *http.Request, names Names) (Session, error) {
	cs := ParseCookies(r.Header.Get("Cookie"))
	tok, ok := cs.Get(names.Token)
	if !ok {
		return Session{}, internaltypes.ErrUnauthorized
	}
	uid, ok := cs.Get(names.User)
	if !ok {
		return Session{}, internaltypes.ErrUnauthorized
	}
	return New(names, tok, uid), nil
}

func (s Session) Valid() bool { return s.AccessToken != "" && s.UserID != "" }

// CookieHeader renders the cookies forwarded to the backend.
func (s Session) CookieHeader() string {
	if !s.Valid() {
		return ""
	}
	return Cookies{s.names.Token: s.AccessToken, s.names.User: s.UserID}.Header()
}
