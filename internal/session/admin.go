package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/laundry-storefront/internal/db"
	"github.com/example/laundry-storefront/internal/internaltypes"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminCookieName = "storefront_admin"
	adminMaxAge     = 12 * time.Hour
)

// AdminStore manages the local operator accounts of the admin console and
// their signed session cookie.
type AdminStore struct {
	sc *securecookie.SecureCookie
	db *db.DB
}

type Admin struct {
	ID       int64
	Username string
}

func NewAdminStore(d *db.DB, hashKey, blockKey []byte) *AdminStore {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(adminMaxAge.Seconds()))
	return &AdminStore{sc: sc, db: d}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *AdminStore) CreateAdmin(ctx context.Context, username, password string) error {
	if username == "" || len(password) < 8 {
		return errors.New("username required and password must be at least 8 characters")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `INSERT INTO admins(username, password_bcrypt) VALUES ($1,$2)`, username, hash); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func (s *AdminStore) Authenticate(ctx context.Context, username, password string) (Admin, error) {
	var a Admin
	var hash string
	err := s.db.QueryRow(ctx, `SELECT id, username, password_bcrypt FROM admins WHERE username=$1`, username).Scan(&a.ID, &a.Username, &hash)
	if err != nil {
		if db.IsNotFound(err) {
			return Admin{}, internaltypes.ErrUnauthorized
		}
		return Admin{}, db.WrapNotFound(err)
	}
	if !CheckPassword(hash, password) {
		return Admin{}, internaltypes.ErrUnauthorized
	}
	return a, nil
}

type adminCookie struct {
	ID       int64  `json:"id"`
	Username string `json:"u"`
}

func (s *AdminStore) SetSession(w http.ResponseWriter, r *http.Request, a Admin) error {
	encoded, err := s.sc.Encode(adminCookieName, adminCookie{ID: a.ID, Username: a.Username})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(adminMaxAge.Seconds()),
	})
	return nil
}

func (s *AdminStore) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (s *AdminStore) GetSession(r *http.Request) (Admin, bool) {
	c, err := r.Cookie(adminCookieName)
	if err != nil {
		return Admin{}, false
	}
	var v adminCookie
	if err := s.sc.Decode(adminCookieName, c.Value, &v); err != nil {
		return Admin{}, false
	}
	if v.ID <= 0 {
		return Admin{}, false
	}
	return Admin{ID: v.ID, Username: v.Username}, true
}
