// Package middleware содержит HTTP middleware панели прачечной.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/savelevab/laundry-panel/internal/model"
)

type contextKey string

const sessionKey contextKey = "session"

const sessionCookieName = "panel_session"

// AuthMiddleware хранит сессию вкладки в подписанном cookie и решает,
// кого пускать на защищённые и админские маршруты.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным
// секретным ключом. Пустой ключ заменяется случайным: такие сессии
// не переживают перезапуск процесса.
func NewAuthMiddleware(secret string, ttl time.Duration) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       ttl,
	}
}

type sessionClaims struct {
	Role  string `json:"role"`
	Token string `json:"token"`
	jwt.RegisteredClaims
}

// SetSessionCookie подписывает сессию и устанавливает cookie.
func (a *AuthMiddleware) SetSessionCookie(w http.ResponseWriter, sess *model.Session) error {
	now := time.Now()
	claims := sessionClaims{
		Role:  string(sess.Role),
		Token: sess.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(a.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSessionCookie удаляет cookie сессии.
func (a *AuthMiddleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromRequest извлекает сессию из cookie запроса. Повреждённый,
// просроченный или неверно подписанный cookie трактуется как отсутствие сессии.
func (a *AuthMiddleware) SessionFromRequest(r *http.Request) *model.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	role := model.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return nil
	}

	return &model.Session{
		Username: claims.Subject,
		Role:     role,
		Token:    claims.Token,
	}
}

// RequireAuth перенаправляет неаутентифицированных посетителей на страницу
// входа, запоминая исходный адрес для возврата после входа.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := a.SessionFromRequest(r)
		if sess == nil {
			a.ClearSessionCookie(w)
			http.Redirect(w, r, "/login?from="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin пускает дальше только администраторов; остальные роли
// возвращаются на общий экран панели.
func (a *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok || !sess.Role.CanManageUsers() {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext извлекает сессию текущего запроса из контекста.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*model.Session)
	return sess, ok
}
