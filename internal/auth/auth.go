// Package auth содержит способы проверки учётных данных панели.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/savelevab/laundry-panel/internal/backend"
	"github.com/savelevab/laundry-panel/internal/model"
)

// Authenticator проверяет учётные данные и возвращает сессию.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*model.Session, error)
}

// BackendAuthenticator делегирует проверку учётных данных бэкенду прачечной.
type BackendAuthenticator struct {
	client *backend.Client
}

// NewBackendAuthenticator создаёт аутентификатор поверх клиента бэкенда.
func NewBackendAuthenticator(client *backend.Client) *BackendAuthenticator {
	return &BackendAuthenticator{client: client}
}

// Login выполняет вход через POST /login бэкенда.
func (a *BackendAuthenticator) Login(ctx context.Context, username, password string) (*model.Session, error) {
	return a.client.Login(ctx, username, password)
}

type staticUser struct {
	passwordHash []byte
	role         model.Role
}

// StaticAuthenticator хранит фиксированный набор учётных записей в памяти.
// Используется в офлайн-режиме, когда вход через бэкенд отключён.
type StaticAuthenticator struct {
	users map[string]staticUser
}

// NewStaticAuthenticator создаёт хранилище со стандартными парами
// admin/admin123 и staff/staff123.
func NewStaticAuthenticator() *StaticAuthenticator {
	a := &StaticAuthenticator{users: make(map[string]staticUser)}
	a.add("admin", "admin123", model.RoleAdmin)
	a.add("staff", "staff123", model.RoleStaff)
	return a
}

func (a *StaticAuthenticator) add(username, password string, role model.Role) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	a.users[username] = staticUser{passwordHash: hash, role: role}
}

// Login сверяет пароль с bcrypt-хэшем и выдаёт сессию с локальным токеном.
// При неверной паре возвращается та же ошибка, что и от бэкенда,
// а прежнее состояние сессии не затрагивается.
func (a *StaticAuthenticator) Login(ctx context.Context, username, password string) (*model.Session, error) {
	u, ok := a.users[username]
	if !ok {
		return nil, &backend.InvalidCredentialsError{}
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return nil, &backend.InvalidCredentialsError{}
	}

	return &model.Session{
		Username: username,
		Role:     u.role,
		Token:    newOfflineToken(),
	}, nil
}

// newOfflineToken выпускает непрозрачный локальный токен для офлайн-сессии.
func newOfflineToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "offline"
	}
	return "offline-" + hex.EncodeToString(buf)
}
