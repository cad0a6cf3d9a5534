package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/savelevab/laundry-panel/internal/backend"
	"github.com/savelevab/laundry-panel/internal/model"
	"github.com/savelevab/laundry-panel/internal/validation"
)

// UserBackend описывает операции бэкенда, используемые хранилищем учётных записей.
type UserBackend interface {
	ListUsers(ctx context.Context, token string) ([]model.User, error)
	CreateUser(ctx context.Context, token string, draft backend.UserDraft) error
	UpdateUser(ctx context.Context, token, id string, update backend.UserUpdate) (model.UserPatch, error)
	DeleteUser(ctx context.Context, token, id string) error
}

// Users кэширует список учётных записей. Изменяющие операции доступны
// только администратору и отклоняются до обращения к бэкенду.
type Users struct {
	backend UserBackend

	mu       sync.Mutex
	users    []model.User
	identity string
	loaded   bool
	gen      uint64
	inflight map[string]struct{}
	lastErr  string
}

// NewUsers создаёт хранилище учётных записей поверх клиента бэкенда.
func NewUsers(b UserBackend) *Users {
	return &Users{
		backend:  b,
		inflight: make(map[string]struct{}),
	}
}

// Err возвращает последнее человекочитаемое сообщение об ошибке хранилища.
func (s *Users) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// List возвращает кэшированный список учётных записей. Для не-администратора
// список пуст без ошибки: скрытый раздел — ожидаемое поведение, а не сбой.
func (s *Users) List(ctx context.Context, sess *model.Session) ([]model.User, error) {
	if sess == nil || !sess.Role.CanManageUsers() {
		s.mu.Lock()
		s.users = nil
		s.identity = ""
		s.loaded = false
		s.mu.Unlock()
		return nil, nil
	}

	s.mu.Lock()
	if s.loaded && s.identity == sess.Username {
		out := slices.Clone(s.users)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	return s.reload(ctx, sess)
}

func (s *Users) reload(ctx context.Context, sess *model.Session) ([]model.User, error) {
	users, err := s.backend.ListUsers(ctx, sess.Token)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.users = users
	s.identity = sess.Username
	s.loaded = true
	s.gen++
	s.lastErr = ""
	out := slices.Clone(users)
	s.mu.Unlock()

	return out, nil
}

// requireAdmin гарантирует, что мутация разрешена текущей сессии,
// не делая ни одного запроса к бэкенду при отказе.
func (s *Users) requireAdmin(sess *model.Session) error {
	if sess == nil {
		return ErrNoSession
	}
	if !sess.Role.CanManageUsers() {
		return backend.ErrForbidden
	}
	return nil
}

// Add создаёт учётную запись и перечитывает список.
func (s *Users) Add(ctx context.Context, sess *model.Session, draft backend.UserDraft) error {
	if err := s.requireAdmin(sess); err != nil {
		return err
	}
	if err := validation.ValidateUserDraft(draft.Username, draft.Password, draft.Role); err != nil {
		return err
	}
	if err := s.backend.CreateUser(ctx, sess.Token, draft); err != nil {
		return s.fail(err)
	}

	_, err := s.reload(ctx, sess)
	return err
}

// Update передаёт частичное обновление учётной записи и сливает
// возвращённые бэкендом поля в локальную запись.
func (s *Users) Update(ctx context.Context, sess *model.Session, id string, update backend.UserUpdate) error {
	if err := s.requireAdmin(sess); err != nil {
		return err
	}
	if err := s.acquire(id); err != nil {
		return err
	}
	defer s.release(id)

	s.mu.Lock()
	startGen := s.gen
	s.mu.Unlock()

	patch, err := s.backend.UpdateUser(ctx, sess.Token, id, update)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != startGen {
		return nil
	}
	for i := range s.users {
		if s.users[i].ID == id {
			patch.Apply(&s.users[i])
			break
		}
	}
	s.lastErr = ""
	return nil
}

// Remove удаляет учётную запись на бэкенде и из локального кэша.
func (s *Users) Remove(ctx context.Context, sess *model.Session, id string) error {
	if err := s.requireAdmin(sess); err != nil {
		return err
	}
	if err := s.acquire(id); err != nil {
		return err
	}
	defer s.release(id)

	if err := s.backend.DeleteUser(ctx, sess.Token, id); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = slices.DeleteFunc(s.users, func(u model.User) bool { return u.ID == id })
	s.lastErr = ""
	return nil
}

func (s *Users) acquire(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return ErrBusy
	}
	s.inflight[id] = struct{}{}
	return nil
}

func (s *Users) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

func (s *Users) fail(err error) error {
	if errors.Is(err, backend.ErrUnauthorized) {
		s.mu.Lock()
		s.lastErr = ""
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	return err
}
