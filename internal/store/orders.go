// Package store содержит кэширующие хранилища панели поверх клиента бэкенда.
// Хранилище — единственный мутатор своего кэша: представления читают список
// и отправляют намерения, а состояние сходится с бэкендом здесь.
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

// Сигнальные ошибки хранилищ.
var (
	ErrNoSession = errors.New("active session required")
	ErrBusy      = errors.New("another request for this record is in flight")
)

// OrderBackend описывает операции бэкенда, используемые хранилищем заказов.
type OrderBackend interface {
	ListOrders(ctx context.Context, token string) ([]model.Order, error)
	CreateOrder(ctx context.Context, token string, draft model.OrderDraft) error
	UpdateOrder(ctx context.Context, token, id string, update backend.OrderUpdate) (model.OrderPatch, error)
	DeleteOrder(ctx context.Context, token, id string) error
}

// Orders кэширует список заказов текущей личности.
type Orders struct {
	backend OrderBackend

	mu       sync.Mutex
	orders   []model.Order
	identity string
	loaded   bool
	// gen растёт при каждой полной перезагрузке кэша; слияние частичного
	// ответа, начатое до перезагрузки, отбрасывается как устаревшее.
	gen      uint64
	inflight map[string]struct{}
	lastErr  string
}

// NewOrders создаёт хранилище заказов поверх клиента бэкенда.
func NewOrders(b OrderBackend) *Orders {
	return &Orders{
		backend:  b,
		inflight: make(map[string]struct{}),
	}
}

// Err возвращает последнее человекочитаемое сообщение об ошибке хранилища.
func (s *Orders) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// List возвращает кэшированный список заказов, перечитывая его при смене
// личности сессии. Без сессии список пуст и это не ошибка: "ещё не вошёл"
// отличается от "вошёл и заказов нет".
func (s *Orders) List(ctx context.Context, sess *model.Session) ([]model.Order, error) {
	if sess == nil {
		s.mu.Lock()
		s.orders = nil
		s.identity = ""
		s.loaded = false
		s.mu.Unlock()
		return nil, nil
	}

	s.mu.Lock()
	if s.loaded && s.identity == sess.Username {
		out := slices.Clone(s.orders)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	return s.Reload(ctx, sess)
}

// Reload принудительно перечитывает список заказов из бэкенда.
func (s *Orders) Reload(ctx context.Context, sess *model.Session) ([]model.Order, error) {
	if sess == nil {
		return nil, s.fail(ErrNoSession)
	}

	orders, err := s.backend.ListOrders(ctx, sess.Token)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.orders = orders
	s.identity = sess.Username
	s.loaded = true
	s.gen++
	s.lastErr = ""
	out := slices.Clone(orders)
	s.mu.Unlock()

	return out, nil
}

// Add проверяет черновик, создаёт заказ на бэкенде и перечитывает список:
// форма тела ответа на создание меняется от версии к версии бэкенда,
// поэтому согласованность чтения после записи достигается повторной загрузкой.
func (s *Orders) Add(ctx context.Context, sess *model.Session, draft model.OrderDraft) error {
	if sess == nil {
		return s.fail(ErrNoSession)
	}
	if err := validation.ValidateOrderDraft(draft); err != nil {
		// Ошибки валидации показываются у полей формы и в общий баннер не попадают.
		return err
	}
	if err := s.backend.CreateOrder(ctx, sess.Token, draft); err != nil {
		return s.fail(err)
	}

	_, err := s.Reload(ctx, sess)
	return err
}

// UpdateStatus меняет статус заказа и сливает возвращённые бэкендом поля
// в локальную запись, не трогая остальные записи.
func (s *Orders) UpdateStatus(ctx context.Context, sess *model.Session, id string, status model.OrderStatus) error {
	return s.update(ctx, sess, id, backend.OrderUpdate{Status: &status})
}

// UpdateNotes меняет заметку заказа по той же схеме слияния.
func (s *Orders) UpdateNotes(ctx context.Context, sess *model.Session, id, notes string) error {
	return s.update(ctx, sess, id, backend.OrderUpdate{Notes: &notes})
}

func (s *Orders) update(ctx context.Context, sess *model.Session, id string, update backend.OrderUpdate) error {
	if sess == nil {
		return s.fail(ErrNoSession)
	}
	if err := s.acquire(id); err != nil {
		return err
	}
	defer s.release(id)

	s.mu.Lock()
	startGen := s.gen
	s.mu.Unlock()

	patch, err := s.backend.UpdateOrder(ctx, sess.Token, id, update)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != startGen {
		// Кэш успели перезагрузить: свежий список уже содержит результат,
		// сливать устаревший ответ поверх него нельзя.
		return nil
	}
	for i := range s.orders {
		if s.orders[i].ID == id {
			patch.Apply(&s.orders[i])
			break
		}
	}
	s.lastErr = ""
	return nil
}

// Remove удаляет заказ на бэкенде и из локального кэша.
func (s *Orders) Remove(ctx context.Context, sess *model.Session, id string) error {
	if sess == nil {
		return s.fail(ErrNoSession)
	}
	if err := s.acquire(id); err != nil {
		return err
	}
	defer s.release(id)

	if err := s.backend.DeleteOrder(ctx, sess.Token, id); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = slices.DeleteFunc(s.orders, func(o model.Order) bool { return o.ID == id })
	s.lastErr = ""
	return nil
}

// Statistics возвращает производную сводку по статусам кэшированного списка.
func (s *Orders) Statistics() model.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats model.Statistics
	for _, o := range s.orders {
		switch o.Status {
		case model.StatusProcessing:
			stats.ProcessingCount++
		case model.StatusReady:
			stats.ReadyCount++
		}
	}
	return stats
}

// acquire резервирует запись под единственный запрос в полёте:
// повторное нажатие до ответа бэкенда отклоняется с ErrBusy.
func (s *Orders) acquire(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return ErrBusy
	}
	s.inflight[id] = struct{}{}
	return nil
}

func (s *Orders) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// fail запоминает сообщение для баннера и возвращает ошибку вызывающему.
// Ответы 401 сообщение не заполняют, а накопленное стирают: сессию
// сбрасывает HTTP-слой, и после повторного входа старый баннер не нужен.
func (s *Orders) fail(err error) error {
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
