package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/savelevab/laundry-panel/internal/backend"
	"github.com/savelevab/laundry-panel/internal/model"
	"github.com/savelevab/laundry-panel/internal/validation"
)

type stubOrderBackend struct {
	listResp  []model.Order
	listErr   error
	listCalls int

	createErr   error
	createCalls int

	updatePatch model.OrderPatch
	updateErr   error
	updateCalls int
	// Если заданы, UpdateOrder сигналит о старте и ждёт разрешения продолжить.
	updateStarted chan struct{}
	updateRelease chan struct{}

	deleteErr   error
	deleteCalls int
}

func (b *stubOrderBackend) ListOrders(ctx context.Context, token string) ([]model.Order, error) {
	b.listCalls++
	return b.listResp, b.listErr
}

func (b *stubOrderBackend) CreateOrder(ctx context.Context, token string, draft model.OrderDraft) error {
	b.createCalls++
	return b.createErr
}

func (b *stubOrderBackend) UpdateOrder(ctx context.Context, token, id string, update backend.OrderUpdate) (model.OrderPatch, error) {
	b.updateCalls++
	if b.updateStarted != nil {
		b.updateStarted <- struct{}{}
		<-b.updateRelease
	}
	return b.updatePatch, b.updateErr
}

func (b *stubOrderBackend) DeleteOrder(ctx context.Context, token, id string) error {
	b.deleteCalls++
	return b.deleteErr
}

func adminSession() *model.Session {
	return &model.Session{Username: "admin", Role: model.RoleAdmin, Token: "tok"}
}

func sampleOrders() []model.Order {
	return []model.Order{
		{ID: "1", CustomerName: "Ayu", Phone: "0811", Status: model.StatusProcessing, IntakeDate: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)},
		{ID: "2", CustomerName: "Budi", Phone: "0812", Status: model.StatusReady, IntakeDate: time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)},
		{ID: "3", CustomerName: "Citra", Phone: "0813", Status: model.StatusProcessing, IntakeDate: time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)},
	}
}

func TestList_NoSession(t *testing.T) {
	b := &stubOrderBackend{listResp: sampleOrders()}
	s := NewOrders(b)

	orders, err := s.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List without session must not error, got %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected empty list, got %d orders", len(orders))
	}
	if b.listCalls != 0 {
		t.Fatalf("backend must not be called without a session, got %d calls", b.listCalls)
	}
}

func TestList_CachesPerIdentity(t *testing.T) {
	b := &stubOrderBackend{listResp: sampleOrders()}
	s := NewOrders(b)

	if _, err := s.List(context.Background(), adminSession()); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if _, err := s.List(context.Background(), adminSession()); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if b.listCalls != 1 {
		t.Fatalf("same identity must hit cache, got %d backend calls", b.listCalls)
	}

	other := &model.Session{Username: "staff", Role: model.RoleStaff, Token: "tok2"}
	if _, err := s.List(context.Background(), other); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if b.listCalls != 2 {
		t.Fatalf("identity change must refetch, got %d backend calls", b.listCalls)
	}
}

func TestUpdateStatus_MergesOnlyMatchingRecord(t *testing.T) {
	completed := model.StatusCompleted
	when := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	b := &stubOrderBackend{
		listResp: sampleOrders(),
		updatePatch: model.OrderPatch{
			Status:         &completed,
			CompletionDate: model.OptionalTime{Set: true, Value: &when},
		},
	}
	s := NewOrders(b)

	sess := adminSession()
	before, err := s.List(context.Background(), sess)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}

	if err := s.UpdateStatus(context.Background(), sess, "2", model.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	after, err := s.List(context.Background(), sess)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}

	if after[1].Status != model.StatusCompleted {
		t.Fatalf("Status = %s, want completed", after[1].Status)
	}
	if after[1].CompletionDate == nil || !after[1].CompletionDate.Equal(when) {
		t.Fatalf("CompletionDate = %v, want %v", after[1].CompletionDate, when)
	}
	if after[1].CustomerName != "Budi" {
		t.Fatalf("unrelated fields of the patched record must survive, got %+v", after[1])
	}

	// Остальные записи должны остаться байт в байт прежними.
	if !reflect.DeepEqual(before[0], after[0]) {
		t.Fatalf("record 1 must stay untouched:\nbefore %+v\nafter  %+v", before[0], after[0])
	}
	if !reflect.DeepEqual(before[2], after[2]) {
		t.Fatalf("record 3 must stay untouched:\nbefore %+v\nafter  %+v", before[2], after[2])
	}
}

func TestMutations_RequireSession(t *testing.T) {
	b := &stubOrderBackend{}
	s := NewOrders(b)

	if err := s.UpdateNotes(context.Background(), nil, "1", "note"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := s.Remove(context.Background(), nil, "1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if b.updateCalls != 0 || b.deleteCalls != 0 {
		t.Fatalf("backend must not be called without a session")
	}
}

func TestAdd_ValidationSkipsBackend(t *testing.T) {
	b := &stubOrderBackend{}
	s := NewOrders(b)

	err := s.Add(context.Background(), adminSession(), model.OrderDraft{})
	var fieldErrs validation.FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if b.createCalls != 0 {
		t.Fatalf("invalid draft must not reach the backend, got %d calls", b.createCalls)
	}
	if s.Err() != "" {
		t.Fatalf("field errors must not fill the banner message, got %q", s.Err())
	}
}

func TestAdd_RefetchesAfterCreate(t *testing.T) {
	b := &stubOrderBackend{listResp: sampleOrders()}
	s := NewOrders(b)

	draft := model.OrderDraft{
		CustomerName: "Dewi",
		Phone:        "0814",
		Category:     model.CategoryByWeight,
		Service:      model.ServiceWashOnly,
		Quantity:     1.5,
	}
	if err := s.Add(context.Background(), adminSession(), draft); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if b.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", b.createCalls)
	}
	if b.listCalls != 1 {
		t.Fatalf("Add must refetch the list, listCalls = %d", b.listCalls)
	}
}

func TestUpdate_SecondRequestForSameRecordIsBusy(t *testing.T) {
	b := &stubOrderBackend{
		listResp:      sampleOrders(),
		updateStarted: make(chan struct{}, 1),
		updateRelease: make(chan struct{}),
	}
	s := NewOrders(b)
	sess := adminSession()

	if _, err := s.List(context.Background(), sess); err != nil {
		t.Fatalf("List error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.UpdateStatus(context.Background(), sess, "1", model.StatusReady)
	}()

	<-b.updateStarted

	if err := s.UpdateNotes(context.Background(), sess, "1", "note"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for overlapping request, got %v", err)
	}

	close(b.updateRelease)
	if err := <-done; err != nil {
		t.Fatalf("first update error: %v", err)
	}

	// После завершения запись снова свободна.
	b.updateStarted = nil
	if err := s.UpdateNotes(context.Background(), sess, "1", "note"); err != nil {
		t.Fatalf("update after release error: %v", err)
	}
}

func TestUpdate_StaleResponseDiscardedAfterReload(t *testing.T) {
	notes := "stale note"
	b := &stubOrderBackend{
		listResp:      sampleOrders(),
		updatePatch:   model.OrderPatch{Notes: &notes},
		updateStarted: make(chan struct{}, 1),
		updateRelease: make(chan struct{}),
	}
	s := NewOrders(b)
	sess := adminSession()

	if _, err := s.List(context.Background(), sess); err != nil {
		t.Fatalf("List error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.UpdateNotes(context.Background(), sess, "1", notes)
	}()

	<-b.updateStarted

	// Пока ответ в полёте, список перечитан заново: слияние должно быть отброшено.
	fresh := []model.Order{{ID: "1", CustomerName: "Ayu", Notes: "fresh note", Status: model.StatusProcessing}}
	b.listResp = fresh
	if _, err := s.Reload(context.Background(), sess); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	close(b.updateRelease)
	if err := <-done; err != nil {
		t.Fatalf("update error: %v", err)
	}

	after, err := s.List(context.Background(), sess)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if after[0].Notes != "fresh note" {
		t.Fatalf("stale merge must not clobber the reloaded list, got notes %q", after[0].Notes)
	}
}

func TestRemove_DropsLocalRecord(t *testing.T) {
	b := &stubOrderBackend{listResp: sampleOrders()}
	s := NewOrders(b)
	sess := adminSession()

	if _, err := s.List(context.Background(), sess); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if err := s.Remove(context.Background(), sess, "2"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	after, _ := s.List(context.Background(), sess)
	if len(after) != 2 {
		t.Fatalf("expected 2 orders after removal, got %d", len(after))
	}
	for _, o := range after {
		if o.ID == "2" {
			t.Fatalf("removed order still present: %+v", o)
		}
	}
}

func TestStatistics(t *testing.T) {
	b := &stubOrderBackend{listResp: sampleOrders()}
	s := NewOrders(b)

	if _, err := s.List(context.Background(), adminSession()); err != nil {
		t.Fatalf("List error: %v", err)
	}

	stats := s.Statistics()
	if stats.ProcessingCount != 2 {
		t.Fatalf("ProcessingCount = %d, want 2", stats.ProcessingCount)
	}
	if stats.ReadyCount != 1 {
		t.Fatalf("ReadyCount = %d, want 1", stats.ReadyCount)
	}
}

func TestErrMessage_SetAndSkippedFor401(t *testing.T) {
	b := &stubOrderBackend{listErr: &backend.APIError{StatusCode: 500, Message: "database on fire"}}
	s := NewOrders(b)

	if _, err := s.Reload(context.Background(), adminSession()); err == nil {
		t.Fatalf("expected error")
	}
	if s.Err() == "" {
		t.Fatalf("backend failure must fill the banner message")
	}

	b2 := &stubOrderBackend{listErr: backend.ErrUnauthorized}
	s2 := NewOrders(b2)

	if _, err := s2.Reload(context.Background(), adminSession()); !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized")
	}
	if s2.Err() != "" {
		t.Fatalf("401 must not fill the banner message, got %q", s2.Err())
	}
}

func TestErrMessage_ClearedBy401(t *testing.T) {
	b := &stubOrderBackend{
		listResp:  sampleOrders(),
		updateErr: &backend.APIError{StatusCode: 500, Message: "database on fire"},
	}
	s := NewOrders(b)

	if _, err := s.List(context.Background(), adminSession()); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if err := s.UpdateStatus(context.Background(), adminSession(), "1", model.StatusCompleted); err == nil {
		t.Fatalf("expected error")
	}
	if s.Err() == "" {
		t.Fatalf("backend failure must fill the banner message")
	}

	// Протухший токен: принудительный разлогин не должен оставлять
	// старый баннер к следующему входу в ещё тёплом кэше.
	b.updateErr = backend.ErrUnauthorized
	if err := s.UpdateStatus(context.Background(), adminSession(), "1", model.StatusCompleted); !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if s.Err() != "" {
		t.Fatalf("401 must clear the stale banner message, got %q", s.Err())
	}
}
