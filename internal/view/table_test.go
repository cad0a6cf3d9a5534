package view

import (
	"fmt"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/savelevab/laundry-panel/internal/model"
)

func makeOrders(n int) []model.Order {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	orders := make([]model.Order, 0, n)
	for i := 1; i <= n; i++ {
		orders = append(orders, model.Order{
			ID:           strconv.Itoa(i),
			CustomerName: fmt.Sprintf("Customer %d", i),
			Phone:        fmt.Sprintf("0812%04d", i),
			Status:       model.StatusProcessing,
			IntakeDate:   base.Add(time.Duration(i) * time.Hour),
		})
	}
	return orders
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{23, 10, 3},
		{45, 5, 9},
		{5, 0, 0},
	}

	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.want {
			t.Fatalf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestSetPage_OutOfRangeIsNoOp(t *testing.T) {
	st := NewTableState(10)
	st.SetPage(2, 3)
	if st.CurrentPage != 2 {
		t.Fatalf("CurrentPage = %d, want 2", st.CurrentPage)
	}

	st.SetPage(0, 3)
	if st.CurrentPage != 2 {
		t.Fatalf("page 0 must be a no-op, got %d", st.CurrentPage)
	}
	st.SetPage(4, 3)
	if st.CurrentPage != 2 {
		t.Fatalf("page beyond total must be a no-op, got %d", st.CurrentPage)
	}
}

func TestSetTerm_ResetsPage(t *testing.T) {
	st := NewTableState(10)
	st.SetPage(3, 5)

	st.SetTerm("ayu")
	if st.CurrentPage != 1 {
		t.Fatalf("term change must reset to page 1, got %d", st.CurrentPage)
	}

	st.SetPage(2, 5)
	st.SetTerm("ayu")
	if st.CurrentPage != 2 {
		t.Fatalf("same term must not reset the page, got %d", st.CurrentPage)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	orders := makeOrders(20)
	once := Filter(orders, "customer 1")
	twice := Filter(once, "customer 1")

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("filtering an already-matching list must return the same list")
	}
	if len(once) == 0 {
		t.Fatalf("expected matches for the sample term")
	}
}

func TestFilter_EmptyTermMatchesAll(t *testing.T) {
	orders := makeOrders(7)
	if got := Filter(orders, "   "); len(got) != 7 {
		t.Fatalf("blank term must match everything, got %d", len(got))
	}
}

func TestFilter_MatchesAcrossFields(t *testing.T) {
	orders := []model.Order{
		{ID: "42", CustomerName: "Ayu", Phone: "0812", Status: model.StatusReady, Category: model.CategoryByWeight, Service: model.ServiceWashIron},
		{ID: "7", CustomerName: "Budi", Phone: "099", Status: model.StatusProcessing, Category: model.CategoryByItem, Service: model.ServiceIronOnly},
	}

	tests := []struct {
		term string
		want int
	}{
		{"42", 1},          // по номеру
		{"AYU", 1},         // по имени, без учёта регистра
		{"099", 1},         // по телефону
		{"ready", 1},       // по подписи статуса
		{"by item", 1},     // по категории
		{"iron", 2},        // по виду услуги: Wash + Iron и Iron only
		{"nothing here", 0},
	}

	for _, tt := range tests {
		if got := Filter(orders, tt.term); len(got) != tt.want {
			t.Fatalf("Filter(%q) matched %d, want %d", tt.term, len(got), tt.want)
		}
	}
}

func TestSortByIntakeDesc_StableTies(t *testing.T) {
	when := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	orders := []model.Order{
		{ID: "a", IntakeDate: when},
		{ID: "b", IntakeDate: when.Add(time.Hour)},
		{ID: "c", IntakeDate: when},
	}

	sorted := SortByIntakeDesc(orders)
	if sorted[0].ID != "b" {
		t.Fatalf("most recent order must come first, got %s", sorted[0].ID)
	}
	if sorted[1].ID != "a" || sorted[2].ID != "c" {
		t.Fatalf("ties must keep original order, got %s then %s", sorted[1].ID, sorted[2].ID)
	}
}

func TestPage_Slicing(t *testing.T) {
	st := NewTableState(10)
	orders := makeOrders(23)

	page, total := st.Page(orders)
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(page) != 10 {
		t.Fatalf("page 1 length = %d, want 10", len(page))
	}
	// Сортировка по дате приёма: сверху самые свежие.
	if page[0].ID != "23" {
		t.Fatalf("first visible order = %s, want 23", page[0].ID)
	}

	st.SetPage(3, total)
	page, _ = st.Page(orders)
	if len(page) != 3 {
		t.Fatalf("page 3 length = %d, want 3", len(page))
	}
}

func buttons(seq ...any) []PageButton {
	out := make([]PageButton, 0, len(seq))
	for _, v := range seq {
		if n, ok := v.(int); ok {
			out = append(out, PageButton{Number: n})
			continue
		}
		out = append(out, PageButton{Ellipsis: true})
	}
	return out
}

func TestPageNumbers(t *testing.T) {
	tests := []struct {
		name           string
		current, total int
		want           []PageButton
	}{
		{"single page", 1, 1, nil},
		{"no pages", 1, 0, nil},
		{"three pages from first", 1, 3, buttons(1, 2, 3)},
		{"three pages from last", 3, 3, buttons(1, 2, 3)},
		{"five pages listed fully", 3, 5, buttons(1, 2, 3, 4, 5)},
		{"nine pages from middle", 5, 9, buttons(1, "...", 4, 5, 6, "...", 9)},
		{"nine pages from first", 1, 9, buttons(1, 2, 3, "...", 9)},
		{"nine pages from second", 2, 9, buttons(1, 2, 3, "...", 9)},
		{"nine pages near end", 8, 9, buttons(1, "...", 6, 7, 8, 9)},
		{"nine pages from last", 9, 9, buttons(1, "...", 6, 7, 8, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PageNumbers(tt.current, tt.total)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("PageNumbers(%d, %d) = %v, want %v", tt.current, tt.total, got, tt.want)
			}
		})
	}
}

func TestScenario_45OrdersPageSize5(t *testing.T) {
	st := NewTableState(5)
	orders := makeOrders(45)

	_, total := st.Page(orders)
	if total != 9 {
		t.Fatalf("total = %d, want 9", total)
	}

	st.SetPage(5, total)
	got := PageNumbers(st.CurrentPage, total)
	want := buttons(1, "...", 4, 5, 6, "...", 9)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buttons = %v, want %v", got, want)
	}
}
