// Package view содержит чистую логику табличных представлений панели:
// фильтрацию, сортировку и постраничный вывод.
package view

import (
	"slices"
	"sort"
	"strings"

	"github.com/savelevab/laundry-panel/internal/model"
)

// Filter возвращает заказы, в которых строка term встречается без учёта
// регистра хотя бы в одном из отображаемых полей: номер, имя клиента,
// телефон, подпись статуса, категория и вид услуги. Пустая строка не фильтрует.
func Filter(orders []model.Order, term string) []model.Order {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return orders
	}

	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if matches(o, term) {
			out = append(out, o)
		}
	}
	return out
}

func matches(o model.Order, term string) bool {
	for _, field := range []string{
		o.ID,
		o.CustomerName,
		o.Phone,
		o.Status.Label(),
		o.Category.Label(),
		o.Service.Label(),
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// SortByIntakeDesc сортирует заказы по дате приёма от новых к старым,
// сохраняя исходный порядок при равных датах.
func SortByIntakeDesc(orders []model.Order) []model.Order {
	out := slices.Clone(orders)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IntakeDate.After(out[j].IntakeDate)
	})
	return out
}

// TotalPages возвращает число страниц для n записей при размере страницы size.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// TableState хранит эфемерное состояние таблицы: поисковый запрос и текущую
// страницу. Состояние живёт в пределах одного рендера.
type TableState struct {
	Term        string
	CurrentPage int
	PageSize    int
}

// NewTableState создаёт состояние таблицы на первой странице.
func NewTableState(pageSize int) *TableState {
	return &TableState{CurrentPage: 1, PageSize: pageSize}
}

// SetTerm меняет поисковый запрос; смена запроса возвращает таблицу
// на первую страницу.
func (t *TableState) SetTerm(term string) {
	if term == t.Term {
		return
	}
	t.Term = term
	t.CurrentPage = 1
}

// SetPage переходит на страницу p; запрос за пределы диапазона игнорируется.
func (t *TableState) SetPage(p, totalPages int) {
	if p < 1 || p > totalPages {
		return
	}
	t.CurrentPage = p
}

// Page применяет фильтр, сортировку и срез текущей страницы к полному списку.
// Возвращает видимые записи и общее число страниц.
func (t *TableState) Page(orders []model.Order) ([]model.Order, int) {
	filtered := SortByIntakeDesc(Filter(orders, t.Term))
	total := TotalPages(len(filtered), t.PageSize)

	start := (t.CurrentPage - 1) * t.PageSize
	if start >= len(filtered) {
		return nil, total
	}
	end := min(start+t.PageSize, len(filtered))
	return filtered[start:end], total
}

// PageButton описывает одну кнопку пагинации: номер страницы либо многоточие.
type PageButton struct {
	Number   int
	Ellipsis bool
}

// PageNumbers строит детерминированный ряд кнопок пагинации. Первая и
// последняя страницы показываются всегда, вокруг текущей держится окно
// из трёх номеров, каждый пропуск сворачивается в одно многоточие.
func PageNumbers(current, total int) []PageButton {
	if total <= 1 {
		return nil
	}
	if total <= 5 {
		out := make([]PageButton, 0, total)
		for i := 1; i <= total; i++ {
			out = append(out, PageButton{Number: i})
		}
		return out
	}

	start := max(2, current-1)
	end := min(total-1, current+1)
	if current <= 2 {
		end = 3
	}
	if current >= total-1 {
		start = max(2, total-3)
	}

	out := []PageButton{{Number: 1}}
	if start > 2 {
		out = append(out, PageButton{Ellipsis: true})
	}
	for i := start; i <= end; i++ {
		out = append(out, PageButton{Number: i})
	}
	if end < total-1 {
		out = append(out, PageButton{Ellipsis: true})
	}
	return append(out, PageButton{Number: total})
}
