package handler

import (
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/savelevab/laundry-panel/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type templateSet struct {
	*template.Template
}

func parseTemplates() (templateSet, error) {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return templateSet{}, fmt.Errorf("parse templates: %w", err)
	}
	return templateSet{tmpl}, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"price":    formatPrice,
		"date":     formatDate,
		"quantity": formatQuantity,
	}
}

// formatPrice печатает сумму в рупиях с разделителями тысяч: 45000 -> "Rp 45.000".
func formatPrice(amount int) string {
	digits := strconv.Itoa(amount)
	var b strings.Builder
	b.WriteString("Rp ")
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return b.String()
}

// formatDate принимает и значение, и указатель: дата выдачи заказа опциональна.
func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Format("02 Jan 2006")
	case *time.Time:
		if t == nil {
			return "-"
		}
		return formatDate(*t)
	default:
		return "-"
	}
}

// formatQuantity подписывает единицу измерения по категории услуги.
func formatQuantity(q float64, category model.ServiceCategory) string {
	value := strconv.FormatFloat(q, 'f', -1, 64)
	if category == model.CategoryByWeight {
		return value + " kg"
	}
	return value + " pcs"
}
