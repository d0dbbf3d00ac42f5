package repository

import (
	"strings"

	"gorm.io/gorm"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Page is a 1-based page request. Zero values fall back to defaults.
type Page struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (p Page) normalize() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 || p.Limit > maxLimit {
		p.Limit = defaultLimit
	}
	return p
}

func (p Page) Offset() int {
	n := p.normalize()
	return (n.Page - 1) * n.Limit
}

// Paginate -> scope gorm untuk limit/offset
func Paginate(p Page) func(db *gorm.DB) *gorm.DB {
	n := p.normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(n.Offset()).Limit(n.Limit)
	}
}

// Sort is a "column" or "-column" expression checked against an allow list.
type Sort string

func (s Sort) clause(allowed map[string]bool, fallback string) string {
	raw := strings.TrimSpace(string(s))
	if raw == "" {
		return fallback
	}
	dir := "ASC"
	if strings.HasPrefix(raw, "-") {
		dir = "DESC"
		raw = raw[1:]
	}
	if !allowed[raw] {
		return fallback
	}
	return raw + " " + dir
}

// Result is one page of rows plus the total match count.
type Result[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func newResult[T any](items []T, total int64, p Page) Result[T] {
	n := p.normalize()
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Total: total, Page: n.Page, Limit: n.Limit}
}
