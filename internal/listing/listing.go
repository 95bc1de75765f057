// Package listing implements the paginated list convention shared by the
// admin tables: 1-based pages, a bounded page size, a case-insensitive
// substring search and a sort key restricted to an allow-list.
package listing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var ErrInvalidParams = errors.New("invalid list parameters")

type Params struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
}

// Sort maps the sort keys a listing accepts to their columns.
type Sort struct {
	Columns map[string]string
	Default string
}

// Normalize fills defaults and rejects sort keys outside the allow-list.
func (p Params) Normalize(sort Sort) (Params, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Search = strings.TrimSpace(p.Search)

	if p.SortBy == "" {
		p.SortBy = sort.Default
	}
	if _, ok := sort.Columns[p.SortBy]; !ok {
		return p, fmt.Errorf("%w: cannot sort by %q", ErrInvalidParams, p.SortBy)
	}

	p.SortOrder = strings.ToLower(p.SortOrder)
	switch p.SortOrder {
	case "":
		p.SortOrder = "asc"
	case "asc", "desc":
	default:
		return p, fmt.Errorf("%w: sort order must be asc or desc", ErrInvalidParams)
	}
	return p, nil
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Paginate orders and windows a query. Params must be normalized. The primary
// key breaks ties so pages are stable.
func (p Params) Paginate(sort Sort) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		col := sort.Columns[p.SortBy]
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: p.SortOrder == "desc"})
		if col != "id" {
			db = db.Order("id")
		}
		return db.Offset(p.Offset()).Limit(p.Limit)
	}
}

// Search matches term as a case-insensitive substring of any of the columns.
// An empty term matches everything.
func Search(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		conds := make([]string, len(columns))
		args := make([]any, len(columns))
		for i, c := range columns {
			conds[i] = fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, c)
			args[i] = pattern
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type Page[T any] struct {
	Items       []T   `json:"items"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	Total       int64 `json:"total"`
}

func NewPage[T any](items []T, p Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Page[T]{
		Items:       items,
		CurrentPage: p.Page,
		TotalPages:  pages,
		Total:       total,
	}
}
