package pagination

import (
	"strconv"

	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
)

// MaxLimit caps the page size of every list endpoint
const MaxLimit = 1000

// Params is an offset cursor: rows [Start, Start+Limit)
type Params struct {
	Start int
	Limit int
}

// Page is one page of a list endpoint.
// NextCursor is always Start+Limit, whether or not HasNext is set.
type Page[T any] struct {
	Data       []T  `json:"data"`
	HasNext    bool `json:"hasNext"`
	NextCursor int  `json:"nextCursor"`
}

// ParseParams parses the start and limit query values.
// Empty values take the defaults (0 and MaxLimit); limits above MaxLimit are clamped.
func ParseParams(start, limit string) (Params, error) {
	p := Params{Start: 0, Limit: MaxLimit}

	if start != "" {
		n, err := strconv.Atoi(start)
		if err != nil || n < 0 {
			return Params{}, api.ValidationError("start must be a non-negative integer")
		}
		p.Start = n
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return Params{}, api.ValidationError("limit must be a positive integer")
		}
		if n > MaxLimit {
			n = MaxLimit
		}
		p.Limit = n
	}

	return p, nil
}

// Fetch runs query for one page. It asks for Limit+1 rows and uses the extra
// row only to decide HasNext. The query must already be ordered.
func Fetch[T any](query *gorm.DB, p Params) (Page[T], error) {
	var rows []T
	if err := query.Offset(p.Start).Limit(p.Limit + 1).Find(&rows).Error; err != nil {
		return Page[T]{}, api.QueryError("fetch page", err)
	}
	return newPage(rows, p), nil
}

// FromSlice applies the same protocol to an already ordered in-memory slice
func FromSlice[T any](all []T, p Params) Page[T] {
	if p.Start >= len(all) {
		return newPage([]T{}, p)
	}
	end := p.Start + p.Limit + 1
	if end > len(all) {
		end = len(all)
	}
	return newPage(all[p.Start:end], p)
}

func newPage[T any](rows []T, p Params) Page[T] {
	hasNext := len(rows) > p.Limit
	if hasNext {
		rows = rows[:p.Limit]
	}
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{
		Data:       rows,
		HasNext:    hasNext,
		NextCursor: p.Start + p.Limit,
	}
}
