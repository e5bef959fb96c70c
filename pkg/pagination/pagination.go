package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Kind tags a list result so clients never have to tell an empty array
// apart from an error body.
type Kind string

const (
	KindOK    Kind = "ok"
	KindEmpty Kind = "empty"
)

// List is the response shape for every list endpoint: either
// {"kind":"ok","data":[...]} or {"kind":"empty","reason":"..."}.
type List[T any] struct {
	Kind   Kind   `json:"kind"`
	Data   []T    `json:"data,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NewList returns an ok result for non-empty items and an empty result
// carrying reason otherwise.
func NewList[T any](items []T, reason string) List[T] {
	if len(items) == 0 {
		return List[T]{Kind: KindEmpty, Reason: reason}
	}
	return List[T]{Kind: KindOK, Data: items}
}
