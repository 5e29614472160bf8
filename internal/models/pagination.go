package models

import "time"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PageRequest carries pagination and sorting for list operations.
type PageRequest struct {
	Page      int       `json:"page"`
	Limit     int       `json:"limit"`
	SortBy    string    `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order"`
}

// Normalize clamps the request to sane bounds: page >= 1, limit in
// (0, MaxPageLimit], descending sort by default.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.SortOrder != SortAsc && p.SortOrder != SortDesc {
		p.SortOrder = SortDesc
	}
	return p
}

// Offset returns the row offset for the normalized request.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageMeta describes the result window of a paginated query.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPageMeta computes page metadata for a total row count.
func NewPageMeta(req PageRequest, total int64) *PageMeta {
	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	if totalPages == 0 {
		totalPages = 1
	}
	return &PageMeta{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}
}

// OrderFilter narrows order list queries. Zero values mean "any".
type OrderFilter struct {
	Status     Status
	Side       Side
	Type       OrderType
	CurrencyID string
}

// TradeFilter narrows trade list queries. Zero values mean "any".
type TradeFilter struct {
	CurrencyID string
	From       *time.Time
	To         *time.Time
}
