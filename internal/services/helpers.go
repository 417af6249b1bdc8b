package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// ListPage describes offset pagination for list operations.
type ListPage struct {
	Page    int
	PerPage int
}

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

func (p ListPage) normalise() ListPage {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (p ListPage) offset() int { return (p.Page - 1) * p.PerPage }

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// toJSON marshals an arbitrary document into a JSON column value. A nil
// document yields a nil column.
func toJSON(doc any) (datatypes.JSON, error) {
	if doc == nil {
		return nil, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
