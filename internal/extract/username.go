// Package extract pulls a GitHub username out of a sale's checkout fields.
//
// Matching is a heuristic: the first field whose key contains one of the
// keywords wins, even when its value turns out to be empty.
package extract

import (
	"fmt"
	"sort"
	"strings"

	"sale_inviter/internal/domain"
)

// KeyOrder decides which matching field is "first".
type KeyOrder int

const (
	// OrderAsReceived scans fields in the order the sales API returned them.
	OrderAsReceived KeyOrder = iota
	// OrderSorted scans fields by key, case-insensitively.
	OrderSorted
)

// DefaultKeywords are matched case-insensitively against field keys.
var DefaultKeywords = []string{"git", "user", "kullanıcı"}

type Extractor struct {
	keywords []string
	order    KeyOrder
}

type Option func(*Extractor)

func WithKeywords(keywords ...string) Option {
	return func(e *Extractor) {
		e.keywords = keywords
	}
}

func WithKeyOrder(order KeyOrder) Option {
	return func(e *Extractor) {
		e.order = order
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		keywords: DefaultKeywords,
		order:    OrderAsReceived,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the cleaned username from the first matching field.
func (e *Extractor) Extract(fields []domain.CustomField) (string, error) {
	field, ok := e.match(fields)
	if !ok {
		return "", domain.ErrNoUsernameField
	}

	username := Clean(field.Value)
	if username == "" {
		return "", fmt.Errorf("%w: field %q", domain.ErrEmptyUsername, field.Key)
	}
	return username, nil
}

func (e *Extractor) match(fields []domain.CustomField) (domain.CustomField, bool) {
	scan := fields
	if e.order == OrderSorted {
		scan = make([]domain.CustomField, len(fields))
		copy(scan, fields)
		sort.SliceStable(scan, func(i, j int) bool {
			return strings.ToLower(scan[i].Key) < strings.ToLower(scan[j].Key)
		})
	}

	for _, f := range scan {
		key := strings.ToLower(f.Key)
		for _, kw := range e.keywords {
			if strings.Contains(key, strings.ToLower(kw)) {
				return f, true
			}
		}
	}
	return domain.CustomField{}, false
}

// Clean strips surrounding whitespace and leading "@" characters.
func Clean(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimLeft(value, "@")
	return strings.TrimSpace(value)
}
