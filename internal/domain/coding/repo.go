package coding

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repository lookups that match no record.
var ErrNotFound = errors.New("not found")

// DiagnosisRepository provides access to the ICD-10-CM diagnosis catalog.
type DiagnosisRepository interface {
	Search(ctx context.Context, query string, limit int) ([]*DiagnosisCode, error)
	GetByCode(ctx context.Context, code string) (*DiagnosisCode, error)
}

// ModifierRepository provides access to the billing modifier catalog.
type ModifierRepository interface {
	Search(ctx context.Context, query string, limit int) ([]*ModifierEntry, error)
	GetByCode(ctx context.Context, code string) (*ModifierEntry, error)
	List(ctx context.Context) ([]*ModifierEntry, error)
}

// PairEditRepository provides access to the NCCI pair edit table.
// Lookup treats the pair as unordered: (a, b) and (b, a) hit the same record.
type PairEditRepository interface {
	Lookup(ctx context.Context, cptA, cptB string) (*PairEdit, error)
	List(ctx context.Context) ([]*PairEdit, error)
}
