package coding

import (
	"context"
	"sort"
	"strings"
)

// Score weights for diagnosis search. Includes/excludes/synonyms are
// cumulative per matching string; code and title count at most once.
const (
	scoreCode    = 2.0
	scoreTitle   = 1.5
	scoreInclude = 1.0
	scoreExclude = 0.5
	scoreSynonym = 1.0
)

// defaultSearchLimit caps diagnosis search results when the caller does
// not supply a limit.
const defaultSearchLimit = 5

// =========== Diagnosis Repository ===========

type diagnosisRepoMem struct {
	codes  []*DiagnosisCode
	byCode map[string]*DiagnosisCode
}

// NewDiagnosisRepoMem creates an in-memory diagnosis repository over an
// immutable catalog slice. Catalog order is preserved and used as the
// tie-break for equal search scores.
func NewDiagnosisRepoMem(codes []*DiagnosisCode) DiagnosisRepository {
	byCode := make(map[string]*DiagnosisCode, len(codes))
	for _, c := range codes {
		byCode[c.Code] = c
	}
	return &diagnosisRepoMem{codes: codes, byCode: byCode}
}

func (r *diagnosisRepoMem) Search(_ context.Context, query string, limit int) ([]*DiagnosisCode, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*DiagnosisCode{}, nil
	}

	type scoredCode struct {
		entry *DiagnosisCode
		score float64
	}
	var matches []scoredCode
	for _, c := range r.codes {
		if s := scoreDiagnosis(c, q); s > 0 {
			matches = append(matches, scoredCode{entry: c, score: s})
		}
	}

	// Stable sort keeps catalog order for equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]*DiagnosisCode, len(matches))
	for i, m := range matches {
		results[i] = m.entry
	}
	return results, nil
}

func (r *diagnosisRepoMem) GetByCode(_ context.Context, code string) (*DiagnosisCode, error) {
	c, ok := r.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// scoreDiagnosis sums the match weights of every catalog field that
// contains the normalized query as a substring. The query must already
// be trimmed and lowercased.
func scoreDiagnosis(c *DiagnosisCode, q string) float64 {
	var score float64
	if strings.Contains(strings.ToLower(c.Code), q) {
		score += scoreCode
	}
	if strings.Contains(strings.ToLower(c.Title), q) {
		score += scoreTitle
	}
	for _, s := range c.Includes {
		if strings.Contains(strings.ToLower(s), q) {
			score += scoreInclude
		}
	}
	for _, s := range c.Excludes {
		if strings.Contains(strings.ToLower(s), q) {
			score += scoreExclude
		}
	}
	for _, s := range c.Synonyms {
		if strings.Contains(strings.ToLower(s), q) {
			score += scoreSynonym
		}
	}
	return score
}

// =========== Modifier Repository ===========

type modifierRepoMem struct {
	entries []*ModifierEntry
	byCode  map[string]*ModifierEntry
}

// NewModifierRepoMem creates an in-memory modifier repository over an
// immutable catalog slice.
func NewModifierRepoMem(entries []*ModifierEntry) ModifierRepository {
	byCode := make(map[string]*ModifierEntry, len(entries))
	for _, m := range entries {
		byCode[m.Code] = m
	}
	return &modifierRepoMem{entries: entries, byCode: byCode}
}

func (r *modifierRepoMem) Search(_ context.Context, query string, limit int) ([]*ModifierEntry, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*ModifierEntry{}, nil
	}

	results := make([]*ModifierEntry, 0, limit)
	for _, m := range r.entries {
		if strings.Contains(strings.ToLower(m.Code), q) ||
			strings.Contains(strings.ToLower(m.Title), q) {
			results = append(results, m)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func (r *modifierRepoMem) GetByCode(_ context.Context, code string) (*ModifierEntry, error) {
	m, ok := r.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (r *modifierRepoMem) List(_ context.Context) ([]*ModifierEntry, error) {
	results := make([]*ModifierEntry, len(r.entries))
	copy(results, r.entries)
	return results, nil
}

// =========== Pair Edit Repository ===========

type pairKey struct {
	a, b string
}

type pairEditRepoMem struct {
	edits  []*PairEdit
	byPair map[pairKey]*PairEdit
}

// NewPairEditRepoMem creates an in-memory pair edit repository over an
// immutable edit table.
func NewPairEditRepoMem(edits []*PairEdit) PairEditRepository {
	byPair := make(map[pairKey]*PairEdit, len(edits))
	for _, e := range edits {
		byPair[pairKey{a: e.CPTA, b: e.CPTB}] = e
	}
	return &pairEditRepoMem{edits: edits, byPair: byPair}
}

func (r *pairEditRepoMem) Lookup(_ context.Context, cptA, cptB string) (*PairEdit, error) {
	if e, ok := r.byPair[pairKey{a: cptA, b: cptB}]; ok {
		return e, nil
	}
	if e, ok := r.byPair[pairKey{a: cptB, b: cptA}]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (r *pairEditRepoMem) List(_ context.Context) ([]*PairEdit, error) {
	results := make([]*PairEdit, len(r.edits))
	copy(results, r.edits)
	return results, nil
}
