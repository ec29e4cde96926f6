// Package catalog holds the shipped medical code tables and the
// loaders that replace them wholesale from disk. The tables are
// immutable once loaded; the server never mutates them at runtime.
package catalog

import (
	"fmt"

	"github.com/medcoding/medcoding/internal/domain/coding"
)

// Catalog bundles the three code tables the coding service runs on.
type Catalog struct {
	Diagnoses []*coding.DiagnosisCode
	Modifiers []*coding.ModifierEntry
	PairEdits []*coding.PairEdit
}

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	return &Catalog{
		Diagnoses: defaultDiagnoses(),
		Modifiers: defaultModifiers(),
		PairEdits: defaultPairEdits(),
	}
}

// Load builds the catalog, replacing any table whose override path is
// set, and validates the result. An empty path keeps the shipped table.
func Load(diagnosisPath, modifierPath, pairPath string) (*Catalog, error) {
	c := Default()

	if diagnosisPath != "" {
		diagnoses, err := LoadDiagnosesJSON(diagnosisPath)
		if err != nil {
			return nil, err
		}
		c.Diagnoses = diagnoses
	}
	if modifierPath != "" {
		modifiers, err := LoadModifiersCSV(modifierPath)
		if err != nil {
			return nil, err
		}
		c.Modifiers = modifiers
	}
	if pairPath != "" {
		pairs, err := LoadPairEditsJSON(pairPath)
		if err != nil {
			return nil, err
		}
		c.PairEdits = pairs
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the catalog invariants: non-empty unique codes,
// known pair statuses, no duplicate unordered pairs, and a modifier
// entry behind every suggestion rule.
func (c *Catalog) Validate() error {
	seenDiagnoses := make(map[string]bool, len(c.Diagnoses))
	for i, d := range c.Diagnoses {
		if d.Code == "" {
			return fmt.Errorf("diagnosis %d: code is empty", i)
		}
		if d.Title == "" {
			return fmt.Errorf("diagnosis %s: title is empty", d.Code)
		}
		if seenDiagnoses[d.Code] {
			return fmt.Errorf("diagnosis %s: duplicate code", d.Code)
		}
		seenDiagnoses[d.Code] = true
	}

	seenModifiers := make(map[string]bool, len(c.Modifiers))
	for i, m := range c.Modifiers {
		if m.Code == "" {
			return fmt.Errorf("modifier %d: code is empty", i)
		}
		if m.Title == "" {
			return fmt.Errorf("modifier %s: title is empty", m.Code)
		}
		if seenModifiers[m.Code] {
			return fmt.Errorf("modifier %s: duplicate code", m.Code)
		}
		seenModifiers[m.Code] = true
	}

	seenPairs := make(map[[2]string]bool, len(c.PairEdits))
	for i, p := range c.PairEdits {
		if p.CPTA == "" || p.CPTB == "" {
			return fmt.Errorf("pair edit %d: CPT code is empty", i)
		}
		if p.CPTA == p.CPTB {
			return fmt.Errorf("pair edit %d: %s is paired with itself", i, p.CPTA)
		}
		if p.Status != coding.PairStatusAllowed && p.Status != coding.PairStatusDenied {
			return fmt.Errorf("pair edit %s/%s: unknown status %q", p.CPTA, p.CPTB, p.Status)
		}
		key := pairSetKey(p.CPTA, p.CPTB)
		if seenPairs[key] {
			return fmt.Errorf("pair edit %s/%s: duplicate unordered pair", p.CPTA, p.CPTB)
		}
		seenPairs[key] = true
	}

	// Every code the suggestion rules can emit must exist in the
	// modifier table, or a triggered suggestion would vanish silently.
	for _, code := range coding.TriggerCodes() {
		if !seenModifiers[code] {
			return fmt.Errorf("suggestion rule code %s has no modifier entry", code)
		}
	}

	return nil
}

// pairSetKey normalizes an unordered CPT pair to a map key.
func pairSetKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
