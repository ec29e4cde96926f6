package coding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// maxSearchLimit caps the per-request result limit for search endpoints.
const maxSearchLimit = 50

// Service provides diagnosis search, modifier suggestion, and NCCI pair
// checking over the immutable code catalogs.
type Service struct {
	diagnoses DiagnosisRepository
	modifiers ModifierRepository
	pairs     PairEditRepository
}

// NewService creates a new coding service.
func NewService(diagnoses DiagnosisRepository, modifiers ModifierRepository, pairs PairEditRepository) *Service {
	return &Service{diagnoses: diagnoses, modifiers: modifiers, pairs: pairs}
}

// -- Diagnosis search --

// SearchDiagnoses scores the diagnosis catalog against a free-text
// query and returns the top entries by descending score. A blank query
// yields an empty list, never an error; unknown terms simply match
// nothing.
func (s *Service) SearchDiagnoses(ctx context.Context, query string, limit int) ([]*DiagnosisCode, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*DiagnosisCode{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.diagnoses.Search(ctx, query, limit)
}

// GetDiagnosis looks up a single diagnosis code exactly as given
// (trimmed, case-sensitive).
func (s *Service) GetDiagnosis(ctx context.Context, code string) (*DiagnosisCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	return s.diagnoses.GetByCode(ctx, code)
}

// -- Modifier suggestion --

// SuggestModifiers scans a clinical scenario description for trigger
// phrases and returns the matching modifier catalog entries in rule
// order, deduplicated by code. A blank scenario yields an empty list.
func (s *Service) SuggestModifiers(ctx context.Context, scenario string) ([]*ModifierEntry, error) {
	if strings.TrimSpace(scenario) == "" {
		return []*ModifierEntry{}, nil
	}

	codes := triggeredModifierCodes(scenario)
	suggestions := make([]*ModifierEntry, 0, len(codes))
	for _, code := range codes {
		m, err := s.modifiers.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// A trigger without a catalog entry suggests nothing.
				continue
			}
			return nil, err
		}
		suggestions = append(suggestions, m)
	}
	return suggestions, nil
}

// ListModifiers returns the full modifier catalog in catalog order.
func (s *Service) ListModifiers(ctx context.Context) ([]*ModifierEntry, error) {
	return s.modifiers.List(ctx)
}

// GetModifier looks up a single modifier by code.
func (s *Service) GetModifier(ctx context.Context, code string) (*ModifierEntry, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	return s.modifiers.GetByCode(ctx, code)
}

// -- NCCI pair check --

// CheckPair looks up the unordered CPT pair in the edit table and
// returns the bundling verdict with the codes echoed in argument order.
// A pair with no registered edit gets the default allowed verdict.
// When either code is blank after trimming, no check is performed and
// the result is nil.
func (s *Service) CheckPair(ctx context.Context, cptA, cptB string) (*PairCheckResult, error) {
	cptA = strings.TrimSpace(cptA)
	cptB = strings.TrimSpace(cptB)
	if cptA == "" || cptB == "" {
		return nil, nil
	}

	edit, err := s.pairs.Lookup(ctx, cptA, cptB)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &PairCheckResult{
				CPTA:             cptA,
				CPTB:             cptB,
				Status:           PairStatusAllowed,
				Message:          DefaultPairMessage,
				ModifierRequired: false,
			}, nil
		}
		return nil, err
	}

	return &PairCheckResult{
		CPTA:             cptA,
		CPTB:             cptB,
		Status:           edit.Status,
		Message:          edit.Message,
		ModifierRequired: edit.ModifierRequired,
	}, nil
}

// ListPairEdits returns all registered pair edits in table order.
func (s *Service) ListPairEdits(ctx context.Context) ([]*PairEdit, error) {
	return s.pairs.List(ctx)
}

// -- FHIR Operations --

// Lookup implements the FHIR CodeSystem $lookup operation for the two
// code systems this service owns.
func (s *Service) Lookup(ctx context.Context, req *LookupRequest) (*LookupResponse, error) {
	if req.System == "" {
		return nil, fmt.Errorf("system is required")
	}
	if req.Code == "" {
		return nil, fmt.Errorf("code is required")
	}

	var display string
	var properties []LookupParameter

	switch req.System {
	case SystemICD10:
		c, err := s.diagnoses.GetByCode(ctx, req.Code)
		if err != nil {
			return nil, fmt.Errorf("code not found in ICD-10-CM: %s", req.Code)
		}
		display = c.Title
		for _, v := range c.Includes {
			properties = append(properties, propertyParam("includes", v))
		}
		for _, v := range c.Excludes {
			properties = append(properties, propertyParam("excludes", v))
		}
		for _, v := range c.Synonyms {
			properties = append(properties, propertyParam("synonym", v))
		}
	case SystemCPT:
		m, err := s.modifiers.GetByCode(ctx, req.Code)
		if err != nil {
			return nil, fmt.Errorf("code not found in CPT modifiers: %s", req.Code)
		}
		display = m.Title
		if m.Reason != "" {
			properties = append(properties, propertyParam("reason", m.Reason))
		}
	default:
		return nil, fmt.Errorf("unsupported code system: %s", req.System)
	}

	params := []LookupParameter{
		{Name: "name", ValueString: display},
		{Name: "display", ValueString: display},
	}
	params = append(params, properties...)

	return &LookupResponse{
		ResourceType: "Parameters",
		Parameter:    params,
	}, nil
}

// propertyParam builds a $lookup property parameter with code and value parts.
func propertyParam(code, value string) LookupParameter {
	return LookupParameter{
		Name: "property",
		Part: []LookupParameter{
			{Name: "code", ValueCode: code},
			{Name: "value", ValueString: value},
		},
	}
}

// ValidateCode implements the FHIR CodeSystem $validate-code operation.
func (s *Service) ValidateCode(ctx context.Context, req *ValidateCodeRequest) (*ValidateCodeResponse, error) {
	if req.System == "" {
		return nil, fmt.Errorf("system is required")
	}
	if req.Code == "" {
		return nil, fmt.Errorf("code is required")
	}

	var display string
	var found bool

	switch req.System {
	case SystemICD10:
		c, err := s.diagnoses.GetByCode(ctx, req.Code)
		if err == nil {
			found = true
			display = c.Title
		}
	case SystemCPT:
		m, err := s.modifiers.GetByCode(ctx, req.Code)
		if err == nil {
			found = true
			display = m.Title
		}
	default:
		return nil, fmt.Errorf("unsupported code system: %s", req.System)
	}

	result := found
	params := []ValidateCodeParameter{
		{Name: "result", ValueBoolean: &result},
	}
	if found {
		params = append(params, ValidateCodeParameter{Name: "display", ValueString: display})
	} else {
		params = append(params, ValidateCodeParameter{Name: "message", ValueString: fmt.Sprintf("code '%s' not found in system '%s'", req.Code, req.System)})
	}

	return &ValidateCodeResponse{
		ResourceType: "Parameters",
		Parameter:    params,
	}, nil
}

// SearchCodes searches a code system by its URI for the ValueSet
// expansion path. The ICD-10-CM system uses the diagnosis score
// ranking; the CPT modifier system uses plain substring matching.
func (s *Service) SearchCodes(ctx context.Context, systemURI, filter string, limit, offset int) ([]*SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	var results []*SearchResult
	switch systemURI {
	case SystemICD10:
		codes, err := s.SearchDiagnoses(ctx, filter, limit+offset)
		if err != nil {
			return nil, err
		}
		for _, c := range codes {
			results = append(results, &SearchResult{Code: c.Code, Display: c.Title, SystemURI: SystemICD10})
		}
	case SystemCPT:
		mods, err := s.modifiers.Search(ctx, filter, limit+offset)
		if err != nil {
			return nil, err
		}
		for _, m := range mods {
			results = append(results, &SearchResult{Code: m.Code, Display: m.Title, SystemURI: SystemCPT})
		}
	default:
		return nil, fmt.Errorf("unsupported code system: %s", systemURI)
	}

	if offset >= len(results) {
		return []*SearchResult{}, nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
