package coding

// DiagnosisCode represents an ICD-10-CM diagnosis code with its
// descriptive match fields. Includes/Excludes/Synonyms are nil when the
// catalog carries no data for them, which is distinct from an empty list.
type DiagnosisCode struct {
	Code     string   `json:"code"`
	Title    string   `json:"title"`
	Includes []string `json:"includes,omitempty"`
	Excludes []string `json:"excludes,omitempty"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// ModifierEntry represents a CPT/HCPCS billing modifier.
type ModifierEntry struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// PairEdit is an NCCI bundling rule for an unordered pair of CPT codes.
// The stored (CPTA, CPTB) order is arbitrary; lookups try both orders.
type PairEdit struct {
	CPTA             string `json:"cpt_a"`
	CPTB             string `json:"cpt_b"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	ModifierRequired bool   `json:"modifier_required"`
}

// PairCheckResult is the verdict for a pair check, echoing the codes in
// the order the caller supplied them.
type PairCheckResult struct {
	CPTA             string `json:"cpt_a"`
	CPTB             string `json:"cpt_b"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	ModifierRequired bool   `json:"modifier_required"`
}

// Pair edit statuses accepted by the edit table.
const (
	PairStatusAllowed = "allowed"
	PairStatusDenied  = "denied"
)

// DefaultPairMessage is synthesized for pairs with no registered edit.
const DefaultPairMessage = "No known NCCI bundling issues between these CPT codes."

// SearchResult is a system-agnostic code search result used by the
// ValueSet expansion path.
type SearchResult struct {
	Code      string `json:"code"`
	Display   string `json:"display"`
	SystemURI string `json:"system"`
}

// LookupRequest represents a FHIR CodeSystem $lookup request. The
// operation can be invoked as a POST with a JSON body or as a GET with
// query parameters.
type LookupRequest struct {
	System string `json:"system" query:"system"`
	Code   string `json:"code" query:"code"`
}

// LookupResponse represents a FHIR CodeSystem $lookup response.
type LookupResponse struct {
	ResourceType string            `json:"resourceType"`
	Parameter    []LookupParameter `json:"parameter"`
}

// LookupParameter is a name/value pair in a FHIR Parameters resource.
type LookupParameter struct {
	Name        string            `json:"name"`
	ValueString string            `json:"valueString,omitempty"`
	ValueCode   string            `json:"valueCode,omitempty"`
	Part        []LookupParameter `json:"part,omitempty"`
}

// ValidateCodeRequest represents a FHIR CodeSystem $validate-code request.
type ValidateCodeRequest struct {
	System  string `json:"system" query:"system"`
	Code    string `json:"code" query:"code"`
	Display string `json:"display,omitempty" query:"display"`
}

// ValidateCodeResponse represents a FHIR CodeSystem $validate-code response.
type ValidateCodeResponse struct {
	ResourceType string                  `json:"resourceType"`
	Parameter    []ValidateCodeParameter `json:"parameter"`
}

// ValidateCodeParameter is a name/value pair in a validate-code response.
type ValidateCodeParameter struct {
	Name         string `json:"name"`
	ValueBoolean *bool  `json:"valueBoolean,omitempty"`
	ValueString  string `json:"valueString,omitempty"`
}

// CodeSystemURI constants for the systems this service owns.
const (
	SystemICD10 = "http://hl7.org/fhir/sid/icd-10-cm"
	SystemCPT   = "http://www.ama-assn.org/go/cpt"
)
