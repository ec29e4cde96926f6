package coding

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcoding/medcoding/internal/platform/fhir"
	"github.com/medcoding/medcoding/pkg/pagination"
)

// cptCodeLength is the fixed length of a CPT procedure code.
const cptCodeLength = 5

// Handler provides REST and FHIR endpoints for the coding service.
type Handler struct {
	svc *Service
}

// NewHandler creates a new coding handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers coding routes on the API and FHIR groups.
func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	codingGroup := api.Group("/coding")
	codingGroup.GET("/diagnoses", h.SearchDiagnoses)
	codingGroup.GET("/diagnoses/:code", h.GetDiagnosis)
	codingGroup.GET("/modifiers", h.ListModifiers)
	codingGroup.GET("/modifiers/suggest", h.SuggestModifiers)
	codingGroup.GET("/modifiers/:code", h.GetModifier)
	codingGroup.GET("/ncci", h.CheckPair)
	codingGroup.GET("/ncci/pairs", h.ListPairEdits)

	// FHIR terminology operations
	fhirGroup.GET("/CodeSystem/$lookup", h.FHIRLookup)
	fhirGroup.POST("/CodeSystem/$lookup", h.FHIRLookup)
	fhirGroup.GET("/CodeSystem/$validate-code", h.FHIRValidateCode)
	fhirGroup.POST("/CodeSystem/$validate-code", h.FHIRValidateCode)
	fhirGroup.GET("/ValueSet/$expand", h.ExpandValueSet)
	fhirGroup.POST("/ValueSet/$expand", h.ExpandValueSet)
}

func getLimit(c echo.Context) int {
	return pagination.FromContextBounded(c, defaultSearchLimit, maxSearchLimit).Limit
}

// SearchDiagnoses handles GET /api/v1/coding/diagnoses?q=...
func (h *Handler) SearchDiagnoses(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	results, err := h.svc.SearchDiagnoses(c.Request().Context(), query, getLimit(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

// GetDiagnosis handles GET /api/v1/coding/diagnoses/:code
func (h *Handler) GetDiagnosis(c echo.Context) error {
	d, err := h.svc.GetDiagnosis(c.Request().Context(), c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "diagnosis code not found")
	}
	return c.JSON(http.StatusOK, d)
}

// ListModifiers handles GET /api/v1/coding/modifiers
func (h *Handler) ListModifiers(c echo.Context) error {
	mods, err := h.svc.ListModifiers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, mods)
}

// SuggestModifiers handles GET /api/v1/coding/modifiers/suggest?q=...
func (h *Handler) SuggestModifiers(c echo.Context) error {
	scenario := c.QueryParam("q")
	if scenario == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	suggestions, err := h.svc.SuggestModifiers(c.Request().Context(), scenario)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, suggestions)
}

// GetModifier handles GET /api/v1/coding/modifiers/:code
func (h *Handler) GetModifier(c echo.Context) error {
	m, err := h.svc.GetModifier(c.Request().Context(), c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "modifier not found")
	}
	return c.JSON(http.StatusOK, m)
}

// CheckPair handles GET /api/v1/coding/ncci?cpt_a=...&cpt_b=...
func (h *Handler) CheckPair(c echo.Context) error {
	cptA := c.QueryParam("cpt_a")
	cptB := c.QueryParam("cpt_b")
	if cptA == "" || cptB == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameters 'cpt_a' and 'cpt_b' are required")
	}
	if len(cptA) != cptCodeLength {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("cpt_a must be a %d-character CPT code", cptCodeLength))
	}
	if len(cptB) != cptCodeLength {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("cpt_b must be a %d-character CPT code", cptCodeLength))
	}
	result, err := h.svc.CheckPair(c.Request().Context(), cptA, cptB)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// A nil result means a code was blank once trimmed.
	if result == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameters 'cpt_a' and 'cpt_b' are required")
	}
	return c.JSON(http.StatusOK, result)
}

// ListPairEdits handles GET /api/v1/coding/ncci/pairs. Full NCCI tables run
// to millions of rows, so the listing is paginated.
func (h *Handler) ListPairEdits(c echo.Context) error {
	pairs, err := h.svc.ListPairEdits(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	page := pagination.FromContext(c)
	start, end := page.Slice(len(pairs))
	return c.JSON(http.StatusOK, pagination.NewResponse(pairs[start:end], len(pairs), page.Limit, page.Offset))
}

// FHIRLookup handles GET/POST /fhir/CodeSystem/$lookup
func (h *Handler) FHIRLookup(c echo.Context) error {
	var req LookupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	resp, err := h.svc.Lookup(c.Request().Context(), &req)
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, resp)
}

// FHIRValidateCode handles GET/POST /fhir/CodeSystem/$validate-code
func (h *Handler) FHIRValidateCode(c echo.Context) error {
	var req ValidateCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	resp, err := h.svc.ValidateCode(c.Request().Context(), &req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, resp)
}

// ExpandValueSet handles GET/POST /fhir/ValueSet/$expand
func (h *Handler) ExpandValueSet(c echo.Context) error {
	url := c.QueryParam("url")
	filter := c.QueryParam("filter")
	countStr := c.QueryParam("count")
	offsetStr := c.QueryParam("offset")

	count := maxSearchLimit
	if countStr != "" {
		if v, err := strconv.Atoi(countStr); err == nil && v > 0 {
			count = v
		}
	}
	offset := 0
	if offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil && v >= 0 {
			offset = v
		}
	}

	// Map well-known ValueSet URLs to code system lookups
	var systemURI string
	switch {
	case strings.Contains(url, "icd10") || strings.Contains(url, "icd-10"):
		systemURI = SystemICD10
	case strings.Contains(url, "cpt"):
		systemURI = SystemCPT
	}

	var contains []map[string]interface{}

	if systemURI != "" && filter != "" {
		results, err := h.svc.SearchCodes(c.Request().Context(), systemURI, filter, count, offset)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
		}
		for _, r := range results {
			contains = append(contains, map[string]interface{}{
				"system":  r.SystemURI,
				"code":    r.Code,
				"display": r.Display,
			})
		}
	}

	if contains == nil {
		contains = []map[string]interface{}{}
	}

	result := map[string]interface{}{
		"resourceType": "ValueSet",
		"expansion": map[string]interface{}{
			"identifier": uuid.New().String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"total":      len(contains),
			"offset":     offset,
			"contains":   contains,
		},
	}
	return c.JSON(http.StatusOK, result)
}
