package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Stats reports the size of each loaded code table.
type Stats struct {
	DiagnosisCodes int `json:"diagnosis_codes"`
	ModifierCodes  int `json:"modifier_codes"`
	NCCIPairEdits  int `json:"ncci_pair_edits"`
}

// GetStats returns the table sizes of the catalog.
func GetStats(c *Catalog) *Stats {
	return &Stats{
		DiagnosisCodes: len(c.Diagnoses),
		ModifierCodes:  len(c.Modifiers),
		NCCIPairEdits:  len(c.PairEdits),
	}
}

// HealthHandler returns an HTTP handler for the catalog health check
// endpoint. The catalog is immutable after startup, so the check reports
// the load-time table sizes and fails only when a table came up empty.
func HealthHandler(cat *Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats := GetStats(cat)

		if stats.DiagnosisCodes == 0 || stats.ModifierCodes == 0 || stats.NCCIPairEdits == 0 {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":  "unhealthy",
				"catalog": stats,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"catalog": stats,
		})
	}
}
