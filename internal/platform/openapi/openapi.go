package openapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medcoding/medcoding/internal/platform/fhir"
)

// Generator builds an OpenAPI 3.0 spec for the coding API. The REST surface
// is fixed; the FHIR terminology operation paths are derived from the
// CapabilityBuilder so /openapi.json and /fhir/metadata always agree.
type Generator struct {
	capBuilder *fhir.CapabilityBuilder
	version    string
	serverURL  string
}

// NewGenerator creates a new OpenAPI spec generator. serverURL is the public
// root of the service (e.g. "http://localhost:8080").
func NewGenerator(capBuilder *fhir.CapabilityBuilder, version, serverURL string) *Generator {
	return &Generator{capBuilder: capBuilder, version: version, serverURL: serverURL}
}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := buildCodingPaths()

	// Terminology operation paths from the capability statement
	capStatement := g.capBuilder.Build()
	restArray, _ := capStatement["rest"].([]map[string]interface{})
	if len(restArray) > 0 {
		resources, _ := restArray[0]["resource"].([]map[string]interface{})
		for _, res := range resources {
			resType, _ := res["type"].(string)
			ops, _ := res["operation"].([]map[string]interface{})
			for _, op := range ops {
				name, _ := op["name"].(string)
				if resType == "" || name == "" {
					continue
				}
				doc, _ := op["documentation"].(string)
				paths["/fhir/"+resType+"/$"+name] = buildOperationPath(resType, name, doc)
			}
		}
	}

	paths["/fhir/metadata"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "FHIR CapabilityStatement",
			"operationId": "getMetadata",
			"tags":        []string{"Conformance"},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "CapabilityStatement",
					"content": map[string]interface{}{
						"application/json": map[string]interface{}{
							"schema": map[string]interface{}{"type": "object"},
						},
					},
				},
			},
		},
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Medical Coding Reference API",
			"version":     g.version,
			"description": "Diagnosis code search, billing modifier suggestion, and NCCI pair checking",
		},
		"servers": []map[string]string{
			{"url": g.serverURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": buildComponentSchemas(),
		},
	}
}

// buildCodingPaths returns the path items for the REST surface under
// /api/v1/coding and the health endpoints.
func buildCodingPaths() map[string]interface{} {
	paths := make(map[string]interface{})

	paths["/api/v1/coding/diagnoses"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Search diagnosis codes",
			"operationId": "searchDiagnoses",
			"tags":        []string{"Diagnoses"},
			"parameters": []map[string]interface{}{
				queryParam("q", "string", true, "Free-text search over codes, titles, and match lists"),
				queryParam("limit", "integer", false, "Maximum results (default 5, capped at 50)"),
				queryParam("_count", "integer", false, "FHIR-style alias for limit"),
			},
			"responses": map[string]interface{}{
				"200": jsonArrayResponse("Ranked matches", "#/components/schemas/DiagnosisCode"),
				"400": jsonResponse("Missing query", "#/components/schemas/Error"),
			},
		},
	}

	paths["/api/v1/coding/diagnoses/{code}"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Read a diagnosis code",
			"operationId": "getDiagnosis",
			"tags":        []string{"Diagnoses"},
			"parameters":  []map[string]interface{}{pathParam("code", "ICD-10-CM code")},
			"responses": map[string]interface{}{
				"200": jsonResponse("Diagnosis code", "#/components/schemas/DiagnosisCode"),
				"404": jsonResponse("Unknown code", "#/components/schemas/Error"),
			},
		},
	}

	paths["/api/v1/coding/modifiers"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "List billing modifiers",
			"operationId": "listModifiers",
			"tags":        []string{"Modifiers"},
			"responses": map[string]interface{}{
				"200": jsonArrayResponse("Full modifier catalog", "#/components/schemas/ModifierEntry"),
			},
		},
	}

	paths["/api/v1/coding/modifiers/suggest"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Suggest modifiers for a billing scenario",
			"operationId": "suggestModifiers",
			"tags":        []string{"Modifiers"},
			"parameters": []map[string]interface{}{
				queryParam("q", "string", true, "Free-text billing scenario description"),
			},
			"responses": map[string]interface{}{
				"200": jsonArrayResponse("Suggested modifiers in rule order", "#/components/schemas/ModifierEntry"),
				"400": jsonResponse("Missing query", "#/components/schemas/Error"),
			},
		},
	}

	paths["/api/v1/coding/modifiers/{code}"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Read a modifier",
			"operationId": "getModifier",
			"tags":        []string{"Modifiers"},
			"parameters":  []map[string]interface{}{pathParam("code", "CPT/HCPCS modifier code")},
			"responses": map[string]interface{}{
				"200": jsonResponse("Modifier entry", "#/components/schemas/ModifierEntry"),
				"404": jsonResponse("Unknown modifier", "#/components/schemas/Error"),
			},
		},
	}

	paths["/api/v1/coding/ncci"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Check a CPT code pair against NCCI edits",
			"operationId": "checkPair",
			"tags":        []string{"NCCI"},
			"parameters": []map[string]interface{}{
				queryParam("cpt_a", "string", true, "First CPT code, 5 characters"),
				queryParam("cpt_b", "string", true, "Second CPT code, 5 characters"),
			},
			"responses": map[string]interface{}{
				"200": jsonResponse("Pair verdict", "#/components/schemas/PairCheckResult"),
				"400": jsonResponse("Missing or malformed codes", "#/components/schemas/Error"),
			},
		},
	}

	paths["/api/v1/coding/ncci/pairs"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "List registered NCCI pair edits",
			"operationId": "listPairEdits",
			"tags":        []string{"NCCI"},
			"parameters": []map[string]interface{}{
				queryParam("limit", "integer", false, "Page size (default 20, capped at 100)"),
				queryParam("offset", "integer", false, "Page start"),
				queryParam("_count", "integer", false, "FHIR-style alias for limit"),
				queryParam("_offset", "integer", false, "FHIR-style alias for offset"),
			},
			"responses": map[string]interface{}{
				"200": jsonResponse("Paginated pair edits", "#/components/schemas/PairEditPage"),
			},
		},
	}

	paths["/health"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Liveness check",
			"operationId": "getHealth",
			"tags":        []string{"Health"},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Server is up",
					"content": map[string]interface{}{
						"application/json": map[string]interface{}{
							"schema": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"status":  map[string]interface{}{"type": "string"},
									"version": map[string]interface{}{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	paths["/health/catalog"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Catalog table sizes",
			"operationId": "getCatalogHealth",
			"tags":        []string{"Health"},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "All tables loaded",
					"content": map[string]interface{}{
						"application/json": map[string]interface{}{
							"schema": map[string]interface{}{"type": "object"},
						},
					},
				},
				"503": map[string]interface{}{
					"description": "A table came up empty",
					"content": map[string]interface{}{
						"application/json": map[string]interface{}{
							"schema": map[string]interface{}{"type": "object"},
						},
					},
				},
			},
		},
	}

	return paths
}

// buildOperationPath builds the path item for a FHIR terminology operation.
// Every operation is invokable as GET with query parameters; $lookup and
// $validate-code also accept a POST body.
func buildOperationPath(resourceType, name, doc string) map[string]interface{} {
	summary := doc
	if summary == "" {
		summary = resourceType + " $" + name
	}

	get := map[string]interface{}{
		"summary":     summary,
		"operationId": operationID(resourceType, name),
		"tags":        []string{resourceType},
		"parameters":  operationQueryParams(name),
		"responses":   operationResponses(name),
	}

	post := map[string]interface{}{
		"summary":     summary,
		"operationId": operationID(resourceType, name) + "Post",
		"tags":        []string{resourceType},
		"responses":   operationResponses(name),
	}
	if body := operationRequestBody(name); body != nil {
		post["requestBody"] = body
	} else {
		post["parameters"] = operationQueryParams(name)
	}

	return map[string]interface{}{"get": get, "post": post}
}

// operationID derives a camelCase operation id, e.g.
// ("CodeSystem", "validate-code") -> "codeSystemValidateCode".
func operationID(resourceType, name string) string {
	id := strings.ToLower(resourceType[:1]) + resourceType[1:]
	for _, part := range strings.Split(name, "-") {
		if part == "" {
			continue
		}
		id += strings.ToUpper(part[:1]) + part[1:]
	}
	return id
}

func operationQueryParams(name string) []map[string]interface{} {
	switch name {
	case "lookup":
		return []map[string]interface{}{
			queryParam("system", "string", true, "Code system URI"),
			queryParam("code", "string", true, "Code to look up"),
		}
	case "validate-code":
		return []map[string]interface{}{
			queryParam("system", "string", true, "Code system URI"),
			queryParam("code", "string", true, "Code to validate"),
			queryParam("display", "string", false, "Display text to validate against"),
		}
	case "expand":
		return []map[string]interface{}{
			queryParam("url", "string", false, "ValueSet URL selecting the code system"),
			queryParam("filter", "string", false, "Text filter for the expansion"),
			queryParam("count", "integer", false, "Maximum number of codes"),
			queryParam("offset", "integer", false, "Expansion offset"),
		}
	}
	return nil
}

func operationRequestBody(name string) map[string]interface{} {
	var ref string
	switch name {
	case "lookup":
		ref = "#/components/schemas/LookupRequest"
	case "validate-code":
		ref = "#/components/schemas/ValidateCodeRequest"
	default:
		return nil
	}
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{"$ref": ref},
			},
		},
	}
}

func operationResponses(name string) map[string]interface{} {
	if name == "expand" {
		return map[string]interface{}{
			"200": jsonResponse("ValueSet with expansion", "#/components/schemas/ValueSet"),
		}
	}
	responses := map[string]interface{}{
		"200": jsonResponse("Parameters", "#/components/schemas/Parameters"),
	}
	if name == "lookup" {
		responses["404"] = jsonResponse("Unknown code", "#/components/schemas/OperationOutcome")
	} else {
		responses["400"] = jsonResponse("Invalid request", "#/components/schemas/OperationOutcome")
	}
	return responses
}

// ── Parameter and response helpers ──────────────────────────────────────

func queryParam(name, typ string, required bool, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"required":    required,
		"description": description,
		"schema":      map[string]interface{}{"type": typ},
	}
}

func pathParam(name, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "path",
		"required":    true,
		"description": description,
		"schema":      map[string]interface{}{"type": "string"},
	}
}

// jsonResponse creates an OpenAPI response with a content schema reference.
func jsonResponse(description, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"$ref": schemaRef,
				},
			},
		},
	}
}

func jsonArrayResponse(description, itemRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"$ref": itemRef},
				},
			},
		},
	}
}

// ── Component schemas ───────────────────────────────────────────────────

func buildComponentSchemas() map[string]interface{} {
	return map[string]interface{}{
		"DiagnosisCode":       buildDiagnosisCodeSchema(),
		"ModifierEntry":       buildModifierEntrySchema(),
		"PairEdit":            buildPairEditSchema(),
		"PairCheckResult":     buildPairCheckResultSchema(),
		"PairEditPage":        buildPairEditPageSchema(),
		"Parameters":          buildParametersSchema(),
		"LookupRequest":       buildLookupRequestSchema(),
		"ValidateCodeRequest": buildValidateCodeRequestSchema(),
		"ValueSet":            buildValueSetSchema(),
		"OperationOutcome":    buildOperationOutcomeSchema(),
		"Error":               buildErrorSchema(),
	}
}

func buildDiagnosisCodeSchema() map[string]interface{} {
	stringArray := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code":     map[string]interface{}{"type": "string", "example": "M25.561"},
			"title":    map[string]interface{}{"type": "string"},
			"includes": stringArray,
			"excludes": stringArray,
			"synonyms": stringArray,
		},
		"required": []string{"code", "title"},
	}
}

func buildModifierEntrySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code":   map[string]interface{}{"type": "string", "example": "59"},
			"title":  map[string]interface{}{"type": "string"},
			"reason": map[string]interface{}{"type": "string"},
		},
		"required": []string{"code", "title", "reason"},
	}
}

func buildPairEditSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"cpt_a":             map[string]interface{}{"type": "string"},
			"cpt_b":             map[string]interface{}{"type": "string"},
			"status":            map[string]interface{}{"type": "string", "enum": []string{"allowed", "denied"}},
			"message":           map[string]interface{}{"type": "string"},
			"modifier_required": map[string]interface{}{"type": "boolean"},
		},
		"required": []string{"cpt_a", "cpt_b", "status"},
	}
}

func buildPairCheckResultSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"cpt_a":             map[string]interface{}{"type": "string"},
			"cpt_b":             map[string]interface{}{"type": "string"},
			"status":            map[string]interface{}{"type": "string", "enum": []string{"allowed", "denied"}},
			"message":           map[string]interface{}{"type": "string"},
			"modifier_required": map[string]interface{}{"type": "boolean"},
		},
		"required": []string{"cpt_a", "cpt_b", "status", "message", "modifier_required"},
	}
}

func buildPairEditPageSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"data": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"$ref": "#/components/schemas/PairEdit"},
			},
			"total":    map[string]interface{}{"type": "integer"},
			"limit":    map[string]interface{}{"type": "integer"},
			"offset":   map[string]interface{}{"type": "integer"},
			"has_more": map[string]interface{}{"type": "boolean"},
		},
		"required": []string{"data", "total", "limit", "offset", "has_more"},
	}
}

func buildParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"resourceType": map[string]interface{}{"type": "string", "enum": []string{"Parameters"}},
			"parameter": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":         map[string]interface{}{"type": "string"},
						"valueString":  map[string]interface{}{"type": "string"},
						"valueCode":    map[string]interface{}{"type": "string"},
						"valueBoolean": map[string]interface{}{"type": "boolean"},
						"part": map[string]interface{}{
							"type": "array",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"name":        map[string]interface{}{"type": "string"},
									"valueString": map[string]interface{}{"type": "string"},
									"valueCode":   map[string]interface{}{"type": "string"},
								},
								"required": []string{"name"},
							},
						},
					},
					"required": []string{"name"},
				},
			},
		},
		"required": []string{"resourceType", "parameter"},
	}
}

func buildLookupRequestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"system": map[string]interface{}{"type": "string", "format": "uri"},
			"code":   map[string]interface{}{"type": "string"},
		},
		"required": []string{"system", "code"},
	}
}

func buildValidateCodeRequestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"system":  map[string]interface{}{"type": "string", "format": "uri"},
			"code":    map[string]interface{}{"type": "string"},
			"display": map[string]interface{}{"type": "string"},
		},
		"required": []string{"system", "code"},
	}
}

func buildValueSetSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"resourceType": map[string]interface{}{"type": "string", "enum": []string{"ValueSet"}},
			"expansion": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"identifier": map[string]interface{}{"type": "string"},
					"timestamp":  map[string]interface{}{"type": "string", "format": "date-time"},
					"total":      map[string]interface{}{"type": "integer"},
					"offset":     map[string]interface{}{"type": "integer"},
					"contains": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"system":  map[string]interface{}{"type": "string"},
								"code":    map[string]interface{}{"type": "string"},
								"display": map[string]interface{}{"type": "string"},
							},
						},
					},
				},
			},
		},
		"required": []string{"resourceType", "expansion"},
	}
}

func buildOperationOutcomeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"resourceType": map[string]interface{}{"type": "string", "enum": []string{"OperationOutcome"}},
			"issue": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"severity": map[string]interface{}{
							"type": "string",
							"enum": []string{"fatal", "error", "warning", "information"},
						},
						"code":        map[string]interface{}{"type": "string"},
						"diagnostics": map[string]interface{}{"type": "string"},
					},
					"required": []string{"severity", "code"},
				},
			},
		},
		"required": []string{"resourceType", "issue"},
	}
}

func buildErrorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{"type": "string"},
		},
		"required": []string{"message"},
	}
}

// ── Swagger UI ──────────────────────────────────────────────────────────

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Medical Coding Reference API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/v1/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes registers the OpenAPI endpoints.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	apiGroup.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
