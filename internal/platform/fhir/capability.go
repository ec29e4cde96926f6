package fhir

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// SearchParam describes a search parameter advertised for a resource type.
type SearchParam struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Documentation string `json:"documentation,omitempty"`
}

// OperationCapability describes a resource-level operation such as $lookup.
type OperationCapability struct {
	Name          string `json:"name"`
	Definition    string `json:"definition"`
	Documentation string `json:"documentation,omitempty"`
}

type resourceEntry struct {
	resourceType string
	interactions []string
	searchParams []SearchParam
	operations   []OperationCapability
}

// CapabilityBuilder accumulates resource registrations from domain modules and
// builds a FHIR CapabilityStatement. Domains call AddResource and AddOperation
// during server initialization so the /fhir/metadata response reflects only
// what is actually mounted.
type CapabilityBuilder struct {
	mu        sync.RWMutex
	resources map[string]*resourceEntry

	ServerVersion string
	BaseURL       string
}

// NewCapabilityBuilder creates a new builder. The baseURL is the FHIR base
// URL (e.g. "http://localhost:8080/fhir") and version is the server software
// version.
func NewCapabilityBuilder(baseURL, version string) *CapabilityBuilder {
	return &CapabilityBuilder{
		resources:     make(map[string]*resourceEntry),
		ServerVersion: version,
		BaseURL:       baseURL,
	}
}

// AddResource registers a FHIR resource type with the given interactions and
// search parameters. If the resource type was already registered, the new
// interactions and search parameters are merged with the existing ones.
func (b *CapabilityBuilder) AddResource(resourceType string, interactions []string, searchParams []SearchParam) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.entryLocked(resourceType)

	for _, code := range interactions {
		if !containsCode(entry.interactions, code) {
			entry.interactions = append(entry.interactions, code)
		}
	}

	for _, sp := range searchParams {
		if !hasSearchParam(entry.searchParams, sp.Name) {
			entry.searchParams = append(entry.searchParams, sp)
		}
	}
}

// AddOperation registers an operation under a resource type. Duplicate
// operation names for the same resource are ignored.
func (b *CapabilityBuilder) AddOperation(resourceType string, op OperationCapability) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.entryLocked(resourceType)
	for _, existing := range entry.operations {
		if existing.Name == op.Name {
			return
		}
	}
	entry.operations = append(entry.operations, op)
}

func (b *CapabilityBuilder) entryLocked(resourceType string) *resourceEntry {
	entry, ok := b.resources[resourceType]
	if !ok {
		entry = &resourceEntry{resourceType: resourceType}
		b.resources[resourceType] = entry
	}
	return entry
}

// ResourceCount returns the number of registered resource types.
func (b *CapabilityBuilder) ResourceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.resources)
}

// GetResourceTypes returns the registered resource types sorted alphabetically.
func (b *CapabilityBuilder) GetResourceTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.resources))
	for rt := range b.resources {
		types = append(types, rt)
	}
	sort.Strings(types)
	return types
}

// Build constructs the CapabilityStatement as a map suitable for JSON
// serialization. Resources are sorted alphabetically by type.
func (b *CapabilityBuilder) Build() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.resources))
	for rt := range b.resources {
		types = append(types, rt)
	}
	sort.Strings(types)

	resources := make([]map[string]interface{}, 0, len(types))
	for _, rt := range types {
		resources = append(resources, buildResourceEntry(b.resources[rt]))
	}

	return map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"date":         time.Now().UTC().Format("2006-01-02"),
		"kind":         "instance",
		"fhirVersion":  "4.0.1",
		"format":       []string{"json"},
		"software": map[string]string{
			"name":    "coding-server",
			"version": b.ServerVersion,
		},
		"implementation": map[string]string{
			"description": "Medical billing code reference service",
			"url":         b.BaseURL,
		},
		"rest": []map[string]interface{}{
			{
				"mode":     "server",
				"resource": resources,
			},
		},
	}
}

// buildResourceEntry constructs the map for a single resource type.
func buildResourceEntry(entry *resourceEntry) map[string]interface{} {
	res := map[string]interface{}{
		"type": entry.resourceType,
	}

	if len(entry.interactions) > 0 {
		interactions := make([]map[string]string, len(entry.interactions))
		for i, code := range entry.interactions {
			interactions[i] = map[string]string{"code": code}
		}
		res["interaction"] = interactions
	}

	if len(entry.searchParams) > 0 {
		params := make([]map[string]interface{}, len(entry.searchParams))
		for i, sp := range entry.searchParams {
			p := map[string]interface{}{
				"name": sp.Name,
				"type": sp.Type,
			}
			if sp.Documentation != "" {
				p["documentation"] = sp.Documentation
			}
			params[i] = p
		}
		res["searchParam"] = params
	}

	if len(entry.operations) > 0 {
		ops := make([]map[string]interface{}, len(entry.operations))
		for i, op := range entry.operations {
			o := map[string]interface{}{
				"name":       op.Name,
				"definition": op.Definition,
			}
			if op.Documentation != "" {
				o["documentation"] = op.Documentation
			}
			ops[i] = o
		}
		res["operation"] = ops
	}

	return res
}

func containsCode(list []string, code string) bool {
	for _, v := range list {
		if v == code {
			return true
		}
	}
	return false
}

func hasSearchParam(list []SearchParam, name string) bool {
	for _, sp := range list {
		if sp.Name == name {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// CapabilityHandler
// ---------------------------------------------------------------------------

// CapabilityHandler serves the CapabilityStatement on /metadata.
type CapabilityHandler struct {
	builder *CapabilityBuilder
}

// NewCapabilityHandler creates a handler backed by the given builder.
func NewCapabilityHandler(builder *CapabilityBuilder) *CapabilityHandler {
	return &CapabilityHandler{builder: builder}
}

// RegisterRoutes registers the metadata endpoint on the FHIR group.
func (h *CapabilityHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/metadata", h.GetMetadata)
}

// GetMetadata handles GET /fhir/metadata.
func (h *CapabilityHandler) GetMetadata(c echo.Context) error {
	return c.JSON(http.StatusOK, h.builder.Build())
}
