// Package openapi builds an OpenAPI 3 document by reflecting on the Go types
// used by registered operations.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces an OpenAPI 3.0 document from registered operations.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	errorModel  interface{}
	operations  []Operation
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// Operation describes one route.
type Operation struct {
	Method      string
	Path        string // mux style, e.g. /api/v1/deployments/{name}
	ID          string
	Summary     string
	Tag         string
	Query       []Param
	Request     interface{} // body model, nil for none
	Response    interface{} // success body model
	Status      int         // success status, 200 when zero
	Description string
}

// Param is a query parameter.
type Param struct {
	Name        string
	Type        string // string, integer or boolean
	Description string
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) {
		g.servers = append(g.servers, url)
	}
}

// WithErrorModel sets the body type of error responses.
func WithErrorModel(model interface{}) Option {
	return func(g *Generator) {
		g.errorModel = model
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:   "API",
		version: "0.0.0",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Register adds an operation.
func (g *Generator) Register(op Operation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.operations = append(g.operations, op)
	g.cachedSpec = nil
}

// Generate produces the OpenAPI document.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Paths: &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}
	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	var errorRef *openapi3.SchemaRef
	if g.errorModel != nil {
		errorRef = g.schemaRef(spec, reflect.TypeOf(g.errorModel))
	}

	for _, op := range g.operations {
		item := spec.Paths.Value(op.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			for _, name := range pathParams(op.Path) {
				item.Parameters = append(item.Parameters, &openapi3.ParameterRef{
					Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()),
				})
			}
			spec.Paths.Set(op.Path, item)
		}
		item.SetOperation(op.Method, g.operation(spec, op, errorRef))
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the document.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Operation Generation
// =============================================================================

func (g *Generator) operation(spec *openapi3.T, op Operation, errorRef *openapi3.SchemaRef) *openapi3.Operation {
	o := &openapi3.Operation{
		OperationID: op.ID,
		Summary:     op.Summary,
		Description: op.Description,
		Responses:   &openapi3.Responses{},
	}
	if op.Tag != "" {
		o.Tags = []string{op.Tag}
	}

	for _, p := range op.Query {
		param := openapi3.NewQueryParameter(p.Name).WithSchema(scalarSchema(p.Type))
		param.Description = p.Description
		o.Parameters = append(o.Parameters, &openapi3.ParameterRef{Value: param})
	}

	if op.Request != nil {
		o.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(g.schemaRef(spec, reflect.TypeOf(op.Request))),
		}
	}

	status := op.Status
	if status == 0 {
		status = http.StatusOK
	}
	success := openapi3.NewResponse().WithDescription(http.StatusText(status))
	if op.Response != nil {
		success = success.WithJSONSchemaRef(g.schemaRef(spec, reflect.TypeOf(op.Response)))
	}
	o.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: success})

	if errorRef != nil {
		o.Responses.Set("default", &openapi3.ResponseRef{
			Value: openapi3.NewResponse().WithDescription("Error").WithJSONSchemaRef(errorRef),
		})
	}

	return o
}

var pathParamPattern = regexp.MustCompile(`\{([^}/:]+)`)

func pathParams(path string) []string {
	var names []string
	for _, m := range pathParamPattern.FindAllStringSubmatch(path, -1) {
		names = append(names, m[1])
	}
	return names
}

// =============================================================================
// Schema Generation
// =============================================================================

var timeType = reflect.TypeOf(time.Time{})

// schemaRef returns a reference to the component schema of a named struct,
// registering it on first use. Other types are inlined.
func (g *Generator) schemaRef(spec *openapi3.T, t reflect.Type) *openapi3.SchemaRef {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch {
	case t == timeType:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
	case t.Kind() == reflect.Struct && t.Name() != "":
		name := t.Name()
		if _, ok := spec.Components.Schemas[name]; !ok {
			// placeholder first so self-references terminate
			spec.Components.Schemas[name] = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
			spec.Components.Schemas[name] = g.structSchema(spec, t)
		}
		return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
	}
	return g.typeSchema(spec, t)
}

// structSchema builds an object schema. Embedded structs are flattened the
// way encoding/json does.
func (g *Generator) structSchema(spec *openapi3.T, t reflect.Type) *openapi3.SchemaRef {
	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}
	g.addFields(spec, schema, t)
	sort.Strings(schema.Required)
	return &openapi3.SchemaRef{Value: schema}
}

func (g *Generator) addFields(spec *openapi3.T, schema *openapi3.Schema, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		parts := strings.Split(jsonTag, ",")

		if field.Anonymous && parts[0] == "" {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				g.addFields(spec, schema, ft)
				continue
			}
		}
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if parts[0] != "" {
			name = parts[0]
		}

		omitempty := false
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				omitempty = true
			}
		}
		if !omitempty && field.Type.Kind() != reflect.Ptr {
			schema.Required = append(schema.Required, name)
		}

		schema.Properties[name] = g.schemaRef(spec, field.Type)
	}
}

// typeSchema converts a non-struct Go type to an inline schema.
func (g *Generator) typeSchema(spec *openapi3.T, t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: g.schemaRef(spec, t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: g.schemaRef(spec, t.Elem())},
			},
		}

	case reflect.Struct:
		// anonymous struct
		return g.structSchema(spec, t)

	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

func scalarSchema(typ string) *openapi3.Schema {
	switch typ {
	case "integer":
		return openapi3.NewIntegerSchema()
	case "boolean":
		return openapi3.NewBoolSchema()
	default:
		return openapi3.NewStringSchema()
	}
}
