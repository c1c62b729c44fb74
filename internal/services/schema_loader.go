package services

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	contextutils "supportapp/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

// TicketRequestSchema validates a normalized ticket submission
const TicketRequestSchema = "ticket_request"

//go:embed schemas/*.json
var embeddedSchemas embed.FS

// SchemaLoader holds compiled JSON schemas by name
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaLoader creates an empty schema loader
func NewSchemaLoader() *SchemaLoader {
	return &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// LoadEmbeddedSchemas compiles the schemas shipped with the binary
func LoadEmbeddedSchemas() (*SchemaLoader, error) {
	loader := NewSchemaLoader()
	if err := loader.LoadSchemas(embeddedSchemas, "schemas"); err != nil {
		return nil, err
	}
	return loader, nil
}

// LoadSchemas compiles every *.json file in dir. The schema name is the file name without extension.
func (sl *SchemaLoader) LoadSchemas(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return contextutils.WrapError(err, "failed to read schema directory")
	}

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to read schema %s", entry.Name())
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to load schema %s", entry.Name())
		}
		sl.schemas[strings.TrimSuffix(entry.Name(), ".json")] = schema
	}
	return nil
}

// Has reports whether a schema with this name is loaded
func (sl *SchemaLoader) Has(schemaName string) bool {
	_, ok := sl.schemas[schemaName]
	return ok
}

// ValidateData validates data against a schema
func (sl *SchemaLoader) ValidateData(data interface{}, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	// Convert data to JSON
	jsonData, err := json.Marshal(data)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal data")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return contextutils.WrapError(err, "validation error")
	}

	if !result.Valid() {
		var validationErrors []string
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return contextutils.NewAppError(
			contextutils.ErrorCodeValidationFailed,
			contextutils.SeverityWarn,
			"Invalid ticket: "+validationErrors[0],
			strings.Join(validationErrors, "; "),
		)
	}

	return nil
}
