package services

import (
	"testing"
	"testing/fstest"

	contextutils "supportapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedSchemas(t *testing.T) {
	loader, err := LoadEmbeddedSchemas()
	require.NoError(t, err)
	assert.True(t, loader.Has(TicketRequestSchema))
	assert.False(t, loader.Has("missing"))
}

func TestValidateData_TicketRequest(t *testing.T) {
	loader, err := LoadEmbeddedSchemas()
	require.NoError(t, err)

	tests := []struct {
		name  string
		doc   map[string]interface{}
		valid bool
	}{
		{
			name:  "minimal",
			doc:   map[string]interface{}{"payload": validPayload(), "screenshots": []interface{}{}},
			valid: true,
		},
		{
			name: "with attachments",
			doc: map[string]interface{}{
				"payload":         validPayload(),
				"screenshots":     []interface{}{wireAttachment("a.png", "image/png", []byte("png"))},
				"screenRecording": nil,
				"harFile":         wireAttachment("s.har", "application/json", []byte("{}")),
			},
			valid: true,
		},
		{
			name:  "no payload",
			doc:   map[string]interface{}{"screenshots": []interface{}{}},
			valid: false,
		},
		{
			name: "attachment without data",
			doc: map[string]interface{}{
				"payload":     validPayload(),
				"screenshots": []interface{}{map[string]interface{}{"name": "a.png"}},
			},
			valid: false,
		},
		{
			name: "consent is not a boolean",
			doc: map[string]interface{}{
				"payload": func() map[string]interface{} {
					p := validPayload()
					p["consentGiven"] = "yes"
					return p
				}(),
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.ValidateData(tt.doc, TicketRequestSchema)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(err))
		})
	}
}

func TestValidateData_UnknownSchema(t *testing.T) {
	err := NewSchemaLoader().ValidateData(map[string]interface{}{}, "nope")
	assert.Error(t, err)
}

func TestLoadSchemas_FromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"s/thing.json":  {Data: []byte(`{"type":"object","required":["id"]}`)},
		"s/README.md":   {Data: []byte("ignored")},
		"s/broken.json": {Data: []byte(`{"type": 12}`)},
	}

	err := NewSchemaLoader().LoadSchemas(fsys, "s")
	assert.Error(t, err)

	delete(fsys, "s/broken.json")
	loader := NewSchemaLoader()
	require.NoError(t, loader.LoadSchemas(fsys, "s"))
	assert.True(t, loader.Has("thing"))
	assert.Error(t, loader.ValidateData(map[string]interface{}{}, "thing"))
	assert.NoError(t, loader.ValidateData(map[string]interface{}{"id": 1}, "thing"))
}
