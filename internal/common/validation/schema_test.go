package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"response":        map[string]interface{}{"type": "string", "minLength": 1},
			"ready_to_create": map[string]interface{}{"type": "boolean"},
		},
		"required":             []interface{}{"response", "ready_to_create"},
		"additionalProperties": false,
	}
}

func TestSchema_Validate(t *testing.T) {
	schema, err := Compile(replySchema())
	require.NoError(t, err)

	tests := []struct {
		name     string
		doc      map[string]interface{}
		valid    bool
		wantCode string
	}{
		{
			name:  "valid reply",
			doc:   map[string]interface{}{"response": "When did it start?", "ready_to_create": false},
			valid: true,
		},
		{
			name:     "missing flag",
			doc:      map[string]interface{}{"response": "hi"},
			wantCode: "REQUIRED_FIELD_MISSING",
		},
		{
			name:     "flag as string",
			doc:      map[string]interface{}{"response": "hi", "ready_to_create": "yes"},
			wantCode: "INVALID_TYPE",
		},
		{
			name:     "unknown key",
			doc:      map[string]interface{}{"response": "hi", "ready_to_create": true, "vendor": "Acme"},
			wantCode: "EXTRA_FIELD",
		},
		{
			name:     "empty response",
			doc:      map[string]interface{}{"response": "", "ready_to_create": true},
			wantCode: "MIN_LENGTH_VIOLATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.Validate(tt.doc)
			assert.Equal(t, tt.valid, result.Valid)
			if tt.valid {
				assert.Empty(t, result.Errors)
				assert.Empty(t, result.Error())
				return
			}
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, tt.wantCode, result.Errors[0].Code)
			assert.NotEmpty(t, result.Error())
		})
	}
}

func TestSchema_ValidateJSON(t *testing.T) {
	schema := MustCompile(replySchema())

	assert.True(t, schema.ValidateJSON(`{"response":"ok","ready_to_create":true}`).Valid)

	broken := schema.ValidateJSON(`{"response":`)
	assert.False(t, broken.Valid)
	assert.Equal(t, "INVALID_JSON", broken.Errors[0].Code)
}

func TestValidateInput_RequiredFieldName(t *testing.T) {
	result := ValidateInput(map[string]interface{}{}, replySchema())

	require.False(t, result.Valid)
	fields := []string{result.Errors[0].Field, result.Errors[1].Field}
	assert.ElementsMatch(t, []string{"response", "ready_to_create"}, fields)
}

func TestCompile_RejectsBrokenSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 42})
	assert.Error(t, err)
}
