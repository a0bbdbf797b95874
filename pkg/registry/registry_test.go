package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID:          "process-tenant-message",
				DisplayName: "Process Tenant Message",
				TaskType:    "process-tenant-message",
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"tenantId", "message"},
					"properties": map[string]interface{}{
						"tenantId": map[string]interface{}{"type": "string", "minLength": 1},
						"message":  map[string]interface{}{"type": "string", "minLength": 1},
					},
				},
			},
			{ID: "search-issues", DisplayName: "Search Issues", TaskType: "search-issues"},
		},
	}
}

func TestActivityRegistry_Find(t *testing.T) {
	reg := sampleRegistry()

	a, ok := reg.Find("search-issues")
	require.True(t, ok)
	assert.Equal(t, "Search Issues", a.DisplayName)

	_, ok = reg.Find("unknown")
	assert.False(t, ok)
}

func TestActivityRegistry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ActivityRegistry)
		wantErr string
	}{
		{name: "valid", mutate: func(r *ActivityRegistry) {}},
		{name: "empty", mutate: func(r *ActivityRegistry) { r.Activities = nil }, wantErr: "no activities"},
		{name: "duplicate id", mutate: func(r *ActivityRegistry) { r.Activities[1].ID = r.Activities[0].ID }, wantErr: "duplicate"},
		{name: "missing task type", mutate: func(r *ActivityRegistry) { r.Activities[1].TaskType = "" }, wantErr: "taskType"},
		{name: "broken schema", mutate: func(r *ActivityRegistry) {
			r.Activities[0].InputSchema = map[string]interface{}{"type": 7}
		}, wantErr: "process-tenant-message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := sampleRegistry()
			tt.mutate(reg)
			err := reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestActivityRegistry_InputValidator(t *testing.T) {
	reg := sampleRegistry()

	schema, err := reg.InputValidator("process-tenant-message")
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.False(t, schema.Validate(map[string]interface{}{"tenantId": "t1"}).Valid)
	assert.True(t, schema.Validate(map[string]interface{}{"tenantId": "t1", "message": "hi"}).Valid)

	none, err := reg.InputValidator("search-issues")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLoadRegistry_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity-registry.json")
	require.NoError(t, sampleRegistry().Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Activities, 2)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}

func TestLoadRegistry_ShippedFile(t *testing.T) {
	reg, err := LoadRegistry("../../configs/activity-registry.json")
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	for _, taskType := range []string{"process-tenant-message", "load-conversation", "notify-landlord", "post-issue-message", "search-issues"} {
		_, ok := reg.Find(taskType)
		assert.True(t, ok, taskType)
	}
}
