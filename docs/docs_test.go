package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerDocRendersValidJSON(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Swagger string                    `json:"swagger"`
		Info    map[string]any            `json:"info"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "Document Viewer API", doc.Info["title"])
	for path, method := range map[string]string{
		"/api/list":           "get",
		"/api/file/{id}":      "get",
		"/api/delete/{id}":    "delete",
		"/api/get-upload-url": "post",
		"/api/register":       "post",
		"/upload":             "post",
		"/webhook":            "post",
		"/health":             "get",
		"/healthz":            "get",
	} {
		assert.Contains(t, doc.Paths[path], method, path)
	}
}
