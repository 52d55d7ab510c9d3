// Package swagger serves the API description.
package swagger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.yaml.in/yaml/v3"
)

// ErrConvert is returned when the embedded document cannot be turned into JSON.
var ErrConvert = errors.New("openapi document conversion failed")

// Register attaches the API docs routes to mux.
//
//	GET /api-docs      -> ReDoc HTML
//	GET /openapi.yaml  -> embedded OpenAPI document
//	GET /openapi.json  -> the same document as JSON
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("/api-docs", getOnly("text/html; charset=utf-8", func() ([]byte, error) {
		return []byte(indexHTML), nil
	}))
	mux.HandleFunc("/openapi.yaml", getOnly("application/yaml; charset=utf-8", func() ([]byte, error) {
		return OpenAPI, nil
	}))
	mux.HandleFunc("/openapi.json", getOnly("application/json", openAPIJSON))
}

func getOnly(contentType string, body func() ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		b, err := body()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(b)
	}
}

var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	return yamlToJSON(OpenAPI)
})

func yamlToJSON(doc []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConvert, err)
	}
	b, err := json.Marshal(jsonCompatible(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConvert, err)
	}
	return b, nil
}

// jsonCompatible rewrites maps with non-string keys, such as response
// codes, into string-keyed maps.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = jsonCompatible(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = jsonCompatible(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = jsonCompatible(e)
		}
		return t
	default:
		return v
	}
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Scale filter API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
