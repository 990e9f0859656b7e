// Package docs holds the OpenAPI document for the HTTP API.
package docs

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/swaggo/swag"
)

//go:embed openapi.yaml
var openapiYAML []byte

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// document serves the embedded API description as JSON through the swag
// registry.
type document struct {
	once sync.Once
	json string
}

func (d *document) ReadDoc() string {
	d.once.Do(func() {
		doc, err := openapi3.NewLoader().LoadFromData(openapiYAML)
		if err != nil {
			d.json = "{}"
			return
		}
		out, err := json.Marshal(doc)
		if err != nil {
			d.json = "{}"
			return
		}
		d.json = string(out)
	})
	return d.json
}

func init() {
	swag.Register(swag.Name, &document{})
}

// JSON returns the registered document.
func JSON() (string, error) {
	return swag.ReadDoc()
}
