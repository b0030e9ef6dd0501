package http

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawSpec []byte

var (
	specOnce sync.Once
	spec     *openapi3.T
	specErr  error
)

// GetSwagger returns the parsed and validated OpenAPI document served at /openapi.yaml.
func GetSwagger() (*openapi3.T, error) {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(rawSpec)
		if err != nil {
			specErr = fmt.Errorf("failed to load OpenAPI spec: %w", err)
			return
		}
		if err := doc.Validate(loader.Context); err != nil {
			specErr = fmt.Errorf("invalid OpenAPI spec: %w", err)
			return
		}
		spec = doc
	})
	return spec, specErr
}
