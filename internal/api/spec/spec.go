// Package spec embeds the OpenAPI document that describes the HTTP API.
package spec

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawSpec []byte

var (
	loadOnce sync.Once
	swagger  *openapi3.T
	loadErr  error
)

// GetSwagger parses the embedded document once. Callers must not mutate the
// returned value.
func GetSwagger() (*openapi3.T, error) {
	loadOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(rawSpec)
		if err != nil {
			loadErr = fmt.Errorf("load openapi document: %w", err)
			return
		}
		if err := doc.Validate(loader.Context); err != nil {
			loadErr = fmt.Errorf("validate openapi document: %w", err)
			return
		}
		swagger = doc
	})
	return swagger, loadErr
}
