package openapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const validationResource = "openapi.json"

// ValidateComponents compiles every component schema of doc. OpenAPI 3.0
// schemas are compiled as Draft 4 and 3.1 schemas as Draft 2020-12.
func ValidateComponents(doc *Document) error {
	if len(doc.Components) == 0 {
		return nil
	}

	components, _ := doc.raw["components"].(map[string]interface{})
	schemas, _ := components["schemas"].(map[string]interface{})
	data, err := json.Marshal(map[string]interface{}{
		"components": map[string]interface{}{"schemas": schemas},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	// Create a new compiler per document to avoid resource conflicts
	compiler := jsonschema.NewCompiler()
	compiler.Draft = draftFor(doc.OpenAPI)
	if err := compiler.AddResource(validationResource, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to add schema resource: %w", err)
	}

	for _, c := range doc.Components {
		url := validationResource + "#" + componentPointer(c.Name)
		if _, err := compiler.Compile(url); err != nil {
			return fmt.Errorf("%w: component schema %s: %v", ErrInvalidDocument, c.Name, err)
		}
	}
	return nil
}

func draftFor(version string) *jsonschema.Draft {
	if strings.HasPrefix(version, "3.1") {
		return jsonschema.Draft2020
	}
	return jsonschema.Draft4
}
