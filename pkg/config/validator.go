package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/williamokano/backup_receiver/pkg/storage"
)

// Validate validates a decoded configuration document against the JSON schema.
// Every violation is listed in the returned error, which wraps
// storage.ErrInvalidConfig.
func Validate(doc interface{}) error {
	schemaLoader := gojsonschema.NewStringLoader(Schema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}

	if !result.Valid() {
		var b strings.Builder
		for _, desc := range result.Errors() {
			fmt.Fprintf(&b, "\n  - %s", desc)
		}
		return fmt.Errorf("configuration file is not valid: %w%s", storage.ErrInvalidConfig, b.String())
	}

	return nil
}
