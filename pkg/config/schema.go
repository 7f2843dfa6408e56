package config

import (
	"embed"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Schema validation errors.
var (
	ErrMissingField    = errors.New("missing required field")
	ErrSchemaViolation = errors.New("schema violation")
)

//go:embed schemas/*.json
var schemas embed.FS

// requiredErrorType is the gojsonschema error type of a missing required property.
const requiredErrorType = "required"

// validateSchema checks data against the embedded schema of the named catalog.
// Every violation is reported; missing fields are named explicitly.
func validateSchema(catalog string, data []byte) error {
	schema, err := schemas.ReadFile("schemas/" + catalog + ".json")
	if err != nil {
		return fmt.Errorf("read %s schema: %w", catalog, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("decode %s: %w", catalog, err)
	}

	if result.Valid() {
		return nil
	}

	errs := make([]error, 0, len(result.Errors()))

	for _, desc := range result.Errors() {
		if desc.Type() == requiredErrorType {
			errs = append(errs, fmt.Errorf("%w %q in %s entry %q",
				ErrMissingField, desc.Details()["property"], catalog, desc.Field()))

			continue
		}

		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrSchemaViolation, catalog, desc.String()))
	}

	return errors.Join(errs...)
}
