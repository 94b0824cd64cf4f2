package wire

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	evpay "github.com/evervault/evpay-go"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[evpay.Platform]string{
	evpay.PlatformApplePay:  "schemas/applepay.json",
	evpay.PlatformGooglePay: "schemas/googlepay.json",
}

var (
	schemasOnce sync.Once
	schemas     map[evpay.Platform]*gojsonschema.Schema
	schemasErr  error
)

func loadSchemas() (map[evpay.Platform]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[evpay.Platform]*gojsonschema.Schema, len(schemaFiles))
		for platform, name := range schemaFiles {
			raw, err := schemaFS.ReadFile(name)
			if err != nil {
				schemasErr = err
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				schemasErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			schemas[platform] = s
		}
	})
	return schemas, schemasErr
}

// ValidationResult represents the result of validating a platform payload
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateJSON validates a platform payload against the embedded schema for
// that platform.
func ValidateJSON(platform evpay.Platform, payload []byte) ValidationResult {
	all, err := loadSchemas()
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("Failed to load schemas: %v", err)},
		}
	}
	schema, ok := all[platform]
	if !ok {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("No schema for platform %q", platform)},
		}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("Schema validation failed: %v", err)},
		}
	}
	if result.Valid() {
		return ValidationResult{Valid: true}
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return ValidationResult{
		Valid:  false,
		Errors: errors,
	}
}

// Validate checks the platform payload against its schema. A failure means
// the translator produced something the wallet would reject.
func (r Request) Validate() error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: marshal %s request: %w", evpay.ErrInternal, r.Platform, err)
	}
	res := ValidateJSON(r.Platform, payload)
	if !res.Valid {
		return fmt.Errorf("%w: %s request: %s", evpay.ErrInvalidTransaction, r.Platform, strings.Join(res.Errors, "; "))
	}
	return nil
}
