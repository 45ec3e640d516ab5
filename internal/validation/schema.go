package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/plan.schema.json
var schemaFS embed.FS

const planSchemaURL = "https://formsync.local/schemas/plan.schema.json"

// numberAPI decodes numbers as json.Number, which is what the schema
// validator expects.
var numberAPI = sonic.Config{UseNumber: true}.Froze()

var missingPropRE = regexp.MustCompile(`'([^']+)'`)

// SchemaValidator validates snapshots against a JSON schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewPlanValidator compiles the embedded plan schema.
func NewPlanValidator() (*SchemaValidator, error) {
	data, err := schemaFS.ReadFile("schemas/plan.schema.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}
	return compileSchema(planSchemaURL, data)
}

// NewSchemaValidatorFromFile compiles the schema stored at path.
func NewSchemaValidatorFromFile(path string) (*SchemaValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve schema path: %w", err)
	}
	return compileSchema(abs, data)
}

func compileSchema(url string, data []byte) (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

func (v *SchemaValidator) Validate(data map[string]any) *Errors {
	var errs Errors

	instance, err := normalize(data)
	if err != nil {
		errs.Add("", err.Error())
		return &errs
	}

	err = v.schema.Validate(instance)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		errs.Add("", err.Error())
		return &errs
	}
	collectLeaves(ve, &errs)
	errs.Sort()
	return errs.orNil()
}

// normalize converts a snapshot into plain JSON values.
func normalize(data map[string]any) (any, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := sonic.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var out any
	if err := numberAPI.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}

func collectLeaves(ve *jsonschema.ValidationError, errs *Errors) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collectLeaves(c, errs)
		}
		return
	}

	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	if field == "" && strings.HasPrefix(ve.Message, "missing properties") {
		for _, m := range missingPropRE.FindAllStringSubmatch(ve.Message, -1) {
			errs.Add(m[1], "is required")
		}
		return
	}
	errs.Add(field, ve.Message)
}
