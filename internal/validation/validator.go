package validation

import (
	"fmt"

	"formsync/internal/config"
)

// Validator checks a snapshot and returns nil when it is valid.
type Validator interface {
	Validate(data map[string]any) *Errors
}

// Func adapts a function to Validator.
type Func func(map[string]any) *Errors

func (f Func) Validate(data map[string]any) *Errors { return f(data) }

// Chain runs validators in order and merges their errors.
type Chain []Validator

func (c Chain) Validate(data map[string]any) *Errors {
	var all Errors
	for _, v := range c {
		if v == nil {
			continue
		}
		if errs := v.Validate(data); errs != nil {
			all = append(all, *errs...)
		}
	}
	all.Sort()
	return all.orNil()
}

// FromConfig builds the submit validator: the plan schema (or the configured
// schema file) followed by the configured expression rules.
func FromConfig(cfg config.ValidationConfig) (Validator, error) {
	var (
		schema *SchemaValidator
		err    error
	)
	if cfg.SchemaPath != "" {
		schema, err = NewSchemaValidatorFromFile(cfg.SchemaPath)
	} else {
		schema, err = NewPlanValidator()
	}
	if err != nil {
		return nil, fmt.Errorf("build schema validator: %w", err)
	}

	rules, err := NewRuleValidator(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("build rule validator: %w", err)
	}
	return Chain{schema, rules}, nil
}
