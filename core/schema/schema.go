// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package schema

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/xeipuuv/gojsonschema"
)

// Validator is a utility to validate JSON objects against a given schema
type Validator struct {
	schemaValidators map[string]*gojsonschema.Schema
}

// NewValidatorFromFS creates a new Validator using schemas from schemaFS. All json
// files in dir are compiled as toplevel schemas, keyed by their $id.
func NewValidatorFromFS(schemaFS embed.FS, dir string) (*Validator, error) {

	var strs []string
	files, err := schemaFS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read dir %w", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		str, err := schemaFS.ReadFile(dir + "/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("cannot read file '%s' %w", f.Name(), err)
		}
		strs = append(strs, string(str))
	}

	return NewValidator(strs)
}

// NewValidator creates a new Validator for the top level JSON schemas. Schemas cannot
// reference each other.
func NewValidator(schemas []string) (*Validator, error) {
	type schema struct {
		ID string `json:"$id"`
	}
	validator := Validator{schemaValidators: make(map[string]*gojsonschema.Schema)}
	for _, str := range schemas {
		s := schema{}
		err := json.Unmarshal([]byte(str), &s)
		if err != nil {
			return nil, fmt.Errorf("parse error '%v' in schema: '%s'", err, str)
		}
		if s.ID == "" {
			return nil, fmt.Errorf("schema does not contain $id: '%s'", str)
		}
		sl := gojsonschema.NewSchemaLoader()
		schema, err := sl.Compile(gojsonschema.NewStringLoader(str))
		if err != nil {
			return nil, fmt.Errorf("cannot compile schema %s %s", s.ID, err)
		}
		validator.schemaValidators[s.ID] = schema
	}

	return &validator, nil
}

// HasSchema returns true if schemaID is known
func (v *Validator) HasSchema(schemaID string) bool {
	_, ok := v.schemaValidators[schemaID]
	return ok
}

// ValidateStruct validates the given json as a struct against schemaID. If no error is returned,
// then the passed json is valid
func (v *Validator) ValidateStruct(json interface{}, schemaID string) error {
	return v.validate(gojsonschema.NewGoLoader(json), schemaID)
}

// ValidateString validates the given json against schemaID. If no error is returned, then the
// passed json is valid
func (v *Validator) ValidateString(json, schemaID string) error {
	return v.validate(gojsonschema.NewStringLoader(json), schemaID)
}

// validate validates the given loader against schemaID. If no error is returned, then the passed json
// is valid
func (v *Validator) validate(loader gojsonschema.JSONLoader, schemaID string) error {

	schema, ok := v.schemaValidators[schemaID]
	if !ok {
		return fmt.Errorf("there is no schema %s ", schemaID)
	}

	result, err := schema.Validate(loader)
	if err != nil {
		return fmt.Errorf("cannot validate with schema %s %s", schemaID, err)
	}

	if !result.Valid() {
		err := "the document is not valid :\n"
		for _, e := range result.Errors() {
			err += fmt.Sprintf("- %s\n", e)
		}
		return errors.New(err)
	}
	return nil
}

// FieldErrors returns per-field validation messages for the given document, or nil
// if the document is valid. The map is keyed by the offending field.
func (v *Validator) FieldErrors(json interface{}, schemaID string) map[string]string {
	schema, ok := v.schemaValidators[schemaID]
	if !ok {
		return map[string]string{"": fmt.Sprintf("there is no schema %s", schemaID)}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(json))
	if err != nil {
		return map[string]string{"": err.Error()}
	}
	if result.Valid() {
		return nil
	}
	details := map[string]string{}
	for _, e := range result.Errors() {
		field := e.Field()
		if property, ok := e.Details()["property"].(string); ok && field == "(root)" {
			field = property
		}
		details[field] = e.Description()
	}
	return details
}
