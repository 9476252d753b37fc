package handler

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	dErrors "verigate/pkg/domain-errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://verigate.local/schemas/"

// Schema file names, one per request body.
const (
	schemaEvidence     = "evidence.schema.json"
	schemaRequirements = "requirements.schema.json"
	schemaDecision     = "decision.schema.json"
	schemaAttestation  = "attestation.schema.json"
)

// schemaChecker validates a raw request body against a compiled schema. It
// implements httputil.BodyChecker.
type schemaChecker struct {
	schema *jsonschema.Schema
}

func (c *schemaChecker) Check(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	if err := c.schema.Validate(instance); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return dErrors.Wrap(err, dErrors.CodeValidation, describe(ve))
		}
		return dErrors.Wrap(err, dErrors.CodeValidation, "request does not match schema")
	}
	return nil
}

// describe reports the first leaf failure, which names the offending field.
func describe(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}

type schemaSet map[string]*schemaChecker

var loadSchemas = sync.OnceValues(compileSchemas)

func compileSchemas() (schemaSet, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	names, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		return nil, err
	}
	for _, path := range names {
		data, err := schemaFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", path, err)
		}
		url := schemaBaseURL + path[len("schemas/"):]
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", path, err)
		}
	}

	set := make(schemaSet)
	for _, name := range []string{schemaEvidence, schemaRequirements, schemaDecision, schemaAttestation} {
		schema, err := compiler.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		set[name] = &schemaChecker{schema: schema}
	}
	return set, nil
}
