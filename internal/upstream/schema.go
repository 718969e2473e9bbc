package upstream

import (
	"bytes"
	"embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const (
	schemaUsers    = "users.json"
	schemaUser     = "user.json"
	schemaPolicies = "policies.json"
)

// payloadSchemas holds the compiled shapes of every upstream document.
// Compiled once, read-only afterwards.
type payloadSchemas struct {
	users    *jsonschema.Schema
	user     *jsonschema.Schema
	policies *jsonschema.Schema
}

func compileSchemas() (*payloadSchemas, error) {
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	for _, name := range []string{schemaUsers, schemaUser, schemaPolicies} {
		raw, err := schemaFiles.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	s := &payloadSchemas{}
	var err error
	if s.users, err = compiler.Compile(schemaUsers); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", schemaUsers, err)
	}
	if s.user, err = compiler.Compile(schemaUser); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", schemaUser, err)
	}
	if s.policies, err = compiler.Compile(schemaPolicies); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", schemaPolicies, err)
	}
	return s, nil
}

// validatePayload checks body against schema and returns a short, path-qualified
// description of the first violation.
func validatePayload(schema *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("payload violates schema: %s", formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}

	path := "$"
	var parts []string
	for _, part := range ve.InstanceLocation {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		path = "$." + strings.Join(parts, ".")
	}

	msg := ve.Error()
	if len(msg) > 200 {
		msg = msg[:200] + "... (truncated)"
	}
	return fmt.Sprintf("at '%s': %s", path, msg)
}
