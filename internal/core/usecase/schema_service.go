package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
)

// SchemaService is the validation layer in front of the Gateway. Each kind
// has a schema derived from its declared fields; operators may store an
// override.
type SchemaService struct {
	repo  ports.KindSchemaRepository
	cache sync.Map // domain.Kind to *santhosh.Schema
}

func NewSchemaService(repo ports.KindSchemaRepository) *SchemaService {
	return &SchemaService{repo: repo}
}

func (s *SchemaService) Upsert(ctx context.Context, kind domain.Kind, schemaJSON json.RawMessage) (domain.KindSchema, error) {
	spec, err := lookupKind(kind)
	if err != nil {
		return domain.KindSchema{}, err
	}
	if !json.Valid(schemaJSON) {
		return domain.KindSchema{}, domain.NewValidationError("schema", "must be valid json")
	}
	if _, err := compileSchema(schemaJSON); err != nil {
		return domain.KindSchema{}, domain.NewValidationError("schema", "invalid json schema: "+err.Error())
	}
	s.cache.Delete(spec.Kind)
	return s.repo.Upsert(ctx, domain.KindSchema{Kind: spec.Kind, Schema: schemaJSON})
}

// Get returns the stored override, or the derived schema when there is none.
func (s *SchemaService) Get(ctx context.Context, kind domain.Kind) (domain.KindSchema, error) {
	spec, err := lookupKind(kind)
	if err != nil {
		return domain.KindSchema{}, err
	}
	cs, err := s.repo.Get(ctx, spec.Kind)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.KindSchema{Kind: spec.Kind, Schema: DefaultSchema(spec)}, nil
	}
	return cs, err
}

// Delete drops the override so the derived schema applies again.
func (s *SchemaService) Delete(ctx context.Context, kind domain.Kind) (bool, error) {
	spec, err := lookupKind(kind)
	if err != nil {
		return false, err
	}
	s.cache.Delete(spec.Kind)
	return s.repo.Delete(ctx, spec.Kind)
}

// Validate checks raw entity fields against the kind's schema. Returns
// *domain.SchemaViolationError on failure.
func (s *SchemaService) Validate(ctx context.Context, kind domain.Kind, data json.RawMessage) error {
	spec, err := lookupKind(kind)
	if err != nil {
		return err
	}

	if cached, ok := s.cache.Load(spec.Kind); ok {
		return runValidation(cached.(*santhosh.Schema), data)
	}

	cs, err := s.Get(ctx, spec.Kind)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	compiled, err := compileSchema(cs.Schema)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	s.cache.Store(spec.Kind, compiled)
	return runValidation(compiled, data)
}

var jsonTypes = map[domain.FieldType]string{
	domain.FieldString:  "string",
	domain.FieldInteger: "integer",
	domain.FieldDecimal: "number",
	domain.FieldBool:    "boolean",
	domain.FieldTime:    "string",
}

// DefaultSchema derives a Draft 7 schema from spec: mandatory fields must be
// present and non-null, optional ones may be null, extra names are allowed.
func DefaultSchema(spec domain.KindSpec) json.RawMessage {
	props := make(map[string]any, len(spec.Fields))
	for _, f := range spec.Fields {
		typ := jsonTypes[f.Type]
		if f.Required {
			prop := map[string]any{"type": typ}
			if f.Type == domain.FieldString {
				prop["minLength"] = 1
			}
			props[f.Name] = prop
			continue
		}
		props[f.Name] = map[string]any{"type": []string{typ, "null"}}
	}
	required := spec.RequiredFields()
	if required == nil {
		required = []string{}
	}
	doc, _ := json.Marshal(map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      string(spec.Kind),
		"type":       "object",
		"required":   required,
		"properties": props,
	})
	return doc
}

func compileSchema(schemaJSON json.RawMessage) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func runValidation(sch *santhosh.Schema, data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return domain.NewValidationError("fields", "must be a json object")
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return &domain.SchemaViolationError{Errors: collectValidationErrors(ve)}
		}
		return &domain.SchemaViolationError{Errors: []string{err.Error()}}
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
