/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package processor

import (
	"context"
	"fmt"
	"go/format"
	"go/token"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/suparena/repository/errors"
)

// Vendor extensions read from components.schemas.
const (
	IndexMapExtension  = "x-dynamodb-indexmap"
	EntityKeyExtension = "x-entity-key"
)

// DefaultRegistryImport is the import path of the registry package used by generated code.
const DefaultRegistryImport = "github.com/suparena/repository/registry"

// Options controls code generation.
type Options struct {
	// Package is the package clause of the generated file.
	Package string
	// RegistryImport overrides DefaultRegistryImport.
	RegistryImport string
}

// Entity is a schema that carries at least one of the vendor extensions.
type Entity struct {
	Name     string
	IndexMap map[string]string
	KeyField string
}

type extensions struct {
	Components struct {
		Schemas map[string]struct {
			IndexMap map[string]string `yaml:"x-dynamodb-indexmap"`
			KeyField string            `yaml:"x-entity-key"`
		} `yaml:"schemas"`
	} `yaml:"components"`
}

// Parse validates spec as an OpenAPI 3 document, in YAML or JSON, and returns
// the annotated schemas sorted by name.
func Parse(spec []byte) ([]Entity, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	var ext extensions
	if err := yaml.Unmarshal(spec, &ext); err != nil {
		return nil, fmt.Errorf("failed to read vendor extensions: %w", err)
	}

	var entities []Entity
	for _, name := range slices.Sorted(maps.Keys(ext.Components.Schemas)) {
		schema := ext.Components.Schemas[name]
		if schema.IndexMap == nil && schema.KeyField == "" {
			continue
		}
		if ref := doc.Components.Schemas[name]; ref == nil || ref.Value == nil {
			return nil, errors.NewValidationError(name, "schema could not be resolved")
		}

		entity := Entity{Name: name, IndexMap: schema.IndexMap, KeyField: schema.KeyField}
		if err := entity.validate(); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

func (e Entity) validate() error {
	if !token.IsIdentifier(e.Name) || !token.IsExported(e.Name) {
		return errors.NewValidationError(e.Name, "schema name is not an exported Go identifier")
	}
	if e.KeyField != "" && (!token.IsIdentifier(e.KeyField) || !token.IsExported(e.KeyField)) {
		return errors.NewValidationError(e.Name+"."+EntityKeyExtension, fmt.Sprintf("%q is not an exported Go field name", e.KeyField))
	}
	if e.IndexMap != nil {
		for _, attr := range []string{"PK", "SK"} {
			if e.IndexMap[attr] == "" {
				return errors.NewValidationError(e.Name+"."+IndexMapExtension, fmt.Sprintf("missing %s template", attr))
			}
		}
	}
	return nil
}

// Generate returns gofmt'ed Go source that registers the type name, index map
// and key field of every annotated schema in spec.
func Generate(spec []byte, opts Options) ([]byte, error) {
	if !token.IsIdentifier(opts.Package) {
		return nil, errors.NewValidationError("package", fmt.Sprintf("%q is not a valid package name", opts.Package))
	}
	if opts.RegistryImport == "" {
		opts.RegistryImport = DefaultRegistryImport
	}

	entities, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, errors.NewValidationError("components.schemas", "no schema carries "+IndexMapExtension+" or "+EntityKeyExtension)
	}

	var b strings.Builder
	b.WriteString("// Code generated by indexmap. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", opts.Package)
	fmt.Fprintf(&b, "import \"%s\"\n\n", opts.RegistryImport)
	b.WriteString("func init() {\n")
	for i, e := range entities {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "registry.RegisterType[%s](%s)\n", e.Name, strconv.Quote(e.Name))
		if e.IndexMap != nil {
			fmt.Fprintf(&b, "registry.RegisterIndexMap[%s](map[string]string{\n", e.Name)
			for _, attr := range slices.Sorted(maps.Keys(e.IndexMap)) {
				fmt.Fprintf(&b, "%s: %s,\n", strconv.Quote(attr), strconv.Quote(e.IndexMap[attr]))
			}
			b.WriteString("})\n")
		}
		if e.KeyField != "" {
			fmt.Fprintf(&b, "registry.RegisterKeyField[%s](%s)\n", e.Name, strconv.Quote(e.KeyField))
		}
	}
	b.WriteString("}\n")

	src, err := format.Source([]byte(b.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to format generated code: %w", err)
	}
	return src, nil
}
