package resource

import "fmt"

// Schema is the minimal shape the repository needs from the resource
// validation layer: the set of field names a resource type permits. A
// real deployment plugs in the full FHIR StructureDefinition-driven
// validator here; the repository itself only needs the
// additional-property and required-field checks.
type Schema struct {
	ResourceType   string
	AllowedFields  map[string]bool
	RequiredFields []string
}

// Registry looks up a Schema by resource type name.
type Registry map[string]*Schema

// Validate checks data against the schema: unknown properties first,
// then required ones.
func (s *Schema) Validate(data map[string]any) error {
	if s.AllowedFields == nil {
		return nil
	}

	for field := range data {
		if field == "resourceType" || field == "id" || field == "meta" {
			continue
		}
		if !s.AllowedFields[field] {
			return NewValidationOutcome(
				fmt.Sprintf("Invalid additional property %q", field),
				fmt.Sprintf("%s.%s", s.ResourceType, field),
			)
		}
	}

	for _, required := range s.RequiredFields {
		if _, ok := data[required]; !ok {
			return NewValidationOutcome(
				fmt.Sprintf("Missing required property %q", required),
				fmt.Sprintf("%s.%s", s.ResourceType, required),
			)
		}
	}

	return nil
}

// Lookup returns the schema for resourceType, or a permissive fallback
// Schema with no field restrictions if the registry doesn't know it. An
// unregistered type skips validation rather than failing hard.
func (r Registry) Lookup(resourceType string) *Schema {
	if s, ok := r[resourceType]; ok {
		return s
	}
	return &Schema{ResourceType: resourceType}
}
