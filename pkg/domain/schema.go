package domain

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// rawEventSchema constrains the shape of an inbound raw event document.
// The document is otherwise open: workflows read event_type and
// metadata.category and ignore the rest.
const rawEventSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"event_type": {"type": "string"},
		"metadata": {
			"type": "object",
			"properties": {
				"category": {"type": "string"}
			}
		},
		"regulatory_flags": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

var compiledRawEventSchema = mustCompileRawEventSchema()

func mustCompileRawEventSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource("raw_event.json", strings.NewReader(rawEventSchema)); err != nil {
		panic(err)
	}
	return c.MustCompile("raw_event.json")
}

// ValidateRawEventDocument checks an inbound raw event JSON document
// against the event envelope schema. Schema violations and malformed JSON
// surface as *DomainValidationError.
func ValidateRawEventDocument(doc []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, NewDomainValidationError("raw event is not valid JSON: " + err.Error())
	}
	if err := compiledRawEventSchema.Validate(v); err != nil {
		return nil, NewDomainValidationError("raw event failed schema validation: " + err.Error())
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, NewDomainValidationError("raw event must be a JSON object")
	}
	return m, nil
}
