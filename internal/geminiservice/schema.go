package geminiservice

/* =================================================================================
							GEMINI SCHEMA DEFINITION
	Tells Gemini how to format its JSON response ("Controlled Generation").
=================================================================================*/

// Schema types understood by the API.
const (
	TypeObject  = "OBJECT"
	TypeArray   = "ARRAY"
	TypeString  = "STRING"
	TypeNumber  = "NUMBER"
	TypeInteger = "INTEGER"
	TypeBoolean = "BOOLEAN"
)

// Schema maps to the OpenAPI subset accepted as responseSchema.
type Schema struct {
	// Type defines the data type (e.g., "OBJECT", "ARRAY", "STRING", "NUMBER").
	Type string `json:"type"`

	// Format specifies data format, primarily used for "enum" validation.
	Format string `json:"format,omitempty"`

	// Description explains the field's purpose to the AI, helping it generate better content.
	Description string `json:"description,omitempty"`

	// Properties maps field names to their child schemas (used when Type is "OBJECT").
	Properties map[string]*Schema `json:"properties,omitempty"`

	// Items defines the schema for elements within an array (used when Type is "ARRAY").
	Items *Schema `json:"items,omitempty"`

	// Required lists the field names that the AI MUST include in the response.
	Required []string `json:"required,omitempty"`

	// Enum lists valid specific string values for fields with restricted options.
	Enum []string `json:"enum,omitempty"`

	Minimum  *float64 `json:"minimum,omitempty"`
	Maximum  *float64 `json:"maximum,omitempty"`
	MinItems *int     `json:"minItems,omitempty"`
	MaxItems *int     `json:"maxItems,omitempty"`
}

// String is a STRING schema with a description.
func String(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc}
}

// Enum is a STRING schema restricted to values.
func Enum(desc string, values ...string) *Schema {
	return &Schema{Type: TypeString, Format: "enum", Description: desc, Enum: values}
}

// Number is a NUMBER schema bounded to [min, max].
func Number(desc string, min, max float64) *Schema {
	return &Schema{Type: TypeNumber, Description: desc, Minimum: &min, Maximum: &max}
}

// StringList is an ARRAY of STRING.
func StringList(desc string) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: &Schema{Type: TypeString}}
}

// Object is an OBJECT schema with the given properties and required keys.
func Object(desc string, props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Description: desc, Properties: props, Required: required}
}

// RequiredMissing returns the required keys of s absent from doc.
// Only the top level is checked; nested objects are the caller's business.
func (s *Schema) RequiredMissing(doc map[string]any) []string {
	var missing []string
	for _, key := range s.Required {
		if _, ok := doc[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
