package analysis

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"mirror-backend/internal/diagnosis"
)

//go:embed schema.json
var requestSchemaJSON []byte

var requestSchema = mustCompileSchema(requestSchemaJSON)

func mustCompileSchema(raw []byte) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile analysis schema: %v", err))
	}
	return schema
}

// Request is the JSON body of POST /analysis.
type Request struct {
	Age          int    `json:"age"`
	SkinType     string `json:"skinType"`
	SaggingLevel int    `json:"saggingLevel"`
	WrinkleLevel int    `json:"wrinkleLevel"`
	Budget       string `json:"budget"`
	DowntimeOK   bool   `json:"downtimeOk"`
	Locale       string `json:"locale"`
}

// ValidateBody checks raw JSON against the request schema and returns one
// field error per violation.
func ValidateBody(body []byte) ([]diagnosis.FieldError, error) {
	result, err := requestSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	out := make([]diagnosis.FieldError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		field := e.Field()
		if field == "(root)" {
			if prop, ok := e.Details()["property"].(string); ok {
				field = prop
			}
		}
		out = append(out, diagnosis.FieldError{Field: field, Issue: e.Description()})
	}
	return out, nil
}

// Decode validates and converts a raw request body into an analysis Input.
func Decode(body []byte) (Input, []diagnosis.FieldError, error) {
	fields, err := ValidateBody(body)
	if err != nil {
		return Input{}, nil, err
	}
	if len(fields) > 0 {
		return Input{}, fields, nil
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			issue := fmt.Sprintf("must be %s, got %s", typeName(typeErr.Type.Kind()), typeErr.Value)
			return Input{}, []diagnosis.FieldError{{Field: typeErr.Field, Issue: issue}}, nil
		}
		return Input{}, nil, fmt.Errorf("decode request: %w", err)
	}
	return req.ToInput()
}

func typeName(k reflect.Kind) string {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "a whole number"
	case reflect.Bool:
		return "a boolean"
	case reflect.String:
		return "a string"
	default:
		return k.String()
	}
}

// ToInput converts labels into canonical questionnaire values.
func (r Request) ToInput() (Input, []diagnosis.FieldError, error) {
	var fields []diagnosis.FieldError
	skin, err := diagnosis.ParseSkinType(r.SkinType)
	if err != nil {
		fields = append(fields, diagnosis.FieldError{Field: "skinType", Issue: "unknown skin type"})
	}
	budget, err := diagnosis.ParseBudget(r.Budget)
	if err != nil {
		fields = append(fields, diagnosis.FieldError{Field: "budget", Issue: "unknown budget"})
	}
	if len(fields) > 0 {
		return Input{}, fields, nil
	}

	var locale diagnosis.Locale
	if strings.TrimSpace(r.Locale) != "" {
		locale = diagnosis.ParseLocale(r.Locale)
	}
	return Input{
		Questionnaire: diagnosis.Input{
			Age:          r.Age,
			SkinType:     skin,
			SaggingLevel: r.SaggingLevel,
			WrinkleLevel: r.WrinkleLevel,
			Budget:       budget,
			DowntimeOK:   r.DowntimeOK,
		},
		Locale: locale,
	}, nil, nil
}
