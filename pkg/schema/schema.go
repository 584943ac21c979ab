package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Schema describes the object a model must return, derived from T.
type Schema[T any] struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`

	validate *validator.Validate
}

// SchemaOption configures schema creation.
type SchemaOption func(*schemaBuilder)

type schemaBuilder struct {
	name        string
	description string
}

// WithName overrides the schema name, which defaults to the struct name.
func WithName(name string) SchemaOption {
	return func(b *schemaBuilder) {
		b.name = name
	}
}

// WithDescription sets the schema description.
func WithDescription(desc string) SchemaOption {
	return func(b *schemaBuilder) {
		b.description = desc
	}
}

// NewSchema creates a Schema from a struct type using reflection. Field
// names follow json tags, descriptions come from description tags and
// validation rules from validate tags.
func NewSchema[T any](opts ...SchemaOption) (*Schema[T], error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, errors.New("schema must be created from a struct type, got interface")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema must be created from a struct type, got %v", t.Kind())
	}

	builder := &schemaBuilder{name: t.Name()}
	for _, opt := range opts {
		opt(builder)
	}

	fields, err := extractFields(t)
	if err != nil {
		return nil, err
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		return getJSONName(sf)
	})

	return &Schema[T]{
		Name:        builder.name,
		Description: builder.description,
		Fields:      fields,
		validate:    v,
	}, nil
}

// MustNewSchema is NewSchema for package-level schemas of known types.
func MustNewSchema[T any](opts ...SchemaOption) *Schema[T] {
	s, err := NewSchema[T](opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func extractFields(t reflect.Type) ([]Field, error) {
	fields := make([]Field, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("json") == "-" {
			continue
		}

		field, err := fieldFromType(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		field.Name = getJSONName(sf)
		field.Description = sf.Tag.Get("description")
		field.Validators = parseValidators(sf.Tag.Get("validate"))
		field.Required = sf.Type.Kind() != reflect.Ptr && !hasOmitempty(sf)

		fields = append(fields, field)
	}

	return fields, nil
}

func fieldFromType(t reflect.Type) (Field, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return Field{Type: TypeString}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Field{Type: TypeInteger}, nil
	case reflect.Float32, reflect.Float64:
		return Field{Type: TypeNumber}, nil
	case reflect.Bool:
		return Field{Type: TypeBoolean}, nil
	case reflect.Slice:
		item, err := fieldFromType(t.Elem())
		if err != nil {
			return Field{}, err
		}
		return Field{Type: TypeArray, Items: &item}, nil
	case reflect.Struct:
		props, err := extractFields(t)
		if err != nil {
			return Field{}, err
		}
		return Field{Type: TypeObject, Properties: props}, nil
	case reflect.Map:
		return Field{Type: TypeObject}, nil
	default:
		return Field{}, fmt.Errorf("unsupported type: %v", t.Kind())
	}
}

func getJSONName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

func hasOmitempty(sf reflect.StructField) bool {
	return strings.Contains(sf.Tag.Get("json"), "omitempty")
}

func parseValidators(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

// Decode strictly unmarshals data into T: unknown fields and trailing data
// are rejected.
func (s *Schema[T]) Decode(data []byte) (*T, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var v T
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}
	if dec.More() {
		return nil, errors.New("failed to unmarshal: trailing data after JSON value")
	}
	return &v, nil
}

// Validate checks v against its validate tags.
func (s *Schema[T]) Validate(v *T) []ValidationError {
	if v == nil {
		return []ValidationError{{Field: s.Name, Message: "is required"}}
	}

	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Field: s.Name, Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, ValidationError{
			Field:   trimNamespace(e.Namespace()),
			Message: formatValidationError(e),
			Value:   e.Value(),
		})
	}
	return out
}

// Parse decodes and validates in one step. A validation failure is returned
// as ValidationErrors.
func (s *Schema[T]) Parse(data []byte) (*T, error) {
	v, err := s.Decode(data)
	if err != nil {
		return nil, err
	}
	if errs := s.Validate(v); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return v, nil
}

// trimNamespace drops the root struct name, "ScheduleList.schedules[0].x"
// becomes "schedules[0].x".
func trimNamespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "datetime":
		return fmt.Sprintf("must match layout %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
