package validation

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/meetingflow/errors"
)

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "mapstructure"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return toSnakeCase(f.Name)
	})
	return v
})

// Validate checks s against its `validate` tags. Failures come back as one
// validation AppError listing every field, with the []FieldError under
// Details["fields"]. Field paths are snake_case without the root type,
// e.g. "sources[1]".
func Validate(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Validation(err.Error())
	}

	v := New()
	for _, fe := range verrs {
		v.AddError(fieldPath(fe), describe(fe))
	}
	return v.Err()
}

var tagMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"url":      "must be a valid URL",
	"uuid":     "must be a valid UUID",
}

var boundMessages = map[string]string{
	"max": "must be at most ",
	"gte": "must be greater than or equal to ",
	"lte": "must be less than or equal to ",
	"gt":  "must be greater than ",
	"lt":  "must be less than ",
}

func describe(fe validator.FieldError) string {
	tag := fe.Tag()
	if msg, ok := tagMessages[tag]; ok {
		return msg
	}
	if prefix, ok := boundMessages[tag]; ok {
		return prefix + fe.Param()
	}
	switch tag {
	case "min":
		if k := fe.Kind(); k == reflect.Slice || k == reflect.Map {
			return "must contain at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "failed " + tag
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	return toSnakeCase(ns)
}

// toSnakeCase lowercases ASCII capitals, prefixing an underscore except at
// the start of a path segment.
func toSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 && s[i-1] != '.' && s[i-1] != '[' {
				b.WriteByte('_')
			}
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}
