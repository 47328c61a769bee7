package fields

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// KeyPatternMessage is returned whenever a field key contains characters
// outside [A-Za-z0-9_].
const KeyPatternMessage = "Key must match pattern [A-Za-z0-9_]"

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidKey reports whether key is a legal field key.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// DefinitionInput is the user-supplied payload for creating or editing a
// field definition.
type DefinitionInput struct {
	Key      string   `json:"key" validate:"required,max=100"`
	Label    string   `json:"label" validate:"required,max=255"`
	Type     Type     `json:"type" validate:"required,oneof=text number date email phone single_select multi_select bool"`
	Options  []string `json:"options"`
	Required bool     `json:"required"`
}

// Definition validates the input and returns the normalized definition.
// The key is checked as given; surrounding whitespace makes it invalid.
// The label is trimmed. Options are trimmed and de-duplicated, and are only
// kept for select types.
func (in DefinitionInput) Definition() (Definition, error) {
	in.Label = strings.TrimSpace(in.Label)

	if err := validate.Struct(in); err != nil {
		return Definition{}, definitionError(in.Key, err)
	}
	if !ValidKey(in.Key) {
		return Definition{}, newError(ErrInvalidDefinition, in.Key, KeyPatternMessage)
	}

	def := Definition{
		Key:      in.Key,
		Label:    in.Label,
		Type:     in.Type,
		Required: in.Required,
	}

	if !in.Type.IsSelect() {
		if in.Options != nil {
			return Definition{}, newError(ErrInvalidDefinition, in.Key, "Options are only allowed for select fields")
		}
		return def, nil
	}

	options, err := normalizeOptions(in.Key, in.Options)
	if err != nil {
		return Definition{}, err
	}
	def.Options = options
	return def, nil
}

func normalizeOptions(key string, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, newError(ErrInvalidDefinition, key, "Options are required for select fields")
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, opt := range raw {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return nil, newError(ErrInvalidDefinition, key, "Options must not be empty")
		}
		if _, dup := seen[opt]; dup {
			continue
		}
		seen[opt] = struct{}{}
		out = append(out, opt)
	}
	return out, nil
}

func definitionError(key string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return newError(ErrInvalidDefinition, key, err.Error())
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return newError(ErrInvalidDefinition, key, msg)
}
