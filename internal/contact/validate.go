package contact

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/contacts/internal/fields"
)

// ErrInvalid is the kind of every error returned by Validate.
var ErrInvalid = errors.New("invalid contact")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
		_, ok := fields.NormalizeEmail(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("contact_phone", func(fl validator.FieldLevel) bool {
		return fields.ValidPhone(fl.Field().String())
	})
	return v
}

// Error carries the field that failed and a user-facing message.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

// Normalize cleans in: tags are trimmed and de-duplicated keeping the first
// occurrence, the email domain is lowercased and the phone is trimmed.
// Blank email and phone values become nil.
// Invalid values are left for Validate to report.
func Normalize(in Input) Input {
	if in.Tags != nil {
		seen := make(map[string]struct{}, len(in.Tags))
		tags := make([]string, 0, len(in.Tags))
		for _, tag := range in.Tags {
			tag = strings.TrimSpace(tag)
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
		in.Tags = tags
	}
	if in.Email != nil {
		if strings.TrimSpace(*in.Email) == "" {
			in.Email = nil
		} else if normalized, ok := fields.NormalizeEmail(*in.Email); ok {
			in.Email = &normalized
		}
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		in.Phone = &phone
		if phone == "" {
			in.Phone = nil
		}
	}
	return in
}

// Validate normalizes in and checks it against the contact rules.
func Validate(in Input) (Input, error) {
	in = Normalize(in)
	for _, tag := range in.Tags {
		if tag == "" {
			return in, &Error{Field: "tags", Message: "Tags must not be empty"}
		}
	}
	if err := validate.Struct(in); err != nil {
		return in, translate(err)
	}
	return in, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Message: err.Error()}
	}
	fe := verrs[0]
	field := fe.Field()
	if strings.HasPrefix(field, "tags[") {
		field = "tags"
	}

	var msg string
	switch {
	case fe.Tag() == "required":
		msg = fmt.Sprintf("%s is required", field)
	case fe.Tag() == "contact_email":
		msg = "Invalid email format"
	case fe.Tag() == "contact_phone":
		msg = "Invalid phone number format"
	case field == "tags" && fe.Tag() == "max" && fe.Kind() == reflect.Slice:
		msg = fmt.Sprintf("At most %s tags are allowed", fe.Param())
	case fe.Tag() == "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case fe.Tag() == "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case fe.Tag() == "gt":
		msg = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case fe.Tag() == "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &Error{Field: field, Message: msg}
}
