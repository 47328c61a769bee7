package fields

// codec.go converts custom field values to and from their stored string form.
//
// Each field type has a codec. Encode validates an incoming value against the
// definition and produces the canonical string; Decode turns a stored string
// back into a typed value (int64/float64, bool, []string or the string itself).

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DateLayout is the canonical stored form of date values.
const DateLayout = "2006-01-02"

var (
	phonePattern = regexp.MustCompile(`^[+0-9().\- ]+$`)
	validate     = validator.New(validator.WithRequiredStructEnabled())
)

type codec interface {
	encode(def Definition, value any) (string, error)
	decode(def Definition, stored string) (any, error)
}

func codecFor(t Type) (codec, error) {
	switch t {
	case TypeText:
		return textCodec{}, nil
	case TypeNumber:
		return numberCodec{}, nil
	case TypeDate:
		return dateCodec{}, nil
	case TypeEmail:
		return emailCodec{}, nil
	case TypePhone:
		return phoneCodec{}, nil
	case TypeSingleSelect:
		return singleSelectCodec{}, nil
	case TypeMultiSelect:
		return multiSelectCodec{}, nil
	case TypeBool:
		return boolCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported field type %q", t)
	}
}

// Encode validates value against def and returns its canonical stored form.
// A nil value encodes to nil unless the field is required.
func Encode(def Definition, value any) (*string, error) {
	value = indirect(value)
	if value == nil {
		if def.Required {
			return nil, requiredError(def.Key)
		}
		return nil, nil
	}

	c, err := codecFor(def.Type)
	if err != nil {
		return nil, err
	}
	s, err := c.encode(def, value)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Decode converts a stored value back to its typed form. A nil stored value
// decodes to nil.
func Decode(def Definition, stored *string) (any, error) {
	if stored == nil {
		return nil, nil
	}
	c, err := codecFor(def.Type)
	if err != nil {
		return nil, err
	}
	return c.decode(def, *stored)
}

func indirect(value any) any {
	switch v := value.(type) {
	case *string:
		if v == nil {
			return nil
		}
		return *v
	case *bool:
		if v == nil {
			return nil
		}
		return *v
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	}
	return value
}

/* ----------------------------------------
	text
---------------------------------------- */

type textCodec struct{}

func (textCodec) encode(_ Definition, value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return fmt.Sprint(value), nil
}

func (textCodec) decode(_ Definition, stored string) (any, error) {
	return stored, nil
}

/* ----------------------------------------
	number
---------------------------------------- */

type numberCodec struct{}

func (numberCodec) encode(def Definition, value any) (string, error) {
	d, ok := toDecimal(value)
	if !ok {
		return "", newError(ErrInvalidNumber, def.Key, "Number fields require numeric input")
	}
	return d.String(), nil
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int8:
		return decimal.NewFromInt(int64(v)), true
	case int16:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return fromUint(uint64(v)), true
	case uint8:
		return fromUint(uint64(v)), true
	case uint16:
		return fromUint(uint64(v)), true
	case uint32:
		return fromUint(uint64(v)), true
	case uint64:
		return fromUint(v), true
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		return fromString(v.String())
	case string:
		return fromString(v)
	default:
		return decimal.Decimal{}, false
	}
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(f), true
}

func fromString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (numberCodec) decode(def Definition, stored string) (any, error) {
	d, err := decimal.NewFromString(stored)
	if err != nil {
		return nil, corruptError(def.Key, stored)
	}
	if d.IsInteger() {
		n := d.BigInt()
		if n.IsInt64() {
			return n.Int64(), nil
		}
		return n, nil
	}
	return d.InexactFloat64(), nil
}

/* ----------------------------------------
	date
---------------------------------------- */

type dateCodec struct{}

func (dateCodec) encode(def Definition, value any) (string, error) {
	switch v := value.(type) {
	case time.Time:
		return v.Format(DateLayout), nil
	case string:
		t, err := time.Parse(DateLayout, v)
		if err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", newError(ErrInvalidDate, def.Key, "Date fields require ISO 8601 date strings")
}

func (dateCodec) decode(_ Definition, stored string) (any, error) {
	return stored, nil
}

/* ----------------------------------------
	email
---------------------------------------- */

type emailCodec struct{}

func (emailCodec) encode(def Definition, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", newError(ErrInvalidEmail, def.Key, "Invalid email format")
	}
	normalized, ok := NormalizeEmail(s)
	if !ok {
		return "", newError(ErrInvalidEmail, def.Key, "Invalid email format")
	}
	return normalized, nil
}

func (emailCodec) decode(_ Definition, stored string) (any, error) {
	return stored, nil
}

// NormalizeEmail trims s, validates it as an email address and lowercases
// the domain part. The domain must contain at least one dot.
func NormalizeEmail(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if err := validate.Var(s, "required,email"); err != nil {
		return "", false
	}
	at := strings.LastIndexByte(s, '@')
	if at < 1 {
		return "", false
	}
	local, domain := s[:at], strings.ToLower(s[at+1:])
	if !strings.Contains(strings.Trim(domain, "."), ".") {
		return "", false
	}
	return local + "@" + domain, true
}

/* ----------------------------------------
	phone
---------------------------------------- */

type phoneCodec struct{}

func (phoneCodec) encode(def Definition, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", newError(ErrInvalidPhone, def.Key, "Phone fields require string values")
	}
	s = strings.TrimSpace(s)
	if !ValidPhone(s) {
		return "", newError(ErrInvalidPhone, def.Key, "Invalid phone number format")
	}
	return s, nil
}

func (phoneCodec) decode(_ Definition, stored string) (any, error) {
	return stored, nil
}

// ValidPhone reports whether s only contains digits, spaces and the
// characters + ( ) . -
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

/* ----------------------------------------
	single_select
---------------------------------------- */

type singleSelectCodec struct{}

func (singleSelectCodec) encode(def Definition, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", newError(ErrInvalidOption, def.Key, "Single select values must be strings")
	}
	if !def.HasOption(s) {
		return "", newError(ErrInvalidOption, def.Key, "Value must be one of the available options")
	}
	return s, nil
}

func (singleSelectCodec) decode(_ Definition, stored string) (any, error) {
	return stored, nil
}

/* ----------------------------------------
	multi_select
---------------------------------------- */

type multiSelectCodec struct{}

func (multiSelectCodec) encode(def Definition, value any) (string, error) {
	var items []string
	switch v := value.(type) {
	case []string:
		items = v
	case []any:
		items = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return "", newError(ErrInvalidOptionList, def.Key, "Multi select values must be strings")
			}
			items = append(items, s)
		}
	default:
		return "", newError(ErrInvalidOptionList, def.Key, "Multi select values must be a list")
	}

	seen := make(map[string]struct{}, len(items))
	selected := make([]string, 0, len(items))
	for _, item := range items {
		if !def.HasOption(item) {
			return "", newError(ErrInvalidOptionList, def.Key, "Value must be one of the available options")
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		selected = append(selected, item)
	}

	b, err := json.Marshal(selected)
	if err != nil {
		return "", fmt.Errorf("encode multi select: %w", err)
	}
	return string(b), nil
}

func (multiSelectCodec) decode(def Definition, stored string) (any, error) {
	var raw any
	if err := json.Unmarshal([]byte(stored), &raw); err != nil {
		return nil, corruptError(def.Key, stored)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, corruptError(def.Key, stored)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, corruptError(def.Key, stored)
		}
		out = append(out, s)
	}
	return out, nil
}

/* ----------------------------------------
	bool
---------------------------------------- */

type boolCodec struct{}

func (boolCodec) encode(def Definition, value any) (string, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		}
	}
	return "", newError(ErrInvalidBool, def.Key, "Boolean fields accept true/false")
}

func (boolCodec) decode(def Definition, stored string) (any, error) {
	switch stored {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return nil, corruptError(def.Key, stored)
}
