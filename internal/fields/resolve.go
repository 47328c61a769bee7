package fields

import (
	"fmt"
	"maps"
	"slices"
)

// Resolve validates a custom-field payload against the catalog and returns
// only the encoded delta. A key mapped to nil in the payload clears the
// value; keys absent from the payload are left untouched.
//
// After merging the delta over existing, every required definition must hold
// a non-nil value.
func Resolve(catalog Catalog, payload map[string]any, existing Values) (Values, error) {
	delta := make(Values, len(payload))
	for _, key := range slices.Sorted(maps.Keys(payload)) {
		raw := payload[key]
		def, ok := catalog[key]
		if !ok {
			return nil, newError(ErrUnknownField, key, fmt.Sprintf("Unknown custom field '%s'", key))
		}
		encoded, err := Encode(def, raw)
		if err != nil {
			return nil, err
		}
		delta[key] = encoded
	}

	if err := CheckRequired(catalog, existing.Merge(delta)); err != nil {
		return nil, err
	}
	return delta, nil
}

// CheckRequired fails with ErrRequiredFieldMissing for the first required
// definition, in key order, whose merged value is missing or nil.
func CheckRequired(catalog Catalog, merged Values) error {
	for _, key := range catalog.Keys() {
		if !catalog[key].Required {
			continue
		}
		if merged[key] == nil {
			return requiredError(key)
		}
	}
	return nil
}
