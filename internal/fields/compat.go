package fields

import "fmt"

// CheckCompatible verifies that every value currently stored under def.Key
// still decodes under def. Run it after a definition has been tentatively
// edited and before the edit is committed. The check is all-or-nothing: the
// first failure aborts it with a single ErrIncompatibleDefinition error.
func CheckCompatible(def Definition, existing []*string) error {
	for _, stored := range existing {
		if _, err := Decode(def, stored); err != nil {
			return newError(ErrIncompatibleDefinition, def.Key,
				"Existing value is incompatible with the updated field definition")
		}
	}

	if def.Required {
		for _, stored := range existing {
			if stored == nil {
				return newError(ErrIncompatibleDefinition, def.Key,
					fmt.Sprintf("Field '%s' is required and cannot be empty", def.Key))
			}
		}
	}
	return nil
}
