package fields

import (
	"errors"
	"testing"
)

func TestDefinitionInput_Definition(t *testing.T) {
	tests := []struct {
		name        string
		input       DefinitionInput
		wantOptions []string
		wantErr     string
	}{
		{
			name:  "text field",
			input: DefinitionInput{Key: "nickname", Label: "Nickname", Type: TypeText},
		},
		{
			name:        "select options cleaned",
			input:       DefinitionInput{Key: "tier", Label: "Tier", Type: TypeSingleSelect, Options: []string{" Gold", "Silver ", "Gold"}},
			wantOptions: []string{"Gold", "Silver"},
		},
		{
			name:    "bad key",
			input:   DefinitionInput{Key: "bad-key", Label: "Bad", Type: TypeText},
			wantErr: "Key must match pattern [A-Za-z0-9_]",
		},
		{
			name:    "key with surrounding space",
			input:   DefinitionInput{Key: "  foo", Label: "Foo", Type: TypeText},
			wantErr: "Key must match pattern [A-Za-z0-9_]",
		},
		{
			name:    "key with trailing newline",
			input:   DefinitionInput{Key: "foo\n", Label: "Foo", Type: TypeText},
			wantErr: "Key must match pattern [A-Za-z0-9_]",
		},
		{
			name:    "missing label",
			input:   DefinitionInput{Key: "k", Type: TypeText},
			wantErr: "label is required",
		},
		{
			name:    "unknown type",
			input:   DefinitionInput{Key: "k", Label: "K", Type: "color"},
			wantErr: "type must be one of: text, number, date, email, phone, single_select, multi_select, bool",
		},
		{
			name:    "select without options",
			input:   DefinitionInput{Key: "k", Label: "K", Type: TypeMultiSelect},
			wantErr: "Options are required for select fields",
		},
		{
			name:    "options on text",
			input:   DefinitionInput{Key: "k", Label: "K", Type: TypeText, Options: []string{"a"}},
			wantErr: "Options are only allowed for select fields",
		},
		{
			name:    "blank option",
			input:   DefinitionInput{Key: "k", Label: "K", Type: TypeSingleSelect, Options: []string{"a", "  "}},
			wantErr: "Options must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.Definition()
			if tt.wantErr != "" {
				if !errors.Is(err, ErrInvalidDefinition) {
					t.Fatalf("Definition() error = %v, want ErrInvalidDefinition", err)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("Definition() message = %q, want %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Definition() unexpected error: %v", err)
			}
			if got.Key != tt.input.Key {
				t.Errorf("Key = %q, want %q", got.Key, tt.input.Key)
			}
			if len(got.Options) != len(tt.wantOptions) {
				t.Fatalf("Options = %v, want %v", got.Options, tt.wantOptions)
			}
			for i := range tt.wantOptions {
				if got.Options[i] != tt.wantOptions[i] {
					t.Errorf("Options[%d] = %q, want %q", i, got.Options[i], tt.wantOptions[i])
				}
			}
		})
	}
}

func TestValidKey(t *testing.T) {
	for key, want := range map[string]bool{
		"nickname":  true,
		"A_1":       true,
		"":          false,
		"has space": false,
		"dash-ed":   false,
	} {
		if got := ValidKey(key); got != want {
			t.Errorf("ValidKey(%q) = %v, want %v", key, got, want)
		}
	}
}
