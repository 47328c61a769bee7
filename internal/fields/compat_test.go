package fields

import (
	"errors"
	"testing"
)

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		name     string
		def      Definition
		required bool
		existing []*string
		wantErr  string
	}{
		{
			name:     "numbers stay numbers",
			def:      def("score", TypeNumber),
			existing: []*string{Str("10"), Str("2.5"), nil},
		},
		{
			name:     "text to number fails whole check",
			def:      def("score", TypeNumber),
			existing: []*string{Str("10"), Str("high")},
			wantErr:  "Existing value is incompatible with the updated field definition",
		},
		{
			name:     "text to bool fails",
			def:      def("vip", TypeBool),
			existing: []*string{Str("yes")},
			wantErr:  "Existing value is incompatible with the updated field definition",
		},
		{
			name:     "text to multi select fails",
			def:      def("langs", TypeMultiSelect, "go"),
			existing: []*string{Str("go")},
			wantErr:  "Existing value is incompatible with the updated field definition",
		},
		{
			name:     "required with empty value",
			def:      def("nick", TypeText),
			required: true,
			existing: []*string{Str("a"), nil},
			wantErr:  "Field 'nick' is required and cannot be empty",
		},
		{
			name:     "required with all values set",
			def:      def("nick", TypeText),
			required: true,
			existing: []*string{Str("a"), Str("")},
		},
		{
			name: "no stored values",
			def:  def("vip", TypeBool),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.def
			d.Required = tt.required
			err := CheckCompatible(d, tt.existing)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("CheckCompatible() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrIncompatibleDefinition) {
				t.Fatalf("CheckCompatible() error = %v, want ErrIncompatibleDefinition", err)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("CheckCompatible() message = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}
