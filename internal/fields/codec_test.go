package fields

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func def(key string, typ Type, options ...string) Definition {
	return Definition{Key: key, Label: key, Type: typ, Options: options}
}

// ----------------------------------------------------------------------------
// Encode Tests
// ----------------------------------------------------------------------------

func TestEncode(t *testing.T) {
	tier := def("tier", TypeSingleSelect, "Gold", "Silver")
	langs := def("langs", TypeMultiSelect, "go", "rust", "zig")

	tests := []struct {
		name    string
		def     Definition
		input   any
		want    string
		wantErr error
	}{
		// text
		{name: "text string", def: def("nick", TypeText), input: "hello", want: "hello"},
		{name: "text keeps whitespace", def: def("nick", TypeText), input: " hi ", want: " hi "},
		{name: "text stringifies", def: def("nick", TypeText), input: 42, want: "42"},

		// number
		{name: "number int", def: def("score", TypeNumber), input: 10, want: "10"},
		{name: "number float", def: def("score", TypeNumber), input: 4.5, want: "4.5"},
		{name: "number string trimmed", def: def("score", TypeNumber), input: "  12.50 ", want: "12.5"},
		{name: "number exponent", def: def("score", TypeNumber), input: "1e3", want: "1000"},
		{name: "number negative", def: def("score", TypeNumber), input: "-0.250", want: "-0.25"},
		{name: "number decimal", def: def("score", TypeNumber), input: decimal.RequireFromString("7.000"), want: "7"},
		{name: "number uint", def: def("score", TypeNumber), input: uint16(8), want: "8"},
		{name: "number garbage", def: def("score", TypeNumber), input: "abc", wantErr: ErrInvalidNumber},
		{name: "number empty string", def: def("score", TypeNumber), input: "   ", wantErr: ErrInvalidNumber},
		{name: "number bool", def: def("score", TypeNumber), input: true, wantErr: ErrInvalidNumber},
		{name: "number NaN", def: def("score", TypeNumber), input: math.NaN(), wantErr: ErrInvalidNumber},

		// date
		{name: "date string", def: def("born", TypeDate), input: "2024-03-05", want: "2024-03-05"},
		{name: "date time value", def: def("born", TypeDate), input: time.Date(2023, 12, 1, 15, 0, 0, 0, time.UTC), want: "2023-12-01"},
		{name: "date slashes", def: def("born", TypeDate), input: "2024/03/05", wantErr: ErrInvalidDate},
		{name: "date impossible", def: def("born", TypeDate), input: "2024-02-30", wantErr: ErrInvalidDate},
		{name: "date number", def: def("born", TypeDate), input: 20240305, wantErr: ErrInvalidDate},

		// email
		{name: "email normalized", def: def("alt", TypeEmail), input: " Jane@Example.COM ", want: "Jane@example.com"},
		{name: "email invalid", def: def("alt", TypeEmail), input: "not-an-email", wantErr: ErrInvalidEmail},
		{name: "email without dot", def: def("alt", TypeEmail), input: "jane@localhost", wantErr: ErrInvalidEmail},
		{name: "email non string", def: def("alt", TypeEmail), input: 12, wantErr: ErrInvalidEmail},

		// phone
		{name: "phone trimmed", def: def("cell", TypePhone), input: " +1 (555) 010-9999 ", want: "+1 (555) 010-9999"},
		{name: "phone letters", def: def("cell", TypePhone), input: "555-abc", wantErr: ErrInvalidPhone},
		{name: "phone int", def: def("cell", TypePhone), input: 5551234, wantErr: ErrInvalidPhone},

		// single_select
		{name: "single option", def: tier, input: "Gold", want: "Gold"},
		{name: "single unknown option", def: tier, input: "Bronze", wantErr: ErrInvalidOption},
		{name: "single untrimmed", def: tier, input: " Gold", wantErr: ErrInvalidOption},
		{name: "single non string", def: tier, input: 1, wantErr: ErrInvalidOption},

		// multi_select
		{name: "multi dedupes", def: langs, input: []string{"rust", "go", "rust"}, want: `["rust","go"]`},
		{name: "multi any slice", def: langs, input: []any{"zig"}, want: `["zig"]`},
		{name: "multi empty", def: langs, input: []string{}, want: `[]`},
		{name: "multi unknown option", def: langs, input: []string{"go", "c"}, wantErr: ErrInvalidOptionList},
		{name: "multi non string item", def: langs, input: []any{"go", 1}, wantErr: ErrInvalidOptionList},
		{name: "multi scalar", def: langs, input: "go", wantErr: ErrInvalidOptionList},

		// bool
		{name: "bool true", def: def("vip", TypeBool), input: true, want: "true"},
		{name: "bool false", def: def("vip", TypeBool), input: false, want: "false"},
		{name: "bool string any case", def: def("vip", TypeBool), input: " TRUE ", want: "true"},
		{name: "bool yes rejected", def: def("vip", TypeBool), input: "yes", wantErr: ErrInvalidBool},
		{name: "bool int rejected", def: def("vip", TypeBool), input: 1, wantErr: ErrInvalidBool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.def, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Encode(%v) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode(%v) unexpected error: %v", tt.input, err)
			}
			if got == nil || *got != tt.want {
				t.Errorf("Encode(%v) = %v, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEncode_Nil(t *testing.T) {
	optional := def("nick", TypeText)
	got, err := Encode(optional, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	var typedNil *string
	got, err = Encode(optional, typedNil)
	require.NoError(t, err)
	assert.Nil(t, got)

	required := def("tier", TypeText)
	required.Required = true
	_, err = Encode(required, nil)
	require.ErrorIs(t, err, ErrRequiredFieldMissing)
	assert.Equal(t, "Field 'tier' is required", err.Error())
}

func TestEncode_Messages(t *testing.T) {
	tests := []struct {
		def   Definition
		input any
		want  string
	}{
		{def("score", TypeNumber), "x", "Number fields require numeric input"},
		{def("born", TypeDate), "x", "Date fields require ISO 8601 date strings"},
		{def("alt", TypeEmail), "x", "Invalid email format"},
		{def("cell", TypePhone), 1, "Phone fields require string values"},
		{def("cell", TypePhone), "x", "Invalid phone number format"},
		{def("tier", TypeSingleSelect, "A"), 1, "Single select values must be strings"},
		{def("tier", TypeSingleSelect, "A"), "B", "Value must be one of the available options"},
		{def("langs", TypeMultiSelect, "A"), "A", "Multi select values must be a list"},
		{def("langs", TypeMultiSelect, "A"), []any{2}, "Multi select values must be strings"},
		{def("vip", TypeBool), "maybe", "Boolean fields accept true/false"},
	}

	for _, tt := range tests {
		_, err := Encode(tt.def, tt.input)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Encode(%s, %v) error = %v, want *ValidationError", tt.def.Type, tt.input, err)
		}
		if verr.Message != tt.want {
			t.Errorf("Encode(%s, %v) message = %q, want %q", tt.def.Type, tt.input, verr.Message, tt.want)
		}
		if verr.Key != tt.def.Key {
			t.Errorf("Encode(%s, %v) key = %q, want %q", tt.def.Type, tt.input, verr.Key, tt.def.Key)
		}
	}
}

// ----------------------------------------------------------------------------
// Decode Tests
// ----------------------------------------------------------------------------

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		stored  string
		want    any
		wantErr bool
	}{
		{name: "number integral", def: def("n", TypeNumber), stored: "10", want: int64(10)},
		{name: "number fractional", def: def("n", TypeNumber), stored: "4.5", want: 4.5},
		{name: "number trailing zero", def: def("n", TypeNumber), stored: "10.0", want: int64(10)},
		{name: "number corrupt", def: def("n", TypeNumber), stored: "ten", wantErr: true},
		{name: "text", def: def("t", TypeText), stored: "hi", want: "hi"},
		{name: "date unchanged", def: def("d", TypeDate), stored: "2024-01-02", want: "2024-01-02"},
		{name: "email unchanged", def: def("e", TypeEmail), stored: "a@b.io", want: "a@b.io"},
		{name: "single unchanged", def: def("s", TypeSingleSelect, "A"), stored: "A", want: "A"},
		{name: "multi list", def: def("m", TypeMultiSelect, "a", "b"), stored: `["b","a"]`, want: []string{"b", "a"}},
		{name: "multi empty list", def: def("m", TypeMultiSelect, "a"), stored: `[]`, want: []string{}},
		{name: "multi object", def: def("m", TypeMultiSelect, "a"), stored: `{"a":1}`, wantErr: true},
		{name: "multi null", def: def("m", TypeMultiSelect, "a"), stored: `null`, wantErr: true},
		{name: "multi not json", def: def("m", TypeMultiSelect, "a"), stored: `a,b`, wantErr: true},
		{name: "bool true", def: def("b", TypeBool), stored: "true", want: true},
		{name: "bool false", def: def("b", TypeBool), stored: "false", want: false},
		{name: "bool capitalised", def: def("b", TypeBool), stored: "True", wantErr: true},
		{name: "bool other", def: def("b", TypeBool), stored: "1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored := tt.stored
			got, err := Decode(tt.def, &stored)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrCorruptStoredValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Nil(t *testing.T) {
	for _, typ := range Types() {
		got, err := Decode(def("k", typ, "a"), nil)
		if err != nil || got != nil {
			t.Errorf("Decode(%s, nil) = %v, %v; want nil, nil", typ, got, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		def   Definition
		input any
		want  any
	}{
		{def("n", TypeNumber), 10, int64(10)},
		{def("n", TypeNumber), 4.5, 4.5},
		{def("n", TypeNumber), "003.10", 3.1},
		{def("d", TypeDate), "2020-02-29", "2020-02-29"},
		{def("p", TypePhone), " 555 0101 ", "555 0101"},
		{def("m", TypeMultiSelect, "x", "y"), []string{"y", "x", "y"}, []string{"y", "x"}},
		{def("b", TypeBool), "False", false},
		{def("t", TypeText), "plain", "plain"},
	}

	for _, tt := range tests {
		encoded, err := Encode(tt.def, tt.input)
		require.NoError(t, err)
		decoded, err := Decode(tt.def, encoded)
		require.NoError(t, err)
		assert.Equal(t, tt.want, decoded, "round trip of %v as %s", tt.input, tt.def.Type)
	}
}
