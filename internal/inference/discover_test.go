package inference

import (
	"testing"

	"github.com/pastelnetwork/supernode-client/internal/supernode"
)

func menuWith(entries ...supernode.InferenceModelMenuEntry) *supernode.InferenceModelMenu {
	return &supernode.InferenceModelMenu{Models: entries}
}

func TestMatchingEntryRequiresModelAndType(t *testing.T) {
	menu := menuWith(supernode.InferenceModelMenuEntry{
		ModelCanonicalString: "claude3-opus",
		InferenceTypeString:  "text_completion",
		SupportedParameters: map[string]supernode.ParameterSpec{
			"number_of_tokens_to_generate": {Type: "int"},
		},
	})

	if _, ok := matchingEntry(menu, "claude3-opus", "text_completion", nil); !ok {
		t.Fatalf("expected exact model/type to match")
	}
	if _, ok := matchingEntry(menu, "claude3-opus", "text_to_image", nil); ok {
		t.Fatalf("expected mismatched inference type to fail")
	}
	if _, ok := matchingEntry(menu, "claude3-haiku", "text_completion", nil); ok {
		t.Fatalf("expected mismatched model name to fail")
	}
}

func TestParamsAdmitted(t *testing.T) {
	supported := map[string]supernode.ParameterSpec{
		"number_of_tokens_to_generate": {Type: "int"},
		"temperature":                  {Type: "float"},
		"style_preset":                 {Type: "string", Options: []interface{}{"vivid", "natural"}},
	}

	cases := []struct {
		name      string
		requested map[string]interface{}
		want      bool
	}{
		{"empty request always admitted", nil, true},
		{"int as float64 (json decode)", map[string]interface{}{"number_of_tokens_to_generate": float64(2000)}, true},
		{"float param", map[string]interface{}{"temperature": 0.7}, true},
		{"string option allowed", map[string]interface{}{"style_preset": "vivid"}, true},
		{"string option rejected", map[string]interface{}{"style_preset": "grainy"}, false},
		{"wrong type for int", map[string]interface{}{"number_of_tokens_to_generate": "2000"}, false},
		{"undeclared key rejected", map[string]interface{}{"top_k": 40}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := paramsAdmitted(supported, tc.requested); got != tc.want {
				t.Fatalf("paramsAdmitted(%v) = %v, want %v", tc.requested, got, tc.want)
			}
		})
	}
}

func TestTypeMatches(t *testing.T) {
	cases := []struct {
		wantType string
		value    interface{}
		want     bool
	}{
		{"int", 7, true},
		{"int", float64(7), true},
		{"int", "7", false},
		{"float", 0.5, true},
		{"float", 3, true},
		{"string", "x", true},
		{"string", 1, false},
		{"blob", "x", false},
	}
	for _, tc := range cases {
		if got := typeMatches(tc.wantType, tc.value); got != tc.want {
			t.Errorf("typeMatches(%q, %v) = %v, want %v", tc.wantType, tc.value, got, tc.want)
		}
	}
}
