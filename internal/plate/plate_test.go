package plate

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"MH-12 AB1234", "MH12AB1234"},
		{"ka01ab1234", "KA01AB1234"},
		{"KA01 AB 1234\n", "KA01AB1234"},
		{"unreadable", NoPlate},
		{"UNREADABLE", NoPlate},
		{"error", NoPlate},
		{"incomplete", NoPlate},
		{"no_plate_visible", NoPlate},
		{"low_quality", NoPlate},
		{"not_configured", NoPlate},
	}
	for _, tt := range tests {
		if got := Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"MH-12 AB1234", "unreadable", "KA01AB1234", "", "error"}
	for _, raw := range inputs {
		once := Normalize(raw)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", raw, twice, once)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		normalized string
		want       bool
	}{
		{"MH12AB1234", true},   // 2+2+2+4 = 10
		{"KA01A123", true},     // 2+2+1+3 = 8
		{"KA01AB123", true},    // 2+2+2+3 = 9
		{"KA01A1234", true},    // 2+2+1+4 = 9
		{"MH12AB12345", false}, // length 11
		{"MH12AB1", false},     // too short
		{"1234MH12AB", false},  // wrong order
		{"MH12AB12E4", false},  // letter in number block
		{NoPlate, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.normalized); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.normalized, got, tt.want)
		}
	}
}
