package roster

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří", "Jiri"},
		{"Žofie Šťastná", "Zofie Stastna"},
		{"François", "Francois"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RemoveDiacritics(tt.input); got != tt.expected {
			t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jana Nováková", "jana novakova"},
		{"Anne-Marie", "anne marie"},
		{"  Double   Space ", "double space"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.expected {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"Jana Nováková", "novakova", true},
		{"Jana Nováková", "Nováková", true},
		{"Anne-Marie Dubois", "anne marie", true},
		{"Jana Nováková", "petr", false},
		{"Jana Nováková", "", true},
	}
	for _, tt := range tests {
		if got := MatchesQuery(tt.name, tt.query); got != tt.want {
			t.Errorf("MatchesQuery(%q, %q) = %v, want %v", tt.name, tt.query, got, tt.want)
		}
	}
}
