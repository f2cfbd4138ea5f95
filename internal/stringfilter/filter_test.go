package stringfilter

import "testing"

func TestNormalize(t *testing.T) {
	// Decomposed e + combining acute must normalize to the precomposed form.
	decomposed := "Re\u0301my"
	precomposed := "R\u00e9my"
	if Normalize(decomposed) != precomposed {
		t.Errorf("Normalize(%q) = %q, want %q", decomposed, Normalize(decomposed), precomposed)
	}
	if Normalize("plain") != "plain" {
		t.Error("ASCII must pass through unchanged")
	}
}

func TestFindDoubleQuotes(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"normal", false},
		{`say "hi"`, true},
		{"it's", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := FindDoubleQuotes(tt.in); got != tt.want {
			t.Errorf("FindDoubleQuotes(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsEmailValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"player@example.org", true},
		{"a.b+c@sub.example.org", true},
		{"noat.example.org", false},
		{"two@@example.org", false},
		{"spaces in@example.org", false},
		{"nodot@example", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsEmailValid(tt.in); got != tt.want {
			t.Errorf("IsEmailValid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFilterContent(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Rowan", true},
		{" leading", false},
		{"trailing ", false},
		{"tab\there", false},
		{"bell\x07", false},
		{"del\x7f", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := FilterContent(tt.in); got != tt.want {
			t.Errorf("FilterContent(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
