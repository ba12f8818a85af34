package normalize

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "user@example.com"},
		{"USER@EXAMPLE.COM", "user@example.com"},
		{"  User@Example.Com  ", "user@example.com"},
		{"", ""},
		{"   ", ""},
		{"Mixed.Case@Domain.ORG", "mixed.case@domain.org"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Email(tt.input)
			if got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"John Doe", "John Doe"},
		{"  John Doe  ", "John Doe"},
		{"", ""},
		{"   ", ""},
		{"UPPERCASE NAME", "UPPERCASE NAME"}, // Name preserves case
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Name(tt.input)
			if got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"07 123 456", "07123456"},
		{"  +441234567 ", "+441234567"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Phone(tt.input)
			if got != tt.want {
				t.Errorf("Phone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *string
	}{
		{"blank maps to nil", "", nil},
		{"whitespace maps to nil", "   ", nil},
		{"lowercased", "Broker.Example.COM", strptr("broker.example.com")},
		{"trimmed", "  broker.io  ", strptr("broker.io")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Domain(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Domain(%q) nil-ness = %v, want %v", tt.input, got == nil, tt.want == nil)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("Domain(%q) = %q, want %q", tt.input, *got, *tt.want)
			}
		})
	}
}

func strptr(s string) *string { return &s }
