package sanitizer

import "testing"

func TestSanitizeCustomerName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Rahul Sharma  ",
			want:  "Rahul Sharma",
		},
		{
			name:  "multiple spaces between words",
			input: "Rahul    Sharma",
			want:  "Rahul Sharma",
		},
		{
			name:  "strip symbols",
			input: "Rahul <script>Sharma</script>",
			want:  "Rahul script Sharma script",
		},
		{
			name:  "keep digits",
			input: "Team 11",
			want:  "Team 11",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeCustomerName(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeCustomerName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeReason(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "keeps punctuation",
			input: "  customer no-show, rain expected.  ",
			want:  "customer no-show, rain expected.",
		},
		{
			name:  "collapses inner spaces",
			input: "rain    expected",
			want:  "rain expected",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeReason(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeReason(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "valid E.164 format",
			input: "+919812345678",
			want:  "+919812345678",
		},
		{
			name:  "with spaces",
			input: "+91 98 123 45678",
			want:  "+919812345678",
		},
		{
			name:  "with dashes and parentheses",
			input: "+1 (212) 555-1234",
			want:  "+12125551234",
		},
		{
			name:  "international 00 prefix",
			input: "00919812345678",
			want:  "+919812345678",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
		{
			name:  "missing plus",
			input: "9812345678",
			want:  "",
		},
		{
			name:  "too short",
			input: "+9112",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
