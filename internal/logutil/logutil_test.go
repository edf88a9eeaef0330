package logutil

import "testing"

func TestSanitizeForLog(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"a\nb", "a b"},
		{"a\r\nb", "a  b"},
		{"tab\there", "tab here"},
		{"ctrl\x01char", "ctrlchar"},
	}
	for _, c := range cases {
		if got := SanitizeForLog(c.in); got != c.want {
			t.Errorf("SanitizeForLog(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
