package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"empty", "", 100, ""},
		{"normal", "DNS lookup failed", 100, "DNS lookup failed"},
		{"with control chars", "re\x00boot\x07", 100, "reboot"},
		{"strips html", "<b>Router</b> offline", 100, "Router offline"},
		{"strips script", `<script>alert(1)</script>ok`, 100, "ok"},
		{"decodes entities", "a &amp; b", 100, "a & b"},
		{"truncate", "very long notification title", 8, "very lon"},
		{"trim whitespace", "  hello  ", 100, "hello"},
		{"unicode", "ルーター再起動", 100, "ルーター再起動"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Text(tt.input, tt.maxLen)
			assert.Equal(t, tt.want, got, "Text(%q, %d)", tt.input, tt.maxLen)
		})
	}
}
