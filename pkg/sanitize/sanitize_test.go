package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"formatting kept", "<p>a <strong>b</strong></p>", "<p>a <strong>b</strong></p>"},
		{"script removed", `<p>x</p><script>alert(1)</script><p>y</p>`, "<p>x</p><p>y</p>"},
		{"handler removed", `<img src="a.png" onerror="alert(1)"/>`, `<img src="a.png"/>`},
		{"javascript url removed", `<a href="javascript:alert(1)">go</a>`, `<a>go</a>`},
		{"spaced javascript url", `<a href=" java script:alert(1)">go</a>`, `<a>go</a>`},
		{"https kept", `<a href="https://example.com">go</a>`, `<a href="https://example.com">go</a>`},
		{"comment removed", `<p>a<!-- hidden --></p>`, `<p>a</p>`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTML(tt.in))
		})
	}
}
