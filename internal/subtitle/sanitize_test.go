package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "teletext class", input: "<c.teletext>Hej</c>", want: "Hej"},
		{name: "italic with padding", input: "  <i>Hallå</i>  ", want: "Hallå"},
		{name: "no tags", input: "Vanlig text", want: "Vanlig text"},
		{name: "empty", input: "", want: ""},
		{name: "only tags", input: "<b></b>", want: ""},
		{name: "stray bracket kept", input: "a < b", want: "a < b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"<c.teletext>Hej</c>",
		"<<a>b>",
		" x <i>y</i> z ",
		"a < b > c",
	}
	for _, input := range inputs {
		once := Clean(input)
		assert.Equal(t, once, Clean(once), "input %q", input)
	}
}
