package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTML_CodeSpan(t *testing.T) {
	out, err := HTML("Use `Claims` here")
	require.NoError(t, err)
	assert.Contains(t, out, `<code class="bg-gray-200 p-1 rounded">Claims</code>`)
}

func TestHTML_FencedCodeBlock(t *testing.T) {
	out, err := HTML("```go\nx := 1 < 2\n```\n")
	require.NoError(t, err)
	assert.Contains(t, out, `<pre class="bg-gray-200 p-2 rounded"><code>x := 1 &lt; 2`)
	assert.Contains(t, out, "</code></pre>")
}

func TestHTML_Lists(t *testing.T) {
	out, err := HTML("- one\n- two\n\n1. first\n2. second\n")
	require.NoError(t, err)
	assert.Contains(t, out, `<ul class="list-disc pl-4 space-y-1">`)
	assert.Contains(t, out, `<ol class="list-decimal pl-4 space-y-1">`)
}

func TestHTML_Links(t *testing.T) {
	out, err := HTML("[Minet](https://minet.com)")
	require.NoError(t, err)
	assert.Contains(t, out, `class="text-blue-500 hover:underline"`)
	assert.Contains(t, out, `href="https://minet.com"`)
}

func TestHTML_OmitsRawHTML(t *testing.T) {
	out, err := HTML("hello <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestHTML_GFMTable(t *testing.T) {
	out, err := HTML("| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
}

func TestTerminalRenderer(t *testing.T) {
	r, err := NewTerminalRenderer("", 40)
	require.NoError(t, err)
	out, err := r.Render("# Claims\n\nManage **claims** end to end.")
	require.NoError(t, err)
	assert.Contains(t, out, "Claims")
	assert.True(t, strings.Contains(out, "claims"))
}

func TestTerminalRenderer_UnknownStyle(t *testing.T) {
	_, err := NewTerminalRenderer("no-such-style", 40)
	assert.Error(t, err)
}
