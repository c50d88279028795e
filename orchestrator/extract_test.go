package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRoundTrip(t *testing.T) {
	codes := []string{
		"print('hello')",
		"import plotly.express as px\n\nfig = px.line(df)\n    # indented comment\nfig.write_html('/o/t_1.html')",
		"x = 1\n\n\ny = 2",
	}
	for _, code := range codes {
		for _, fence := range []string{"```python\n", "```\n", "```py\n", "```python \n"} {
			wrapped := "Here is your chart:\n\n" + fence + code + "\n```\nEnjoy."
			assert.Equal(t, code, Extract(wrapped))
		}
	}
}

func TestExtractWithoutFence(t *testing.T) {
	raw := "  \nimport pandas as pd\nprint(pd.__version__)\n\n"
	assert.Equal(t, "import pandas as pd\nprint(pd.__version__)", Extract(raw))
	assert.Equal(t, Extract(raw), Extract(Extract(raw)))
	assert.Equal(t, "", Extract("   "))
}

func TestExtractFirstBlockOnly(t *testing.T) {
	raw := "```python\nfirst()\n```\ntext\n```python\nsecond()\n```"
	assert.Equal(t, "first()", Extract(raw))
}

func TestExtractUnterminatedFence(t *testing.T) {
	raw := "```python\nprint(1)"
	assert.Equal(t, raw, Extract(raw))
}
