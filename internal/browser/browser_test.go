package browser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/companyscope/crawler/internal/intel"
)

func TestDetectorSmallBodyNeedsJS(t *testing.T) {
	t.Parallel()

	d := NewDetector(2000, nil)
	require.True(t, d.NeedsJS([]byte("<html><body><p>tiny</p></body></html>")))
}

func TestDetectorKeywordNeedsJS(t *testing.T) {
	t.Parallel()

	d := NewDetector(0, []string{"__NEXT_DATA__", "window.__NUXT__"})
	body := []byte(`<html><body><p>hello</p><script id="__next_data__">{}</script></body></html>`)
	require.True(t, d.NeedsJS(body))
}

func TestDetectorCompleteStaticBody(t *testing.T) {
	t.Parallel()

	d := NewDetector(10, []string{"__NEXT_DATA__"})
	body := []byte("<html><body><p>A perfectly ordinary server-rendered page about anvils.</p></body></html>")
	require.False(t, d.NeedsJS(body))
}

func TestDetectorMissingContentSelectors(t *testing.T) {
	t.Parallel()

	d := NewDetector(10, nil)
	// Has a body but no paragraph content at all.
	body := []byte(`<html><body><div id="root"></div></body></html>`)
	require.True(t, d.NeedsJS(body))
}

func TestVisibleTextStripsScriptsAndCaps(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><head><title>Acme</title><style>p{color:red}</style></head>
<body><script>var x = "ignore me";</script>
<h1>Acme Corp</h1>
<p>We make anvils.</p>
<p>Founded in 2019.</p>
</body></html>`)

	text, err := VisibleText(html, 0)
	require.NoError(t, err)
	require.Contains(t, text, "Acme Corp")
	require.Contains(t, text, "We make anvils.")
	require.NotContains(t, text, "ignore me")
	require.NotContains(t, text, "color:red")

	capped, err := VisibleText(html, 10)
	require.NoError(t, err)
	require.Len(t, capped, 10)
}

func TestParseModelReply(t *testing.T) {
	t.Parallel()

	content, err := parseModelReply(`{"company_name":"Acme"}`)
	require.NoError(t, err)
	require.Equal(t, "Acme", content.(map[string]any)["company_name"])

	fenced := "```json\n{\"company_name\":\"Acme\"}\n```"
	content, err = parseModelReply(fenced)
	require.NoError(t, err)
	require.Equal(t, "Acme", content.(map[string]any)["company_name"])

	listReply := `[{"index":1,"content":["Acme"]}]`
	content, err = parseModelReply(listReply)
	require.NoError(t, err)
	require.Len(t, content.([]any), 1)

	_, err = parseModelReply("")
	require.Error(t, err)
	_, err = parseModelReply("I could not find any companies on this page.")
	require.Error(t, err)
}

func TestBuildPromptIncludesSchema(t *testing.T) {
	t.Parallel()

	directive := intel.Directive{
		Mode:        intel.DirectiveSchema,
		Schema:      json.RawMessage(`{"type":"object","properties":{"company_name":{"type":"string"}}}`),
		Instruction: "extract the data",
	}
	prompt := buildPrompt(directive)
	require.Contains(t, prompt, "extract the data")
	require.Contains(t, prompt, `"company_name"`)
	require.Contains(t, prompt, "ONLY valid JSON")
}
