package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTexts(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("経験", 60)

	_, err := ValidateTexts("  \n", long)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Contains(t, err.Error(), "job posting")

	_, err = ValidateTexts(long, "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	warnings, err := ValidateTexts("Go engineer", long)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "job posting is very short (11 characters)")

	warnings, err = ValidateTexts(long, long)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	page := `<html><head><style>.x{}</style><script>var a = 1;</script></head>
<body>
<nav><a href="/">Home</a></nav>
<h1>Backend   Engineer</h1>
<ul><li>必須: Go開発経験3年以上</li><li><p>Kubernetes required</p></li></ul>
<p>歓迎: AWS</p>
<footer>© ACME</footer>
</body></html>`

	text, err := HTMLToText(page)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer\n必須: Go開発経験3年以上\nKubernetes required\n歓迎: AWS", text)
}

func TestHTMLToTextFallsBackToBody(t *testing.T) {
	t.Parallel()

	text, err := HTMLToText("<div>first line</div>\n<div>second   line</div>")
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line", text)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "resume.txt")
	require.NoError(t, os.WriteFile(plain, []byte("line one\r\n\r\n\r\n\r\nline two\n"), 0o600))
	html := filepath.Join(dir, "job.html")
	require.NoError(t, os.WriteFile(html, []byte("<p>Go required</p>"), 0o600))

	text, err := LoadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "line one\n\nline two", text)

	text, err = LoadFile(html)
	require.NoError(t, err)
	assert.Equal(t, "Go required", text)

	text, err = LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = LoadFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestLooksLikeHTML(t *testing.T) {
	t.Parallel()

	assert.True(t, LooksLikeHTML("posting.HTM", "plain"))
	assert.True(t, LooksLikeHTML("posting.txt", "  <html>"))
	assert.False(t, LooksLikeHTML("posting.txt", "Go engineer"))
}
