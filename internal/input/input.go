// Package input loads and checks the documents handed to an analysis.
package input

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MinTextRunes is the length below which a document is suspiciously short.
const MinTextRunes = 100

// ErrEmptyInput is returned for a job posting or résumé that is blank.
var ErrEmptyInput = errors.New("input text is empty")

var (
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaces     = regexp.MustCompile(`[ \t]+`)
)

// ValidateText rejects blank text and warns about very short text. name is
// used in messages.
func ValidateText(name, text string) (warning string, err error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s: %w", name, ErrEmptyInput)
	}
	if n := utf8.RuneCountInString(trimmed); n < MinTextRunes {
		return fmt.Sprintf("%s is very short (%d characters); results may be unreliable", name, n), nil
	}
	return "", nil
}

// ValidateTexts validates the job posting and the résumé together.
func ValidateTexts(job, resume string) ([]string, error) {
	var warnings []string
	for _, doc := range []struct{ name, text string }{{"job posting", job}, {"résumé", resume}} {
		warning, err := ValidateText(doc.name, doc.text)
		if err != nil {
			return nil, err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}
	return warnings, nil
}

// LooksLikeHTML reports whether the content should be treated as markup.
func LooksLikeHTML(path, content string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(content), "<")
}

// HTMLToText extracts readable text from a page, dropping scripts, styles and
// navigation. Block elements become separate lines.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, nav, header, footer, iframe, noscript, form").Remove()
	doc.Find(".menu, .navigation, .social, .banner, .ads, .cookie, .popup").Remove()

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, dt, dd, td, th").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := cleanLine(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) > 0 {
		return strings.Join(blocks, "\n"), nil
	}

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if text := cleanLine(line); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func cleanLine(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// LoadFile reads a document from disk, converting HTML to text. An empty
// path yields an empty string.
func LoadFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if LooksLikeHTML(path, content) {
		return HTMLToText(content)
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(content, "\n\n")), nil
}
