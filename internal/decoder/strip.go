package decoder

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripMarkup reduces HTML to its visible text. Input that contains no markup
// tokens is returned unchanged. When the visible text would itself read as
// markup (escaped tags in the source), its '<' is written as "&lt;" so that
// stripping twice gives the same result as stripping once.
func StripMarkup(s string) string {
	if !containsMarkup(s) {
		return s
	}
	text := visibleText(s)
	if containsMarkup(text) {
		text = strings.ReplaceAll(text, "<", "&lt;")
	}
	return text
}

// containsMarkup reports whether the tokenizer finds any tag, comment or
// doctype in s
func containsMarkup(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken,
			html.CommentToken, html.DoctypeToken:
			return true
		}
	}
}

func visibleText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var b strings.Builder
	hidden := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidy(b.String())

		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case a == atom.Script || a == atom.Style:
				if tt == html.StartTagToken {
					hidden++
				}
			case a == atom.Br:
				b.WriteByte('\n')
			case isBlock(a):
				newline(&b)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case a == atom.Script || a == atom.Style:
				if hidden > 0 {
					hidden--
				}
			case isBlock(a):
				newline(&b)
			}
		}
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Tr, atom.Table, atom.Ul, atom.Ol,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Hr, atom.Section, atom.Article,
		atom.Header, atom.Footer, atom.Title:
		return true
	}
	return false
}

func newline(b *strings.Builder) {
	if b.Len() == 0 {
		return
	}
	if s := b.String(); s[len(s)-1] != '\n' {
		b.WriteByte('\n')
	}
}

// tidy trims trailing blanks from each line and collapses runs of empty lines
func tidy(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t ")
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}
