package normalize

import (
	"strings"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
	"golang.org/x/net/html"
)

// Description returns the plain-text description of p. The longer of the
// two HTML fields wins; the plain field is used when both are empty.
func Description(p *model.UpstreamProduct) string {
	source := p.DescriptionHTML
	if len(p.BodyHTML) > len(source) {
		source = p.BodyHTML
	}

	if strings.TrimSpace(source) == "" {
		return collapseWhitespace(p.Description)
	}
	return HTMLToText(source)
}

// HTMLToText strips tags, decodes entities and collapses whitespace.
// Script and style contents are dropped.
func HTMLToText(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))

	var b strings.Builder
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; keep what was read
			return collapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isRawTextTag(name) {
				skip++
			}
			separate(&b, name)
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isRawTextTag(name) && skip > 0 {
				skip--
			}
			separate(&b, name)
		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			separate(&b, name)
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// inlineTags do not break words apart.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "code": true, "em": true, "i": true,
	"mark": true, "small": true, "span": true, "strong": true, "sub": true,
	"sup": true, "u": true,
}

func separate(b *strings.Builder, name []byte) {
	if !inlineTags[string(name)] {
		b.WriteByte(' ')
	}
}

func isRawTextTag(name []byte) bool {
	tag := string(name)
	return tag == "script" || tag == "style"
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Keywords returns tags in first-occurrence order without duplicates,
// followed by category when it is non-empty and not already present.
func Keywords(tags []string, category string) []string {
	seen := make(map[string]struct{}, len(tags)+1)
	keywords := make([]string, 0, len(tags)+1)

	for _, tag := range append(append([]string(nil), tags...), category) {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		keywords = append(keywords, tag)
	}

	if len(keywords) == 0 {
		return nil
	}
	return keywords
}
