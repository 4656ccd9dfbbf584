package fetch

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// voidElements never take a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// PrettyTree parses HTML and renders an indented DOM dump, one node per
// line. The dump exists for inspection and diffing, not for re-serving.
func PrettyTree(content []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writeNode(&b, root, 0)
	return b.String(), nil
}

func writeNode(b *strings.Builder, n *html.Node, depth int) {
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(b, c, depth)
		}
	case html.DoctypeNode:
		writeLine(b, depth, "<!DOCTYPE "+n.Data+">")
	case html.CommentNode:
		writeLine(b, depth, "<!--"+n.Data+"-->")
	case html.TextNode:
		text := strings.Join(strings.Fields(n.Data), " ")
		if text != "" {
			writeLine(b, depth, text)
		}
	case html.ElementNode:
		var tag strings.Builder
		tag.WriteByte('<')
		tag.WriteString(n.Data)
		for _, attr := range n.Attr {
			tag.WriteByte(' ')
			tag.WriteString(attr.Key)
			tag.WriteString(`="`)
			tag.WriteString(html.EscapeString(attr.Val))
			tag.WriteByte('"')
		}
		tag.WriteByte('>')
		writeLine(b, depth, tag.String())

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(b, c, depth+1)
		}
		if !voidElements[n.Data] {
			writeLine(b, depth, "</"+n.Data+">")
		}
	}
}

func writeLine(b *strings.Builder, depth int, line string) {
	for i := 0; i < depth; i++ {
		b.WriteByte(' ')
	}
	b.WriteString(line)
	b.WriteByte('\n')
}
