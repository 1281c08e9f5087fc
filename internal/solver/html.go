package solver

import (
	"strings"

	"golang.org/x/net/html"
)

// classText concatenates the text content of every element carrying one of
// the given class tokens, in document order, separated by single spaces.
func classText(body string, classes ...string) string {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	wanted := make(map[string]struct{}, len(classes))
	for _, class := range classes {
		wanted[class] = struct{}{}
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasAnyClass(n, wanted) {
			parts = append(parts, textContent(n))
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return strings.Join(parts, " ")
}

// idText returns the text content of the element with the given id, or "".
func idText(body string, id string) string {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "id" && attr.Val == id {
					found = n
					return
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	if found == nil {
		return ""
	}
	return textContent(found)
}

func hasAnyClass(n *html.Node, wanted map[string]struct{}) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, token := range strings.Fields(attr.Val) {
			if _, ok := wanted[token]; ok {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var builder strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return builder.String()
}
