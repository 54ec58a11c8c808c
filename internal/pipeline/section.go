package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/campus-cli/internal/fault"
	"github.com/sells-group/campus-cli/internal/model"
)

// LocateSection returns the text of the first div, in document order, whose
// text contains any of the markers. Text nodes are joined with newlines.
func LocateSection(page string, markers []string) (model.PageSection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return model.PageSection{}, eris.Wrap(err, "pipeline: parse page html")
	}

	var found string
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, n := range s.Nodes {
			text := strings.TrimSpace(nodeText(n))
			if text == "" {
				continue
			}
			for _, m := range markers {
				if m != "" && strings.Contains(text, m) {
					found = text
					return false
				}
			}
		}
		return true
	})

	if found == "" {
		return model.PageSection{}, fault.Newf(fault.SectionNotFound, "no section matched %q", markers)
	}
	return model.PageSection{Text: found}, nil
}

// nodeText joins the text nodes under n with newlines, skipping script and
// style content.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, "\n")
}
