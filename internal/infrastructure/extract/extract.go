// Package extract turns fetched HTML into the plain text the keyword and
// analysis stages consume. A readability pass isolates the main content;
// pages readability cannot handle fall back to a raw node walk.
package extract

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// MaxTextLen caps extracted text so downstream tokenizers and prompts stay
// bounded regardless of page size.
const MaxTextLen = 20000

// skippedTags never contribute visible text.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"iframe":   true,
}

// Text extracts the readable content of an HTML document. baseURL resolves
// relative references during the readability pass and may be empty. The
// result is whitespace-collapsed and capped at MaxTextLen characters.
// Unparsable or empty input yields "".
func Text(htmlContent, baseURL string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}

	pageURL, err := url.Parse(baseURL)
	if err != nil || pageURL.Host == "" {
		pageURL = &url.URL{Scheme: "https", Host: "unknown.invalid"}
	}

	if article, rerr := readability.FromReader(strings.NewReader(htmlContent), pageURL); rerr == nil {
		if text := collapse(article.TextContent); text != "" {
			return truncate(text)
		}
	}

	return truncate(collapse(walkText(htmlContent)))
}

// MetaKeywords returns the comma-separated entries of a
// <meta name="keywords"> tag, lowercased and trimmed, in document order.
func MetaKeywords(htmlContent string) []string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	var content string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if content != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			var name, value string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					name = strings.ToLower(attr.Val)
				case "content":
					value = attr.Val
				}
			}
			if name == "keywords" && value != "" {
				content = value
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)

	if content == "" {
		return nil
	}
	var keywords []string
	for _, part := range strings.Split(content, ",") {
		if kw := strings.ToLower(strings.TrimSpace(part)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// walkText collects visible text nodes, skipping chrome and non-content
// subtrees.
func walkText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return sb.String()
}

// collapse squeezes every whitespace run to a single space and trims.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTextLen {
		return s
	}
	return string(runes[:MaxTextLen])
}
