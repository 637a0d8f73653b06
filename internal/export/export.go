// Package export encodes a rendered Markdown transcript for output.
package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Format identifies an output encoding.
type Format string

const (
	Markdown Format = "md"
	HTML     Format = "html"
)

// ParseFormat accepts "md", "markdown", "html", and "htm".
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "md", "markdown":
		return Markdown, nil
	case "html", "htm":
		return HTML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want md or html)", value)
	}
}

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	if f == HTML {
		return ".html"
	}
	return ".md"
}

var converter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	// Without html.WithUnsafe, raw HTML in transcript text is dropped.
	goldmark.WithRendererOptions(gmhtml.WithXHTML()),
)

// Encode converts rendered Markdown into the requested format. Markdown is
// returned unchanged.
func Encode(markdown string, format Format, title string) ([]byte, error) {
	switch format {
	case Markdown, "":
		return []byte(markdown), nil
	case HTML:
		return encodeHTML(markdown, title)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func encodeHTML(markdown, title string) ([]byte, error) {
	var body bytes.Buffer
	if err := converter.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if strings.TrimSpace(title) == "" {
		title = "Transcript"
	}

	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(title))
	doc.WriteString("</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.Bytes(), nil
}
