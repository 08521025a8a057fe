// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package htmlutils provides utility functions for working with HTML.
package htmlutils

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Node2string appends the text of n and its descendants to sb, each
// fragment trimmed and separated by a single space. Script and style
// contents are skipped.
func Node2string(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		tmp := strings.Join(strings.Fields(n.Data), " ")
		if tmp == "" {
			return
		}

		if sb.Len() != 0 {
			sb.WriteByte(' ')
		}

		sb.WriteString(tmp)
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}

		fallthrough
	default:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			Node2string(child, sb)
		}
	}
}

// IsHTML reports whether the media type (parameters allowed) is text/html.
func IsHTML(media string) bool {
	const expectedMedia = "text/html"

	return strings.EqualFold(
		expectedMedia,
		media[0:min(len(media), len(expectedMedia))],
	)
}

// AsReader converts r to UTF-8 using the charset named in media, or the one
// sniffed from the content when media names none.
func AsReader(r io.Reader, media string) (io.Reader, error) {
	rr, err := charset.NewReader(r, media)
	if err != nil {
		return nil, fmt.Errorf("decoding charset of %s: %w", media, err)
	}

	return rr, nil
}

// AsNode parses an io.Reader as an HTML node.
func AsNode(r io.Reader) (*html.Node, error) {
	n, err := html.Parse(r)
	if nil != err {
		return nil, fmt.Errorf("parsing body as HTML: %w", err)
	}

	return n, nil
}

// Title returns the text of the first <title> of the document head, or an
// empty string.
func Title(n *html.Node) string {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			if t := Title(child); t != "" {
				return t
			}

			continue
		}

		switch strings.ToLower(child.Data) {
		case "title":
			sb := strings.Builder{}
			Node2string(child, &sb)

			return sb.String()
		case "body":
			// we're done
			return ""
		default:
			if t := Title(child); t != "" {
				return t
			}
		}
	}

	return ""
}

// ReadTitle parses the document in r, encoded as described by media, and
// returns its title.
func ReadTitle(r io.Reader, media string) (string, error) {
	rr, err := AsReader(r, media)
	if err != nil {
		return "", err
	}

	n, err := AsNode(rr)
	if err != nil {
		return "", err
	}

	return Title(n), nil
}
