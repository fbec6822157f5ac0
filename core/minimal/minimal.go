// Package minimal implements the simplified XML form of the segments
// artifact. Translators who prefer a generic XML editor over a JSON file get
// one uniformly named element per placeholder token (<t1>, <t2/>, <dnt/>)
// instead of the inline token syntax; the inverse transform recovers the
// token text so the reconstruction path is shared with the JSON route.
package minimal

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/seglate/seglate/core/errors"
	"github.com/seglate/seglate/core/segment"
	"github.com/seglate/seglate/core/xmltree"
)

const (
	rootTag     = "minimal"
	segTag      = "seg"
	dntTag      = "dnt"
	langAttr    = "lang"
	idAttr      = "id"
	tokenPrefix = "t"
)

// ToMinimal renders a segments artifact as a minimal XML document. Every tag
// token must have a mapping entry; an unmapped token is rejected rather than
// silently handed to a translator who could never merge it back.
func ToMinimal(f *segment.File, tags *segment.TagMapping) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	buf.WriteString("<" + rootTag)
	if f.Lang != "" {
		buf.WriteString(" " + langAttr + `="` + xmltree.EscapeAttr(f.Lang) + `"`)
	}
	buf.WriteString(">\n")

	for _, s := range f.Segments {
		body, err := renderSegment(s, tags)
		if err != nil {
			return nil, err
		}
		buf.WriteString("  <" + segTag + " " + idAttr + `="` + xmltree.EscapeAttr(s.ID) + `">`)
		buf.WriteString(body)
		buf.WriteString("</" + segTag + ">\n")
	}

	buf.WriteString("</" + rootTag + ">\n")
	return buf.Bytes(), nil
}

// renderSegment converts one segment's token text into minimal elements.
// Literal text is emitted with brace escapes resolved; the minimal surface
// has no token syntax to collide with.
func renderSegment(s segment.Segment, tags *segment.TagMapping) (string, error) {
	var out strings.Builder
	for _, part := range segment.SplitTokens(s.Text) {
		if part.Token == nil {
			out.WriteString(xmltree.EscapeText(part.Text))
			continue
		}
		tok := *part.Token

		switch tok.Kind {
		case segment.TokenDNT:
			out.WriteString("<" + dntTag + " " + idAttr + `="` + tok.DNTID + `"/>`)
		default:
			if _, ok := tags.Lookup(tok.Number); !ok {
				return "", &errors.UnknownPlaceholderTokenError{SegmentID: s.ID, Token: tok.String()}
			}
			name := tokenPrefix + strconv.Itoa(tok.Number)
			switch tok.Kind {
			case segment.TokenOpen:
				out.WriteString("<" + name + ">")
			case segment.TokenClose:
				out.WriteString("</" + name + ">")
			case segment.TokenSelfClose:
				out.WriteString("<" + name + "/>")
			}
		}
	}
	return out.String(), nil
}

// FromMinimal parses a minimal XML document back into a segments artifact.
// Element order in the document defines segment order. Every numbered element
// must have a mapping entry; the mapping also decides whether a token is
// rendered self-closing, so <t3/> and <t3></t3> decode identically — but a
// self-closing token carrying text is rejected rather than losing the text.
func FromMinimal(data []byte, tags *segment.TagMapping) (*segment.File, error) {
	doc, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil || root.Data != rootTag {
		return nil, &errors.MalformedInputError{Err: fmt.Errorf("document root is not <%s>", rootTag)}
	}

	f := &segment.File{Lang: root.SelectAttr(langAttr)}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if child.Data != segTag {
			return nil, &errors.MalformedInputError{Err: fmt.Errorf("unexpected element <%s> under <%s>", child.Data, rootTag)}
		}
		id := child.SelectAttr(idAttr)
		if id == "" {
			return nil, &errors.MalformedInputError{Err: fmt.Errorf("<%s> element without %s attribute", segTag, idAttr)}
		}

		var text strings.Builder
		if err := decodeContent(id, child, tags, &text); err != nil {
			return nil, err
		}
		f.Segments = append(f.Segments, segment.Segment{ID: id, Text: text.String(), Order: len(f.Segments)})
	}
	return f, nil
}

// decodeContent turns the children of a minimal element back into token text.
func decodeContent(segID string, parent *xmlquery.Node, tags *segment.TagMapping, out *strings.Builder) error {
	for n := parent.FirstChild; n != nil; n = n.NextSibling {
		switch n.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			// Braces typed by the translator are literal text, never tokens.
			out.WriteString(segment.EscapeBraces(n.Data))

		case xmlquery.ElementNode:
			if n.Data == dntTag {
				id := n.SelectAttr(idAttr)
				if id == "" {
					return &errors.MalformedInputError{Err: fmt.Errorf("segment %s: <%s> element without %s attribute", segID, dntTag, idAttr)}
				}
				out.WriteString(segment.DNTToken(id).String())
				continue
			}

			number, ok := tokenNumber(n.Data)
			if !ok {
				return &errors.UnknownPlaceholderTokenError{SegmentID: segID, Token: "<" + n.Data + ">"}
			}
			spec, ok := tags.Lookup(number)
			if !ok {
				return &errors.UnknownPlaceholderTokenError{SegmentID: segID, Token: segment.OpenToken(number).String()}
			}

			if spec.SelfClosing {
				// A self-closing placeholder has no content slot; text typed
				// inside it has nowhere to go in the reconstruction and must
				// not be dropped silently. Whitespace is editor formatting.
				if content := strings.TrimSpace(xmltree.InnerXML(n)); content != "" {
					return &errors.MalformedInputError{Err: fmt.Errorf(
						"segment %s: <%s%d> maps to a self-closing tag but carries content %q", segID, tokenPrefix, number, content)}
				}
				out.WriteString(segment.SelfCloseToken(number).String())
				continue
			}
			out.WriteString(segment.OpenToken(number).String())
			if err := decodeContent(segID, n, tags, out); err != nil {
				return err
			}
			out.WriteString(segment.CloseToken(number).String())
		}
	}
	return nil
}

// tokenNumber parses a minimal element name of the form t<N>.
func tokenNumber(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, tokenPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
