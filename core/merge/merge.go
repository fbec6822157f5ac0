// Package merge rebuilds a full document from a skeleton and translated
// segments, decoding placeholder tokens back into the original inline markup
// and splicing protected content in verbatim.
//
// Merge is pure: it never modifies its inputs and can be re-run with the same
// skeleton, translations, and mappings to produce the same output. Tokens may
// appear in a different order than in the source segment (translators reorder
// markup for target-language grammar), but the token multiset must match the
// one recorded in the skeleton marker exactly.
package merge

import (
	"strings"

	"github.com/seglate/seglate/core/errors"
	"github.com/seglate/seglate/core/segment"
	"github.com/seglate/seglate/core/xmltree"
)

// Merge replaces every segment marker in the skeleton with the decoded
// translation of that segment and returns the reconstructed document.
func Merge(skeleton *xmltree.Document, translations segment.Translations, tags *segment.TagMapping, dnt segment.DNTMap) (*xmltree.Document, error) {
	doc := skeleton.Copy()

	markers, err := doc.XPath("//" + segment.MarkerTag)
	if err != nil {
		return nil, errors.Wrap(err, "failed to locate segment markers")
	}

	for _, marker := range markers {
		id := marker.SelectAttr(segment.MarkerIDAttr)
		if id == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "skeleton marker without id")
		}

		text, ok := translations[id]
		if !ok {
			return nil, &errors.SegmentCountMismatchError{SegmentID: id}
		}

		if err := checkTokens(id, marker.SelectAttr(segment.MarkerTokensAttr), text, tags, dnt); err != nil {
			return nil, err
		}

		nodes, err := xmltree.ParseFragment(decode(text, tags, dnt))
		if err != nil {
			return nil, errors.Wrap(err, "segment %s decoded to malformed markup", id)
		}
		xmltree.ReplaceWithNodes(marker, nodes)
	}

	return doc, nil
}

// checkTokens enforces the token contract for one segment: every token in
// the translation must be known, and the multiset must match the marker's
// expectation. This is the primary defense against a translator deleting or
// duplicating markup.
func checkTokens(id, expected, text string, tags *segment.TagMapping, dnt segment.DNTMap) error {
	for _, tok := range segment.ScanTokens(text) {
		switch tok.Kind {
		case segment.TokenDNT:
			if _, ok := dnt[tok.DNTID]; !ok {
				return &errors.UnknownPlaceholderTokenError{SegmentID: id, Token: tok.String()}
			}
		default:
			if _, ok := tags.Lookup(tok.Number); !ok {
				return &errors.UnknownPlaceholderTokenError{SegmentID: id, Token: tok.String()}
			}
		}
	}

	var want []string
	if expected != "" {
		want = strings.Split(expected, " ")
	}
	missing, extra := segment.DiffTokenSets(want, segment.CanonicalTokens(text))
	if len(missing) > 0 || len(extra) > 0 {
		return &errors.PlaceholderSetMismatchError{SegmentID: id, Missing: missing, Extra: extra}
	}
	return nil
}

// decode renders translated segment text as an XML fragment: plain text is
// escaped (with brace escapes resolved back to literal braces), tag tokens
// become their original tags with attributes restored verbatim, and DNT
// tokens are replaced by the stored fragments unparsed.
func decode(text string, tags *segment.TagMapping, dnt segment.DNTMap) string {
	var out strings.Builder
	for _, part := range segment.SplitTokens(text) {
		if part.Token == nil {
			out.WriteString(xmltree.EscapeText(part.Text))
			continue
		}
		tok := *part.Token

		switch tok.Kind {
		case segment.TokenDNT:
			out.WriteString(dnt[tok.DNTID].Content)
		case segment.TokenClose:
			spec, _ := tags.Lookup(tok.Number)
			out.WriteString("</" + spec.Name + ">")
		default:
			spec, _ := tags.Lookup(tok.Number)
			out.WriteString("<" + spec.Name)
			for _, a := range spec.Attrs {
				out.WriteString(" " + a.Name + `="` + xmltree.EscapeAttr(a.Value) + `"`)
			}
			if tok.Kind == segment.TokenSelfClose {
				out.WriteString("/>")
			} else {
				out.WriteString(">")
			}
		}
	}
	return out.String()
}
