// Package validate compares a source document against its reconstruction and
// reports every structural divergence. The comparison is structural, not
// textual: element names, attributes, block-level child ordering, comments,
// processing instructions, and the DOCTYPE must match, while text content is
// expected to differ after translation. Inline elements are the one place
// order is not structural: translators reorder inline markup for
// target-language grammar, so inline siblings are compared as an unordered
// multiset of subtree signatures.
//
// Validation never fails with an error. Its job is to surface all
// divergences, so every finding is accumulated into the report and the walk
// always runs to completion.
package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/seglate/seglate/core/segment"
	"github.com/seglate/seglate/core/xmltree"
)

// Mismatch kinds.
const (
	KindTag         = "tag"
	KindAttributes  = "attributes"
	KindMissingNode = "missing-node"
	KindExtraNode   = "extra-node"
	KindNodeType    = "node-type"
	KindComment     = "comment"
	KindPI          = "processing-instruction"
	KindDeclaration = "declaration"
	KindDoctype     = "doctype"
)

// Mismatch is one structural divergence, located by an XPath-like path into
// the source document.
type Mismatch struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Report is the outcome of a validation run. Passed is true iff no mismatch
// was found; warnings are informational and never fail the report.
type Report struct {
	Passed     bool       `json:"passed"`
	Mismatches []Mismatch `json:"mismatches"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// EncodeReport serializes a report artifact.
func EncodeReport(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeReport parses a report artifact.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// Options configures a validation run.
type Options struct {
	// IsInline reports whether a tag name is inline markup. Inline siblings
	// may be legitimately reordered by translation and are compared as an
	// unordered multiset; everything else is positional. Nil treats every
	// element as block-level.
	IsInline func(tag string) bool
}

// Validate compares the reconstructed document against the source and returns
// a report of every structural divergence.
func Validate(src, reconstructed *xmltree.Document, opts Options) *Report {
	w := &walker{isInline: opts.IsInline}
	w.compareChildren("", src.DocumentNode(), reconstructed.DocumentNode())
	return &Report{
		Passed:     len(w.mismatches) == 0,
		Mismatches: w.mismatches,
	}
}

type walker struct {
	mismatches []Mismatch
	isInline   func(tag string) bool
}

func (w *walker) add(path, kind, detail string) {
	w.mismatches = append(w.mismatches, Mismatch{Path: path, Kind: kind, Detail: detail})
}

// structural returns the children of n that carry structure. Text and CDATA
// nodes are skipped: translation changes them by design.
func structural(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			continue
		default:
			out = append(out, c)
		}
	}
	return out
}

func (w *walker) compareChildren(path string, src, got *xmlquery.Node) {
	srcKids, srcInline := w.partition(structural(src))
	gotKids, gotInline := w.partition(structural(got))

	w.compareInline(path, srcInline, gotInline)

	// Ordinal among same-named siblings, for readable paths.
	ordinals := make(map[string]int)

	n := len(srcKids)
	if len(gotKids) < n {
		n = len(gotKids)
	}
	for i := 0; i < n; i++ {
		w.compareNode(path, ordinals, srcKids[i], gotKids[i])
	}
	for _, c := range srcKids[n:] {
		w.add(path, KindMissingNode, "missing "+describe(c))
	}
	for _, c := range gotKids[n:] {
		w.add(path, KindExtraNode, "extra "+describe(c))
	}
}

// partition splits a sibling list into positionally compared nodes and
// inline elements, whose order among siblings is not structural.
func (w *walker) partition(kids []*xmlquery.Node) (positional, inline []*xmlquery.Node) {
	for _, c := range kids {
		if c.Type == xmlquery.ElementNode && w.isInline != nil && w.isInline(c.Data) {
			inline = append(inline, c)
		} else {
			positional = append(positional, c)
		}
	}
	return positional, inline
}

// compareInline checks inline siblings as a multiset of subtree signatures.
// Two documents agree when every signature occurs the same number of times,
// regardless of the order the translator arranged the elements in.
func (w *walker) compareInline(path string, src, got []*xmlquery.Node) {
	counts := make(map[string]int)
	names := make(map[string]string)
	for _, c := range src {
		sig := signature(c)
		counts[sig]++
		names[sig] = describe(c)
	}
	for _, c := range got {
		sig := signature(c)
		counts[sig]--
		names[sig] = describe(c)
	}

	var sigs []string
	for sig, n := range counts {
		if n != 0 {
			sigs = append(sigs, sig)
		}
	}
	sort.Strings(sigs)
	for _, sig := range sigs {
		for i := 0; i < counts[sig]; i++ {
			w.add(path, KindMissingNode, "missing inline "+names[sig])
		}
		for i := 0; i < -counts[sig]; i++ {
			w.add(path, KindExtraNode, "extra inline "+names[sig])
		}
	}
}

// signature is a structural fingerprint of a subtree: tag name, attribute
// set, and the sorted signatures of the structural descendants. Text is
// excluded, and descendant order does not change the fingerprint.
func signature(n *xmlquery.Node) string {
	if n.Type != xmlquery.ElementNode {
		return describe(n) + "(" + n.Data + ")"
	}
	var kids []string
	for _, c := range structural(n) {
		kids = append(kids, signature(c))
	}
	sort.Strings(kids)

	attrs := attrMap(n.Attr)
	pairs := make([]string, 0, len(attrs))
	for name, value := range attrs {
		pairs = append(pairs, name+"="+value)
	}
	sort.Strings(pairs)

	return "<" + n.Data + "|" + strings.Join(pairs, ",") + ">[" + strings.Join(kids, " ") + "]"
}

func (w *walker) compareNode(path string, ordinals map[string]int, src, got *xmlquery.Node) {
	if src.Type != got.Type {
		w.add(path, KindNodeType, fmt.Sprintf("expected %s, found %s", describe(src), describe(got)))
		return
	}

	switch src.Type {
	case xmlquery.ElementNode:
		ordinals[src.Data]++
		nodePath := fmt.Sprintf("%s/%s[%d]", path, src.Data, ordinals[src.Data])
		if src.Data != got.Data || src.Prefix != got.Prefix {
			w.add(nodePath, KindTag, fmt.Sprintf("expected <%s>, found <%s>", src.Data, got.Data))
			return
		}
		if detail := diffAttrs(src.Attr, got.Attr); detail != "" {
			w.add(nodePath, KindAttributes, detail)
		}
		w.compareChildren(nodePath, src, got)

	case xmlquery.CommentNode:
		if src.Data != got.Data {
			w.add(path, KindComment, fmt.Sprintf("comment changed from %q to %q", src.Data, got.Data))
		}

	case xmlquery.ProcessingInstruction:
		if xmltree.SerializeNode(src) != xmltree.SerializeNode(got) {
			w.add(path, KindPI, fmt.Sprintf("expected %s, found %s",
				xmltree.SerializeNode(src), xmltree.SerializeNode(got)))
		}

	case xmlquery.DeclarationNode:
		if xmltree.SerializeNode(src) != xmltree.SerializeNode(got) {
			w.add(path, KindDeclaration, fmt.Sprintf("expected %s, found %s",
				xmltree.SerializeNode(src), xmltree.SerializeNode(got)))
		}

	case xmlquery.NotationNode:
		if src.Data != got.Data {
			w.add(path, KindDoctype, fmt.Sprintf("expected <!%s>, found <!%s>", src.Data, got.Data))
		}
	}
}

// diffAttrs compares attribute sets as maps: authoring order is not a
// structural fact, but every name/value pair is.
func diffAttrs(src, got []xmlquery.Attr) string {
	want := attrMap(src)
	have := attrMap(got)

	var parts []string
	for name, value := range want {
		gv, ok := have[name]
		switch {
		case !ok:
			parts = append(parts, fmt.Sprintf("lost attribute %s=%q", name, value))
		case gv != value:
			parts = append(parts, fmt.Sprintf("attribute %s changed from %q to %q", name, value, gv))
		}
	}
	for name, value := range have {
		if _, ok := want[name]; !ok {
			parts = append(parts, fmt.Sprintf("gained attribute %s=%q", name, value))
		}
	}
	// Map iteration order is random; reports must be stable.
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func attrMap(attrs []xmlquery.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		name := a.Name.Local
		if a.Name.Space != "" {
			name = a.Name.Space + ":" + a.Name.Local
		}
		m[name] = a.Value
	}
	return m
}

func describe(n *xmlquery.Node) string {
	switch n.Type {
	case xmlquery.ElementNode:
		return "<" + n.Data + ">"
	case xmlquery.CommentNode:
		return "comment"
	case xmlquery.ProcessingInstruction, xmlquery.DeclarationNode:
		return "<?" + n.Data + "?>"
	case xmlquery.NotationNode:
		return "doctype"
	default:
		return "node"
	}
}

// Untranslated reports segments whose translation is byte-identical to the
// source text. A segment that carries nothing but tokens and whitespace is
// skipped, since there is nothing for a translator to change in it.
func Untranslated(src []segment.Segment, translated segment.Translations) []string {
	var warnings []string
	for _, s := range src {
		text, ok := translated[s.ID]
		if !ok || text != s.Text {
			continue
		}
		if strings.TrimSpace(stripTokens(s.Text)) == "" {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("segment %s appears untranslated", s.ID))
	}
	return warnings
}

func stripTokens(text string) string {
	var b strings.Builder
	for _, p := range segment.SplitTokens(text) {
		b.WriteString(p.Text)
	}
	return b.String()
}
