// Package extract walks a source document, cuts translatable segments out of
// block-level content, abstracts inline markup into placeholder tokens, and
// builds the structural skeleton used to rebuild the document after
// translation.
//
// Classification is injected: tags named in configuration are inline
// (folded into the enclosing segment) and every other element is block-level.
// Each maximal contiguous run of text, inline elements, and protected
// elements inside a block element becomes one segment; the run is replaced in
// the skeleton by a single marker element carrying the segment ID and the
// token multiset the translation must preserve. Block-level children,
// comments, and processing instructions interrupt runs and stay in the
// skeleton untouched.
//
// Placeholder tokens are document-scoped: every occurrence of the same tag
// name with the same ordered attribute list shares one token number anywhere
// in the document.
package extract

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/seglate/seglate/core/errors"
	"github.com/seglate/seglate/core/segment"
	"github.com/seglate/seglate/core/xmltree"
	"github.com/seglate/seglate/internal/ident"
)

// IDSource produces segment and DNT placeholder IDs. *ident.Generator
// satisfies it.
type IDSource interface {
	NewID() (string, error)
}

// Options configures one extraction run.
type Options struct {
	// IsInline reports whether a tag name is folded into segments.
	IsInline func(tag string) bool
	// IsProtected reports whether a tag name is do-not-translate.
	IsProtected func(tag string) bool
	// IDs generates segment and DNT placeholder IDs.
	IDs IDSource
}

// Result is the complete output of one extraction run. All fields are
// immutable inputs to the merge stage.
type Result struct {
	Segments   []segment.Segment
	Skeleton   *xmltree.Document
	TagMapping *segment.TagMapping
	DNTMap     segment.DNTMap
}

// Extract processes the source document and returns segments, skeleton, tag
// mapping, and DNT map. The source document is never modified; the skeleton
// is built on a deep copy.
func Extract(doc *xmltree.Document, opts Options) (*Result, error) {
	if doc.Root() == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "document has no root element")
	}
	if opts.IsInline == nil {
		opts.IsInline = func(string) bool { return false }
	}
	if opts.IsProtected == nil {
		opts.IsProtected = func(string) bool { return false }
	}
	if opts.IDs == nil {
		opts.IDs = ident.NewGenerator(ident.DefaultLength)
	}

	ex := &extractor{
		opts:    opts,
		tags:    segment.NewTagMapping(),
		tagKeys: make(map[string]int),
		dnt:     segment.DNTMap{},
		usedIDs: make(map[string]bool),
	}

	skeleton := doc.Copy()
	if err := ex.processBlock(skeleton.Root()); err != nil {
		return nil, err
	}

	return &Result{
		Segments:   ex.segments,
		Skeleton:   skeleton,
		TagMapping: ex.tags,
		DNTMap:     ex.dnt,
	}, nil
}

type extractor struct {
	opts     Options
	segments []segment.Segment
	tags     *segment.TagMapping
	tagKeys  map[string]int // TagSpec.Key() -> token number
	dnt      segment.DNTMap
	usedIDs  map[string]bool
}

// processBlock segments the direct content of one block element, then
// recurses into its block children.
func (ex *extractor) processBlock(elem *xmlquery.Node) error {
	var run []*xmlquery.Node
	var blocks []*xmlquery.Node

	flush := func() error {
		defer func() { run = nil }()
		return ex.flushRun(run)
	}

	for child := elem.FirstChild; child != nil; child = child.NextSibling {
		switch {
		case child.Type == xmlquery.TextNode || child.Type == xmlquery.CharDataNode:
			run = append(run, child)
		case child.Type == xmlquery.ElementNode && ex.opts.IsProtected(child.Data):
			run = append(run, child)
		case child.Type == xmlquery.ElementNode && ex.opts.IsInline(child.Data):
			run = append(run, child)
		case child.Type == xmlquery.ElementNode:
			if err := flush(); err != nil {
				return err
			}
			blocks = append(blocks, child)
		default:
			// Comments and processing instructions stay in the skeleton and
			// interrupt the current run.
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	for _, b := range blocks {
		if err := ex.processBlock(b); err != nil {
			return err
		}
	}
	return nil
}

// flushRun turns one contiguous run of text/inline/DNT nodes into a segment
// and replaces the run with a marker. Runs containing only whitespace are
// left in place as document formatting.
func (ex *extractor) flushRun(run []*xmlquery.Node) error {
	if !segmentWorthy(run) {
		return nil
	}

	var text strings.Builder
	for _, n := range run {
		if err := ex.encodeNode(&text, n); err != nil {
			return err
		}
	}

	id, err := ex.newID()
	if err != nil {
		return err
	}
	seg := segment.Segment{ID: id, Text: text.String(), Order: len(ex.segments)}
	ex.segments = append(ex.segments, seg)

	marker := xmltree.NewElement(segment.MarkerTag,
		xmltree.Attr(segment.MarkerIDAttr, id),
		xmltree.Attr(segment.MarkerTokensAttr, segment.CanonicalTokenString(seg.Text)),
	)
	xmltree.InsertBefore(marker, run[0])
	for _, n := range run {
		xmltree.Detach(n)
	}
	return nil
}

// segmentWorthy reports whether a run carries translatable content: any
// non-whitespace text, or any inline or protected element.
func segmentWorthy(run []*xmlquery.Node) bool {
	for _, n := range run {
		switch n.Type {
		case xmlquery.ElementNode:
			return true
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if strings.TrimSpace(n.Data) != "" {
				return true
			}
		}
	}
	return false
}

// encodeNode appends the placeholder encoding of one run node to the segment
// text.
func (ex *extractor) encodeNode(text *strings.Builder, n *xmlquery.Node) error {
	switch {
	case n.Type == xmlquery.TextNode || n.Type == xmlquery.CharDataNode:
		// Braces in document text are escaped so they can never be read back
		// as a placeholder token.
		text.WriteString(segment.EscapeBraces(n.Data))
		return nil
	case n.Type == xmlquery.ElementNode && ex.opts.IsProtected(n.Data):
		return ex.encodeDNT(text, n)
	case n.Type == xmlquery.ElementNode:
		return ex.encodeInline(text, n)
	}
	// Comments and PIs cannot appear inside runs; anything else is dropped
	// from segment text but survives in the skeleton.
	return nil
}

// encodeDNT captures a protected element verbatim and emits an opaque token.
// Capture is outermost-wins: protected or inline descendants ride along
// inside the stored fragment and are never tokenized.
func (ex *extractor) encodeDNT(text *strings.Builder, n *xmlquery.Node) error {
	id, err := ex.newID()
	if err != nil {
		return err
	}
	ex.dnt[id] = segment.DNTEntry{
		Element: n.Data,
		Content: xmltree.SerializeNode(n),
	}
	text.WriteString(segment.DNTToken(id).String())
	return nil
}

// encodeInline emits tokens for one inline element and recursively encodes
// its content. Elements nested inside inline content are treated as inline
// regardless of classification: a segment never contains raw markup.
func (ex *extractor) encodeInline(text *strings.Builder, n *xmlquery.Node) error {
	spec := segment.TagSpec{
		Name:        n.Data,
		SelfClosing: n.FirstChild == nil,
	}
	for _, a := range n.Attr {
		name := a.Name.Local
		if a.Name.Space != "" {
			name = a.Name.Space + ":" + a.Name.Local
		}
		spec.Attrs = append(spec.Attrs, segment.Attr{Name: name, Value: a.Value})
	}

	number := ex.tokenFor(spec)
	if spec.SelfClosing {
		text.WriteString(segment.SelfCloseToken(number).String())
		return nil
	}

	text.WriteString(segment.OpenToken(number).String())
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if err := ex.encodeNode(text, child); err != nil {
			return err
		}
	}
	text.WriteString(segment.CloseToken(number).String())
	return nil
}

// tokenFor returns the document-scoped token number for a tag spec,
// assigning the next number on first sight.
func (ex *extractor) tokenFor(spec segment.TagSpec) int {
	key := spec.Key()
	if n, ok := ex.tagKeys[key]; ok {
		return n
	}
	n := len(ex.tagKeys) + 1
	ex.tagKeys[key] = n
	ex.tags.Tags[n] = spec
	return n
}

// newID draws a fresh ID and enforces uniqueness across segment and DNT
// placeholder IDs. A collision is fatal rather than silently retried so that
// an undersized ID_LENGTH surfaces immediately.
func (ex *extractor) newID() (string, error) {
	id, err := ex.opts.IDs.NewID()
	if err != nil {
		return "", err
	}
	if ex.usedIDs[id] {
		return "", &errors.DuplicateSegmentIDError{ID: id}
	}
	ex.usedIDs[id] = true
	return id, nil
}
