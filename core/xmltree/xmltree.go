// Package xmltree provides parsing, serialization, and tree surgery for the
// translation pipeline, built on antchfx/xmlquery.
//
// The parse/serialize pair preserves the XML declaration, DOCTYPE, comments,
// processing instructions, attribute order, and all text nodes, so a document
// that is parsed and written back keeps its structure intact. Serialization
// never re-indents; whitespace is whatever the source carried.
//
// Security note: xmlquery uses Go's encoding/xml internally, which does not
// fetch external entities, so XXE is not a concern here.
package xmltree

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/seglate/seglate/core/errors"
)

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node // document node
}

// Parse parses XML data and returns a Document. Malformed input fails fast.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &errors.MalformedInputError{Err: err}
	}
	// xmlquery synthesizes an XML declaration when the source has none; drop
	// it so a parse/serialize round trip does not grow a <?xml?> line the
	// source never carried.
	if !hasDeclaration(data) {
		for child := root.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.DeclarationNode && child.Data == "xml" {
				Detach(child)
				break
			}
		}
	}
	return &Document{root: root}, nil
}

// hasDeclaration reports whether the raw bytes start with an XML declaration,
// allowing a BOM and leading whitespace. "<?xml-stylesheet" and other
// processing instructions whose target merely starts with "xml" do not count.
func hasDeclaration(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(data, []byte("<?xml")) {
		return false
	}
	rest := data[len("<?xml"):]
	return len(rest) > 0 && (rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\r' || rest[0] == '\n')
}

// ParseFile reads and parses an XML file.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		var merr *errors.MalformedInputError
		if errors.As(err, &merr) {
			merr.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// DocumentNode returns the document node (parent of the declaration, DOCTYPE,
// and root element).
func (d *Document) DocumentNode() *xmlquery.Node {
	return d.root
}

// Root returns the root element of the document, or nil when the document has
// no element.
func (d *Document) Root() *xmlquery.Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// Encoding returns the encoding declared in the XML declaration, or "UTF-8"
// when none is declared.
func (d *Document) Encoding() string {
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.DeclarationNode && child.Data == "xml" {
			if enc := child.SelectAttr("encoding"); enc != "" {
				return enc
			}
			break
		}
	}
	return "UTF-8"
}

// XPath executes an XPath query over the document and returns matching nodes.
func (d *Document) XPath(expr string) ([]*xmlquery.Node, error) {
	// Compile the expression first so bad expressions report cleanly.
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	return nodes, nil
}

// Copy returns a deep copy of the document. The copy shares no nodes with the
// original, so callers can mutate it freely.
func (d *Document) Copy() *Document {
	return &Document{root: cloneTree(d.root)}
}

func cloneTree(n *xmlquery.Node) *xmlquery.Node {
	if n == nil {
		return nil
	}
	clone := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
		Attr:         append([]xmlquery.Attr(nil), n.Attr...),
	}
	if n.ProcInst != nil {
		pi := *n.ProcInst
		clone.ProcInst = &pi
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		AppendChild(clone, cloneTree(child))
	}
	return clone
}

// Serialize writes the document back to bytes.
func (d *Document) Serialize() []byte {
	var buf bytes.Buffer
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		writeNode(&buf, child)
	}
	return buf.Bytes()
}

// SerializeNode returns the outer XML of a single node and its subtree.
func SerializeNode(n *xmlquery.Node) string {
	var buf bytes.Buffer
	writeNode(&buf, n)
	return buf.String()
}

// InnerXML returns the serialized content of a node without the node itself.
func InnerXML(n *xmlquery.Node) string {
	var buf bytes.Buffer
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeNode(&buf, child)
	}
	return buf.String()
}

func writeNode(w *bytes.Buffer, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.DeclarationNode:
		w.WriteString("<?")
		w.WriteString(n.Data)
		for _, attr := range n.Attr {
			w.WriteString(" ")
			w.WriteString(attrName(attr))
			w.WriteString(`="`)
			w.WriteString(EscapeAttr(attr.Value))
			w.WriteString(`"`)
		}
		w.WriteString("?>")

	case xmlquery.ProcessingInstruction:
		w.WriteString("<?")
		w.WriteString(n.Data)
		if n.ProcInst != nil && n.ProcInst.Inst != "" {
			w.WriteString(" ")
			w.WriteString(n.ProcInst.Inst)
		}
		w.WriteString("?>")

	case xmlquery.NotationNode:
		// DOCTYPE and other directives, stored verbatim.
		w.WriteString("<!")
		w.WriteString(n.Data)
		w.WriteString(">")

	case xmlquery.CommentNode:
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->")

	case xmlquery.CharDataNode:
		w.WriteString("<![CDATA[")
		w.WriteString(n.Data)
		w.WriteString("]]>")

	case xmlquery.TextNode:
		w.WriteString(EscapeText(n.Data))

	case xmlquery.ElementNode:
		w.WriteString("<")
		w.WriteString(elementName(n))
		for _, attr := range n.Attr {
			w.WriteString(" ")
			w.WriteString(attrName(attr))
			w.WriteString(`="`)
			w.WriteString(EscapeAttr(attr.Value))
			w.WriteString(`"`)
		}
		if n.FirstChild == nil {
			w.WriteString("/>")
			return
		}
		w.WriteString(">")
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			writeNode(w, child)
		}
		w.WriteString("</")
		w.WriteString(elementName(n))
		w.WriteString(">")
	}
}

func elementName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

func attrName(attr xmlquery.Attr) string {
	if attr.Name.Space != "" {
		return attr.Name.Space + ":" + attr.Name.Local
	}
	return attr.Name.Local
}

// EscapeText escapes the basic XML entities for text content.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeAttr escapes text for use in XML attributes.
// Includes quote escaping in addition to the basic XML entities.
func EscapeAttr(s string) string {
	s = EscapeText(s)
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

// ParseFragment parses an XML fragment that may contain multiple top-level
// nodes and mixed text, returning the detached nodes in order. The fragment
// is parsed inside a wrapper element so bare text and sibling elements are
// both legal.
func ParseFragment(s string) ([]*xmlquery.Node, error) {
	doc, err := Parse([]byte("<wrapper>" + s + "</wrapper>"))
	if err != nil {
		return nil, fmt.Errorf("fragment is not well-formed: %w", err)
	}
	wrapper := doc.Root()
	if wrapper == nil {
		return nil, fmt.Errorf("fragment is not well-formed")
	}
	var nodes []*xmlquery.Node
	for child := wrapper.FirstChild; child != nil; {
		next := child.NextSibling
		Detach(child)
		nodes = append(nodes, child)
		child = next
	}
	return nodes, nil
}

// NewElement returns a detached element node with the given name and
// attributes in order.
func NewElement(name string, attrs ...xmlquery.Attr) *xmlquery.Node {
	return &xmlquery.Node{
		Type: xmlquery.ElementNode,
		Data: name,
		Attr: attrs,
	}
}

// NewText returns a detached text node.
func NewText(data string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.TextNode, Data: data}
}

// Attr builds an xmlquery attribute with a local name.
func Attr(name, value string) xmlquery.Attr {
	a := xmlquery.Attr{Value: value}
	a.Name.Local = name
	return a
}

// AppendChild attaches n as the last child of parent.
func AppendChild(parent, n *xmlquery.Node) {
	n.Parent = parent
	n.NextSibling = nil
	if parent.FirstChild == nil {
		parent.FirstChild = n
		n.PrevSibling = nil
	} else {
		parent.LastChild.NextSibling = n
		n.PrevSibling = parent.LastChild
	}
	parent.LastChild = n
}

// InsertBefore attaches n immediately before ref under ref's parent.
func InsertBefore(n, ref *xmlquery.Node) {
	parent := ref.Parent
	n.Parent = parent
	n.NextSibling = ref
	n.PrevSibling = ref.PrevSibling
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if parent != nil {
		parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// Detach removes n from its parent, leaving n's subtree intact.
func Detach(n *xmlquery.Node) {
	parent := n.Parent
	if parent != nil {
		if parent.FirstChild == n {
			parent.FirstChild = n.NextSibling
		}
		if parent.LastChild == n {
			parent.LastChild = n.PrevSibling
		}
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// ReplaceWithNodes substitutes old with the given nodes, preserving position
// among old's siblings. The replacement nodes must be detached.
func ReplaceWithNodes(old *xmlquery.Node, nodes []*xmlquery.Node) {
	for _, n := range nodes {
		InsertBefore(n, old)
	}
	Detach(old)
}
