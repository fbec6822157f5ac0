// Package segment defines the data model shared by extraction, merge, and the
// minimal-XML bridge: translatable segments, the placeholder tag mapping, and
// the do-not-translate map, together with their JSON artifact forms.
package segment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Marker element vocabulary used in skeleton documents. The marker records
// which segment was cut out at that position and the token multiset a
// translation of it must carry.
const (
	MarkerTag        = "x-seg"
	MarkerIDAttr     = "id"
	MarkerTokensAttr = "tokens"
)

// Segment is one unit of translatable text. Text contains placeholder tokens
// and plain text, never raw markup.
type Segment struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// File is the persisted segments artifact: an ordered list of segments tagged
// with the language of their text.
type File struct {
	Lang     string    `json:"lang"`
	Segments []Segment `json:"segments"`
}

// EncodeFile serializes a segments artifact.
func EncodeFile(f *File) ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode segments: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeFile parses a segments artifact.
func DecodeFile(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}
	return &f, nil
}

// Translations maps segment ID to translated text.
type Translations map[string]string

// ToTranslations indexes a segments file by ID.
func (f *File) ToTranslations() Translations {
	m := make(Translations, len(f.Segments))
	for _, s := range f.Segments {
		m[s.ID] = s.Text
	}
	return m
}

// Attr is one attribute of an abstracted inline tag. Order matters: the
// decoder restores attributes exactly as authored.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TagSpec describes the inline tag behind a placeholder token.
type TagSpec struct {
	Name        string `json:"name"`
	Attrs       []Attr `json:"attrs,omitempty"`
	SelfClosing bool   `json:"selfClosing,omitempty"`
}

// Key returns the identity of a tag spec for token reuse. Two inline
// occurrences share a token iff their tag name and ordered attribute list
// match.
func (t TagSpec) Key() string {
	var b strings.Builder
	b.WriteString(t.Name)
	for _, a := range t.Attrs {
		b.WriteByte(0)
		b.WriteString(a.Name)
		b.WriteByte('=')
		b.WriteString(a.Value)
	}
	if t.SelfClosing {
		b.WriteString("\x00/")
	}
	return b.String()
}

// TagMapping is the document-scoped table from placeholder token number to
// original tag. Token numbers start at 1 and identical tags share a number
// everywhere in the document.
type TagMapping struct {
	Tags map[int]TagSpec
}

// NewTagMapping returns an empty mapping.
func NewTagMapping() *TagMapping {
	return &TagMapping{Tags: make(map[int]TagSpec)}
}

// Lookup returns the tag spec for a token number.
func (m *TagMapping) Lookup(number int) (TagSpec, bool) {
	spec, ok := m.Tags[number]
	return spec, ok
}

// Numbers returns the token numbers in ascending order.
func (m *TagMapping) Numbers() []int {
	nums := make([]int, 0, len(m.Tags))
	for n := range m.Tags {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// tagMappingFile is the on-disk shape of a TagMapping.
type tagMappingFile struct {
	Tags map[string]TagSpec `json:"tags"`
}

// EncodeTagMapping serializes a tag mapping artifact.
func EncodeTagMapping(m *TagMapping) ([]byte, error) {
	out := tagMappingFile{Tags: make(map[string]TagSpec, len(m.Tags))}
	for n, spec := range m.Tags {
		out.Tags[strconv.Itoa(n)] = spec
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tag mapping: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeTagMapping parses a tag mapping artifact.
func DecodeTagMapping(data []byte) (*TagMapping, error) {
	var in tagMappingFile
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode tag mapping: %w", err)
	}
	m := NewTagMapping()
	for key, spec := range in.Tags {
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid token number %q in tag mapping", key)
		}
		m.Tags[n] = spec
	}
	return m, nil
}

// DNTEntry holds one protected element: its tag name and its verbatim outer
// XML. Restoration splices Content back literally, never re-parsing it.
type DNTEntry struct {
	Element string `json:"element"`
	Content string `json:"content"`
}

// DNTMap maps DNT placeholder IDs to protected content.
type DNTMap map[string]DNTEntry

// EncodeDNTMap serializes a DNT map artifact.
func EncodeDNTMap(m DNTMap) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode dnt map: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeDNTMap parses a DNT map artifact.
func DecodeDNTMap(data []byte) (DNTMap, error) {
	var m DNTMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode dnt map: %w", err)
	}
	if m == nil {
		m = DNTMap{}
	}
	return m, nil
}
