package segment

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TokenKind distinguishes the placeholder token forms that may appear in
// segment text.
type TokenKind int

const (
	// TokenOpen is an opening tag token, {N}.
	TokenOpen TokenKind = iota
	// TokenClose is a closing tag token, {/N}.
	TokenClose
	// TokenSelfClose is a self-closing tag token, {N/}.
	TokenSelfClose
	// TokenDNT is a do-not-translate token, {dnt:ID}.
	TokenDNT
)

// Token is one placeholder occurrence in segment text.
type Token struct {
	Kind   TokenKind
	Number int    // token number for tag tokens
	DNTID  string // placeholder ID for DNT tokens
}

// String renders the token in its text form.
func (t Token) String() string {
	switch t.Kind {
	case TokenOpen:
		return fmt.Sprintf("{%d}", t.Number)
	case TokenClose:
		return fmt.Sprintf("{/%d}", t.Number)
	case TokenSelfClose:
		return fmt.Sprintf("{%d/}", t.Number)
	case TokenDNT:
		return fmt.Sprintf("{dnt:%s}", t.DNTID)
	}
	return ""
}

// OpenToken, CloseToken, and SelfCloseToken build tag tokens.
func OpenToken(n int) Token      { return Token{Kind: TokenOpen, Number: n} }
func CloseToken(n int) Token     { return Token{Kind: TokenClose, Number: n} }
func SelfCloseToken(n int) Token { return Token{Kind: TokenSelfClose, Number: n} }

// DNTToken builds a do-not-translate token.
func DNTToken(id string) Token { return Token{Kind: TokenDNT, DNTID: id} }

// tokenPattern matches {N}, {/N}, {N/}, and {dnt:ID} at the start of input.
var tokenPattern = regexp.MustCompile(`^\{(?:(\d+)(/?)|/(\d+)|dnt:([0-9a-fA-F]+))\}`)

// EscapeBraces doubles braces so literal document text can never alias a
// placeholder token. Applied to text content during extraction and to
// translator-entered text on the minimal import path; SplitTokens resolves
// the escapes on decode.
func EscapeBraces(s string) string {
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}

// Part is one run of segment text: either literal text (brace escapes
// resolved) or a single token.
type Part struct {
	Text  string
	Token *Token // nil for text parts
}

// SplitTokens cuts segment text into literal and token parts, in order.
// A doubled brace is an escaped literal brace; a lone brace that does not
// open a valid token is kept as text.
func SplitTokens(text string) []Part {
	var parts []Part
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, Part{Text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], "{{"):
			lit.WriteByte('{')
			i += 2
		case strings.HasPrefix(text[i:], "}}"):
			lit.WriteByte('}')
			i += 2
		case text[i] == '{':
			m := tokenPattern.FindStringSubmatch(text[i:])
			if m == nil {
				lit.WriteByte('{')
				i++
				continue
			}
			flush()
			tok := parseToken(m)
			parts = append(parts, Part{Token: &tok})
			i += len(m[0])
		default:
			lit.WriteByte(text[i])
			i++
		}
	}
	flush()
	return parts
}

func parseToken(m []string) Token {
	switch {
	case m[1] != "":
		n, _ := strconv.Atoi(m[1])
		if m[2] == "/" {
			return SelfCloseToken(n)
		}
		return OpenToken(n)
	case m[3] != "":
		n, _ := strconv.Atoi(m[3])
		return CloseToken(n)
	}
	return DNTToken(m[4])
}

// ScanTokens returns all placeholder tokens in text, in order of appearance.
func ScanTokens(text string) []Token {
	var tokens []Token
	for _, p := range SplitTokens(text) {
		if p.Token != nil {
			tokens = append(tokens, *p.Token)
		}
	}
	return tokens
}

// CanonicalTokens returns the sorted textual forms of all tokens in text.
// Sorting makes the result a stable multiset representation, independent of
// the order a translator arranged the tokens in.
func CanonicalTokens(text string) []string {
	tokens := ScanTokens(text)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.String()
	}
	sort.Strings(out)
	return out
}

// CanonicalTokenString joins CanonicalTokens with single spaces, the form
// stored in skeleton marker attributes. Empty when text carries no tokens.
func CanonicalTokenString(text string) string {
	return strings.Join(CanonicalTokens(text), " ")
}

// DiffTokenSets compares two canonical (sorted) token lists as multisets.
// Missing holds entries of want absent from got; extra holds entries of got
// absent from want.
func DiffTokenSets(want, got []string) (missing, extra []string) {
	counts := make(map[string]int)
	for _, t := range want {
		counts[t]++
	}
	for _, t := range got {
		counts[t]--
	}
	for t, c := range counts {
		for i := 0; i < c; i++ {
			missing = append(missing, t)
		}
		for i := 0; i < -c; i++ {
			extra = append(extra, t)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
