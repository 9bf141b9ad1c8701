// Package query models a structured full-text search request: a boolean
// query whose clauses are multi-field text matches with per-field boosts and
// edit-distance fuzziness. Storage adapters translate it into their native
// query language.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/devsearch/internal/domain"
)

// Limits.
const (
	// MaxQueryLength is the maximum allowed query text length in bytes.
	MaxQueryLength = 4096
	// MaxClausesPerGroup is the maximum number of clauses per bool group.
	MaxClausesPerGroup = 32
)

// Fuzziness is the allowed edit distance between a query term and an indexed term.
type Fuzziness string

// FuzzinessAuto scales the edit distance by term length:
// up to 2 runes must match exactly, 3 to 5 runes allow one edit, longer terms allow two.
const FuzzinessAuto Fuzziness = "AUTO"

// EditsFor returns the allowed edit distance for term.
func (f Fuzziness) EditsFor(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// Field is a searchable field with a relevance boost.
type Field struct {
	name  string
	boost float64
}

// NewField creates a field. A zero boost means 1.
func NewField(name string, boost float64) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required: %w", domain.ErrQueryTranslation)
	}
	if boost < 0 {
		return Field{}, fmt.Errorf("field %q: boost must not be negative: %w", name, domain.ErrQueryTranslation)
	}
	if boost == 0 {
		boost = 1
	}
	return Field{name: name, boost: boost}, nil
}

// ParseField parses the "name^boost" notation, e.g. "title^3".
func ParseField(s string) (Field, error) {
	name, boostStr, hasBoost := strings.Cut(s, "^")
	if !hasBoost {
		return NewField(name, 1)
	}
	boost, err := strconv.ParseFloat(boostStr, 64)
	if err != nil {
		return Field{}, fmt.Errorf("field %q: invalid boost: %w", s, domain.ErrQueryTranslation)
	}
	return NewField(name, boost)
}

// MustParseFields parses each field string with ParseField and panics on error.
func MustParseFields(specs ...string) []Field {
	fields := make([]Field, len(specs))
	for i, s := range specs {
		f, err := ParseField(s)
		if err != nil {
			panic(err)
		}
		fields[i] = f
	}
	return fields
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Boost returns the relevance multiplier.
func (f Field) Boost() float64 { return f.boost }

// IsBoosted reports whether the boost differs from 1.
func (f Field) IsBoosted() bool { return f.boost != 1 }

func (f Field) String() string {
	if !f.IsBoosted() {
		return f.name
	}
	return f.name + "^" + strconv.FormatFloat(f.boost, 'f', -1, 64)
}

// MultiMatch matches analyzed query text against several fields.
// A document matches when any term matches in any field.
type MultiMatch struct {
	text      string
	terms     []string
	fields    []Field
	fuzziness Fuzziness
}

// NewMultiMatch validates and creates a multi-field match clause.
func NewMultiMatch(text string, fields []Field, fuzziness Fuzziness) (MultiMatch, error) {
	if len(text) > MaxQueryLength {
		return MultiMatch{}, fmt.Errorf("query too long (max %d bytes): %w", MaxQueryLength, domain.ErrQueryTranslation)
	}
	if !utf8.ValidString(text) {
		return MultiMatch{}, fmt.Errorf("query must be valid UTF-8: %w", domain.ErrQueryTranslation)
	}
	if fuzziness != FuzzinessAuto {
		return MultiMatch{}, fmt.Errorf("unsupported fuzziness %q: %w", fuzziness, domain.ErrQueryTranslation)
	}
	terms := Terms(text)
	if len(terms) == 0 {
		return MultiMatch{}, fmt.Errorf("query %q has no searchable terms: %w", text, domain.ErrQueryTranslation)
	}
	if len(fields) == 0 {
		return MultiMatch{}, fmt.Errorf("at least one field is required: %w", domain.ErrQueryTranslation)
	}
	return MultiMatch{text: text, terms: terms, fields: fields, fuzziness: fuzziness}, nil
}

// Text returns the raw query text.
func (m MultiMatch) Text() string { return m.text }

// Terms returns the analyzed query terms.
func (m MultiMatch) Terms() []string { return m.terms }

// Fields returns the target fields.
func (m MultiMatch) Fields() []Field { return m.fields }

// Fuzziness returns the edit distance policy.
func (m MultiMatch) Fuzziness() Fuzziness { return m.fuzziness }

// termSeparators are the punctuation runes the search engine's default
// tokenizer splits on. Anything else (e.g. "_" or "/") stays inside a term.
const termSeparators = ",.<>{}[]\"':;!@#$%^&*()-+=~"

// Terms splits text into lowercase terms on whitespace and termSeparators,
// the same way documents are tokenized at index time.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(termSeparators, r)
	})
}

// Bool combines clauses: every must clause has to match, and at least
// MinimumShouldMatch of the should clauses.
type Bool struct {
	must               []MultiMatch
	should             []MultiMatch
	minimumShouldMatch int
}

// NewBool validates and creates a boolean query.
func NewBool(must, should []MultiMatch, minimumShouldMatch int) (Bool, error) {
	if len(must) > MaxClausesPerGroup {
		return Bool{}, fmt.Errorf("too many must clauses (max %d): %w", MaxClausesPerGroup, domain.ErrQueryTranslation)
	}
	if len(should) > MaxClausesPerGroup {
		return Bool{}, fmt.Errorf("too many should clauses (max %d): %w", MaxClausesPerGroup, domain.ErrQueryTranslation)
	}
	if len(must) == 0 && len(should) == 0 {
		return Bool{}, fmt.Errorf("bool query needs at least one clause: %w", domain.ErrQueryTranslation)
	}
	if minimumShouldMatch < 0 || minimumShouldMatch > len(should) {
		return Bool{}, fmt.Errorf("minimum_should_match %d out of range [0, %d]: %w",
			minimumShouldMatch, len(should), domain.ErrQueryTranslation)
	}
	return Bool{must: must, should: should, minimumShouldMatch: minimumShouldMatch}, nil
}

// Must returns the mandatory clauses.
func (b Bool) Must() []MultiMatch { return b.must }

// Should returns the optional clauses.
func (b Bool) Should() []MultiMatch { return b.should }

// MinimumShouldMatch returns how many should clauses must match.
func (b Bool) MinimumShouldMatch() int { return b.minimumShouldMatch }

// Request is a validated search request.
type Request struct {
	root Bool
}

// NewRequest wraps a boolean query into a request.
func NewRequest(root Bool) Request { return Request{root: root} }

// Root returns the top-level boolean query.
func (r Request) Root() Bool { return r.root }

// KeywordFields are the fields a keyword search covers. Title matches weigh
// three times as much as content matches.
var KeywordFields = []string{"title^3", "content"}

// KeywordRequest builds the keyword search request: a bool query with a
// single should clause that must match, a multi-field match over
// KeywordFields with AUTO fuzziness.
func KeywordRequest(keyword string) (Request, error) {
	mm, err := NewMultiMatch(keyword, MustParseFields(KeywordFields...), FuzzinessAuto)
	if err != nil {
		return Request{}, err
	}
	root, err := NewBool(nil, []MultiMatch{mm}, 1)
	if err != nil {
		return Request{}, err
	}
	return NewRequest(root), nil
}
