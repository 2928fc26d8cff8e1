package query

import (
	"fmt"
	"reflect"
	"time"

	"github.com/jacentio/arbor/internal/value"
)

// Builder accumulates a query. Every method returns a new Builder and
// leaves the receiver untouched, so partial builders can be shared and
// extended independently.
//
// The first invalid call fixes the builder's error; later calls are no-ops
// and Compile reports that error.
type Builder struct {
	tokens []Token
	take   *int
	sort   *Sort
	page   any
	err    error
}

// New returns an empty builder.
func New() Builder { return Builder{} }

// Next is returned by And and Or. It only accepts another match.
type Next struct {
	b Builder
}

// Option adjusts a match.
type Option func(*matchOptions)

type matchOptions struct {
	caseSensitive bool
	startsWith    bool
	endsWith      bool
	exclusive     bool
	symbol        Symbol
	valueType     ValueType
}

// CaseSensitive makes a text match case sensitive.
func CaseSensitive() Option { return func(o *matchOptions) { o.caseSensitive = true } }

// StartsWith matches values beginning with the given text.
func StartsWith() Option { return func(o *matchOptions) { o.startsWith = true } }

// EndsWith matches values ending with the given text.
func EndsWith() Option { return func(o *matchOptions) { o.endsWith = true } }

// WithSymbol sets the comparison operator. Default: =.
func WithSymbol(s Symbol) Option { return func(o *matchOptions) { o.symbol = s } }

// As overrides the inferred value type.
func As(t ValueType) Option { return func(o *matchOptions) { o.valueType = t } }

// Exclusive makes a date match exclude the boundary date.
func Exclusive() Option { return func(o *matchOptions) { o.exclusive = true } }

func applyOptions(opts []Option) matchOptions {
	o := matchOptions{symbol: Eq}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Err returns the error fixed by an earlier invalid call.
func (b Builder) Err() error { return b.err }

// Tokens returns a copy of the accumulated tokens.
func (b Builder) Tokens() []Token {
	return append([]Token(nil), b.tokens...)
}

func (b Builder) fail(err error) Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// push appends without sharing the receiver's backing array.
func (b Builder) push(t Token) Builder {
	n := len(b.tokens)
	b.tokens = append(b.tokens[:n:n], t)
	return b
}

func (b Builder) match(t Token) Builder {
	if n := len(b.tokens); n > 0 {
		if _, ok := b.tokens[n-1].(Link); !ok {
			return b.fail(ErrMissingLink)
		}
	}
	return b.push(t)
}

// Property appends a match on key.
func (b Builder) Property(key string, v any, opts ...Option) Builder {
	if b.err != nil {
		return b
	}
	m, err := newPropertyMatch(key, v, applyOptions(opts))
	if err != nil {
		return b.fail(err)
	}
	return b.match(m)
}

// DatesBefore appends a match for dates before date. The boundary is
// included unless Exclusive is given.
func (b Builder) DatesBefore(key string, date any, opts ...Option) Builder {
	if b.err != nil {
		return b
	}
	o := applyOptions(opts)
	t, vt, err := dateBound(key, date, o)
	if err != nil {
		return b.fail(err)
	}
	return b.match(DatesBefore{Key: key, Date: t, ValueType: vt, Inclusive: !o.exclusive})
}

// DatesAfter appends a match for dates after date. The boundary is
// included unless Exclusive is given.
func (b Builder) DatesAfter(key string, date any, opts ...Option) Builder {
	if b.err != nil {
		return b
	}
	o := applyOptions(opts)
	t, vt, err := dateBound(key, date, o)
	if err != nil {
		return b.fail(err)
	}
	return b.match(DatesAfter{Key: key, Date: t, ValueType: vt, Inclusive: !o.exclusive})
}

// Complex appends a nested group built by fn from an empty builder. Take,
// sort and page set inside fn are ignored.
func (b Builder) Complex(fn func(Builder) Builder) Builder {
	if b.err != nil {
		return b
	}
	sub := fn(New())
	if sub.err != nil {
		return b.fail(sub.err)
	}
	if err := Validate(sub.tokens); err != nil {
		return b.fail(err)
	}
	if len(sub.tokens) == 0 {
		return b.fail(fmt.Errorf("%w: empty group", ErrMalformedQuery))
	}
	return b.match(Group(sub.tokens))
}

// And links the previous match to the next one.
func (b Builder) And() Next { return b.link(And) }

// Or links the previous match to the next one.
func (b Builder) Or() Next { return b.link(Or) }

func (b Builder) link(l Link) Next {
	if b.err != nil {
		return Next{b}
	}
	n := len(b.tokens)
	if n == 0 || !IsMatch(b.tokens[n-1]) {
		return Next{b.fail(fmt.Errorf("%w: %s must follow a match", ErrMalformedQuery, l))}
	}
	return Next{b.push(l)}
}

// Take limits the number of results.
func (b Builder) Take(n int) Builder {
	if b.err != nil {
		return b
	}
	if n < 1 {
		return b.fail(fmt.Errorf("%w: %d", ErrInvalidTake, n))
	}
	b.take = &n
	return b
}

// Sort orders results by key.
func (b Builder) Sort(key string, order Order) Builder {
	if b.err != nil {
		return b
	}
	if key == "" {
		return b.fail(fmt.Errorf("%w: sort key is required", ErrMalformedQuery))
	}
	if order != Asc && order != Desc {
		return b.fail(fmt.Errorf("%w: %q", ErrInvalidSortOrder, order))
	}
	b.sort = &Sort{Key: key, Order: order}
	return b
}

// Pagination passes an adapter-defined page token through to the search.
func (b Builder) Pagination(page any) Builder {
	if b.err != nil {
		return b
	}
	b.page = page
	return b
}

// Compile returns the accumulated search, or the first error.
func (b Builder) Compile() (Search, error) {
	if b.err != nil {
		return Search{}, b.err
	}
	if err := Validate(b.tokens); err != nil {
		return Search{}, err
	}
	s := Search{Query: b.Tokens(), Page: b.page}
	if b.take != nil {
		take := *b.take
		s.Take = &take
	}
	if b.sort != nil {
		sort := *b.sort
		s.Sort = &sort
	}
	return s, nil
}

// Property appends the match that follows a link.
func (n Next) Property(key string, v any, opts ...Option) Builder {
	return n.b.Property(key, v, opts...)
}

// DatesBefore appends the date match that follows a link.
func (n Next) DatesBefore(key string, date any, opts ...Option) Builder {
	return n.b.DatesBefore(key, date, opts...)
}

// DatesAfter appends the date match that follows a link.
func (n Next) DatesAfter(key string, date any, opts ...Option) Builder {
	return n.b.DatesAfter(key, date, opts...)
}

// Complex appends the group that follows a link.
func (n Next) Complex(fn func(Builder) Builder) Builder {
	return n.b.Complex(fn)
}

// Err returns the error carried by the underlying builder.
func (n Next) Err() error { return n.b.err }

func newPropertyMatch(key string, v any, o matchOptions) (PropertyMatch, error) {
	if key == "" {
		return PropertyMatch{}, fmt.Errorf("%w: property key is required", ErrMalformedQuery)
	}
	if !o.symbol.valid() {
		return PropertyMatch{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, o.symbol)
	}
	vt := o.valueType
	if vt == "" {
		vt = inferType(v)
	}
	if vt == String && o.symbol != Eq {
		return PropertyMatch{}, fmt.Errorf("%w: %s %s", ErrSymbolOnText, key, o.symbol)
	}
	return PropertyMatch{
		Key:           key,
		Value:         v,
		ValueType:     vt,
		Symbol:        o.symbol,
		CaseSensitive: o.caseSensitive,
		StartsWith:    o.startsWith,
		EndsWith:      o.endsWith,
	}, nil
}

func inferType(v any) ValueType {
	switch v.(type) {
	case nil, string:
		return String
	case bool:
		return Boolean
	case time.Time, *time.Time:
		return Datetime
	}
	if value.IsNumber(v) {
		return Number
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return Object
	}
	return String
}

func dateBound(key string, date any, o matchOptions) (time.Time, ValueType, error) {
	if key == "" {
		return time.Time{}, "", fmt.Errorf("%w: date key is required", ErrMalformedQuery)
	}
	t, ok := value.Time(date)
	if !ok {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidDate, date)
	}
	vt := o.valueType
	if vt == "" {
		vt = Datetime
	}
	if vt != Date && vt != Datetime {
		return time.Time{}, "", fmt.Errorf("%w: value type %q is not a date type", ErrInvalidDate, vt)
	}
	return t, vt, nil
}
