package schema

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/arbor/query"
)

// ErrInvalidClause is returned for query clauses that are not exactly one
// of a property match, a date bound or a group.
var ErrInvalidClause = errors.New("arbor: invalid query clause")

// QuerySpec is a search written in YAML:
//
//	where:
//	  - property: title
//	    value: dune
//	    startsWith: true
//	  - link: or
//	    group:
//	      - property: pages
//	        value: 300
//	        symbol: ">"
//	      - link: and
//	        after: 2020-01-01
//	        key: published
//	sort: {key: pages, order: desc}
//	take: 10
type QuerySpec struct {
	Where []Clause  `yaml:"where,omitempty"`
	Sort  *SortSpec `yaml:"sort,omitempty"`
	Take  *int      `yaml:"take,omitempty"`
}

// SortSpec orders results.
type SortSpec struct {
	Key   string `yaml:"key"`
	Order string `yaml:"order,omitempty"`
}

// Clause is one match. Every clause after the first carries the link
// ("and" or "or") joining it to the previous one.
type Clause struct {
	Link string `yaml:"link,omitempty"`

	// Property match.
	Property      string `yaml:"property,omitempty"`
	Value         any    `yaml:"value,omitempty"`
	Symbol        string `yaml:"symbol,omitempty"`
	Type          string `yaml:"type,omitempty"`
	CaseSensitive bool   `yaml:"caseSensitive,omitempty"`
	StartsWith    bool   `yaml:"startsWith,omitempty"`
	EndsWith      bool   `yaml:"endsWith,omitempty"`

	// Date bound on Key.
	Key       string `yaml:"key,omitempty"`
	Before    any    `yaml:"before,omitempty"`
	After     any    `yaml:"after,omitempty"`
	Exclusive bool   `yaml:"exclusive,omitempty"`

	// Nested group.
	Group []Clause `yaml:"group,omitempty"`
}

// ParseQuery decodes and validates a YAML search.
func ParseQuery(data []byte) (*QuerySpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var q QuerySpec
	if err := dec.Decode(&q); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// Validate checks the shape of every clause: exactly one of a property
// match, a single date bound or a group, and a known link.
func (q *QuerySpec) Validate() error {
	return validateClauses(q.Where)
}

func validateClauses(clauses []Clause) error {
	for i, c := range clauses {
		switch strings.ToLower(c.Link) {
		case "", "and", "or":
		default:
			return fmt.Errorf("%w: unknown link %q", ErrInvalidClause, c.Link)
		}
		if i == 0 && c.Link != "" {
			return fmt.Errorf("%w: first clause has link %q", ErrInvalidClause, c.Link)
		}

		kinds := 0
		for _, set := range []bool{c.Property != "", c.Before != nil || c.After != nil, len(c.Group) > 0} {
			if set {
				kinds++
			}
		}
		if kinds != 1 {
			return fmt.Errorf("%w: clause %d must be one of property, before/after or group", ErrInvalidClause, i)
		}
		if c.Before != nil && c.After != nil {
			return fmt.Errorf("%w: clause %d has both before and after", ErrInvalidClause, i)
		}
		if err := validateClauses(c.Group); err != nil {
			return err
		}
	}
	return nil
}

// Builder replays the clauses onto a query builder. Builder errors are
// carried by the returned builder, as with hand-written queries.
func (q *QuerySpec) Builder() (query.Builder, error) {
	if err := q.Validate(); err != nil {
		return query.Builder{}, err
	}
	b := where(query.New(), q.Where)
	if q.Sort != nil {
		order := query.Order(strings.ToLower(q.Sort.Order))
		if order == "" {
			order = query.Asc
		}
		b = b.Sort(q.Sort.Key, order)
	}
	if q.Take != nil {
		b = b.Take(*q.Take)
	}
	return b, nil
}

// Compile builds the described search.
func (q *QuerySpec) Compile() (query.Search, error) {
	b, err := q.Builder()
	if err != nil {
		return query.Search{}, err
	}
	return b.Compile()
}

// matcher is what a builder accepts next: a Builder for the first clause,
// a Next after a link.
type matcher interface {
	Property(key string, v any, opts ...query.Option) query.Builder
	DatesBefore(key string, date any, opts ...query.Option) query.Builder
	DatesAfter(key string, date any, opts ...query.Option) query.Builder
	Complex(fn func(query.Builder) query.Builder) query.Builder
}

func where(b query.Builder, clauses []Clause) query.Builder {
	for i, c := range clauses {
		var next matcher = b
		if i > 0 {
			if strings.ToLower(c.Link) == "or" {
				next = b.Or()
			} else {
				next = b.And()
			}
		}
		b = clause(next, c)
	}
	return b
}

func clause(next matcher, c Clause) query.Builder {
	switch {
	case len(c.Group) > 0:
		return next.Complex(func(b query.Builder) query.Builder { return where(b, c.Group) })
	case c.Before != nil:
		return next.DatesBefore(c.Key, c.Before, dateOptions(c)...)
	case c.After != nil:
		return next.DatesAfter(c.Key, c.After, dateOptions(c)...)
	}

	var opts []query.Option
	if c.Symbol != "" {
		opts = append(opts, query.WithSymbol(query.Symbol(c.Symbol)))
	}
	if c.Type != "" {
		opts = append(opts, query.As(query.ValueType(c.Type)))
	}
	if c.CaseSensitive {
		opts = append(opts, query.CaseSensitive())
	}
	if c.StartsWith {
		opts = append(opts, query.StartsWith())
	}
	if c.EndsWith {
		opts = append(opts, query.EndsWith())
	}
	return next.Property(c.Property, c.Value, opts...)
}

func dateOptions(c Clause) []query.Option {
	var opts []query.Option
	if c.Type != "" {
		opts = append(opts, query.As(query.ValueType(c.Type)))
	}
	if c.Exclusive {
		opts = append(opts, query.Exclusive())
	}
	return opts
}
