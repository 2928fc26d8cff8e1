package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/internal/value"
	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/query"
)

// Filter is a DynamoDB filter expression with its placeholders.
type Filter struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

// CompileFilter translates query tokens into a filter expression for m.
// Text comparisons are case sensitive. Matches DynamoDB cannot express
// exactly (suffixes, ordered comparisons inside lists, objects) compile
// to a broader condition; callers re-check results with the original
// tokens. An empty token list yields an empty Expression.
func CompileFilter(m *model.Model, tokens []query.Token) (*Filter, error) {
	if err := query.Validate(tokens); err != nil {
		return nil, err
	}
	c := &compiler{
		m:      m,
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
		byKey:  map[string]string{},
	}
	expr, err := c.tokens(tokens)
	if err != nil {
		return nil, err
	}
	return &Filter{Expression: expr, Names: c.names, Values: c.values}, nil
}

type compiler struct {
	m      *model.Model
	names  map[string]string
	values map[string]types.AttributeValue
	byKey  map[string]string
	nv     int
}

func (c *compiler) name(key string) string {
	if p, ok := c.byKey[key]; ok {
		return p
	}
	p := fmt.Sprintf("#f%d", len(c.byKey))
	c.byKey[key] = p
	c.names[p] = key
	return p
}

func (c *compiler) value(v any) (string, error) {
	if t, ok := v.(time.Time); ok {
		v = value.FormatTime(t)
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal filter value: %w", err)
	}
	p := fmt.Sprintf(":v%d", c.nv)
	c.nv++
	c.values[p] = av
	return p, nil
}

func (c *compiler) tokens(tokens []query.Token) (string, error) {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		var (
			part string
			err  error
		)
		switch tok := t.(type) {
		case query.Link:
			part = string(tok)
		case query.Group:
			part, err = c.tokens(tok)
			part = "(" + part + ")"
		case query.PropertyMatch:
			part, err = c.property(tok)
		case query.DatesBefore:
			part, err = c.dates(tok.Key, tok.Date, tok.ValueType, tok.Inclusive, -1)
		case query.DatesAfter:
			part, err = c.dates(tok.Key, tok.Date, tok.ValueType, tok.Inclusive, 1)
		default:
			err = fmt.Errorf("%w: unexpected token %T", query.ErrMalformedQuery, t)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " "), nil
}

// anything is true for every item.
func (c *compiler) anything(key string) string {
	n := c.name(key)
	return fmt.Sprintf("(attribute_exists(%s) OR attribute_not_exists(%s))", n, n)
}

func (c *compiler) isArray(key string) bool {
	p, ok := c.m.Property(key)
	return ok && p.Type() == model.TypeArray
}

func (c *compiler) property(pm query.PropertyMatch) (string, error) {
	if pm.Value == nil || pm.ValueType == query.Object {
		return c.anything(pm.Key), nil
	}
	n := c.name(pm.Key)

	if c.isArray(pm.Key) {
		if pm.Symbol != query.Eq || pm.StartsWith || pm.EndsWith || pm.ValueType == query.Date {
			return c.anything(pm.Key), nil
		}
		v, err := c.value(pm.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("contains(%s, %s)", n, v), nil
	}

	switch pm.ValueType {
	case query.Date:
		t, ok := value.Time(pm.Value)
		if !ok {
			return "", fmt.Errorf("%w: %v", query.ErrInvalidDate, pm.Value)
		}
		return c.day(n, t, pm.Symbol)
	case query.Datetime:
		t, ok := value.Time(pm.Value)
		if !ok {
			return "", fmt.Errorf("%w: %v", query.ErrInvalidDate, pm.Value)
		}
		v, err := c.value(t)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", n, pm.Symbol, v), nil
	case query.Number, query.Boolean:
		v, err := c.value(pm.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", n, pm.Symbol, v), nil
	}

	v, err := c.value(fmt.Sprint(pm.Value))
	if err != nil {
		return "", err
	}
	switch {
	case pm.StartsWith && pm.EndsWith:
		return fmt.Sprintf("(begins_with(%s, %s) AND contains(%s, %s))", n, v, n, v), nil
	case pm.StartsWith:
		return fmt.Sprintf("begins_with(%s, %s)", n, v), nil
	case pm.EndsWith:
		return fmt.Sprintf("contains(%s, %s)", n, v), nil
	}
	return fmt.Sprintf("%s = %s", n, v), nil
}

// day compares canonical timestamps against the UTC day of t.
func (c *compiler) day(n string, t time.Time, s query.Symbol) (string, error) {
	y, mo, d := t.UTC().Date()
	start := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	lo, err := c.value(start)
	if err != nil {
		return "", err
	}
	hi, err := c.value(start.AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}
	switch s {
	case query.Lt:
		return fmt.Sprintf("%s < %s", n, lo), nil
	case query.Lte:
		return fmt.Sprintf("%s < %s", n, hi), nil
	case query.Gt:
		return fmt.Sprintf("%s >= %s", n, hi), nil
	case query.Gte:
		return fmt.Sprintf("%s >= %s", n, lo), nil
	}
	return fmt.Sprintf("(%s >= %s AND %s < %s)", n, lo, n, hi), nil
}

func (c *compiler) dates(key string, t time.Time, vt query.ValueType, inclusive bool, dir int) (string, error) {
	n := c.name(key)
	var s query.Symbol
	switch {
	case dir < 0 && inclusive:
		s = query.Lte
	case dir < 0:
		s = query.Lt
	case inclusive:
		s = query.Gte
	default:
		s = query.Gt
	}
	if vt == query.Date {
		return c.day(n, t, s)
	}
	v, err := c.value(t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", n, s, v), nil
}

// caseSensitive copies tokens with every text match made case sensitive,
// mirroring what the compiled expression can check.
func caseSensitive(tokens []query.Token) []query.Token {
	out := make([]query.Token, len(tokens))
	for i, t := range tokens {
		switch tok := t.(type) {
		case query.PropertyMatch:
			tok.CaseSensitive = true
			out[i] = tok
		case query.Group:
			out[i] = query.Group(caseSensitive(tok))
		default:
			out[i] = t
		}
	}
	return out
}
