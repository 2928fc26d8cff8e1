package query

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/jacentio/arbor/internal/value"
)

type propertyJSON struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Value     any             `json:"value"`
	ValueType ValueType       `json:"valueType"`
	Options   propertyOptions `json:"options"`
}

type propertyOptions struct {
	CaseSensitive  bool   `json:"caseSensitive"`
	StartsWith     bool   `json:"startsWith"`
	EndsWith       bool   `json:"endsWith"`
	EqualitySymbol Symbol `json:"equalitySymbol"`
}

type dateJSON struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Date      string          `json:"date"`
	ValueType ValueType       `json:"valueType"`
	Options   map[string]bool `json:"options"`
}

// MarshalJSON implements json.Marshaler.
func (m PropertyMatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(propertyJSON{
		Type:      "property",
		Key:       m.Key,
		Value:     m.Value,
		ValueType: m.ValueType,
		Options: propertyOptions{
			CaseSensitive:  m.CaseSensitive,
			StartsWith:     m.StartsWith,
			EndsWith:       m.EndsWith,
			EqualitySymbol: m.Symbol,
		},
	})
}

// MarshalJSON implements json.Marshaler.
func (d DatesBefore) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateJSON{
		Type:      "datesBefore",
		Key:       d.Key,
		Date:      value.FormatTime(d.Date),
		ValueType: d.ValueType,
		Options:   map[string]bool{"equalToAndBefore": d.Inclusive},
	})
}

// MarshalJSON implements json.Marshaler.
func (d DatesAfter) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateJSON{
		Type:      "datesAfter",
		Key:       d.Key,
		Date:      value.FormatTime(d.Date),
		ValueType: d.ValueType,
		Options:   map[string]bool{"equalToAndAfter": d.Inclusive},
	})
}

type searchJSON struct {
	Query []Token `json:"query"`
	Take  *int    `json:"take,omitempty"`
	Sort  *Sort   `json:"sort,omitempty"`
	Page  any     `json:"page,omitempty"`
}

// MarshalJSON implements json.Marshaler. Unset fields are omitted.
func (s Search) MarshalJSON() ([]byte, error) {
	q := s.Query
	if q == nil {
		q = []Token{}
	}
	return json.Marshal(searchJSON{Query: q, Take: s.Take, Sort: s.Sort, Page: s.Page})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Search) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSearch(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSearch decodes a search previously encoded with json.Marshal.
func ParseSearch(data []byte) (Search, error) {
	if !gjson.ValidBytes(data) {
		return Search{}, fmt.Errorf("%w: invalid JSON", ErrMalformedQuery)
	}
	r := gjson.ParseBytes(data)

	var s Search
	if q := r.Get("query"); q.Exists() {
		tokens, err := decodeTokens(q)
		if err != nil {
			return Search{}, err
		}
		s.Query = tokens
	}
	if err := Validate(s.Query); err != nil {
		return Search{}, err
	}
	if take := r.Get("take"); take.Exists() {
		n := int(take.Int())
		if n < 1 || take.Float() != float64(n) {
			return Search{}, fmt.Errorf("%w: %s", ErrInvalidTake, take.Raw)
		}
		s.Take = &n
	}
	if sort := r.Get("sort"); sort.Exists() {
		order := Order(sort.Get("order").String())
		if order != Asc && order != Desc {
			return Search{}, fmt.Errorf("%w: %q", ErrInvalidSortOrder, order)
		}
		s.Sort = &Sort{Key: sort.Get("key").String(), Order: order}
	}
	if page := r.Get("page"); page.Exists() && page.Type != gjson.Null {
		s.Page = page.Value()
	}
	return s, nil
}

// ParseTokens decodes a JSON token list.
func ParseTokens(data []byte) ([]Token, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedQuery)
	}
	tokens, err := decodeTokens(gjson.ParseBytes(data))
	if err != nil {
		return nil, err
	}
	return tokens, Validate(tokens)
}

func decodeTokens(r gjson.Result) ([]Token, error) {
	if !r.IsArray() {
		return nil, fmt.Errorf("%w: expected a list of tokens", ErrMalformedQuery)
	}
	tokens := []Token{}
	var err error
	r.ForEach(func(_, el gjson.Result) bool {
		var t Token
		t, err = decodeToken(el)
		if err != nil {
			return false
		}
		tokens = append(tokens, t)
		return true
	})
	return tokens, err
}

func decodeToken(el gjson.Result) (Token, error) {
	switch {
	case el.Type == gjson.String:
		l := Link(el.String())
		if l != And && l != Or {
			return nil, fmt.Errorf("%w: unknown link %q", ErrMalformedQuery, el.String())
		}
		return l, nil
	case el.IsArray():
		tokens, err := decodeTokens(el)
		if err != nil {
			return nil, err
		}
		return Group(tokens), nil
	case !el.IsObject():
		return nil, fmt.Errorf("%w: unexpected token %s", ErrMalformedQuery, el.Raw)
	}

	key := el.Get("key").String()
	vt := ValueType(el.Get("valueType").String())
	switch typ := el.Get("type").String(); typ {
	case "property":
		sym := Symbol(el.Get("options.equalitySymbol").String())
		if sym == "" {
			sym = Eq
		}
		if !sym.valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, sym)
		}
		return PropertyMatch{
			Key:           key,
			Value:         el.Get("value").Value(),
			ValueType:     vt,
			Symbol:        sym,
			CaseSensitive: el.Get("options.caseSensitive").Bool(),
			StartsWith:    el.Get("options.startsWith").Bool(),
			EndsWith:      el.Get("options.endsWith").Bool(),
		}, nil
	case "datesBefore", "datesAfter":
		t, ok := value.ParseTime(el.Get("date").String())
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDate, el.Get("date").Raw)
		}
		if typ == "datesBefore" {
			return DatesBefore{Key: key, Date: t, ValueType: vt, Inclusive: el.Get("options.equalToAndBefore").Bool()}, nil
		}
		return DatesAfter{Key: key, Date: t, ValueType: vt, Inclusive: el.Get("options.equalToAndAfter").Bool()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown token type %q", ErrMalformedQuery, typ)
	}
}
