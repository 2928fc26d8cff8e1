package query

import "time"

// ValueType names how a backend should interpret a matched value.
type ValueType string

// Value types.
const (
	String   ValueType = "string"
	Number   ValueType = "number"
	Boolean  ValueType = "boolean"
	Date     ValueType = "date"
	Datetime ValueType = "datetime"
	Object   ValueType = "object"
)

// Symbol is an equality or comparison operator.
type Symbol string

// Symbols accepted by Property.
const (
	Eq  Symbol = "="
	Lt  Symbol = "<"
	Lte Symbol = "<="
	Gt  Symbol = ">"
	Gte Symbol = ">="
)

func (s Symbol) valid() bool {
	switch s {
	case Eq, Lt, Lte, Gt, Gte:
		return true
	}
	return false
}

// Order is a sort direction.
type Order string

// Sort orders.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Token is one element of a query: a match, a link or a nested group.
type Token interface {
	token()
}

// Link joins two matches.
type Link string

// Links.
const (
	And Link = "AND"
	Or  Link = "OR"
)

// PropertyMatch compares a property with a value.
type PropertyMatch struct {
	Key           string
	Value         any
	ValueType     ValueType
	Symbol        Symbol
	CaseSensitive bool
	StartsWith    bool
	EndsWith      bool
}

// DatesBefore matches dates before Date, or equal to it when Inclusive.
type DatesBefore struct {
	Key       string
	Date      time.Time
	ValueType ValueType
	Inclusive bool
}

// DatesAfter matches dates after Date, or equal to it when Inclusive.
type DatesAfter struct {
	Key       string
	Date      time.Time
	ValueType ValueType
	Inclusive bool
}

// Group is a nested, parenthesized token list.
type Group []Token

func (PropertyMatch) token() {}
func (DatesBefore) token()   {}
func (DatesAfter) token()    {}
func (Link) token()          {}
func (Group) token()         {}

// IsMatch reports whether t is a match or a group, that is anything that
// may stand on either side of a link.
func IsMatch(t Token) bool {
	switch t.(type) {
	case PropertyMatch, DatesBefore, DatesAfter, Group:
		return true
	}
	return false
}

// Sort orders results by a property.
type Sort struct {
	Key   string `json:"key"`
	Order Order  `json:"order"`
}

// Search is a compiled query. Nil fields are unset.
type Search struct {
	Query []Token
	Take  *int
	Sort  *Sort
	Page  any
}
