package query

import "errors"

var (
	// ErrInvalidSymbol is returned for an equality symbol outside =, <, <=, >, >=.
	ErrInvalidSymbol = errors.New("arbor: invalid equality symbol")

	// ErrSymbolOnText is returned when a comparison other than = targets a text value.
	ErrSymbolOnText = errors.New("arbor: only = may be used with text values")

	// ErrInvalidSortOrder is returned for a sort order other than asc or desc.
	ErrInvalidSortOrder = errors.New("arbor: sort order must be asc or desc")

	// ErrInvalidTake is returned when take is not a positive integer.
	ErrInvalidTake = errors.New("arbor: take must be a positive integer")

	// ErrInvalidDate is returned when a date match cannot interpret its date.
	ErrInvalidDate = errors.New("arbor: invalid date")

	// ErrMissingLink is returned when two matches are appended without AND/OR between them.
	ErrMissingLink = errors.New("arbor: matches must be joined with and() or or()")

	// ErrMalformedQuery is returned for token lists that do not alternate
	// match, link, match.
	ErrMalformedQuery = errors.New("arbor: malformed query")

	// ErrEvenLength is returned by Threeitize for even-length input.
	ErrEvenLength = errors.New("arbor: list must have an odd number of elements")
)
