package query

import "fmt"

// Threeitize splits an alternating list (match, link, match, ...) into
// overlapping triplets, sliding two elements at a time:
//
//	[a b c d e] -> [[a b c] [c d e]]
//
// Lists of length zero or one yield no triplets. Even-length lists are
// rejected with ErrEvenLength.
func Threeitize[T any](list []T) ([][]T, error) {
	if len(list) <= 1 {
		return [][]T{}, nil
	}
	if len(list)%2 == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrEvenLength, len(list))
	}
	out := make([][]T, 0, len(list)/2)
	for i := 0; i+2 < len(list); i += 2 {
		out = append(out, []T{list[i], list[i+1], list[i+2]})
	}
	return out, nil
}

// Validate checks that tokens alternate match, link, match at every
// nesting level. An empty list is valid and matches everything.
func Validate(tokens []Token) error {
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) == 1 {
		return validateMatch(tokens[0])
	}
	triplets, err := Threeitize(tokens)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedQuery, err)
	}
	if err := validateMatch(tokens[0]); err != nil {
		return err
	}
	for _, t := range triplets {
		if l, ok := t[1].(Link); !ok || (l != And && l != Or) {
			return fmt.Errorf("%w: expected AND or OR, got %v", ErrMalformedQuery, t[1])
		}
		if err := validateMatch(t[2]); err != nil {
			return err
		}
	}
	return nil
}

func validateMatch(t Token) error {
	switch m := t.(type) {
	case Group:
		if len(m) == 0 {
			return fmt.Errorf("%w: empty group", ErrMalformedQuery)
		}
		return Validate(m)
	case Link:
		if m != And && m != Or {
			return fmt.Errorf("%w: unknown link %q", ErrMalformedQuery, string(m))
		}
		return fmt.Errorf("%w: link %s where a match is expected", ErrMalformedQuery, m)
	case nil:
		return fmt.Errorf("%w: nil token", ErrMalformedQuery)
	}
	if !IsMatch(t) {
		return fmt.Errorf("%w: unexpected token %T", ErrMalformedQuery, t)
	}
	return nil
}
