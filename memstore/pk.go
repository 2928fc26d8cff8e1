package memstore

import (
	"fmt"
	"strconv"
	"strings"
)

// pk orders primary keys segment by segment (split on ":"), comparing
// segments numerically when both are plain integers, so that "user:9"
// sorts before "user:10".
type pk struct {
	key      string
	segments []string
}

func newPK(id any) pk {
	k := fmt.Sprint(id)
	return pk{key: k, segments: strings.Split(k, ":")}
}

func (p pk) String() string { return p.key }

func (p pk) less(other pk) bool {
	n := len(p.segments)
	if len(other.segments) < n {
		n = len(other.segments)
	}
	for i := 0; i < n; i++ {
		a, b := p.segments[i], other.segments[i]
		if x, y, ok := bothInts(a, b); ok {
			if x != y {
				return x < y
			}
			continue
		}
		if a != b {
			return a < b
		}
	}
	return len(p.segments) < len(other.segments)
}

// bothInts parses two segments as integers. Segments with leading zeros
// compare as text.
func bothInts(a, b string) (int, int, bool) {
	if a == "" || b == "" || (a[0] == '0' && a != "0") || (b[0] == '0' && b != "0") {
		return 0, 0, false
	}
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}
