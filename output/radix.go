package output

import (
	"strconv"

	"github.com/targodan/go-errors"
)

// Radix selects how offsets are printed.
type Radix byte

const (
	Decimal Radix = 'd'
	Octal   Radix = 'o'
	Hex     Radix = 'x'
)

// ParseRadix parses "d", "o" or "x".
func ParseRadix(s string) (Radix, error) {
	if len(s) == 1 {
		switch r := Radix(s[0]); r {
		case Decimal, Octal, Hex:
			return r, nil
		}
	}
	return 0, errors.Newf("unknown radix \"%s\", expected d, o or x", s)
}

// Format renders offset in the radix: 123, 0o173 or 0x7b.
func (r Radix) Format(offset int64) string {
	switch r {
	case Octal:
		return "0o" + strconv.FormatInt(offset, 8)
	case Hex:
		return "0x" + strconv.FormatInt(offset, 16)
	default:
		return strconv.FormatInt(offset, 10)
	}
}

func (r Radix) String() string {
	return string(r)
}
