package shadergen

import (
	"bytes"
	"strconv"
)

const decimalDigits = 9

// AppendFloat appends the shortest fixed point representation of v to b
// with trailing zeros trimmed. Whole numbers carry no decimal point so 1.0
// is formatted as "1". The neg and decimal characters replace '-' and '.'
// which is useful for generating identifiers from values.
func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start && b[i] == '0'; i-- {
		end--
	}
	if idx >= 0 && end == start+idx+1 {
		end-- // Drop dangling decimal point.
	}
	return b[:end]
}

// AppendFloats appends the values formatted with [AppendFloat] separated by sep.
func AppendFloats(b []byte, sep, neg, decimal byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, neg, decimal, v)
		if sep != 0 && i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}

func formatFloat(v float32) string {
	var buf [32]byte
	return string(AppendFloat(buf[:0], '-', '.', v))
}

func reciprocal(v uint32) string {
	if v == 0 {
		return "0"
	}
	return formatFloat(1 / float32(v))
}
