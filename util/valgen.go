// Some helpers using closures to generate values, and to turn them into
// input for INPUT_INT.
package valgen

import (
	"io"
	"strconv"
	"strings"
)

func MakeConstGen(constant int) func() int {
	return func() int {
		return constant
	}
}

func MakeIncreasingGen(start int) func() int {
	current := start
	return func() int {
		current++
		return current
	}
}

func MakeDecreasingGen(start int) func() int {
	current := start
	return func() int {
		current--
		return current
	}
}

// Lines returns a reader with n generated values, one per line.
func Lines(gen func() int, n int) io.Reader {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(strconv.Itoa(gen()))
		sb.WriteByte('\n')
	}
	return strings.NewReader(sb.String())
}

// Values returns n generated values.
func Values(gen func() int, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = gen()
	}
	return out
}
