package manhuagui

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
)

const lzBase64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="

// ErrEmptyInput is returned when there is nothing to decompress
var ErrEmptyInput = errors.New("lzstring: empty input")

// DecompressFromBase64 reverses LZString.compressToBase64, the encoding the
// site uses for its keyword tables and the series page view state
func DecompressFromBase64(input string) (string, error) {
	if input == "" {
		return "", ErrEmptyInput
	}

	values := make([]int, len(input))
	for i := 0; i < len(input); i++ {
		v := strings.IndexByte(lzBase64Alphabet, input[i])
		if v < 0 {
			return "", fmt.Errorf("lzstring: invalid character %q at offset %d", input[i], i)
		}
		values[i] = v
	}

	units, err := lzDecompress(len(values), 32, func(i int) int {
		if i >= len(values) {
			return 0
		}
		return values[i]
	})
	if err != nil {
		return "", err
	}
	return string(utf16.Decode(units)), nil
}

type bitReader struct {
	next     func(int) int
	reset    int
	val      int
	position int
	index    int
}

func (r *bitReader) read(n int) int {
	bits := 0
	for power := 1; power != 1<<n; power <<= 1 {
		resb := r.val & r.position
		r.position >>= 1
		if r.position == 0 {
			r.position = r.reset
			r.val = r.next(r.index)
			r.index++
		}
		if resb > 0 {
			bits |= power
		}
	}
	return bits
}

func lzDecompress(length, resetValue int, next func(int) int) ([]uint16, error) {
	r := &bitReader{next: next, reset: resetValue, val: next(0), position: resetValue, index: 1}

	// codes 0-2 are reserved for control tokens
	dictionary := make([][]uint16, 3, 64)
	enlargeIn, numBits := 4, 3

	var c []uint16
	switch r.read(2) {
	case 0:
		c = []uint16{uint16(r.read(8))}
	case 1:
		c = []uint16{uint16(r.read(16))}
	case 2:
		return nil, nil
	default:
		return nil, errors.New("lzstring: corrupt stream header")
	}

	dictionary = append(dictionary, c)
	w := c
	result := append([]uint16(nil), c...)

	for {
		if r.index > length {
			return nil, errors.New("lzstring: truncated stream")
		}

		code := r.read(numBits)
		switch code {
		case 0, 1:
			width := 8
			if code == 1 {
				width = 16
			}
			dictionary = append(dictionary, []uint16{uint16(r.read(width))})
			code = len(dictionary) - 1
			enlargeIn--
		case 2:
			return result, nil
		}

		if enlargeIn == 0 {
			enlargeIn = 1 << numBits
			numBits++
		}

		var entry []uint16
		switch {
		case code >= 3 && code < len(dictionary):
			entry = dictionary[code]
		case code == len(dictionary):
			entry = append(append([]uint16(nil), w...), w[0])
		default:
			return nil, fmt.Errorf("lzstring: invalid code %d", code)
		}

		result = append(result, entry...)

		grown := make([]uint16, len(w)+1)
		copy(grown, w)
		grown[len(w)] = entry[0]
		dictionary = append(dictionary, grown)
		enlargeIn--

		w = entry

		if enlargeIn == 0 {
			enlargeIn = 1 << numBits
			numBits++
		}
	}
}
