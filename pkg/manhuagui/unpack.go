package manhuagui

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	mhgerrors "mhgscraper/pkg/errors"
)

var (
	// packedCall matches the argument list of a p,a,c,k,e,d packer call.
	// The keyword table is either a plain '|'-joined string or an LZString
	// payload split by the site's String.prototype.splic helper.
	packedCall = regexp.MustCompile(`(?s)\}\('(.*)',\s*(\d+),\s*(\d+),\s*'([^']*)'(\[['"]\\x73\\x70\\x6c\\x69\\x63['"]\]|\.split)\(`)
	wordToken  = regexp.MustCompile(`\b\w+\b`)
	imgData    = regexp.MustCompile(`(?s)imgData\((\{.*\})\)\.preInit\(\)`)
)

// Unpack statically evaluates a p,a,c,k,e,d packed script and returns the
// source it would have produced. No script is executed.
func Unpack(script string) (string, error) {
	m := packedCall.FindStringSubmatch(script)
	if m == nil {
		return "", errors.New("packed script call not found")
	}

	payload, err := unescapeJS(m[1])
	if err != nil {
		return "", fmt.Errorf("failed to unescape payload: %w", err)
	}
	radix, err := strconv.Atoi(m[2])
	if err != nil || radix < 2 || radix > 62 {
		return "", fmt.Errorf("invalid radix %q", m[2])
	}
	count, err := strconv.Atoi(m[3])
	if err != nil {
		return "", fmt.Errorf("invalid keyword count %q", m[3])
	}

	table, err := unescapeJS(m[4])
	if err != nil {
		return "", fmt.Errorf("failed to unescape keyword table: %w", err)
	}
	if m[5] != ".split" {
		table, err = DecompressFromBase64(table)
		if err != nil {
			return "", fmt.Errorf("failed to decompress keyword table: %w", err)
		}
	}
	keywords := strings.Split(table, "|")

	dict := make(map[string]string, count)
	for c := count - 1; c >= 0; c-- {
		key := encodeBase(c, radix)
		if c < len(keywords) && keywords[c] != "" {
			dict[key] = keywords[c]
		} else {
			dict[key] = key
		}
	}

	return wordToken.ReplaceAllStringFunc(payload, func(tok string) string {
		if v, ok := dict[tok]; ok {
			return v
		}
		return tok
	}), nil
}

// ExtractManifest unpacks the reader script and parses the object passed
// to SMH.imgData
func ExtractManifest(script, sourceURL string) (*Manifest, error) {
	src, err := Unpack(script)
	if err != nil {
		return nil, mhgerrors.Extraction("unpack script", sourceURL, err)
	}

	m := imgData.FindStringSubmatch(src)
	if m == nil {
		return nil, mhgerrors.Extraction("unpack script", sourceURL, errors.New("imgData payload not found"))
	}

	return ParseManifest([]byte(m[1]), sourceURL)
}

// encodeBase renders c the way the packer names its tokens: base-36 digits
// up to 35, then the characters from 'A' upward, recursing for wider values
func encodeBase(c, radix int) string {
	prefix := ""
	if c >= radix {
		prefix = encodeBase(c/radix, radix)
	}
	r := c % radix
	if r > 35 {
		return prefix + string(rune(r+29))
	}
	return prefix + strconv.FormatInt(int64(r), 36)
}

// unescapeJS decodes the escapes allowed inside a single-quoted JS literal
func unescapeJS(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		if i+1 >= len(s) {
			return "", errors.New("dangling escape")
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case 'x':
			if i+2 >= len(s) {
				return "", errors.New("short \\x escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad \\x escape: %w", err)
			}
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			if i+4 >= len(s) {
				return "", errors.New("short \\u escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
			if err != nil {
				return "", fmt.Errorf("bad \\u escape: %w", err)
			}
			i += 4
			r := rune(v)
			if r >= 0xD800 && r < 0xDC00 && i+6 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
				if lo, err := strconv.ParseUint(s[i+3:i+7], 16, 16); err == nil && lo >= 0xDC00 && lo < 0xE000 {
					r = (r-0xD800)<<10 + (rune(lo) - 0xDC00) + 0x10000
					i += 6
				}
			}
			if !utf8.ValidRune(r) {
				r = utf8.RuneError
			}
			b.WriteRune(r)
		default:
			// \' \" \\ and any other escaped character stand for themselves
			b.WriteByte(s[i])
		}
	}

	return b.String(), nil
}
