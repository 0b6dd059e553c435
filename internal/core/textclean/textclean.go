// Package textclean puts recognized text into a stable shape before it leaves the dispatcher
// Pipeline order
// 1 drop invalid UTF-8 and control characters other than line breaks and tabs
// 2 Unicode NFKC normalization
// 3 remove format characters (ZWJ, ZWNJ, BOM)
// 4 width fold fullwidth forms to ASCII
// 5 collapse blanks inside a line, keep one line break between non-empty lines, trim
//
// Case, digits and punctuation are preserved; label fields such as lot numbers depend on them
package textclean

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// Clean returns the cleaned form of s
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(dropControl, s)

	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		out = s
	}
	return collapse(out)
}

func dropControl(r rune) rune {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return r
	case unicode.IsControl(r):
		return -1
	default:
		return r
	}
}

// collapse folds whitespace runs to one space, or to one newline when the run crosses a line break
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := rune(0)
	for _, r := range s {
		if unicode.IsSpace(r) {
			if r == '\n' || r == '\r' {
				pending = '\n'
			} else if pending == 0 {
				pending = ' '
			}
			continue
		}
		if pending != 0 && b.Len() > 0 {
			b.WriteRune(pending)
		}
		pending = 0
		b.WriteRune(r)
	}
	return b.String()
}

// Lines splits cleaned text into its non-empty lines
func Lines(s string) []string {
	s = Clean(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
