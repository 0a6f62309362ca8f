package scorer

import (
	"regexp"
	"strings"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// isWordByte matches RE2's ASCII \w class.
func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isWordOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return false
		}
	}
	return s != ""
}

// edge returns the zero-width assertion that makes the neighbour of b a
// non-word character (or the text edge): \b next to a word byte, \B otherwise.
func edge(b byte) string {
	if isWordByte(b) {
		return `\b`
	}
	return `\B`
}

// wholeWordPattern builds the pattern for a lowercased, non-empty keyword.
func wholeWordPattern(kw string) string {
	return edge(kw[0]) + regexp.QuoteMeta(kw) + edge(kw[len(kw)-1])
}

// compilePattern is the regex compilation seam; tests swap it to force failures.
var compilePattern = regexp.Compile

// patternCache memoizes compiled whole-word patterns by lowercased keyword.
type patternCache struct {
	lru *lru.Cache[string, *regexp.Regexp]
}

func newPatternCache(size int) (*patternCache, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, err
	}
	return &patternCache{lru: c}, nil
}

func (c *patternCache) get(kw string) (*regexp.Regexp, error) {
	if re, ok := c.lru.Get(kw); ok {
		return re, nil
	}
	re, err := compilePattern(wholeWordPattern(kw))
	if err != nil {
		return nil, err
	}
	c.lru.Add(kw, re)
	return re, nil
}

// tokenIndex holds the word tokens of one text in a Bloom filter. A keyword
// made only of word bytes can match whole-word only by equalling a token, so a
// negative answer lets the scorer skip the regex entirely.
type tokenIndex struct {
	bf *bitsbloom.BloomFilter
}

const tokenFPRate = 0.01

func newTokenIndex(text string) *tokenIndex {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r > 0x7f || !isWordByte(byte(r))
	})
	n := uint(len(tokens))
	if n == 0 {
		n = 1
	}
	bf := bitsbloom.NewWithEstimates(n, tokenFPRate)
	for _, t := range tokens {
		bf.AddString(t)
	}
	return &tokenIndex{bf: bf}
}

// mightContain reports false only when kw certainly cannot match.
func (ti *tokenIndex) mightContain(kw string) bool {
	if !isWordOnly(kw) {
		return true
	}
	return ti.bf.TestString(kw)
}
