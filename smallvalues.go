package interpcore

// Small-value cache bounds. Integers in [-smallIntNeg, smallIntPos) and
// single-code-unit text values below charCacheSize are preboxed at init and
// shared program-wide without copying.
const (
	smallIntNeg   = 5
	smallIntPos   = 257
	charCacheSize = 256
)

// smallValueCache holds the preallocated immutable singletons. Built once
// during initialization, never mutated afterwards, and released en masse at
// teardown. Entries are shared handles: callers must never mutate them and
// never release them individually.
type smallValueCache struct {
	ints       [smallIntNeg + smallIntPos]*IntValue
	runes      [charCacheSize]*StrValue
	byteChars  [charCacheSize]*BytesValue
	emptyStr   *StrValue
	emptyBytes *BytesValue
}

// newSmallValueCache builds every singleton from the general allocator.
func newSmallValueCache() *smallValueCache {
	c := &smallValueCache{
		emptyStr:   &StrValue{S: ""},
		emptyBytes: &BytesValue{B: []byte{}},
	}
	for i := range c.ints {
		c.ints[i] = &IntValue{V: int64(i - smallIntNeg)}
	}
	for i := range c.runes {
		c.runes[i] = &StrValue{S: string(rune(i))}
	}
	for i := range c.byteChars {
		c.byteChars[i] = &BytesValue{B: []byte{byte(i)}}
	}
	return c
}

// lookupInt returns the shared handle for i, or false if i is outside the
// cached range.
func (c *smallValueCache) lookupInt(i int64) (*IntValue, bool) {
	if i < -smallIntNeg || i >= smallIntPos {
		return nil, false
	}
	return c.ints[i+smallIntNeg], true
}

// lookupRune returns the shared single-rune string for r, or false for
// runes outside the latin-1 range.
func (c *smallValueCache) lookupRune(r rune) (*StrValue, bool) {
	if r < 0 || r >= charCacheSize {
		return nil, false
	}
	return c.runes[r], true
}

// lookupByteChar returns the shared single-byte byte-string for b. Every
// byte value is cached, so unlike the int and rune lookups this cannot miss.
func (c *smallValueCache) lookupByteChar(b byte) *BytesValue {
	return c.byteChars[b]
}
