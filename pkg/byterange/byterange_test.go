package byterange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFullBody(t *testing.T) {
	r := Parse("", 11)
	assert.True(t, r.Satisfiable)
	assert.False(t, r.Partial)
	assert.Equal(t, int64(0), r.Start)
	assert.Equal(t, int64(10), r.End)
}

func TestParseSingleRange(t *testing.T) {
	r := Parse("bytes=6-10", 11)
	assert.True(t, r.Satisfiable)
	assert.True(t, r.Partial)
	assert.Equal(t, int64(6), r.Start)
	assert.Equal(t, int64(10), r.End)
	assert.Equal(t, "bytes 6-10/11", r.ContentRangeHeader())
	assert.Equal(t, int64(5), r.Size())
}

func TestParseOpenEndedRange(t *testing.T) {
	r := Parse("bytes=6-", 11)
	assert.True(t, r.Partial)
	assert.Equal(t, int64(6), r.Start)
	assert.Equal(t, int64(10), r.End)
}

func TestParseSuffixRange(t *testing.T) {
	r := Parse("bytes=-5", 11)
	assert.True(t, r.Partial)
	assert.Equal(t, int64(6), r.Start)
	assert.Equal(t, int64(10), r.End)
}

func TestParseUnsatisfiable(t *testing.T) {
	r := Parse("bytes=20-30", 11)
	assert.False(t, r.Satisfiable)
	assert.Equal(t, "bytes */11", UnsatisfiableContentRangeHeader(11))
}

func TestParseMultiRangeFallsBackToFull(t *testing.T) {
	r := Parse("bytes=0-1,3-4", 11)
	assert.True(t, r.Satisfiable)
	assert.False(t, r.Partial)
	assert.Equal(t, int64(0), r.Start)
	assert.Equal(t, int64(10), r.End)
}

func TestParseMalformedFallsBackToFull(t *testing.T) {
	r := Parse("not-a-range", 11)
	assert.False(t, r.Partial)
}
