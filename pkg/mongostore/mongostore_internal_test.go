package mongostore

import (
	"context"
	"io"
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongotus/mongotus/pkg/handler"
)

func binaryOf(s string) primitive.Binary {
	return primitive.Binary{Data: []byte(s)}
}

func TestCommonChunkSize(t *testing.T) {
	a := assert.New(t)

	// All parts share the chunk size, last part is terminal-short.
	common, total, err := commonChunkSize([]fileDoc{
		{ID: "a", Length: 3, ChunkSize: 3},
		{ID: "b", Length: 3, ChunkSize: 3},
		{ID: "c", Length: 3, ChunkSize: 3},
		{ID: "d", Length: 2, ChunkSize: 2},
	})
	a.NoError(err)
	a.EqualValues(3, common)
	a.EqualValues(11, total)

	// A multi-chunk part with a short terminal chunk is fine as the last part.
	common, total, err = commonChunkSize([]fileDoc{
		{ID: "a", Length: 6, ChunkSize: 3},
		{ID: "b", Length: 5, ChunkSize: 3},
	})
	a.NoError(err)
	a.EqualValues(3, common)
	a.EqualValues(11, total)

	// But not as an interior part.
	_, _, err = commonChunkSize([]fileDoc{
		{ID: "a", Length: 5, ChunkSize: 3},
		{ID: "b", Length: 6, ChunkSize: 3},
	})
	a.Equal(handler.ErrUnevenChunks, err)

	// A deviating chunk size mid-list is rejected as well.
	_, _, err = commonChunkSize([]fileDoc{
		{ID: "a", Length: 4, ChunkSize: 4},
		{ID: "b", Length: 3, ChunkSize: 3},
		{ID: "c", Length: 4, ChunkSize: 4},
	})
	a.Equal(handler.ErrUnevenChunks, err)

	// Empty finished partials contribute nothing and are skipped.
	common, total, err = commonChunkSize([]fileDoc{
		{ID: "a", Length: 0},
		{ID: "b", Length: 4, ChunkSize: 4},
	})
	a.NoError(err)
	a.EqualValues(4, common)
	a.EqualValues(4, total)
}

func TestLocateChunk(t *testing.T) {
	a := assert.New(t)

	n, skip := locateChunk(0, 3)
	a.EqualValues(0, n)
	a.EqualValues(0, skip)

	n, skip = locateChunk(6, 3)
	a.EqualValues(2, n)
	a.EqualValues(0, skip)

	n, skip = locateChunk(7, 3)
	a.EqualValues(2, n)
	a.EqualValues(1, skip)
}

// fakeCursor feeds a chunkReader from a slice instead of a live MongoDB
// cursor.
type fakeCursor struct {
	chunks []chunkDoc
	pos    int
	closed bool
}

func (c *fakeCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.chunks) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val interface{}) error {
	*(val.(*chunkDoc)) = c.chunks[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error { return nil }

func (c *fakeCursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

func chunksOf(s string, size int, startN int64) []chunkDoc {
	var chunks []chunkDoc
	n := startN
	for len(s) > 0 {
		end := size
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, chunkDoc{N: n, Data: binaryOf(s[:end])})
		s = s[end:]
		n++
	}
	return chunks
}

func TestChunkReader(t *testing.T) {
	a := assert.New(t)

	// Full read over "hello world" in blocks of 3.
	cursor := &fakeCursor{chunks: chunksOf("hello world", 3, 0)}
	r := &chunkReader{ctx: context.Background(), cursor: cursor, remaining: 11}

	content, err := ioutil.ReadAll(r)
	a.NoError(err)
	a.Equal("hello world", string(content))

	a.NoError(r.Close())
	a.True(cursor.closed)

	// Range [6,10] over "hello world" in blocks of 5: starts inside chunk 1
	// (" worl") with one byte skipped.
	cursor = &fakeCursor{chunks: chunksOf(" world", 5, 1)}
	r = &chunkReader{ctx: context.Background(), cursor: cursor, skip: 1, remaining: 5, nextN: 1}

	content, err = ioutil.ReadAll(r)
	a.NoError(err)
	a.Equal("world", string(content))

	// A range extending past the stored chunks surfaces as an unexpected EOF.
	cursor = &fakeCursor{chunks: chunksOf("hel", 3, 0)}
	r = &chunkReader{ctx: context.Background(), cursor: cursor, remaining: 10}

	_, err = ioutil.ReadAll(r)
	a.Equal(io.ErrUnexpectedEOF, err)

	// A gap in the chunk sequence is detected.
	cursor = &fakeCursor{chunks: []chunkDoc{
		{N: 0, Data: binaryOf("hel")},
		{N: 2, Data: binaryOf("wor")},
	}}
	r = &chunkReader{ctx: context.Background(), cursor: cursor, remaining: 6}

	_, err = ioutil.ReadAll(r)
	a.Error(err)
	a.Contains(err.Error(), "chunk sequence gap")
}
