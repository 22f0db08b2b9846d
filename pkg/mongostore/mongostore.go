// Package mongostore provides a storage backend using MongoDB.
//
// Uploads are persisted across two collections following the GridFS layout:
// a files collection keyed by the upload id and a chunks collection holding
// fixed-size binary blocks keyed by (files_id, n). All chunks of an upload
// share the same chunk size, except the terminal chunk which may be shorter.
// This invariant makes range seeking a matter of integer division and turns
// concatenation into a metadata-only operation: the parts' chunks are
// re-parented onto the final upload instead of being copied.
//
// The store does not serialize concurrent access to a single upload on its
// own. Use a handler.Locker (e.g. pkg/memlocker or pkg/redislocker) so that
// only one request mutates an upload at a time.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongotus/mongotus/internal/uid"
	"github.com/mongotus/mongotus/pkg/handler"
)

// DefaultChunkSize is the block size used when none is configured. It matches
// the 255KiB chunk size GridFS uses by default.
const DefaultChunkSize = 255 * 1024

// DefaultPrefix is the collection name prefix, yielding the collections
// <prefix>.files and <prefix>.chunks.
const DefaultPrefix = "tus"

// ErrUploadExists is returned by NewUpload if the id of a new upload (the
// generated one, or FileInfo.ID when the caller sets it) collides with an
// existing one.
var ErrUploadExists = errors.New("mongostore: upload id already exists")

// MongoStore holds the two collections all uploads are persisted in.
type MongoStore struct {
	files  *mongo.Collection
	chunks *mongo.Collection

	// ChunkSize is the block size for newly created uploads. The length of the
	// first block written to an upload becomes that upload's permanent chunk
	// size, capped by this value. Defaults to DefaultChunkSize if zero.
	ChunkSize int64
	// MaxSize is an optional ceiling on the total size of a single upload. A
	// write that would push an upload past it fails with handler.ErrSizeExceeded.
	// Zero disables the check.
	MaxSize int64
	// ExpirationPeriod is the time after an upload's last write at which the
	// upload is considered expired. Zero means uploads never expire. The store
	// only reports expiry through FileInfo; actual deletion is driven by
	// DeleteExpired, typically from pkg/sweeper.
	ExpirationPeriod time.Duration
}

// New creates a MongoStore using the default collection prefix.
func New(db *mongo.Database) *MongoStore {
	return NewWithPrefix(db, DefaultPrefix)
}

// NewWithPrefix creates a MongoStore persisting into <prefix>.files and
// <prefix>.chunks of the given database.
func NewWithPrefix(db *mongo.Database, prefix string) *MongoStore {
	return &MongoStore{
		files:     db.Collection(prefix + ".files"),
		chunks:    db.Collection(prefix + ".chunks"),
		ChunkSize: DefaultChunkSize,
	}
}

// UseIn sets this store as the core data store in the passed composer and adds
// all possible extension to it.
func (store *MongoStore) UseIn(composer *handler.StoreComposer) {
	composer.UseCore(store)
	composer.UseTerminater(store)
	composer.UseConcater(store)
	composer.UseLengthDeferrer(store)
}

// EnsureIndexes creates the unique compound index on (files_id, n) which
// makes chunk appends collision-safe and range seeks efficient. It should be
// called once at startup.
func (store *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := store.chunks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "files_id", Value: 1}, {Key: "n", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// fileDoc is the per-upload metadata document in <prefix>.files.
type fileDoc struct {
	ID          string    `bson:"_id"`
	Length      int64     `bson:"length"`
	ChunkSize   int64     `bson:"chunkSize,omitempty"`
	UploadDate  time.Time `bson:"uploadDate"`
	ContentType string    `bson:"contentType,omitempty"`
	Metadata    infoDoc   `bson:"metadata"`
}

// infoDoc carries the protocol-level upload state inside the files document.
type infoDoc struct {
	Size           int64             `bson:"size"`
	SizeIsDeferred bool              `bson:"sizeIsDeferred,omitempty"`
	IsPartial      bool              `bson:"isPartial,omitempty"`
	IsFinal        bool              `bson:"isFinal,omitempty"`
	PartialUploads []string          `bson:"partialUploads,omitempty"`
	MetaData       map[string]string `bson:"metaData,omitempty"`
}

// chunkDoc is a single data block in <prefix>.chunks.
type chunkDoc struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	FilesID string             `bson:"files_id"`
	N       int64              `bson:"n"`
	Data    primitive.Binary   `bson:"data"`
}

func (store *MongoStore) NewUpload(ctx context.Context, info handler.FileInfo) (handler.Upload, error) {
	if info.ID == "" {
		info.ID = uid.Uid()
	}

	doc := fileDoc{
		ID:          info.ID,
		Length:      0,
		UploadDate:  time.Now().UTC(),
		ContentType: info.MetaData["filetype"],
		Metadata: infoDoc{
			Size:           info.Size,
			SizeIsDeferred: info.SizeIsDeferred,
			IsPartial:      info.IsPartial,
			IsFinal:        info.IsFinal,
			PartialUploads: info.PartialUploads,
			MetaData:       info.MetaData,
		},
	}

	if _, err := store.files.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUploadExists
		}
		return nil, err
	}

	return &mongoUpload{store: store, file: doc}, nil
}

func (store *MongoStore) GetUpload(ctx context.Context, id string) (handler.Upload, error) {
	var doc fileDoc
	err := store.files.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, handler.ErrNotFound
		}
		return nil, err
	}

	return &mongoUpload{store: store, file: doc}, nil
}

func (store *MongoStore) AsTerminatableUpload(upload handler.Upload) handler.TerminatableUpload {
	return upload.(*mongoUpload)
}

func (store *MongoStore) AsConcatableUpload(upload handler.Upload) handler.ConcatableUpload {
	return upload.(*mongoUpload)
}

func (store *MongoStore) AsLengthDeclarableUpload(upload handler.Upload) handler.LengthDeclarableUpload {
	return upload.(*mongoUpload)
}

// DeleteExpired removes every upload whose last write happened before the
// given time, cascading to its chunks. It returns the number of uploads
// removed. This implements the bulk sweep invoked by pkg/sweeper.
func (store *MongoStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	cursor, err := store.files.Find(ctx, bson.M{"uploadDate": bson.M{"$lt": before}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			cursor.Close(ctx)
			return 0, err
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		cursor.Close(ctx)
		return 0, err
	}
	cursor.Close(ctx)

	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := store.chunks.DeleteMany(ctx, bson.M{"files_id": bson.M{"$in": ids}}); err != nil {
		return 0, err
	}
	res, err := store.files.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}

type mongoUpload struct {
	store *MongoStore
	file  fileDoc
}

func (upload *mongoUpload) GetInfo(ctx context.Context) (handler.FileInfo, error) {
	info := handler.FileInfo{
		ID:             upload.file.ID,
		Size:           upload.file.Metadata.Size,
		SizeIsDeferred: upload.file.Metadata.SizeIsDeferred,
		Offset:         upload.file.Length,
		MetaData:       upload.file.Metadata.MetaData,
		IsPartial:      upload.file.Metadata.IsPartial,
		IsFinal:        upload.file.Metadata.IsFinal,
		PartialUploads: upload.file.Metadata.PartialUploads,
		Storage: map[string]string{
			"Type":       "mongostore",
			"Collection": upload.store.files.Name(),
			"Key":        upload.file.ID,
		},
	}

	if upload.store.ExpirationPeriod > 0 {
		info.Expires = upload.file.UploadDate.Add(upload.store.ExpirationPeriod)
	}

	return info, nil
}

// WriteChunk appends the stream to the upload in chunkSize-aligned blocks.
// The length of the very first block fixes the upload's chunk size. A block
// shorter than the chunk size is only accepted as the terminal block of the
// upload, i.e. when it brings the offset up to the declared length.
func (upload *mongoUpload) WriteChunk(ctx context.Context, offset int64, src io.Reader) (int64, error) {
	chunkSize := upload.file.ChunkSize
	info := upload.file.Metadata

	if chunkSize > 0 && upload.file.Length%chunkSize != 0 {
		// A short chunk has already been written, so the upload is sealed at
		// its current length. Reaching this indicates offset validation was
		// bypassed.
		return 0, handler.ErrUnevenChunks
	}

	var written int64
	nextN := int64(0)
	if chunkSize > 0 {
		nextN = upload.file.Length / chunkSize
	}

	if chunkSize == 0 {
		// First write: the first block determines the upload's chunk size.
		configured := upload.store.ChunkSize
		if configured <= 0 {
			configured = DefaultChunkSize
		}

		buf := make([]byte, configured)
		n, err := io.ReadFull(src, buf)
		if n == 0 {
			if err == io.EOF {
				return 0, nil
			}
			return 0, err
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}

		chunkSize = int64(n)
		if serr := upload.checkSize(offset + chunkSize); serr != nil {
			return 0, serr
		}
		if err := upload.appendChunk(ctx, nextN, buf[:n], chunkSize); err != nil {
			return 0, err
		}
		written += chunkSize
		nextN++

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return written, nil
		}
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(src, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			// A block cut short by a read failure (rather than the end of the
			// stream) is discarded so the offset stays on a chunk boundary.
			return written, err
		}
		if n > 0 {
			blockEnd := offset + written + int64(n)
			if serr := upload.checkSize(blockEnd); serr != nil {
				return written, serr
			}
			if int64(n) < chunkSize {
				// Short blocks may only seal the upload.
				if info.SizeIsDeferred || blockEnd != info.Size {
					return written, handler.ErrUnevenChunks
				}
			}
			if err := upload.appendChunk(ctx, nextN, buf[:n], 0); err != nil {
				return written, err
			}
			written += int64(n)
			nextN++
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return written, nil
		}
	}
}

func (upload *mongoUpload) checkSize(newLength int64) error {
	info := upload.file.Metadata
	if !info.SizeIsDeferred && newLength > info.Size {
		return handler.ErrSizeExceeded
	}
	if upload.store.MaxSize > 0 && newLength > upload.store.MaxSize {
		return handler.ErrSizeExceeded
	}
	return nil
}

// appendChunk inserts a single block and advances the files document's length
// and upload date. If setChunkSize is non-zero, it also records the upload's
// permanent chunk size. The length is only bumped after the chunk insert
// succeeded, so a disconnect mid-write leaves the offset at a whole-chunk
// boundary.
func (upload *mongoUpload) appendChunk(ctx context.Context, n int64, data []byte, setChunkSize int64) error {
	// The data slice is reused across loop iterations, so it must be copied
	// before handing it to the driver.
	block := make([]byte, len(data))
	copy(block, data)

	_, err := upload.store.chunks.InsertOne(ctx, chunkDoc{
		FilesID: upload.file.ID,
		N:       n,
		Data:    primitive.Binary{Subtype: 0x00, Data: block},
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	set := bson.M{
		"length":     upload.file.Length + int64(len(data)),
		"uploadDate": now,
	}
	if setChunkSize > 0 {
		set["chunkSize"] = setChunkSize
	}

	if _, err := upload.store.files.UpdateOne(ctx, bson.M{"_id": upload.file.ID}, bson.M{"$set": set}); err != nil {
		return err
	}

	upload.file.Length += int64(len(data))
	upload.file.UploadDate = now
	if setChunkSize > 0 {
		upload.file.ChunkSize = setChunkSize
	}

	return nil
}

func (upload *mongoUpload) GetReader(ctx context.Context) (io.ReadCloser, error) {
	return upload.GetReaderForRange(ctx, 0, upload.file.Length)
}

// GetReaderForRange returns a reader over [offset, offset+length) of the
// upload's content. The starting chunk is located by integer division and the
// first and last emitted buffers are trimmed to the exact byte range.
func (upload *mongoUpload) GetReaderForRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if length <= 0 || upload.file.ChunkSize == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	startN, skip := locateChunk(offset, upload.file.ChunkSize)

	cursor, err := upload.store.chunks.Find(ctx,
		bson.M{"files_id": upload.file.ID, "n": bson.M{"$gte": startN}},
		options.Find().SetSort(bson.D{{Key: "n", Value: 1}}))
	if err != nil {
		return nil, err
	}

	return &chunkReader{
		ctx:       ctx,
		cursor:    cursor,
		skip:      skip,
		remaining: length,
		nextN:     startN,
	}, nil
}

func (upload *mongoUpload) FinishUpload(ctx context.Context) error {
	// Extension point for promoting finished uploads to another storage tier.
	return nil
}

func (upload *mongoUpload) DeclareLength(ctx context.Context, length int64) error {
	_, err := upload.store.files.UpdateOne(ctx, bson.M{"_id": upload.file.ID}, bson.M{
		"$set": bson.M{
			"metadata.size":           length,
			"metadata.sizeIsDeferred": false,
		},
	})
	if err != nil {
		return err
	}

	upload.file.Metadata.Size = length
	upload.file.Metadata.SizeIsDeferred = false
	return nil
}

// Terminate removes the upload's files document and all of its chunks. A
// missing upload is not an error, so repeated termination is harmless.
func (upload *mongoUpload) Terminate(ctx context.Context) error {
	if _, err := upload.store.chunks.DeleteMany(ctx, bson.M{"files_id": upload.file.ID}); err != nil {
		return err
	}
	if _, err := upload.store.files.DeleteOne(ctx, bson.M{"_id": upload.file.ID}); err != nil {
		return err
	}
	return nil
}

// ConcatUploads assembles the destination upload from the given partial
// uploads by re-parenting their chunks in order and renumbering them
// sequentially. No chunk data is copied. The parts' files documents are
// removed afterwards, so the partial uploads cease to exist.
func (upload *mongoUpload) ConcatUploads(ctx context.Context, partialUploads []handler.Upload) error {
	parts := make([]fileDoc, len(partialUploads))
	for i, partial := range partialUploads {
		parts[i] = partial.(*mongoUpload).file
	}

	common, total, err := commonChunkSize(parts)
	if err != nil {
		return err
	}

	nextN := int64(0)
	for _, part := range parts {
		cursor, err := upload.store.chunks.Find(ctx,
			bson.M{"files_id": part.ID},
			options.Find().SetSort(bson.D{{Key: "n", Value: 1}}))
		if err != nil {
			return err
		}

		for cursor.Next(ctx) {
			var chunk chunkDoc
			if err := cursor.Decode(&chunk); err != nil {
				cursor.Close(ctx)
				return err
			}

			_, err := upload.store.chunks.UpdateOne(ctx,
				bson.M{"_id": chunk.ID},
				bson.M{"$set": bson.M{"files_id": upload.file.ID, "n": nextN}})
			if err != nil {
				cursor.Close(ctx)
				return err
			}
			nextN++
		}
		if err := cursor.Err(); err != nil {
			cursor.Close(ctx)
			return err
		}
		cursor.Close(ctx)
	}

	now := time.Now().UTC()
	_, err = upload.store.files.UpdateOne(ctx, bson.M{"_id": upload.file.ID}, bson.M{
		"$set": bson.M{
			"chunkSize":  common,
			"length":     total,
			"uploadDate": now,
		},
	})
	if err != nil {
		return err
	}

	partIDs := make([]string, len(parts))
	for i, part := range parts {
		partIDs[i] = part.ID
	}
	if _, err := upload.store.files.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": partIDs}}); err != nil {
		return err
	}

	upload.file.ChunkSize = common
	upload.file.Length = total
	upload.file.UploadDate = now

	return nil
}

// commonChunkSize validates the uniform-chunk-size requirement across the
// parts of a concatenation and returns the shared chunk size together with
// the summed length. Every part except the last must consist purely of
// full-size chunks; the last part may either share the chunk size (with a
// short terminal chunk) or be a single block smaller than the common size.
func commonChunkSize(parts []fileDoc) (common int64, total int64, err error) {
	last := len(parts) - 1
	for i, part := range parts {
		total += part.Length
		if part.Length == 0 {
			// An empty finished partial contributes no chunks.
			continue
		}

		if common == 0 {
			common = part.ChunkSize
		}

		if part.ChunkSize == common {
			if i != last && part.Length%common != 0 {
				return 0, 0, handler.ErrUnevenChunks
			}
			continue
		}

		// A deviating chunk size is only allowed for a last part that is a
		// single block shorter than the common size, which then becomes the
		// terminal chunk of the final upload.
		if i == last && part.ChunkSize < common && part.Length <= part.ChunkSize {
			continue
		}

		return 0, 0, handler.ErrUnevenChunks
	}

	return common, total, nil
}

// locateChunk maps a byte offset to the index of the chunk containing it and
// the number of bytes to discard from that chunk's start.
func locateChunk(offset, chunkSize int64) (n int64, skip int64) {
	return offset / chunkSize, offset % chunkSize
}

// chunkCursor is the subset of *mongo.Cursor the chunkReader consumes.
type chunkCursor interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// chunkReader streams chunk documents from a cursor as a contiguous byte
// range. It trims the first buffer by skip, stops after remaining bytes and
// verifies that chunks arrive in strictly ascending order without gaps.
type chunkReader struct {
	ctx       context.Context
	cursor    chunkCursor
	buf       []byte
	skip      int64
	remaining int64
	nextN     int64
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}

	for len(r.buf) == 0 {
		if !r.cursor.Next(r.ctx) {
			if err := r.cursor.Err(); err != nil {
				return 0, err
			}
			// The range extends past the stored chunks.
			return 0, io.ErrUnexpectedEOF
		}

		var chunk chunkDoc
		if err := r.cursor.Decode(&chunk); err != nil {
			return 0, err
		}
		if chunk.N != r.nextN {
			return 0, fmt.Errorf("mongostore: chunk sequence gap, want %d got %d", r.nextN, chunk.N)
		}
		r.nextN++

		data := chunk.Data.Data
		if r.skip > 0 {
			if r.skip >= int64(len(data)) {
				r.skip -= int64(len(data))
				continue
			}
			data = data[r.skip:]
			r.skip = 0
		}
		r.buf = data
	}

	n := len(r.buf)
	if int64(n) > r.remaining {
		n = int(r.remaining)
	}
	if n > len(p) {
		n = len(p)
	}

	copy(p, r.buf[:n])
	r.buf = r.buf[n:]
	r.remaining -= int64(n)

	return n, nil
}

func (r *chunkReader) Close() error {
	return r.cursor.Close(r.ctx)
}
