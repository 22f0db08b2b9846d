package handler

import (
	"context"
	"io"
	"time"
)

type MetaData map[string]string

// FileInfo contains information about a single upload resource.
type FileInfo struct {
	// ID is the unique identifier of the upload resource.
	ID string
	// Total file size in bytes specified in the NewUpload call
	Size int64
	// Indicates whether the total file size is deferred until later
	SizeIsDeferred bool
	// Offset in bytes (zero-based)
	Offset   int64
	MetaData MetaData
	// Indicates that this is a partial upload which will later be used to form
	// a final upload by concatenation. Partial uploads should not be processed
	// when they are finished since they are only incomplete chunks of files.
	IsPartial bool
	// Indicates that this is a final upload
	IsFinal bool
	// If the upload is a final one (see IsFinal) this will be a non-empty
	// ordered slice containing the ids of the uploads of which the final upload
	// will consist after concatenation.
	PartialUploads []string
	// Storage contains information about where the data storage saves the upload,
	// for example a database name/collection. The available values vary depending
	// on what data store is used. This map may also be nil.
	Storage map[string]string
	// Expires is the time at which the upload becomes eligible for removal by
	// an expiration sweep, if the data store supports expiration. The zero
	// value means the upload does not expire.
	Expires time.Time

	// stopUpload is a callback for communicating that an upload should be stopped
	// and interrupt the writes to DataStore#WriteChunk.
	stopUpload func(HTTPResponse)
}

// StopUpload interrupts a running upload from the server-side. This means that
// the current request body is closed, so that the data store does not get any
// more data. Furthermore, a response is sent to notify the client of the
// interrupting and the upload is terminated (if supported by the data store),
// so the upload cannot be resumed anymore. The response to the client can be
// optionally modified by providing values in the HTTPResponse struct.
func (f FileInfo) StopUpload(response HTTPResponse) {
	if f.stopUpload != nil {
		f.stopUpload(response)
	}
}

// FileInfoChanges collects changes to selected properties of a FileInfo struct.
// Properties which should not be modified (e.g. Size or Offset) are left out here.
// The handler does not apply it: PreUploadCreateCallback only returns an error,
// so it can reject an upload but cannot change its properties.
type FileInfoChanges struct {
	// If ID is not empty, it will be passed to the data store, allowing
	// hooks to influence the upload ID.
	ID string

	// If MetaData is not nil, it replaces the entire user-defined meta data from
	// the upload creation request.
	MetaData MetaData

	// If Storage is not nil, it is passed to the data store to allow for minor
	// adjustments to the upload storage. The details are specific to each data store.
	Storage map[string]string
}

type Upload interface {
	// WriteChunk writes the chunk read from src into the file specified by the id
	// at the given offset. The handler takes care of validating the offset and
	// limiting the size of src to not overflow the file's size. The handler also
	// locks resources while they are written to ensure only one write happens per
	// time. The function call must return the number of bytes written.
	WriteChunk(ctx context.Context, offset int64, src io.Reader) (int64, error)
	// GetInfo reads the file information used to validate the offset and respond
	// to HEAD requests.
	GetInfo(ctx context.Context) (FileInfo, error)
	// GetReader returns an io.ReadCloser which allows iterating over the content of
	// an upload. It should attempt to provide a reader even if the upload has not
	// been finished yet but it's not required.
	GetReader(ctx context.Context) (io.ReadCloser, error)
	// FinishUpload is called once an entire upload has been completed. These tasks
	// may include but are not limited to freeing unused resources, promoting the
	// upload to permanent storage or notifying other services.
	FinishUpload(ctx context.Context) error
}

// RangeReaderUpload may optionally be implemented by an Upload to serve a
// byte range more efficiently than reading and discarding a GetReader prefix.
type RangeReaderUpload interface {
	GetReaderForRange(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// DataStore is the base interface for storages to implement. It provides functions
// to create new uploads and fetch existing ones.
//
// Note: the context values passed to all functions is not the request's context,
// but a similar context. See HookEvent.Context for more details.
type DataStore interface {
	// NewUpload creates a new upload using the size as the file's length. The
	// method must return a unique id which is used to identify the upload. If no
	// backend specifies the id you may want to use the uid package to generate
	// one. The properties Size and MetaData will be filled.
	NewUpload(ctx context.Context, info FileInfo) (upload Upload, err error)

	// GetUpload fetches the upload with a given ID. If no such upload can be found,
	// ErrNotFound must be returned.
	GetUpload(ctx context.Context, id string) (upload Upload, err error)
}

type TerminatableUpload interface {
	// Terminate an upload so any further requests to the upload resource will
	// return the ErrNotFound error.
	Terminate(ctx context.Context) error
}

// TerminaterDataStore is the interface which must be implemented by DataStores
// if they want to receive DELETE requests using the Handler. If this interface
// is not implemented, no request handler for this method is attached.
type TerminaterDataStore interface {
	AsTerminatableUpload(upload Upload) TerminatableUpload
}

// ConcaterDataStore is the interface required to be implemented if the
// Concatenation extension should be enabled. Only in this case, the handler
// will parse and respect the Upload-Concat header.
type ConcaterDataStore interface {
	AsConcatableUpload(upload Upload) ConcatableUpload
}

type ConcatableUpload interface {
	// ConcatUploads concatenates the content from the provided partial uploads
	// and writes the result into the destination upload. The caller (the handler)
	// ensures that the destination upload has been created before with enough
	// space to hold all partial uploads. The order in which the partial uploads
	// are supplied must be respected during concatenation.
	ConcatUploads(ctx context.Context, partialUploads []Upload) error
}

// LengthDeferrerDataStore is the interface that must be implemented if the
// creation-defer-length extension should be enabled. The extension enables a
// client to upload files when their total size is not yet known. Instead, the
// client must send the total size as soon as it becomes known.
type LengthDeferrerDataStore interface {
	AsLengthDeclarableUpload(upload Upload) LengthDeclarableUpload
}

type LengthDeclarableUpload interface {
	DeclareLength(ctx context.Context, length int64) error
}

// Locker is the interface required for custom lock persisting mechanisms.
// Common ways to store this information is in memory or using an external
// service, such as Redis.
// When multiple processes are attempting to access an upload, whether it be
// by reading or writing, a synchronization mechanism is required to prevent
// data corruption, especially to ensure correct offset values and the proper
// order of chunks inside a single upload.
type Locker interface {
	// NewLock creates a new unlocked lock object for the given upload ID.
	NewLock(id string) (Lock, error)
}

// Lock is the interface for a lock as returned from a Locker.
type Lock interface {
	// Lock attempts to obtain an exclusive lock for the upload specified by its id.
	// If the lock can be acquired, it returns without error. The requestUnlock
	// callback is invoked when another caller attempts to create a lock. In this
	// case, the holder of the lock should attempt to release the lock as soon as
	// possible. If the context is cancelled before the lock can be acquired,
	// ErrLockTimeout is returned without acquiring the lock.
	Lock(ctx context.Context, requestUnlock func()) error
	// Unlock releases an existing lock for the given upload.
	Unlock() error
}
