package handler

import (
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"time"
)

// Config provides a way to configure the Handler depending on your needs.
type Config struct {
	// StoreComposer points to the store composer from which the core data store
	// and optional dependencies should be taken. It must not be nil.
	StoreComposer *StoreComposer
	// MaxSize defines how many bytes may be stored in one single upload. If its
	// value is 0 or smaller no limit will be enforced.
	MaxSize int64
	// BasePath defines the URL path used for handling uploads, e.g. "/files/".
	// If no trailing slash is presented it will be added. You may specify an
	// absolute URL containing a scheme, e.g. "http://tus.io"
	BasePath string
	isAbs    bool
	// DisableDownload indicates whether the server will refuse downloads of the
	// uploaded file, by not mounting the GET handler.
	DisableDownload bool
	// DisableTermination indicates whether the server will refuse termination
	// requests of the uploaded file, by not mounting the DELETE handler.
	DisableTermination bool
	// DisableConcatenation indicates whether the server will refuse the
	// concatenation of uploads, even if the data store would support it.
	DisableConcatenation bool
	// Cors can be used to customize the handling of Cross-Origin Resource Sharing (CORS).
	// Defaults to DefaultCorsConfig.
	Cors *CorsConfig
	// NotifyCompleteUploads indicates whether sending notifications about
	// completed uploads using the CompleteUploads channel should be enabled.
	NotifyCompleteUploads bool
	// NotifyTerminatedUploads indicates whether sending notifications about
	// terminated uploads using the TerminatedUploads channel should be enabled.
	NotifyTerminatedUploads bool
	// NotifyUploadProgress indicates whether sending notifications about
	// the upload progress using the UploadProgress channel should be enabled.
	NotifyUploadProgress bool
	// NotifyCreatedUploads indicates whether sending notifications about
	// the upload having been created using the CreatedUploads channel should be enabled.
	NotifyCreatedUploads bool
	// Logger is the logger to use internally, mostly for printing requests.
	Logger *slog.Logger
	// Respect the X-Forwarded-Host, X-Forwarded-Proto and Forwarded headers
	// potentially set by proxies when generating an absolute URL in the
	// response to POST requests.
	RespectForwardedHeaders bool
	// PreUploadCreateCallback will be invoked before a new upload is created, if the
	// property is supplied. If the callback returns nil, the upload will be created.
	// Otherwise the HTTP request will be aborted.
	PreUploadCreateCallback func(hook HookEvent) error
	// PreFinishResponseCallback will be invoked after an upload is completed but before
	// a response is returned to the client. Error responses from the callback will be passed
	// back to the client.
	PreFinishResponseCallback func(hook HookEvent) error

	// NetworkTimeout is the duration after which a stalled read of the request
	// body is treated as a read timeout and aborted.
	NetworkTimeout time.Duration
	// AcquireLockTimeout bounds how long the handler waits to acquire the
	// per-upload lock before failing the request.
	AcquireLockTimeout time.Duration
	// GracefulRequestCompletionTimeout is the extra time given to a data store
	// to finish its work (e.g. flushing to permanent storage) after the client's
	// own request context is done.
	GracefulRequestCompletionTimeout time.Duration
	// UploadProgressInterval is the minimum time between two upload progress
	// notifications sent on the UploadProgress channel for the same upload.
	UploadProgressInterval time.Duration

	// DownloadDisposition forces the Content-Disposition type on downloads to
	// "inline" or "attachment". If empty, the type is derived from the
	// upload's file type, with only a small allow-list of types served inline.
	DownloadDisposition string
	// RedirectDownloadUrl, if set, makes GET requests respond with a redirect
	// to this URL joined with the upload id, instead of streaming the content
	// from the data store. Useful when downloads should be served by a CDN or
	// a dedicated delivery endpoint.
	RedirectDownloadUrl string

	// ChunkSize is the default block size used by the Chunk Store when persisting
	// PATCH bodies. The first chunk written for an upload fixes its chunk size.
	ChunkSize int64
	// ExpirationPeriod is added to "now" whenever Upload-Expires is refreshed.
	// If zero, uploads never expire.
	ExpirationPeriod time.Duration
}

// CorsConfig provides a way to customize the handling of Cross-Origin Resource Sharing (CORS).
type CorsConfig struct {
	// Disable instructs the handler to ignore all CORS-related headers and never set a
	// CORS-related header in a response.
	Disable bool
	// AllowOrigin is a regular expression used to check if a request is allowed to participate in the
	// CORS protocol. If the request's Origin header matches the regular expression, CORS is allowed.
	AllowOrigin *regexp.Regexp
	// AllowCredentials defines whether the `Access-Control-Allow-Credentials: true` header should be
	// included in CORS responses.
	AllowCredentials bool
	// AllowMethods defines the value for the `Access-Control-Allow-Methods` header in the response to
	// preflight requests.
	AllowMethods string
	// AllowHeaders defines the value for the `Access-Control-Allow-Headers` header in the response to
	// preflight requests.
	AllowHeaders string
	// MaxAge defines the value for the `Access-Control-Max-Age` header in the response to preflight
	// requests.
	MaxAge string
	// ExposeHeaders defines the value for the `Access-Control-Expose-Headers` header in the response to
	// actual requests.
	ExposeHeaders string
}

// DefaultCorsConfig is the configuration that will be used if none is provided.
var DefaultCorsConfig = CorsConfig{
	Disable:          false,
	AllowOrigin:      regexp.MustCompile(".*"),
	AllowCredentials: false,
	AllowMethods:     "POST, HEAD, PATCH, OPTIONS, GET, DELETE",
	AllowHeaders:     "Authorization, Origin, X-Requested-With, X-Request-ID, X-HTTP-Method-Override, Content-Type, Upload-Length, Upload-Offset, Tus-Resumable, Upload-Metadata, Upload-Defer-Length, Upload-Concat, Upload-Checksum",
	MaxAge:           "86400",
	ExposeHeaders:    "Upload-Offset, Location, Upload-Length, Tus-Version, Tus-Resumable, Tus-Max-Size, Tus-Extension, Tus-Checksum-Algorithm, Upload-Metadata, Upload-Defer-Length, Upload-Concat, Upload-Expires",
}

const (
	defaultNetworkTimeout                    = 60 * time.Second
	defaultAcquireLockTimeout                = 20 * time.Second
	defaultGracefulRequestCompletionTimeout  = 10 * time.Second
	defaultUploadProgressInterval            = time.Second
	defaultChunkSize                         = 255 * 1024
)

func (config *Config) validate() error {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}

	base := config.BasePath
	uri, err := url.Parse(base)
	if err != nil {
		return err
	}

	// Ensure base path ends with slash to remove logic from absFileURL
	if base != "" && string(base[len(base)-1]) != "/" {
		base += "/"
	}

	// Ensure base path begins with slash if not absolute (starts with scheme)
	if !uri.IsAbs() && len(base) > 0 && string(base[0]) != "/" {
		base = "/" + base
	}
	config.BasePath = base
	config.isAbs = uri.IsAbs()

	if config.StoreComposer == nil {
		return errors.New("handler: StoreComposer must not be nil")
	}

	if config.StoreComposer.Core == nil {
		return errors.New("handler: StoreComposer in Config needs to contain a non-nil core")
	}

	if config.Cors == nil {
		config.Cors = &DefaultCorsConfig
	}

	if config.NetworkTimeout <= 0 {
		config.NetworkTimeout = defaultNetworkTimeout
	}
	if config.AcquireLockTimeout <= 0 {
		config.AcquireLockTimeout = defaultAcquireLockTimeout
	}
	if config.GracefulRequestCompletionTimeout <= 0 {
		config.GracefulRequestCompletionTimeout = defaultGracefulRequestCompletionTimeout
	}
	if config.UploadProgressInterval <= 0 {
		config.UploadProgressInterval = defaultUploadProgressInterval
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaultChunkSize
	}

	return nil
}
