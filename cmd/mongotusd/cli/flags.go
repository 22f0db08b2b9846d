package cli

import (
	"flag"
	"strings"
	"time"

	"github.com/mongotus/mongotus/pkg/hooks"
)

var Flags struct {
	HttpHost string
	HttpPort string
	HttpSock string
	Basepath string

	MaxSize   int64
	ChunkSize int64

	ExpirationPeriod        time.Duration
	ExpirationSweepInterval time.Duration

	StorageBackend string
	MongoUri       string
	MongoDatabase  string
	MongoPrefix    string
	UploadDir      string

	LockBackend string
	RedisUri    string

	DispositionMode     string
	RedirectDownloadUrl string

	ShowGreeting         bool
	DisableDownload      bool
	DisableTermination   bool
	DisableConcatenation bool

	DisableCors          bool
	CorsAllowOrigin      string
	CorsAllowCredentials bool
	CorsAllowMethods     string
	CorsAllowHeaders     string
	CorsMaxAge           string
	CorsExposeHeaders    string

	NetworkTimeout                   time.Duration
	ShutdownTimeout                  time.Duration
	AcquireLockTimeout               time.Duration
	GracefulRequestCompletionTimeout time.Duration
	ProgressHooksInterval            time.Duration

	HooksBackend            string
	EnabledHooksString      string
	FileHooksDir            string
	HttpHooksEndpoint       string
	HttpHooksForwardHeaders string
	HttpHooksRetry          int
	HttpHooksBackoff        time.Duration
	GrpcHooksEndpoint       string
	GrpcHooksRetry          int
	GrpcHooksBackoff        time.Duration
	PluginHookPath          string
	EnabledHooks            []hooks.HookType

	ShowVersion bool
	MetricsPath string
	BehindProxy bool

	LogFormat     string
	VerboseOutput bool

	TLSCertFile string
	TLSKeyFile  string
	TLSMode     string
}

func ParseFlags() {
	flag.StringVar(&Flags.HttpHost, "host", "0.0.0.0", "Host to bind HTTP server to")
	flag.StringVar(&Flags.HttpPort, "port", "1080", "Port to bind HTTP server to")
	flag.StringVar(&Flags.HttpSock, "unix-sock", "", "If set, will listen to a UNIX socket at this location instead of a TCP socket")
	flag.StringVar(&Flags.Basepath, "base-path", "/files/", "Basepath of the HTTP server")
	flag.Int64Var(&Flags.MaxSize, "max-size", 0, "Maximum size of a single upload in bytes")
	flag.Int64Var(&Flags.ChunkSize, "chunk-size", 255*1024, "Block size in bytes used when persisting upload data. The first block written to an upload fixes its chunk size")
	flag.DurationVar(&Flags.ExpirationPeriod, "expiration", 0, "Time after the last write at which an unfinished upload expires and may be removed (e.g. 24h). A zero value disables expiration")
	flag.DurationVar(&Flags.ExpirationSweepInterval, "expiration-sweep-interval", time.Minute, "Interval between two sweeps for expired uploads")
	flag.StringVar(&Flags.StorageBackend, "storage", "mongo", "Storage backend to use (mongo or filesystem)")
	flag.StringVar(&Flags.MongoUri, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI used by the mongo storage backend")
	flag.StringVar(&Flags.MongoDatabase, "mongo-database", "mongotus", "MongoDB database holding the upload collections")
	flag.StringVar(&Flags.MongoPrefix, "mongo-prefix", "tus", "Prefix for the files and chunks collections")
	flag.StringVar(&Flags.UploadDir, "upload-dir", "./data", "Directory to store uploads in when using the filesystem storage backend")
	flag.StringVar(&Flags.LockBackend, "lock-backend", "memory", "Locking backend serializing access to a single upload (memory or redis)")
	flag.StringVar(&Flags.RedisUri, "redis-uri", "redis://localhost:6379", "Redis connection URI used when -lock-backend is redis")
	flag.StringVar(&Flags.DispositionMode, "disposition", "", "Force the Content-Disposition type on downloads (inline or attachment). By default it is derived from the upload's file type")
	flag.StringVar(&Flags.RedirectDownloadUrl, "redirect-download", "", "If set, GET requests respond with a redirect to this URL joined with the upload id instead of streaming the content")
	flag.BoolVar(&Flags.ShowGreeting, "show-greeting", true, "Show the greeting message")
	flag.BoolVar(&Flags.DisableDownload, "disable-download", false, "Disable the download endpoint")
	flag.BoolVar(&Flags.DisableTermination, "disable-termination", false, "Disable the termination endpoint")
	flag.BoolVar(&Flags.DisableConcatenation, "disable-concatenation", false, "Disable the concatenation extension")
	flag.BoolVar(&Flags.DisableCors, "disable-cors", false, "Disable CORS headers")
	flag.StringVar(&Flags.CorsAllowOrigin, "cors-allow-origin", ".*", "Regular expression used to determine if the Origin header is allowed. If not, no CORS headers will be sent. By default, all origins are allowed")
	flag.BoolVar(&Flags.CorsAllowCredentials, "cors-allow-credentials", false, "Allow credentials by setting Access-Control-Allow-Credentials: true")
	flag.StringVar(&Flags.CorsAllowMethods, "cors-allow-methods", "", "Comma-separated list of request methods that are included in Access-Control-Allow-Methods in addition to the ones required by tus")
	flag.StringVar(&Flags.CorsAllowHeaders, "cors-allow-headers", "", "Comma-separated list of headers that are included in Access-Control-Allow-Headers in addition to the ones required by tus")
	flag.StringVar(&Flags.CorsMaxAge, "cors-max-age", "86400", "Value of the Access-Control-Max-Age header to control the cache duration of CORS responses")
	flag.StringVar(&Flags.CorsExposeHeaders, "cors-expose-headers", "", "Comma-separated list of headers that are included in Access-Control-Expose-Headers in addition to the ones required by tus")
	flag.DurationVar(&Flags.NetworkTimeout, "network-timeout", 60*time.Second, "Timeout for reading the request body without making progress")
	flag.DurationVar(&Flags.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "Timeout for closing open connections during a shutdown")
	flag.DurationVar(&Flags.AcquireLockTimeout, "acquire-lock-timeout", 20*time.Second, "Timeout for a request to acquire the per-upload lock")
	flag.DurationVar(&Flags.GracefulRequestCompletionTimeout, "request-completion-timeout", 10*time.Second, "Period after a request's context is done in which the storage backend may still finish its operations")
	flag.DurationVar(&Flags.ProgressHooksInterval, "progress-hooks-interval", time.Second, "Interval at which progress events are emitted for running uploads")
	flag.StringVar(&Flags.HooksBackend, "hooks-backend", "none", "Hook backend receiving the upload lifecycle events (none, file, http, grpc or plugin)")
	flag.StringVar(&Flags.EnabledHooksString, "hooks-enabled-events", "pre-create,post-create,post-receive,post-terminate,post-finish", "Comma separated list of enabled hook events (e.g. post-create,post-finish). Leave empty to enable default events")
	flag.StringVar(&Flags.FileHooksDir, "hooks-dir", "", "Directory to search for available hooks scripts")
	flag.StringVar(&Flags.HttpHooksEndpoint, "hooks-http", "", "An HTTP endpoint to which hook events will be sent to")
	flag.StringVar(&Flags.HttpHooksForwardHeaders, "hooks-http-forward-headers", "", "List of HTTP request headers to be forwarded from the client request to the hook endpoint")
	flag.IntVar(&Flags.HttpHooksRetry, "hooks-http-retry", 3, "Number of times to retry on a 500 or network timeout")
	flag.DurationVar(&Flags.HttpHooksBackoff, "hooks-http-backoff", time.Second, "Wait period before retrying each retry")
	flag.StringVar(&Flags.GrpcHooksEndpoint, "hooks-grpc", "", "An gRPC endpoint to which hook events will be sent to")
	flag.IntVar(&Flags.GrpcHooksRetry, "hooks-grpc-retry", 3, "Number of times to retry on a server error or network timeout")
	flag.DurationVar(&Flags.GrpcHooksBackoff, "hooks-grpc-backoff", time.Second, "Wait period before retrying each retry")
	flag.StringVar(&Flags.PluginHookPath, "hooks-plugin", "", "Path to a Go plugin for loading hook functions")
	flag.BoolVar(&Flags.ShowVersion, "version", false, "Print version information")
	flag.StringVar(&Flags.MetricsPath, "metrics-path", "/metrics", "Path under which the metrics endpoint will be accessible. An empty value disables metrics")
	flag.BoolVar(&Flags.BehindProxy, "behind-proxy", false, "Respect X-Forwarded-* and similar headers which may be set by proxies")
	flag.StringVar(&Flags.LogFormat, "log-format", "console", "Logging format (console or json)")
	flag.BoolVar(&Flags.VerboseOutput, "verbose", true, "Enable verbose logging output")
	flag.StringVar(&Flags.TLSCertFile, "tls-certificate", "", "Path to the file containing the x509 TLS certificate to be used. The file should also contain any intermediate certificates and the CA certificate.")
	flag.StringVar(&Flags.TLSKeyFile, "tls-key", "", "Path to the file containing the key for the TLS certificate.")
	flag.StringVar(&Flags.TLSMode, "tls-mode", "tls12", "Specify which TLS mode to use; valid modes are tls13, tls12, and tls12-strong.")
	flag.Parse()

	SetEnabledHooks()

	if Flags.DispositionMode != "" && Flags.DispositionMode != "inline" && Flags.DispositionMode != "attachment" {
		stderr.Fatal().Str("disposition", Flags.DispositionMode).Msg("Invalid value for -disposition flag, must be inline or attachment")
	}
}

func SetEnabledHooks() {
	if Flags.EnabledHooksString != "" {
		slc := strings.Split(Flags.EnabledHooksString, ",")

		for i, h := range slc {
			slc[i] = strings.TrimSpace(h)

			if !hookTypeInSlice(hooks.HookType(slc[i]), hooks.AvailableHooks) {
				stderr.Fatal().Str("event", slc[i]).Msg("Unknown hook event type in -hooks-enabled-events flag")
			}

			Flags.EnabledHooks = append(Flags.EnabledHooks, hooks.HookType(slc[i]))
		}
	}

	if len(Flags.EnabledHooks) == 0 {
		Flags.EnabledHooks = hooks.AvailableHooks
	}
}

func hookTypeInSlice(a hooks.HookType, list []hooks.HookType) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}
