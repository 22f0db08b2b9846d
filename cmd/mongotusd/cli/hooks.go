package cli

import (
	"strings"

	"github.com/mongotus/mongotus/pkg/hooks"
	"github.com/mongotus/mongotus/pkg/hooks/file"
	"github.com/mongotus/mongotus/pkg/hooks/grpc"
	hooks_http "github.com/mongotus/mongotus/pkg/hooks/http"
	"github.com/mongotus/mongotus/pkg/hooks/plugin"
)

// getHookHandler returns the hook backend selected via -hooks-backend, or nil
// when hooks are disabled.
func getHookHandler() hooks.HookHandler {
	switch Flags.HooksBackend {
	case "none", "":
		return nil

	case "file":
		if Flags.FileHooksDir == "" {
			stderr.Fatal().Msg("The file hook backend requires the -hooks-dir flag")
		}
		stdout.Info().Str("dir", Flags.FileHooksDir).Msg("Using file hooks")
		return &file.FileHook{
			Directory: Flags.FileHooksDir,
		}

	case "http":
		if Flags.HttpHooksEndpoint == "" {
			stderr.Fatal().Msg("The http hook backend requires the -hooks-http flag")
		}
		stdout.Info().Str("endpoint", Flags.HttpHooksEndpoint).Msg("Using http hooks")
		return &hooks_http.HttpHook{
			Endpoint:       Flags.HttpHooksEndpoint,
			MaxRetries:     Flags.HttpHooksRetry,
			Backoff:        Flags.HttpHooksBackoff,
			ForwardHeaders: splitHeaderList(Flags.HttpHooksForwardHeaders),
		}

	case "grpc":
		if Flags.GrpcHooksEndpoint == "" {
			stderr.Fatal().Msg("The grpc hook backend requires the -hooks-grpc flag")
		}
		stdout.Info().Str("endpoint", Flags.GrpcHooksEndpoint).Msg("Using grpc hooks")
		return &grpc.GrpcHook{
			Endpoint:   Flags.GrpcHooksEndpoint,
			MaxRetries: Flags.GrpcHooksRetry,
			Backoff:    Flags.GrpcHooksBackoff,
		}

	case "plugin":
		if Flags.PluginHookPath == "" {
			stderr.Fatal().Msg("The plugin hook backend requires the -hooks-plugin flag")
		}
		stdout.Info().Str("path", Flags.PluginHookPath).Msg("Using plugin hooks")
		return &plugin.PluginHook{
			Path: Flags.PluginHookPath,
		}

	default:
		stderr.Fatal().Str("backend", Flags.HooksBackend).Msg("Invalid value for -hooks-backend flag, must be none, file, http, grpc or plugin")
		return nil
	}
}

func splitHeaderList(list string) []string {
	if list == "" {
		return nil
	}

	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
