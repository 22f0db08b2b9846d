package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongotus/mongotus/pkg/filestore"
	"github.com/mongotus/mongotus/pkg/handler"
	"github.com/mongotus/mongotus/pkg/memlocker"
	"github.com/mongotus/mongotus/pkg/mongostore"
	"github.com/mongotus/mongotus/pkg/redislocker"
	"github.com/mongotus/mongotus/pkg/sweeper"
)

var Composer *handler.StoreComposer

// ExpirationStore is set when the selected storage backend supports bulk
// removal of expired uploads, so Serve can run a sweeper against it.
var ExpirationStore sweeper.ExpiredDeleter

// CreateComposer assembles the storage backend and locker selected by the
// flags into the store composer used by the handler.
func CreateComposer() {
	Composer = handler.NewStoreComposer()

	switch Flags.StorageBackend {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(Flags.MongoUri))
		if err != nil {
			stderr.Fatal().Err(err).Msg("Unable to connect to MongoDB")
		}
		if err := client.Ping(ctx, nil); err != nil {
			stderr.Fatal().Err(err).Msg("Unable to reach MongoDB deployment")
		}

		store := mongostore.NewWithPrefix(client.Database(Flags.MongoDatabase), Flags.MongoPrefix)
		store.ChunkSize = Flags.ChunkSize
		store.MaxSize = Flags.MaxSize
		store.ExpirationPeriod = Flags.ExpirationPeriod

		if err := store.EnsureIndexes(ctx); err != nil {
			stderr.Fatal().Err(err).Msg("Unable to create MongoDB indexes")
		}

		store.UseIn(Composer)
		ExpirationStore = store

		stdout.Info().
			Str("database", Flags.MongoDatabase).
			Str("prefix", Flags.MongoPrefix).
			Msg("Using MongoDB as storage backend")

	case "filesystem":
		dir, err := filepath.Abs(Flags.UploadDir)
		if err != nil {
			stderr.Fatal().Err(err).Msg("Unable to make upload directory path absolute")
		}
		if err := os.MkdirAll(dir, os.FileMode(0774)); err != nil {
			stderr.Fatal().Err(err).Msg("Unable to ensure upload directory exists")
		}

		store := filestore.New(dir)
		store.UseIn(Composer)

		stdout.Info().Str("dir", dir).Msg("Using directory as storage backend")

	default:
		stderr.Fatal().Str("storage", Flags.StorageBackend).Msg("Invalid value for -storage flag, must be mongo or filesystem")
	}

	switch Flags.LockBackend {
	case "memory":
		locker := memlocker.New()
		locker.UseIn(Composer)
	case "redis":
		locker, err := redislocker.New(Flags.RedisUri, redislocker.WithLogger(newHandlerLogger()))
		if err != nil {
			stderr.Fatal().Err(err).Msg("Unable to connect to Redis")
		}
		locker.UseIn(Composer)
		stdout.Info().Msg("Using Redis as lock backend")
	default:
		stderr.Fatal().Str("lock-backend", Flags.LockBackend).Msg("Invalid value for -lock-backend flag, must be memory or redis")
	}

	stdout.Info().Float64("maxSizeMB", float64(Flags.MaxSize)/1024/1024).Msg("Configured maximum upload size")
}
