// Command goredis runs the server: it parses CLI flags, bootstraps the
// keyspace from an RDB snapshot if one is configured, starts the TCP
// listener, and — if --replicaof names a master — drives the replica
// handshake and replay loop alongside it. Adapted from the teacher's
// app/main.go (flag parsing, LoadRdb, then Start), generalized to also
// cover replica mode and graceful shutdown via errgroup.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/flonle/goredis/internal/config"
	"github.com/flonle/goredis/internal/rdb"
	"github.com/flonle/goredis/internal/redisd"
	"github.com/flonle/goredis/internal/replication"
	"github.com/flonle/goredis/internal/store"
)

func main() {
	log := buildLogger().Sugar()

	if err := run(log); err != nil {
		log.Errorw("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	keyspace := store.NewKeyspace()
	if err := bootstrapRDB(cfg, keyspace, log); err != nil {
		log.Warnw("RDB bootstrap failed, continuing with an empty keyspace", "error", err)
	}

	srv := redisd.New(cfg, keyspace, log)
	if err := srv.Listen(); err != nil {
		return err
	}
	log.Infow("listening", "addr", cfg.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Serve(gctx)
	})

	if cfg.IsReplica() {
		group.Go(func() error {
			return runReplica(gctx, cfg, srv, log)
		})
	}

	if err := group.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	log.Infow("shutdown complete")
	return nil
}

func bootstrapRDB(cfg config.Config, keyspace *store.Keyspace, log *zap.SugaredLogger) error {
	if cfg.Dir == "" || cfg.DBFilename == "" {
		return nil
	}
	path := cfg.Dir + "/" + cfg.DBFilename
	entries, err := rdb.Load(path, time.Now().UnixMilli())
	if errors.Is(err, rdb.ErrChecksumMismatch) {
		log.Warnw("RDB checksum mismatch, loading the entries read anyway", "path", path, "error", err)
	} else if err != nil {
		return err
	}
	for _, e := range entries {
		keyspace.SetEntry(e.Key, &store.Entry{
			Value:     store.Value{Kind: store.KindString, Str: e.Value},
			ExpiresAt: e.ExpiresAtMs,
		})
	}
	log.Infow("loaded RDB snapshot", "path", path, "keys", len(entries))
	return nil
}

// runReplica drives the replica handshake and then replays the master's
// command stream for as long as ctx is alive. A handshake or replay error
// is logged and the goroutine exits without reconnecting, matching the
// teacher's "log and continue" posture for non-fatal runtime errors
// elsewhere rather than treating it as fatal to the whole process.
func runReplica(ctx context.Context, cfg config.Config, srv *redisd.Server, log *zap.SugaredLogger) error {
	client, err := replication.Dial(cfg.ReplicaOf.Host, cfg.ReplicaOf.Port)
	if err != nil {
		log.Errorw("replica: could not connect to master", "error", err)
		return nil
	}
	defer client.Close()

	if err := client.Handshake(cfg.Port); err != nil {
		log.Errorw("replica: handshake failed", "error", err)
		return nil
	}
	log.Infow("replica: handshake complete", "master_replid", client.MasterReplID())
	srv.SetReplID(client.MasterReplID())
	srv.SetOffset(client.Offset())

	go func() {
		<-ctx.Done()
		client.Close()
	}()

	err = client.Replay(func(args []string) error {
		err := srv.ApplyReplicated(args)
		srv.SetOffset(client.Offset())
		return err
	})
	if err != nil && ctx.Err() == nil {
		log.Errorw("replica: replay loop ended", "error", err)
	}
	return nil
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.TimeKey = "ts"
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zap.Must(logConfig.Build())
}
