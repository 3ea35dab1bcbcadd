package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"upload-throttle/internal/logging"
	"upload-throttle/internal/simremote"
	"upload-throttle/pipeline/throttle"
	"upload-throttle/pipeline/throttle/application"
	"upload-throttle/pipeline/throttle/domain"
	"upload-throttle/pipeline/throttle/infra"
	"upload-throttle/pipeline/upload"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New("uploadsim", cfg.logLevel)

	mem := infra.NewMemoryStatsStore()
	stats := multiStats{mem}
	if cfg.statsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Error("redis stats ping error", slog.Any("err", err))
			os.Exit(1)
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackSessions(cfg.statsTrackSessions),
		))
	}

	set, err := throttle.New(cfg.throttle, throttle.WithStats(stats))
	if err != nil {
		log.Error("throttle error", slog.Any("err", err))
		os.Exit(1)
	}

	files, loader, err := workload(cfg)
	if err != nil {
		log.Error("workload error", slog.Any("err", err))
		os.Exit(1)
	}

	remote := simremote.New(simremote.Options{
		CallLatency: cfg.callLatency,
		WaitLatency: cfg.waitLatency,
		FailureRate: cfg.failureRate,
	})
	pacer := infra.NewRatePacer(cfg.callRPS, cfg.callBurst)

	u := upload.New(set, loader, remote, upload.Options{
		ChunkSize: cfg.chunkSize,
		Backoff: application.Backoff{
			MaxAttempts: cfg.maxAttempts,
			BaseDelay:   cfg.baseDelay,
			MaxDelay:    30 * time.Second,
			Jitter:      0.25,
		},
		Pacer:  pacer,
		Logger: log,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("uploadsim starting",
		slog.String("session", set.Session()),
		slog.Int("files", len(files)),
		slog.Int("chunkSize", cfg.chunkSize),
	)
	log.Info("gates",
		slog.Int64("fileLoadMB", cfg.throttle.FileLoadMB),
		slog.Int64("createChunk", cfg.throttle.CreateChunk),
		slog.Int64("calls", cfg.throttle.CreateChunkCalls),
		slog.Int64("waits", cfg.throttle.CreateChunkWaits),
		slog.Duration("acquireTimeout", cfg.throttle.AcquireTimeout),
	)
	log.Info("remote",
		slog.Duration("callLatency", cfg.callLatency),
		slog.Duration("waitLatency", cfg.waitLatency),
		slog.Float64("failureRate", cfg.failureRate),
		slog.Int("maxAttempts", cfg.maxAttempts),
		slog.Float64("callRPS", pacer.RPS()),
		slog.Int("callBurst", pacer.Burst()),
	)
	log.Info("stats", slog.Bool("redis", cfg.statsEnabled), slog.String("redisAddr", cfg.statsRedisAddr), slog.String("bucket", cfg.statsBucket))

	results, err := u.Upload(ctx, files)
	if err != nil {
		log.Error("upload failed", slog.Any("err", err))
		summarize(log, set, mem)
		os.Exit(1)
	}

	chunks := 0
	for _, r := range results {
		chunks += len(r.Chunks)
	}
	log.Info("result",
		slog.Int("files", len(results)),
		slog.Int("chunks", chunks),
		slog.Int64("calls", remote.Calls()),
		slog.Int64("transientFailures", remote.Failures()),
	)
	summarize(log, set, mem)
}

func summarize(log *slog.Logger, set *throttle.Set, mem *infra.MemoryStatsStore) {
	for _, stage := range domain.Stages {
		g := set.Gate(stage)
		c := mem.Stage(stage)
		log.Info("stage",
			slog.String("stage", string(stage)),
			slog.Int64("capacity", g.Capacity()),
			slog.Int64("peak", g.Peak()),
			slog.Int64("acquired", c.Acquired),
			slog.Int64("timedOut", c.TimedOut),
			slog.Int64("canceled", c.Canceled),
			slog.Duration("totalWait", c.TotalWait),
		)
	}
}

func workload(cfg config) ([]upload.File, upload.Loader, error) {
	if len(cfg.paths) > 0 {
		files, err := upload.Stat(cfg.paths...)
		if err != nil {
			return nil, nil, err
		}
		return files, upload.FSLoader{}, nil
	}

	size := int64(cfg.fileSizeMB * throttle.BytesPerMB)
	files := make([]upload.File, 0, cfg.files)
	for i := 0; i < cfg.files; i++ {
		files = append(files, upload.File{Path: fmt.Sprintf("synthetic/%04d.bin", i), Size: size})
	}
	return files, syntheticLoader{}, nil
}

// syntheticLoader gera f.Size bytes em vez de ler do disco.
type syntheticLoader struct{}

func (syntheticLoader) Load(ctx context.Context, f upload.File) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := make([]byte, f.Size)
	for i := range b {
		b[i] = byte(i)
	}
	return b, nil
}

// multiStats repassa cada evento para todos os stores (best-effort).
type multiStats []domain.StatsStore

func (m multiStats) Record(ctx context.Context, ev domain.GateEvent) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
