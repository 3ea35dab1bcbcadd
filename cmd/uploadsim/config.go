package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"upload-throttle/pipeline/throttle"
)

type config struct {
	logLevel string

	paths      []string
	files      int
	fileSizeMB float64
	chunkSize  int

	throttle throttle.Config

	callLatency time.Duration
	waitLatency time.Duration
	failureRate float64
	maxAttempts int
	baseDelay   time.Duration
	callRPS     float64
	callBurst   int

	statsEnabled       bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackSessions bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")

	if v := strings.TrimSpace(os.Getenv("PATHS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.paths = append(cfg.paths, p)
			}
		}
	}
	cfg.files = getenvIntDefault("FILES", 200)
	cfg.fileSizeMB = getenvFloatDefault("FILE_SIZE_MB", 4)
	cfg.chunkSize = getenvIntDefault("CHUNK_SIZE", 1_900_000)

	def := throttle.DefaultConfig()
	cfg.throttle = throttle.Config{
		FileLoadMB:       int64(getenvIntDefault("FILE_LOAD_MB", int(def.FileLoadMB))),
		CreateChunk:      int64(getenvIntDefault("CREATE_CHUNK_MAX", int(def.CreateChunk))),
		CreateChunkCalls: int64(getenvIntDefault("CREATE_CHUNK_CALLS_MAX", int(def.CreateChunkCalls))),
		CreateChunkWaits: int64(getenvIntDefault("CREATE_CHUNK_WAITS_MAX", int(def.CreateChunkWaits))),
		AcquireTimeout:   getenvDurationDefault("ACQUIRE_TIMEOUT", 0),
	}

	cfg.callLatency = getenvDurationDefault("CALL_LATENCY", 5*time.Millisecond)
	cfg.waitLatency = getenvDurationDefault("WAIT_LATENCY", 20*time.Millisecond)
	cfg.failureRate = getenvFloatDefault("FAILURE_RATE", 0.2)
	cfg.maxAttempts = getenvIntDefault("MAX_ATTEMPTS", 10)
	cfg.baseDelay = getenvDurationDefault("RETRY_BASE_DELAY", 100*time.Millisecond)
	// CALL_RPS=0 desliga o pacer; só os gates limitam.
	cfg.callRPS = getenvFloatDefault("CALL_RPS", 0)
	cfg.callBurst = getenvIntDefault("CALL_BURST", 25)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "throttle:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackSessions = getenvBoolDefault("STATS_TRACK_SESSIONS", false)

	if cfg.statsEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	if err := cfg.throttle.Validate(); err != nil {
		return config{}, err
	}
	if len(cfg.paths) == 0 && cfg.files <= 0 {
		return config{}, errors.New("FILES must be > 0 when PATHS is empty")
	}
	if cfg.fileSizeMB < 0 {
		return config{}, errors.New("FILE_SIZE_MB must be >= 0")
	}
	if cfg.chunkSize <= 0 {
		return config{}, errors.New("CHUNK_SIZE must be > 0")
	}
	if cfg.failureRate < 0 || cfg.failureRate > 1 {
		return config{}, errors.New("FAILURE_RATE must be within [0, 1]")
	}
	if cfg.maxAttempts <= 0 {
		return config{}, errors.New("MAX_ATTEMPTS must be > 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
