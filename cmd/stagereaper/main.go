// Command stagereaper sweeps stale staged chunks out of a cloudstage
// storage root. It deletes staging objects whose last modification is at
// least max-age in the past, either once or repeatedly on an interval.
//
// Configuration comes from flags, with environment variables (optionally
// loaded from a .env file) supplying the defaults:
//
//	stagereaper -driver minio -endpoint localhost -port 9000 -bucket blobs -max-age 72h
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	_ "github.com/joho/godotenv/autoload"

	"github.com/calyptra-io/cloudstage"
	"github.com/calyptra-io/cloudstage/driver"
	miniodriver "github.com/calyptra-io/cloudstage/driver/minio"
	s3driver "github.com/calyptra-io/cloudstage/driver/s3"
)

type config struct {
	driverName string
	bucket     string
	rootPath   string
	endpoint   string
	port       int
	region     string
	accessKey  string
	secretKey  string
	secure     bool
	maxAge     time.Duration
	interval   time.Duration
	dryRun     bool
	debug      bool
}

func main() {
	logger := log.NewLogger()

	cfg, err := parseConfig()
	if err != nil {
		logger.Errorf("Configuration error: %s", err)
		os.Exit(1)
	}
	logger.EnableDebugLog(cfg.debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		logger.Errorf("Failed to initialize %s driver: %s", cfg.driverName, err)
		os.Exit(1)
	}

	store, err := cloudstage.New(backend, cfg.rootPath, cloudstage.WithLogger(logger))
	if err != nil {
		logger.Errorf("Failed to initialize store: %s", err)
		os.Exit(1)
	}

	if err := run(ctx, store, cfg, logger); err != nil {
		logger.Errorf("Sweep failed: %s", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store *cloudstage.Store, cfg *config, logger log.Logger) error {
	sweep := func() error {
		if cfg.dryRun {
			return dryRun(ctx, store, cfg.maxAge, logger)
		}
		_, err := store.CleanPartialUploads(ctx, cfg.maxAge)
		return err
	}

	if cfg.interval <= 0 {
		return sweep()
	}

	logger.Infof("Sweeping every %s (max age %s)", cfg.interval, cfg.maxAge)
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	for {
		if err := sweep(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			logger.Infof("Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// dryRun reports the staging objects a real sweep would delete. It walks
// the same prefix as CleanPartialUploads but leaves every object in place.
func dryRun(ctx context.Context, store *cloudstage.Store, maxAge time.Duration, logger log.Logger) error {
	cutoff := time.Now().Add(-maxAge)

	var stale int
	var staleBytes int64
	for entry := range store.List(ctx, "uploads") {
		if entry.Err != nil {
			return entry.Err
		}
		if entry.LastModified.After(cutoff) {
			continue
		}
		stale++
		staleBytes += entry.Size
		logger.Infof("Would delete %s (%s)", entry.Key, units.HumanSize(float64(entry.Size)))
	}

	logger.Infof("Dry run: %d stale staging objects holding %s", stale, units.HumanSizeWithPrecision(float64(staleBytes), 3))
	return nil
}

func buildBackend(ctx context.Context, cfg *config) (driver.Backend, error) {
	switch cfg.driverName {
	case "s3":
		opts := []s3driver.Option{s3driver.WithSecure(cfg.secure)}
		if cfg.region != "" {
			opts = append(opts, s3driver.WithRegion(cfg.region))
		}
		if cfg.accessKey != "" {
			opts = append(opts, s3driver.WithStaticCredentials(cfg.accessKey, cfg.secretKey))
		}
		if cfg.endpoint != "" {
			opts = append(opts, s3driver.WithEndpoint(cfg.endpoint))
		}
		if cfg.port > 0 {
			opts = append(opts, s3driver.WithPort(cfg.port))
		}
		return s3driver.New(ctx, cfg.bucket, opts...)

	case "minio":
		if cfg.endpoint == "" {
			return nil, fmt.Errorf("the minio driver requires an endpoint")
		}
		endpoint := cfg.endpoint
		if cfg.port > 0 {
			endpoint = fmt.Sprintf("%s:%d", cfg.endpoint, cfg.port)
		}
		opts := []miniodriver.Option{
			miniodriver.WithCredentials(cfg.accessKey, cfg.secretKey),
			miniodriver.WithSecure(cfg.secure),
		}
		if cfg.region != "" {
			opts = append(opts, miniodriver.WithRegion(cfg.region))
		}
		return miniodriver.New(endpoint, cfg.bucket, opts...)

	default:
		return nil, fmt.Errorf("unknown driver %q (want s3 or minio)", cfg.driverName)
	}
}

func parseConfig() (*config, error) {
	cfg := &config{}

	flag.StringVar(&cfg.driverName, "driver", getEnv("STAGEREAPER_DRIVER", "s3"), "storage driver: s3 or minio")
	flag.StringVar(&cfg.bucket, "bucket", os.Getenv("STAGEREAPER_BUCKET"), "bucket holding the storage root")
	flag.StringVar(&cfg.rootPath, "root", getEnv("STAGEREAPER_ROOT", "/"), "storage root path inside the bucket")
	flag.StringVar(&cfg.endpoint, "endpoint", os.Getenv("STAGEREAPER_ENDPOINT"), "custom endpoint hostname")
	flag.IntVar(&cfg.port, "port", getEnvInt("STAGEREAPER_PORT", 0), "custom endpoint port")
	flag.StringVar(&cfg.region, "region", os.Getenv("STAGEREAPER_REGION"), "bucket region")
	flag.StringVar(&cfg.accessKey, "access-key", os.Getenv("STAGEREAPER_ACCESS_KEY"), "static access key id")
	flag.StringVar(&cfg.secretKey, "secret-key", os.Getenv("STAGEREAPER_SECRET_KEY"), "static secret access key")
	flag.BoolVar(&cfg.secure, "secure", getEnvBool("STAGEREAPER_SECURE", true), "use TLS when talking to a custom endpoint")
	maxAge := flag.String("max-age", getEnv("STAGEREAPER_MAX_AGE", "168h"), "delete staged chunks at least this old")
	interval := flag.String("interval", getEnv("STAGEREAPER_INTERVAL", "0"), "sweep repeatedly at this interval, 0 sweeps once")
	flag.BoolVar(&cfg.dryRun, "dry-run", getEnvBool("STAGEREAPER_DRY_RUN", false), "log stale objects without deleting them")
	flag.BoolVar(&cfg.debug, "debug", getEnvBool("STAGEREAPER_DEBUG", false), "enable debug logging")
	flag.Parse()

	if cfg.bucket == "" {
		return nil, fmt.Errorf("a bucket is required (set -bucket or STAGEREAPER_BUCKET)")
	}

	var err error
	cfg.maxAge, err = time.ParseDuration(*maxAge)
	if err != nil {
		return nil, fmt.Errorf("invalid max-age %q: %w", *maxAge, err)
	}
	if cfg.maxAge < 0 {
		return nil, fmt.Errorf("max-age cannot be negative")
	}

	cfg.interval, err = time.ParseDuration(*interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval %q: %w", *interval, err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
