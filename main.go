package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"timeplan/cache"
	"timeplan/config"
	"timeplan/logger"
	"timeplan/scraper"
	"timeplan/site"
)

type args struct {
	Config   string `arg:"-c,--config" help:"path to a YAML config file"`
	Port     int    `arg:"-p,--port" help:"port to listen on (overrides PORT)"`
	NoWarmup bool   `arg:"--no-warmup" help:"skip fetching semesters and courses at startup"`
}

func (args) Description() string {
	return "timeplan serves the NTNU timetable as a cached REST API and iCalendar feeds."
}

func main() {
	var a args
	arg.MustParse(&a)

	cfg, err := config.Load(a.Config)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if a.Port != 0 {
		cfg.Server.Port = a.Port
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, !a.NoWarmup, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, warm bool, zl *zap.Logger) error {
	source := scraper.NewSource(scraper.SourceConfig{
		BaseURL:   cfg.Source.BaseURL,
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.Source.Timeout,
	}, nil, zl.Named("scraper"))

	caches := newCaches(cfg.Cache, source, zl.Named("cache"))
	if warm {
		warmup(caches, zl)
	}

	server := site.NewServer(*cfg, caches, zl.Named("site"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- server.Start(cfg.Server.Port) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down: %w", err)
	}
	return <-errc
}

// timetableSource is what the caches fetch through; *scraper.Source in
// production.
type timetableSource interface {
	FetchSemesters(ctx context.Context) (scraper.SemestersWithCurrent, error)
	FetchCourses(ctx context.Context) (map[string]scraper.Course, error)
	FetchActivities(ctx context.Context, id scraper.CourseIdentifier) ([]scraper.Activity, error)
}

// newCaches wires the three caches to source. Extra options are applied to
// the activities cache after the configured ones.
func newCaches(cfg config.CacheConfig, source timetableSource, zl *zap.Logger, activityOpts ...cache.Option[scraper.CourseIdentifier, []scraper.Activity]) site.Caches {
	opts := []cache.Option[scraper.CourseIdentifier, []scraper.Activity]{
		cache.WithLogger[scraper.CourseIdentifier, []scraper.Activity](zl),
		cache.WithMaxEntries[scraper.CourseIdentifier, []scraper.Activity](cfg.ActivitiesMaxEntries),
		cache.WithRetry[scraper.CourseIdentifier, []scraper.Activity](cache.RetryPolicy[[]scraper.Activity]{
			Attempts: cfg.ActivitiesRetryAttempts,
			Delay:    cfg.ActivitiesRetryDelay,
			Accept:   func(a []scraper.Activity) bool { return len(a) > 0 },
			Fallback: func() []scraper.Activity { return []scraper.Activity{} },
		}),
	}

	return site.Caches{
		Semesters: cache.New[site.NoKey, scraper.SemestersWithCurrent]("semesters", cfg.SemestersTTL,
			func(ctx context.Context, _ site.NoKey) (scraper.SemestersWithCurrent, error) {
				return source.FetchSemesters(ctx)
			},
			cache.WithLogger[site.NoKey, scraper.SemestersWithCurrent](zl),
		),
		Courses: cache.New[site.NoKey, map[string]scraper.Course]("courses", cfg.CoursesTTL,
			func(ctx context.Context, _ site.NoKey) (map[string]scraper.Course, error) {
				return source.FetchCourses(ctx)
			},
			cache.WithLogger[site.NoKey, map[string]scraper.Course](zl),
		),
		Activities: cache.New[scraper.CourseIdentifier, []scraper.Activity]("activities", cfg.ActivitiesTTL, source.FetchActivities,
			append(opts, activityOpts...)...,
		),
	}
}

// warmup fills the semesters and courses caches so the first visitors do not
// wait for the scrape. Failures are logged and retried on first use.
func warmup(caches site.Caches, zl *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	maxRetries := 3
	for retries := 0; retries < maxRetries; retries++ {
		_, errS := caches.Semesters.GetOrFetch(ctx, site.NoKey{})
		_, errC := caches.Courses.GetOrFetch(ctx, site.NoKey{})
		err := errors.Join(errS, errC)
		if err == nil {
			zl.Info("caches warmed up", zap.Int("attempt", retries+1))
			return
		}
		zl.Warn("warmup failed", zap.Int("attempt", retries+1), zap.Error(err))
		if retries == maxRetries-1 {
			return
		}

		if err := cache.SleepContext(ctx, 5*time.Second); err != nil {
			return
		}
	}
}
