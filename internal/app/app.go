// Package app wires the stock finder services from configuration. Both the
// API process and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stock-finder/internal/catalog"
	"stock-finder/internal/config"
	"stock-finder/internal/directory"
	"stock-finder/internal/geo"
	"stock-finder/internal/orchestrator"
	"stock-finder/internal/summarizer"
	"stock-finder/internal/telephony"
	"stock-finder/internal/webstock"
	"stock-finder/pkg/utils"
)

const (
	redisBatchesKey   = "stock-finder:batches"
	redisDirectoryKey = "stock-finder:directory"
	// batchSlotTTL outlives the longest batch a crashed process could leave behind.
	batchSlotTTL     = 2 * time.Hour
	directorySnapTTL = 24 * time.Hour
)

type App struct {
	Config    config.Config
	Catalog   *catalog.Catalog
	Scraper   *directory.Scraper
	Directory *directory.Cache
	Geo       *geo.Filter
	Websites  *webstock.Checker
	Calls     *orchestrator.Service

	// Redis is nil unless REDIS_HOST is set.
	Redis *redis.Client
}

type Options struct {
	// BaseContext parents background batches; cancel it on shutdown.
	BaseContext context.Context
	// LocalOnly skips redis even when configured.
	LocalOnly bool
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Catalog: cat}

	if cfg.RedisEnabled() && !opts.LocalOnly {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		a.Redis = rdb
	}

	a.Scraper = directory.NewScraper(directory.ScraperOptions{})
	var store directory.Store = directory.NewFileStore(cfg.Directory.CacheFile)
	if a.Redis != nil {
		store = directory.NewRedisStore(a.Redis, redisDirectoryKey, directorySnapTTL)
	}
	a.Directory = directory.NewCache(directory.CacheOptions{Store: store, Loader: a.Scraper})

	geocoder, err := geo.NewHTTPGeocoder(geo.HTTPGeocoderOptions{})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Geo = geo.NewFilter(geocoder)

	a.Websites = webstock.NewChecker(webstock.Options{})

	var provider telephony.VoiceProvider
	if cfg.Bland.APIKey != "" {
		p, err := telephony.NewBlandProvider(cfg.Bland.APIKey, telephony.BlandOptions{BaseURL: cfg.Bland.BaseURL})
		if err != nil {
			a.Close()
			return nil, err
		}
		provider = p
	}

	var sum summarizer.Summarizer
	if cfg.Anthropic.APIKey != "" {
		s, err := summarizer.NewAnthropicClient(cfg.Anthropic.APIKey, summarizer.AnthropicOptions{Model: cfg.Anthropic.Model})
		if err != nil {
			a.Close()
			return nil, err
		}
		sum = s
	}

	var limiter orchestrator.Limiter = orchestrator.NewLocalLimiter(cfg.Calls.MaxConcurrentBatches)
	if a.Redis != nil {
		limiter = orchestrator.NewRedisLimiter(a.Redis, redisBatchesKey, cfg.Calls.MaxConcurrentBatches, batchSlotTTL)
	}

	a.Calls = orchestrator.NewService(nil, DialerFactory(provider, cfg.Bland), orchestrator.Options{
		Summarizer:  sum,
		Limiter:     limiter,
		Websites:    a.Websites,
		BaseContext: opts.BaseContext,
	})
	return a, nil
}

// DialerFactory returns a factory that scripts one driver per product.
// A nil provider yields call_failed results for every call.
func DialerFactory(provider telephony.VoiceProvider, bland config.BlandConfig) orchestrator.DialerFactory {
	defaults := telephony.ScriptDefaults{VoiceID: bland.Voice, MaxDurationSecs: bland.MaxDuration}
	driver := telephony.NewDriver(provider, telephony.Script{}, telephony.DriverOptions{})
	return func(p catalog.Product) orchestrator.Dialer {
		return driver.WithScript(telephony.NewScript(p, defaults))
	}
}

// BatchOptions returns the configured batch settings for product p.
func (a *App) BatchOptions(p catalog.Product) orchestrator.BatchOptions {
	return orchestrator.BatchOptions{
		Delay:           a.Config.Calls.Delay,
		Product:         p,
		WebsiteFallback: a.Config.Calls.WebsiteFallback,
	}
}

func (a *App) Close() error {
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}
