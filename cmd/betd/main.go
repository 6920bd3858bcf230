// Command betd runs the Daredevil wager concierge: an HTTP and WebSocket
// daemon that turns free-form chat into staged, risk-gated, on-ledger
// wagers with shareable proof.
//
// Every external dependency is optional in development. With no
// environment set, betd starts with the regex-only extractor, an in-memory
// store and cache, the dry-run ledger and no event feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/phenomenon0/daredevil-core/pkg/concierge"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/commit"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/contest"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/dialogue"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/intent"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/metrics"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/risk"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/stream"
	"github.com/phenomenon0/daredevil-core/pkg/config"
	"github.com/phenomenon0/daredevil-core/pkg/events"
	"github.com/phenomenon0/daredevil-core/pkg/eth"
	"github.com/phenomenon0/daredevil-core/pkg/f1data"
	"github.com/phenomenon0/daredevil-core/pkg/ledger"
	"github.com/phenomenon0/daredevil-core/pkg/llm"
	"github.com/phenomenon0/daredevil-core/pkg/logger"
	"github.com/phenomenon0/daredevil-core/pkg/proof"
	"github.com/phenomenon0/daredevil-core/pkg/store"
)

var (
	flagHTTPAddr = flag.String("http", "", "listen address (overrides HTTP_ADDR)")
	flagDryRun   = flag.Bool("dry-run", false, "use the in-memory ledger even when an RPC URL is configured")
	flagProvider = flag.String("llm", "", "LLM provider override: openai, anthropic, ollama or none")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	if *flagHTTPAddr != "" {
		cfg.HTTPAddr = *flagHTTPAddr
	}
	if *flagProvider != "" {
		cfg.LLM.Provider = *flagProvider
	}
	if *flagDryRun {
		cfg.Ledger.RPCURL = ""
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "betd: logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	d, err := newDaemon(cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer d.close()

	go d.hub.Run()
	go d.pollGauges()

	server := d.server()
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	d.hub.BroadcastStatus(map[string]string{"state": "shutting_down"})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
}

// daemon owns every long-lived component so shutdown can release them in
// one place.
type daemon struct {
	cfg config.Config
	log *zap.Logger

	svc     *concierge.Service
	hub     *stream.Hub
	metrics *metrics.PipelineMetrics
	f1      *f1data.Client

	publisher *events.Publisher
	evm       *ledger.EVMLedger
	redis     *redis.Client
}

// newDaemon wires the pipeline. Unreachable optional backends (redis,
// kafka) degrade with a warning; explicitly configured core backends
// (minio, the EVM RPC) fail startup instead of silently downgrading.
func newDaemon(cfg config.Config, log *zap.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, log: log}
	d.metrics = metrics.Default()
	d.hub = stream.NewHub(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Sports data, cached in redis when one is reachable.
	var cache f1data.Cache = f1data.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, using in-memory cache",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			d.redis = rdb
			cache = f1data.NewRedisCache(rdb)
			log.Info("redis cache", zap.String("addr", cfg.Redis.Addr))
		}
	}

	f1opts := []f1data.ClientOption{
		f1data.WithRateLimit(cfg.F1.RateLimit, cfg.F1.Burst),
		f1data.WithCache(cache, cfg.Redis.TTL),
		f1data.WithLogger(log),
	}
	if cfg.F1.BaseURL != "" {
		f1opts = append(f1opts, f1data.WithBaseURL(cfg.F1.BaseURL))
	}
	d.f1 = f1data.NewClient(f1opts...)
	resolver := contest.NewResolver(f1data.NewCatalog(d.f1))

	// Intent extraction. Provider "none" keeps the deterministic parser only.
	var completer llm.Completer
	provider := strings.ToLower(cfg.LLM.Provider)
	if provider != "" && provider != "none" {
		llmCfg, err := llmConfig(provider, cfg.LLM)
		if err != nil {
			return nil, err
		}
		completer = llm.NewClient(llmCfg)
		log.Info("llm extraction enabled",
			zap.String("provider", provider), zap.String("model", llmCfg.Model))
	} else {
		log.Info("llm extraction disabled, regex fallback only")
	}
	extractor := intent.NewExtractor(completer,
		intent.WithTimeout(cfg.LLM.ExtractTimeout),
		intent.WithModelErrorHook(func(err error) {
			kind := "call_failed"
			if errors.Is(err, context.DeadlineExceeded) {
				kind = "timeout"
			}
			d.metrics.RecordLLMError(provider, kind)
		}),
	)

	engine := dialogue.NewEngine(dialogue.Config{
		MaxRetries:        cfg.Dialogue.MaxRetries,
		LargeBetThreshold: parseDecimal(cfg.Dialogue.LargeBetThreshold, dialogue.DefaultConfig().LargeBetThreshold, log),
	})
	gate := risk.NewGate(riskThresholds(cfg.Risk, log))

	// Storage. The minio store serves both metadata and proof blobs.
	var (
		meta  store.Store
		blobs store.BlobStore
	)
	if cfg.Minio.Endpoint != "" {
		ms, err := store.NewMinioStore(store.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio store: %w", err)
		}
		meta, blobs = ms, ms
		log.Info("minio store",
			zap.String("endpoint", cfg.Minio.Endpoint), zap.String("bucket", cfg.Minio.Bucket))
	} else {
		mem := store.NewMemoryStore()
		meta, blobs = mem, mem
		log.Info("in-memory store, wager records do not survive restarts")
	}

	// Ledger. An RPC URL selects the EVM engine; otherwise dry-run.
	var (
		lgr     ledger.Ledger
		signing string
	)
	if cfg.Ledger.RPCURL != "" {
		evm, err := ledger.NewEVMLedger(cfg.Ledger.RPCURL, cfg.Ledger.ContractAddr, cfg.Ledger.PrivateKey,
			ledger.WithChainID(cfg.Ledger.ChainID),
			ledger.WithGasLimit(cfg.Ledger.GasLimit),
			ledger.WithRateLimit(cfg.Ledger.RateLimit, cfg.Ledger.Burst),
			ledger.WithLogger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("evm ledger: %w", err)
		}
		wallet, err := eth.NewWallet(cfg.Ledger.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("signing wallet: %w", err)
		}
		d.evm = evm
		lgr = evm
		signing = wallet.AddressHex()
		log.Info("evm ledger",
			zap.String("rpc", cfg.Ledger.RPCURL), zap.Int64("chain_id", cfg.Ledger.ChainID))
	} else {
		wallet, err := eth.GenerateWallet()
		if err != nil {
			return nil, fmt.Errorf("dry-run wallet: %w", err)
		}
		lgr = ledger.NewDryRunLedger()
		signing = wallet.AddressHex()
		log.Info("dry-run ledger, wagers stay off-chain", zap.String("signer", signing))
	}

	committer := commit.NewOrchestrator(
		&commit.Config{LedgerTimeout: cfg.Ledger.WriteTimeout},
		meta,
		blobs,
		lgr,
		proof.NewGenerator(cfg.ShareBaseURL),
		log,
	)

	// Optional committed-wager event feed.
	if cfg.Kafka.Brokers != "" {
		d.publisher = events.NewPublisher(strings.Split(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic, log)
		log.Info("kafka publisher",
			zap.String("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	d.svc = concierge.NewService(
		&concierge.Config{SigningAddress: signing},
		extractor,
		engine,
		gate,
		resolver,
		committer,
		log,
	)
	d.svc.AttachHub(d.hub)
	d.svc.AttachMetrics(d.metrics)
	if d.publisher != nil {
		d.svc.AttachPublisher(d.publisher)
	}

	return d, nil
}

func (d *daemon) close() {
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.log.Warn("kafka close", zap.Error(err))
		}
	}
	if d.evm != nil {
		d.evm.Close()
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.log.Warn("redis close", zap.Error(err))
		}
	}
}

// pollGauges refreshes the gauges that have no natural event to hang off.
func (d *daemon) pollGauges() {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for range t.C {
		d.metrics.SetActiveSessions(d.svc.SessionCount())
		d.metrics.SetStreamClients(d.hub.ClientCount())
	}
}

// llmConfig maps a provider name onto its default endpoint and model, then
// applies the explicit overrides from the environment.
func llmConfig(provider string, env config.LLMConfig) (llm.Config, error) {
	var base llm.Config
	switch provider {
	case "openai", "openrouter", "deepseek":
		base = llm.DefaultOpenAIConfig
		base.Provider = provider
	case "anthropic":
		base = llm.DefaultAnthropicConfig
	case "ollama":
		base = llm.DefaultOllamaConfig
	default:
		return llm.Config{}, fmt.Errorf("unknown llm provider %q", provider)
	}
	if env.Model != "" {
		base.Model = env.Model
	}
	if env.BaseURL != "" {
		base.BaseURL = env.BaseURL
	}
	base.APIKey = env.APIKey
	if provider != "ollama" && base.APIKey == "" {
		return llm.Config{}, fmt.Errorf("llm provider %q needs LLM_API_KEY", provider)
	}
	return base, nil
}

// riskThresholds parses the configured tier boundaries, keeping the
// production defaults when a value does not parse.
func riskThresholds(rc config.RiskConfig, log *zap.Logger) risk.Thresholds {
	def := risk.DefaultThresholds()
	return risk.Thresholds{
		Moderate: parseDecimal(rc.ModerateThreshold, def.Moderate, log),
		High:     parseDecimal(rc.HighThreshold, def.High, log),
		Extreme:  parseDecimal(rc.ExtremeThreshold, def.Extreme, log),
	}
}

func parseDecimal(s string, def decimal.Decimal, log *zap.Logger) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Warn("bad decimal in config, using default",
			zap.String("value", s), zap.String("default", def.String()))
		return def
	}
	return d
}
