package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/basetips/adapters/chain"
	"github.com/layer-3/basetips/adapters/challenge"
	"github.com/layer-3/basetips/adapters/cookie"
	"github.com/layer-3/basetips/adapters/events"
	"github.com/layer-3/basetips/adapters/qr"
	"github.com/layer-3/basetips/adapters/store"
	"github.com/layer-3/basetips/config"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/internal/logging"
	"github.com/layer-3/basetips/internal/metrics"
	"github.com/layer-3/basetips/ports"
	"github.com/layer-3/basetips/service"
	transport "github.com/layer-3/basetips/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var configFile string
	v := config.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a config file")
	flags.String("listen-addr", ":9000", "address to listen on")
	flags.String("redis-url", "", "redis url for the nonce ledger and auth events; in-memory when empty")
	flags.String("rpc-url", "https://mainnet.base.org", "JSON-RPC endpoint used for the tip feed")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "json", "log format: json or console")

	for _, name := range []string{"listen-addr", "redis-url", "rpc-url", "log-level", "log-format"} {
		_ = v.BindPFlag(flagKey(name), flags.Lookup(name))
	}

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	sessions, err := cookie.NewStore(cookie.Options{
		Name:     cfg.SessionCookieName,
		Password: cfg.SessionPassword,
		MaxAge:   cfg.SessionTTL,
		Secure:   cfg.Production(),
	})
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}

	ledger, publisher, closeInfra, err := newInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeInfra()

	authService := service.NewAuthService(
		challenge.NewVerifier(cfg.AllowedDomains...),
		ledger,
		events.NewWatermillPublisher(publisher),
		service.AuthConfig{
			ConsumedNonceTTL:   cfg.SessionTTL,
			BurnNonceOnFailure: cfg.BurnNonceOnFailure,
		},
		logger,
		m,
	)

	price := decimal.NewFromFloat(cfg.EthUSDPrice)

	var feed ports.TipFeed
	backend, err := dialChain(ctx, cfg.RPCURL, rpcDialTimeout)
	if err != nil {
		logger.Warn().Err(err).Str("rpc", cfg.RPCURL).Msg("tip feed disabled, serving demo tips")
	} else {
		defer backend.Close()
		if backend.ChainID().Int64() != int64(cfg.ChainID) {
			logger.Warn().Int64("rpc", backend.ChainID().Int64()).Int("configured", cfg.ChainID).Msg("rpc chain id differs from configured chain")
		}
		feed = chain.NewFeed(backend, price, logger)
	}

	dashboard := service.NewDashboardService(feed, qr.NewEncoder(), func(address string) []core.Tip {
		return chain.MockTips(time.Now(), address, price)
	}, logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.SetupRouter(transport.RouterConfig{
		Auth:      authService,
		Dashboard: dashboard,
		Sessions:  sessions,
		Logger:    logger,
		Metrics:   m,
		Gatherer:  registry,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newInfra picks Redis for the nonce ledger and auth events when configured,
// and in-process implementations otherwise.
func newInfra(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ports.NonceLedger, message.Publisher, func(), error) {
	wmLogger := watermill.NewStdLoggerWithOut(logger, false, false)

	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, consumed nonces are kept in memory")
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		return store.NewMemoryStore(), pubSub, func() { _ = pubSub.Close() }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to reach Redis: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}

	closeFn := func() {
		_ = publisher.Close()
		_ = redisClient.Close()
	}
	return store.NewRedisStore(redisClient), publisher, closeFn, nil
}

// rpcDialTimeout bounds startup against an unreachable RPC node
const rpcDialTimeout = 10 * time.Second

func dialChain(ctx context.Context, rpcURL string, timeout time.Duration) (*chain.EthBackend, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chain.Dial(dialCtx, rpcURL)
}
