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

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"portfolio_tracker/internal/app/service"
	"portfolio_tracker/internal/infrastructure/restapi"
	"portfolio_tracker/internal/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

type serveCmd struct {
	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API and the refresh scheduler" }
func (*serveCmd) Usage() string {
	return `serve [-port <port>]

  Starts the portfolio service: proxy and dashboard API, WebSocket snapshot
  push, and the background refresh scheduler.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "Listen port, overrides server.port")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.buildPipeline(ctx); err != nil {
		a.zap.Error("Failed to build portfolio pipeline", zap.Error(err))
		return subcommands.ExitFailure
	}

	metrics.MustRegisterMetrics()

	cfg := a.cfg
	scheduler := service.NewScheduler(a.portfolio, service.SchedulerOptions{
		Debounce:      time.Duration(cfg.Scheduler.DebounceMillis) * time.Millisecond,
		PriceInterval: time.Duration(cfg.Scheduler.PriceIntervalSeconds) * time.Second,
		FullInterval:  time.Duration(cfg.Scheduler.FullIntervalSeconds) * time.Second,
	}, a.log)
	// каждое изменение списка кошельков перезапускает задержку debounce
	a.wallets.OnChange(scheduler.WalletsChanged)

	hub := restapi.NewHub(a.portfolio, a.zap.Named("ws"))

	background := make(chan struct{}, 3)
	go func() { scheduler.Run(ctx); background <- struct{}{} }()
	go func() { a.portfolio.WatchPrices(ctx); background <- struct{}{} }()
	go func() { hub.Run(ctx); background <- struct{}{} }()

	router := restapi.SetupRouter(restapi.RouterOptions{
		Portfolio:   restapi.NewPortfolioHandler(a.portfolio, a.zap),
		Proxy:       restapi.NewProxyHandler(a.moralis, a.etherscan, a.priceCache, a.zap),
		Wallets:     restapi.NewWalletHandler(a.wallets),
		Alerts:      restapi.NewAlertHandler(a.alerts, a.portfolio),
		Hub:         hub,
		Logger:      a.zap,
		CORSOrigins: cfg.Server.CORSOrigins,
		Swagger:     cfg.Server.Swagger,
		SwaggerSpec: "./docs/swagger.yaml",
		Pprof:       cfg.Server.Pprof,
	})

	port := cfg.Server.Port
	if c.port != "" {
		port = c.port
	}
	if !strings.Contains(port, ":") {
		port = ":" + port
	}
	srv := &http.Server{
		Addr:              port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.zap.Info("Server starting", zap.String("addr", port), zap.Int("wallets", len(a.wallets.List())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	status := subcommands.ExitSuccess
	select {
	case <-ctx.Done():
		a.zap.Info("Shutting down server...")
	case err := <-serveErr:
		a.zap.Error("Failed to start server", zap.Error(err))
		status = subcommands.ExitFailure
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.zap.Error("Server forced to shutdown", zap.Error(err))
	}
	for i := 0; i < cap(background); i++ {
		<-background
	}
	a.zap.Info("Server exiting")
	return status
}
