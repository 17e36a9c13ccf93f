// Command cycle-service is the process entrypoint: it wires every
// component of the decision core together and serves the HTTP surface
// Cloud Scheduler invokes every five minutes, grounded on the teacher's
// api/tactics.go gin route-registration shape (see DESIGN.md).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao-namake/bitbank-decision-core/internal/admin"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/cycle"
	"github.com/nao-namake/bitbank-decision-core/internal/exchange"
	"github.com/nao-namake/bitbank-decision-core/internal/logger"
	"github.com/nao-namake/bitbank-decision-core/internal/metrics"
	"github.com/nao-namake/bitbank-decision-core/internal/notify"
	"github.com/nao-namake/bitbank-decision-core/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to JSON configuration file")
	webhookURL := flag.String("webhook", "", "critical-alert webhook URL")
	flag.Parse()

	log := logger.Named("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("configuration load failed: %v", err)
		os.Exit(1)
	}

	metrics.Init()

	ledger, err := store.OpenLedger(cfg.SQLitePath)
	if err != nil {
		log.Errorf("ledger open failed: %v", err)
		os.Exit(1)
	}
	defer ledger.Close()

	notifier := notify.NewNotifier(*webhookURL)

	var facade exchange.Facade = exchange.NewBitbankClient(
		cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Execution.OrderTimeout,
	)

	mgr := cycle.New(cfg, facade, ledger, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.StartBackgroundLoops(ctx)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	schedulerVerifier := admin.NewSchedulerVerifier(cfg.Server.SchedulerAudience, os.Getenv("SCHEDULER_JWT_SECRET"))
	totpVerifier := admin.NewTOTPVerifier(cfg.Server.AdminTOTPSecret)
	adminServer := admin.NewServer(schedulerVerifier, totpVerifier, mgr, func(c *gin.Context) {
		outcome := mgr.RunOnce(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"cycle_id": outcome.CycleID,
			"regime":   outcome.Regime,
			"action":   outcome.Action,
			"approved": outcome.Approved,
			"executed": outcome.Executed,
		})
	})
	adminServer.Register(r)

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server error: %v", err)
		}
	}()
	log.Infof("cycle-service listening on %s (mode=%s)", cfg.Server.ListenAddr, cfg.Mode)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Infof("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
