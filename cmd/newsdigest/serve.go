package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LJTian/newsdigest/internal/api"
	"github.com/LJTian/newsdigest/internal/collector"
	"github.com/LJTian/newsdigest/internal/scheduler"
	"github.com/LJTian/newsdigest/internal/storage"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the periodic collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L()
		p, err := buildPipeline(cfg, log)
		if err != nil {
			return err
		}

		store, err := openStore(ctx, cfg, p.Sources(), log)
		if err != nil {
			return err
		}
		defer store.Close()

		sinks := []storage.Sink{storage.NewFileSink(cfg.Store.OutputPath), store}
		s, err := scheduler.New(cfg.Schedule.Cron, p, sinks, log)
		if err != nil {
			return eris.Wrap(err, "init scheduler")
		}
		s.Start()
		defer s.Stop()

		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		sessOpts, err := cfg.SessionOptions(log)
		if err != nil {
			return err
		}
		server := api.NewServer(store, s, log).WithExtractor(collector.NewExtractor(sessOpts))
		r := api.NewEngine(server, cfg.App.BasicUser, cfg.App.BasicPass)

		port := servePort
		if port == "" {
			port = cfg.App.Port
		}
		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info("starting api server", zap.String("addr", srv.Addr), zap.String("cron", cfg.Schedule.Cron))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
