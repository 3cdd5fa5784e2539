package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/adapters"
	"github.com/example/meeting-tracker/internal/config"
	"github.com/example/meeting-tracker/internal/filestore"
	httptransport "github.com/example/meeting-tracker/internal/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger

	storage, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer a.closeStorage(storage)

	files, err := filestore.NewLocal(a.cfg.UploadDir, a.cfg.ScratchDir, logger)
	if err != nil {
		return err
	}

	sweeper, err := startScratchSweeper(a.cfg, files, logger)
	if err != nil {
		return err
	}
	defer func() { <-sweeper.Stop().Done() }()

	server := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           newHandler(a.cfg, adapters.NewServices(storage, files, a.cfg.PublicBaseURL, logger), logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", zap.Error(err))
		}
	}()

	logger.Info("meeting tracker API listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newHandler(cfg config.Config, services *adapters.Services, logger *zap.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Meetings:  httptransport.NewMeetingHandler(services.Meetings, logger),
		Documents: httptransport.NewDocumentHandler(services.Documents, logger),
		Attendees: httptransport.NewAttendeeHandler(services.Attendance, logger),
		Users:     httptransport.NewUserHandler(services.Users, logger),
		Locations: httptransport.NewLocationHandler(services.Locations, logger),
		Logger:    logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recover(logger),
			httptransport.LimitBody(cfg.MaxUploadBytes),
		},
	})
}

// startScratchSweeper removes scratch files orphaned by crashed bundle
// builds on the configured schedule. An empty schedule disables it.
func startScratchSweeper(cfg config.Config, files *filestore.Local, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if cfg.ScratchSweepSchedule != "" {
		_, err := c.AddFunc(cfg.ScratchSweepSchedule, func() {
			removed, err := files.SweepScratch(cfg.ScratchMaxAge)
			if err != nil {
				logger.Warn("scratch sweep failed", zap.Error(err))
				return
			}
			if removed > 0 {
				logger.Info("scratch files swept", zap.Int("removed", removed))
			}
		})
		if err != nil {
			return nil, err
		}
	}
	c.Start()
	return c, nil
}
