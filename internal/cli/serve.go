package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ashwinyue/qa-grader/internal/handler"
	"github.com/ashwinyue/qa-grader/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the inference and review HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			gin.SetMode(e.cfg.Server.Mode)

			svc, i, err := openServices(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer i.Close()

			r := router.SetupRouter(handler.NewHandlers(svc), e.cfg.Auth.JWTSecret, e.logger)

			srv := &http.Server{
				Addr:         e.cfg.Server.GetAddr(),
				Handler:      r,
				ReadTimeout:  time.Duration(e.cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout: time.Duration(e.cfg.Server.WriteTimeout) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				e.logger.Info("server starting", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			e.logger.Info("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			e.logger.Info("server exited")
			return nil
		},
	}
}
