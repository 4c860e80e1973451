package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/securefront/compliance-scheduler/internal/http"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand runs the scheduler loop and, when enabled, the admin API
// until SIGINT or SIGTERM.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler loop and admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var srv *http.Server
			if a.cfg.HTTPEnabled {
				srv = &http.Server{
					Addr:              ":" + a.cfg.Port,
					Handler:           httpapi.Router(a.cfg, a.store, a.sched, a.logger),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					a.logger.Info().Str("port", a.cfg.Port).Msg("server started")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error().Err(err).Msg("server error")
						stop()
					}
				}()
			}

			runErr := a.sched.Run(ctx)

			if srv != nil {
				ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = srv.Shutdown(ctxShutdown)
				a.logger.Info().Msg("server stopped")
			}
			return runErr
		},
	}
}
