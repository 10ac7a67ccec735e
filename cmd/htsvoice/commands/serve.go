package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the synthesis server",
	Long: `Serve every voice of the context over HTTP.

Endpoints:
  GET  /v1/voices       list voice names
  POST /v1/synthesize   request body in, audio out (?encoding=l16|mulaw|alaw&rate=16000)
  GET  /v1/stream       WebSocket: one JSON request per text message, audio
                        as binary messages, then a JSON "done" or "error" event

Example:
  htsvoice serve --addr :8080
  curl -d @request.json 'localhost:8080/v1/synthesize?rate=16000' > out.raw`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		maxMessage, _ := cmd.Flags().GetInt64("max-message")

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.loadVoices(cmd.Context()); err != nil {
			return err
		}
		srv := server.New(e.registry,
			server.WithLogger(e.logger),
			server.WithDefaultVoice(e.ctx.DefaultVoice),
			server.WithMaxMessageSize(maxMessage),
		)
		hs := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		errCh := make(chan error, 1)
		go func() {
			slog.Info("serving", "addr", addr, "voices", len(e.registry.Names()))
			errCh <- hs.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(ctx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Int64("max-message", 1<<20, "maximum request size in bytes")
}
