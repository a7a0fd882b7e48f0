package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/medzoom/internal/config"
	"github.com/BioHazard786/medzoom/internal/server"
	"github.com/BioHazard786/medzoom/internal/session"
	"github.com/BioHazard786/medzoom/internal/ui"
	"github.com/BioHazard786/medzoom/internal/version"
	"github.com/BioHazard786/medzoom/internal/wire"
)

var (
	flagAddr            string
	flagAllowedOrigins  []string
	flagSendBuffer      int
	flagMaxMessageSize  int64
	flagChatInterval    time.Duration
	flagShutdownTimeout time.Duration
	flagEnvFile         string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Long: `Run the signaling server. Clients connect over a websocket at /ws and may
request the "msgpack" subprotocol for binary frames; JSON is the default.

Examples:
  medzoom serve
  medzoom serve --addr :8080 --allowed-origin https://meet.example.com
  PORT=8080 CHAT_INTERVAL=1s medzoom serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(flagEnvFile); err != nil {
			return err
		}
		cfg, err := config.Load(config.Options{
			Addr:            flagAddr,
			AllowedOrigins:  flagAllowedOrigins,
			SendBuffer:      flagSendBuffer,
			MaxMessageSize:  flagMaxMessageSize,
			ChatInterval:    flagChatInterval,
			ShutdownTimeout: flagShutdownTimeout,
		})
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	coord := session.New(session.WithChatInterval(cfg.ChatInterval))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewRouter(coord, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	ui.ServerInfo{
		Version:         version.Version,
		Addr:            cfg.Addr,
		Codecs:          wire.Subprotocols(),
		AllowedOrigins:  cfg.AllowedOrigins,
		ChatInterval:    cfg.ChatInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}.Render()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("signaling server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// http.Server.Shutdown does not track hijacked websocket connections;
	// the coordinator closes those itself.
	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"coordinator": func(ctx context.Context) error {
			coord.Shutdown()
			return nil
		},
	})

	select {
	case err := <-errCh:
		ui.PrintWarning("Listener failed, closing open connections")
		abort(srv, coord)
		return fmt.Errorf("server: %w", err)
	case code := <-wait:
		logStopped(coord, code)
		if code != 0 {
			return fmt.Errorf("shutdown finished with exit code %d", code)
		}
		ui.PrintSuccess("Server stopped")
		return nil
	}
}

// abort runs the shutdown operations itself when Serve fails before any
// signal arrives.
func abort(srv *http.Server, coord *session.Coordinator) {
	if err := srv.Close(); err != nil {
		slog.Warn("close http server", "error", err)
	}
	coord.Shutdown()
	logStopped(coord, 1)
}

func logStopped(coord *session.Coordinator, code int) {
	rooms, members, clients := coord.Stats()
	slog.Info("signaling server stopped", "code", code, "rooms", rooms, "members", members, "clients", clients)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (env ADDR or PORT, default :3000)")
	serveCmd.Flags().StringSliceVar(&flagAllowedOrigins, "allowed-origin", nil, "allowed websocket origin, repeatable (env ALLOWED_ORIGINS, default any)")
	serveCmd.Flags().IntVar(&flagSendBuffer, "send-buffer", 0, "outbound frames queued per connection (env SEND_BUFFER, default 256)")
	serveCmd.Flags().Int64Var(&flagMaxMessageSize, "max-message-size", 0, "largest inbound frame in bytes (env MAX_MESSAGE_SIZE, default 65536)")
	serveCmd.Flags().DurationVar(&flagChatInterval, "chat-interval", 0, "minimum gap between chat messages (env CHAT_INTERVAL, default 500ms)")
	serveCmd.Flags().DurationVar(&flagShutdownTimeout, "shutdown-timeout", 0, "time allowed for graceful shutdown (env SHUTDOWN_TIMEOUT, default 10s)")
	serveCmd.Flags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
}
