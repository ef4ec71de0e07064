package commands

import (
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haivivi/voiceguard/go/cmd/voiceguard/internal/build"
	"github.com/haivivi/voiceguard/go/pkg/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP detection API",
	Long: `Run the HTTP detection API.

Routes:
  POST /detect   {"audio_base64": "...", "language": "english"} with X-API-Key
  GET  /health   model status
  GET  /         service information
  GET  /metrics  Prometheus metrics (server.metrics)

Examples:
  voiceguard serve
  voiceguard serve --addr 127.0.0.1:9000 --config prod.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, appOptions{Limit: true, Metrics: *cfg.Server.Metrics})
		if err != nil {
			return err
		}
		defer a.Close()

		a.runJanitors(ctx)
		a.watchModel(ctx)

		srv, err := newServer(a)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx, addr)
	},
}

func newServer(a *app) (*api.Server, error) {
	var g prometheus.Gatherer
	if a.registry != nil {
		g = a.registry
	}
	return api.NewServer(api.Config{
		Service:       a.service,
		APIKeys:       a.cfg.Server.APIKeys,
		MaxAudioBytes: a.cfg.Server.MaxUploadBytes,
		Version:       build.Version,
		Gatherer:      g,
		Logger:        a.log.With("component", "api"),
	})
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	rootCmd.AddCommand(serveCmd)
}
