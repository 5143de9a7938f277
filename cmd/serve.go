package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banjirlab/floodmap/internal/report"
	"github.com/banjirlab/floodmap/internal/server"
	"github.com/banjirlab/floodmap/internal/shape"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		opts := []server.Option{server.WithDispatcher(newDispatcher(st, cfg))}
		if features, err := loadFeatures(); err != nil {
			zap.L().Warn("boundary features unavailable", zap.Error(err))
		} else if features != nil {
			opts = append(opts, server.WithFeatures(features))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.New(st, report.New(st), opts...).Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// loadFeatures reads boundary features from whichever geo source is
// configured, preferring GeoJSON.
func loadFeatures() ([]shape.Feature, error) {
	switch {
	case cfg.Geo.GeoJSONPath != "":
		return shape.LoadGeoJSON(cfg.Geo.GeoJSONPath)
	case cfg.Geo.ShapefilePath != "":
		return shape.LoadShapefile(cfg.Geo.ShapefilePath)
	default:
		return nil, nil
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
