package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skiff-run/skiff/pkg/api"
	"github.com/skiff-run/skiff/pkg/config"
	"github.com/skiff-run/skiff/pkg/controlplane"
	"github.com/skiff-run/skiff/pkg/health"
	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/metrics"
	"github.com/skiff-run/skiff/pkg/retrieval"
	"github.com/skiff-run/skiff/pkg/transport"
	"github.com/skiff-run/skiff/pkg/types"
)

var controlPlaneCmd = &cobra.Command{
	Use:   "controlplane",
	Short: "Run the Skiff control plane",
	Long: `Run the cluster coordination process: the metadata registry, the
node websocket hub, and the metrics endpoint. Nodes connect to the
listen address and identify themselves during the handshake.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen-addr"); addr != "" {
			cfg.ControlPlane.ListenAddr = addr
		}
		if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
			cfg.ControlPlane.DataDir = dir
		}

		log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
		metrics.Register()

		if err := os.MkdirAll(cfg.ControlPlane.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		// the hub and the manager reference each other: envelopes from
		// nodes go to the manager, manager sends go through the hub
		var mgr *controlplane.Manager
		hub := transport.NewHub(
			func(nodeID string, env retrieval.Envelope) {
				mgr.HandleNodeEnvelope(nodeID, env)
			},
			func(nodeID string) {
				if err := mgr.RegisterNode(&types.Node{ID: nodeID}); err != nil {
					log.Errorf("failed to register node: %v", err)
				}
			},
			func(nodeID string) {
				if err := mgr.MarkNodeDown(nodeID); err != nil {
					log.Errorf("failed to mark node down: %v", err)
				}
			},
		)

		mgr, err = controlplane.NewManager(&controlplane.Config{
			DataDir:         cfg.ControlPlane.DataDir,
			DownloadTimeout: cfg.ControlPlane.DownloadTimeout,
		}, hub)
		if err != nil {
			return fmt.Errorf("failed to create control plane: %w", err)
		}
		defer mgr.Close()

		monitorCtx, stopMonitor := context.WithCancel(context.Background())
		defer stopMonitor()
		go health.NewMonitor(mgr, mgr, 0, 0).Run(monitorCtx)

		mux := http.NewServeMux()
		mux.Handle("/connect", hub)
		api.NewServer(mgr).Routes(mux)
		server := &http.Server{Addr: cfg.ControlPlane.ListenAddr, Handler: mux}

		metricsServer := &http.Server{
			Addr:    cfg.ControlPlane.MetricsAddr,
			Handler: metrics.Handler(),
		}

		errCh := make(chan error, 2)
		go func() {
			log.Info(fmt.Sprintf("Control plane listening on %s", cfg.ControlPlane.ListenAddr))
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				errCh <- err
			}
		}()
		go func() {
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info(fmt.Sprintf("Received signal %s, shutting down", sig))
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		server.Shutdown(shutdownCtx)
		metricsServer.Shutdown(shutdownCtx)
		return nil
	},
}

func init() {
	controlPlaneCmd.Flags().String("listen-addr", "", "Node uplink listen address")
	controlPlaneCmd.Flags().String("data-dir", "", "Registry data directory")
}
