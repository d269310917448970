package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skiff-run/skiff/pkg/agent"
	"github.com/skiff-run/skiff/pkg/config"
	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/retrieval"
	"github.com/skiff-run/skiff/pkg/transport"
)

const (
	// reconnectDelay paces dial retries when the control plane is away
	reconnectDelay = 5 * time.Second

	// heartbeatInterval must stay well inside the control plane's
	// staleness bound
	heartbeatInterval = 15 * time.Second
)

// heartbeatLoop refreshes the node's liveness until the connection ends
func heartbeatLoop(ctx context.Context, client *transport.Client) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			env, err := retrieval.NewEnvelope(retrieval.MsgNodeHeartbeat, "", nil)
			if err != nil {
				continue
			}
			if err := client.Send(env); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a Skiff node agent",
	Long: `Run the node-side process: it owns the node's volumes and logs and
answers control plane requests over a websocket uplink. The agent
reconnects automatically when the control plane goes away.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if nodeID, _ := cmd.Flags().GetString("node-id"); nodeID != "" {
			cfg.Agent.NodeID = nodeID
		}
		if serverURL, _ := cmd.Flags().GetString("server-url"); serverURL != "" {
			cfg.Agent.ServerURL = serverURL
		}
		if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
			cfg.Agent.DataDir = dir
		}
		if err := cfg.ValidateAgent(); err != nil {
			return err
		}

		log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

		client := transport.NewClient(transport.ClientConfig{
			ServerURL: cfg.Agent.ServerURL,
			NodeID:    cfg.Agent.NodeID,
		})

		a, err := agent.NewAgent(&agent.Config{
			NodeID:  cfg.Agent.NodeID,
			DataDir: cfg.Agent.DataDir,
			Sandbox: cfg.Agent.Sandbox,
		}, client)
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			log.Info(fmt.Sprintf("Received signal %s, shutting down", sig))
			cancel()
		}()

		for {
			if err := client.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Errorf("connect failed, retrying: %v", err)
				select {
				case <-time.After(reconnectDelay):
					continue
				case <-ctx.Done():
					return nil
				}
			}

			connCtx, stopHeartbeat := context.WithCancel(ctx)
			go heartbeatLoop(connCtx, client)

			err := client.Run(ctx, a.HandleMessage)
			stopHeartbeat()
			client.Close()
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf("uplink lost, reconnecting: %v", err)

			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return nil
			}
		}
	},
}

func init() {
	agentCmd.Flags().String("node-id", "", "Unique node identifier")
	agentCmd.Flags().String("server-url", "", "Control plane websocket URL")
	agentCmd.Flags().String("data-dir", "", "Node data directory")
}
