package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nonomal/stract/internal/dht"
	"github.com/nonomal/stract/internal/dht/wire"
)

func newDHTCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dht",
		Short: "Run or talk to a sharded Raft key-value node",
	}
	cmd.AddCommand(newDHTServeCmd())
	cmd.AddCommand(newDHTSetCmd())
	cmd.AddCommand(newDHTGetCmd())
	return cmd
}

func newDHTServeCmd() *cobra.Command {
	var nodeID, bindHost, rpcAddr string
	var basePort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one DHT node: a Raft shard group plus the client-facing wire server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if nodeID == "" {
				return fmt.Errorf("--node-id is required")
			}

			cluster, err := dht.OpenCluster(nodeID, bindHost, basePort, cfg.DHT, log)
			if err != nil {
				return fmt.Errorf("open cluster: %w", err)
			}
			defer cluster.Close()

			client := dht.NewClient(cluster, 5*time.Second)
			server := wire.NewServer(cluster, client, log)
			defer server.Close()

			errc := make(chan error, 1)
			go func() { errc <- server.Serve(rpcAddr) }()

			log.Info("dht_serve_started", "node_id", nodeID, "rpc_addr", rpcAddr, "shards", cluster.NumShards())

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errc:
				return err
			case <-sig:
				log.Info("dht_serve_shutdown")
				return server.Close()
			}
		},
	}
	cmd.Flags().StringVar(&nodeID, "node-id", "", "this node's Raft server ID")
	cmd.Flags().StringVar(&bindHost, "bind-host", "127.0.0.1", "host Raft shard transports bind on")
	cmd.Flags().IntVar(&basePort, "base-port", 9000, "first of N consecutive ports, one per shard")
	cmd.Flags().StringVar(&rpcAddr, "rpc-addr", "127.0.0.1:7800", "address the client-facing wire server listens on")
	return cmd
}

func newDHTSetCmd() *cobra.Command {
	var members string

	cmd := &cobra.Command{
		Use:   "set <table> <key> <value>",
		Short: "Set a key in a remote DHT cluster",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wire.NewClient(splitMembers(members))
			defer c.Close()

			idx, err := c.Set(args[0], []byte(args[1]), []byte(args[2]))
			if err != nil {
				return fmt.Errorf("set: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "committed at index %d\n", idx)
			return nil
		},
	}
	cmd.Flags().StringVar(&members, "members", "127.0.0.1:7800", "comma-separated wire server addresses")
	return cmd
}

func newDHTGetCmd() *cobra.Command {
	var members string

	cmd := &cobra.Command{
		Use:   "get <table> <key>",
		Short: "Get a key from a remote DHT cluster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs := splitMembers(members)
			c := wire.NewClient(addrs)
			defer c.Close()

			value, found, err := c.Get(addrs[0], args[0], []byte(args[1]))
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "(not found)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(value))
			return nil
		},
	}
	cmd.Flags().StringVar(&members, "members", "127.0.0.1:7800", "comma-separated wire server addresses")
	return cmd
}

func splitMembers(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
