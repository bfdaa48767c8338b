package dht

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/hashicorp/raft"

	"github.com/nonomal/stract/internal/config"
	"github.com/nonomal/stract/internal/errkind"
)

// Cluster is one node's view of the sharded DHT: N independently
// replicated Shards, each its own Raft group, addressed on consecutive
// TCP ports starting at basePort (spec.md §4.5, Topology). Raft's own
// peer transport uses raft.NewTCPTransport directly; the hand-rolled
// framed codec in internal/dht/wire is reserved for the client-facing
// RPC surface, a separate concern from Raft's internal replication.
type Cluster struct {
	nodeID   string
	shards   []*Shard
	registry *registry
	log      *slog.Logger
}

// OpenCluster opens or creates cfg.Shards shards under cfg.DataDir,
// each bound to bindHost:basePort+i, bootstrapping a single-voter Raft
// group for any shard with no prior on-disk state.
func OpenCluster(nodeID, bindHost string, basePort int, cfg config.DHTConfig, log *slog.Logger) (*Cluster, error) {
	if cfg.Shards <= 0 {
		return nil, errkind.New(errkind.Parse, "OpenCluster", fmt.Errorf("dht: shards must be positive, got %d", cfg.Shards))
	}
	if log == nil {
		log = slog.Default()
	}

	reg := newRegistry()
	shards := make([]*Shard, cfg.Shards)
	for i := 0; i < cfg.Shards; i++ {
		addr := fmt.Sprintf("%s:%d", bindHost, basePort+i)
		tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return nil, errkind.New(errkind.IO, "OpenCluster", fmt.Errorf("resolve shard %d address %q: %w", i, addr, err))
		}

		trans, err := raft.NewTCPTransport(addr, tcpAddr, 3, 10*time.Second, os.Stderr)
		if err != nil {
			return nil, errkind.New(errkind.IO, "OpenCluster", fmt.Errorf("shard %d transport: %w", i, err))
		}

		shard, err := openShard(i, nodeID, addr, cfg, trans, reg, log.With(slog.Int("shard", i)))
		if err != nil {
			return nil, err
		}
		shards[i] = shard
	}

	log.Info("dht_cluster_opened", slog.String("node", nodeID), slog.Int("shards", cfg.Shards))
	return &Cluster{nodeID: nodeID, shards: shards, registry: reg, log: log}, nil
}

// NumShards returns the number of shards in the cluster.
func (c *Cluster) NumShards() int { return len(c.shards) }

// Shard returns the shard at ordinal i, for callers (internal/dht/wire,
// tests) that need direct access rather than key-routed access.
func (c *Cluster) Shard(i int) *Shard { return c.shards[i] }

// Registry exposes the upsert-function registry so callers can
// register application-specific merge functions before serving writes.
func (c *Cluster) Registry() *registry { return c.registry }

// ShardFor routes key to exactly one shard by hash(key) mod N_shards
// (spec.md §4.5, Topology).
func (c *Cluster) ShardFor(key []byte) *Shard {
	h := fnv.New64a()
	h.Write(key)
	return c.shards[h.Sum64()%uint64(len(c.shards))]
}

// Close shuts down every shard's Raft participation, returning the
// first error encountered.
func (c *Cluster) Close() error {
	var firstErr error
	for _, s := range c.shards {
		if err := s.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
