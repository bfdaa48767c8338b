package dht

import (
	"fmt"
	"time"

	"github.com/nonomal/stract/internal/errkind"
)

// Client is the embedded, in-process client-facing API over a local
// Cluster: every table operation from spec.md §4.5's wire surface
// (Set, BatchSet, Upsert, BatchUpsert, CreateTable, DropTable,
// AllTables, CloneTable, Get, BatchGet, Stream) plus the
// EnsureLinearizedRead convention, routed to the right shard and
// applied through Raft. internal/dht/wire exposes the networked
// equivalent of this same surface for callers outside the process.
type Client struct {
	cluster *Cluster
	timeout time.Duration
}

// NewClient builds a Client over cluster using timeout as the default
// Raft apply deadline.
func NewClient(cluster *Cluster, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{cluster: cluster, timeout: timeout}
}

// CreateTable replicates table's existence to every shard: the set of
// tables is itself replicated state, not scoped to a single shard
// (spec.md §4.5).
func (c *Client) CreateTable(table string) error {
	for _, s := range c.cluster.shards {
		if _, _, err := s.apply(command{Op: OpCreateTable, Table: table}, c.timeout); err != nil {
			return err
		}
	}
	return nil
}

// DropTable removes table from every shard.
func (c *Client) DropTable(table string) error {
	for _, s := range c.cluster.shards {
		if _, _, err := s.apply(command{Op: OpDropTable, Table: table}, c.timeout); err != nil {
			return err
		}
	}
	return nil
}

// CloneTable copies src's current contents into dst on every shard, a
// single Raft entry per shard (spec.md §4.5, "clone_table").
func (c *Client) CloneTable(dst, src string) error {
	for _, s := range c.cluster.shards {
		if _, _, err := s.apply(command{Op: OpCloneTable, Table: dst, SourceTable: src}, c.timeout); err != nil {
			return err
		}
	}
	return nil
}

// AllTables lists the tables shard 0 knows about. CreateTable and
// DropTable are broadcast to every shard, so every explicitly created
// table is listed; a table that only came into being through a write
// routed to another shard is not.
func (c *Client) AllTables() []string {
	return c.cluster.shards[0].AllTables()
}

// Set writes key=value in table, routed to the shard key hashes to,
// returning the Raft log index the write committed at (the index a
// remote reader passes as waitIndex to the wire client's GetLinearized).
func (c *Client) Set(table string, key, value []byte) (uint64, error) {
	shard := c.cluster.ShardFor(key)
	_, idx, err := shard.apply(command{Op: OpSet, Table: table, Key: key, Value: value}, c.timeout)
	return idx, err
}

// BatchSet writes every pair in table. Pairs are grouped by the shard
// their key routes to and applied as one Raft entry per shard touched;
// when every pair routes to the same shard this is the single-entry
// batch spec.md §4.5 describes, and it degrades gracefully to one entry
// per shard when a batch spans shards.
func (c *Client) BatchSet(table string, pairs []KV) error {
	byShard := make(map[*Shard][]KV)
	for _, p := range pairs {
		shard := c.cluster.ShardFor(p.Key)
		byShard[shard] = append(byShard[shard], p)
	}
	for shard, ps := range byShard {
		if _, _, err := shard.apply(command{Op: OpBatchSet, Table: table, Pairs: ps}, c.timeout); err != nil {
			return err
		}
	}
	return nil
}

// Upsert merges value into table[key] using the registered merge
// function upsertID, returning the merged value.
func (c *Client) Upsert(table string, key, value []byte, upsertID string) ([]byte, error) {
	shard := c.cluster.ShardFor(key)
	resp, _, err := shard.apply(command{Op: OpUpsert, Table: table, Key: key, Value: value, UpsertID: upsertID}, c.timeout)
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// BatchUpsert merges every triple into table, grouped by destination
// shard the same way BatchSet is.
func (c *Client) BatchUpsert(table string, triples []UpsertTriple) error {
	byShard := make(map[*Shard][]UpsertTriple)
	for _, t := range triples {
		shard := c.cluster.ShardFor(t.Key)
		byShard[shard] = append(byShard[shard], t)
	}
	for shard, ts := range byShard {
		if _, _, err := shard.apply(command{Op: OpBatchUpsert, Table: table, Triples: ts}, c.timeout); err != nil {
			return err
		}
	}
	return nil
}

// Cluster exposes the underlying Cluster for callers (internal/dht/wire)
// that need direct shard access alongside the Client's broadcast/routed
// operations.
func (c *Client) Cluster() *Cluster { return c.cluster }

// Get reads table[key] directly from the local FSM of the shard key
// routes to, without going through Raft (spec.md §4.5). The read may
// observe stale data on a follower; callers that need a linearized read
// should call EnsureLinearizedRead first.
func (c *Client) Get(table string, key []byte) ([]byte, bool) {
	shard := c.cluster.ShardFor(key)
	return shard.Get(table, key)
}

// BatchGet reads every key in keys from table, grouped by shard and
// merged into a single map.
func (c *Client) BatchGet(table string, keys [][]byte) map[string][]byte {
	byShard := make(map[*Shard][][]byte)
	for _, k := range keys {
		shard := c.cluster.ShardFor(k)
		byShard[shard] = append(byShard[shard], k)
	}
	out := make(map[string][]byte, len(keys))
	for shard, ks := range byShard {
		for k, v := range shard.BatchGet(table, ks) {
			out[k] = v
		}
	}
	return out
}

// Stream returns a point-in-time snapshot of every key/value pair in
// table across all shards (spec.md §4.5: "a lazy sequence ...
// restartable only if the table is not mutated concurrently").
func (c *Client) Stream(table string) []KV {
	var out []KV
	for _, s := range c.cluster.shards {
		out = append(out, s.StreamSnapshot(table)...)
	}
	return out
}

// EnsureLinearizedRead implements the client-side linearization
// convention from spec.md §4.5: it commits a trivial write to the
// reserved key on the same shard key would route to, then blocks until
// this node's local FSM has applied that write, so a subsequent local
// Get(table, key) is guaranteed to observe any write already committed
// elsewhere in the shard's Raft group before this call returned.
func (c *Client) EnsureLinearizedRead(table string, key []byte) error {
	shard := c.cluster.ShardFor(key)
	_, idx, err := shard.apply(command{Op: OpSet, Table: table, Key: []byte(ensureLinearizedKey), Value: nil}, c.timeout)
	if err != nil {
		return err
	}
	return shard.WaitApplied(idx, c.timeout)
}

// Join adds a voter at address to every shard of the cluster — used
// when a new node joins the whole cluster rather than a single shard
// (spec.md §4.5, Topology: "a node joins by contacting any existing
// leader").
func (c *Client) Join(nodeID, addressBase string, basePort int) error {
	for i, s := range c.cluster.shards {
		addr := fmt.Sprintf("%s:%d", addressBase, basePort+i)
		if err := s.Join(nodeID, addr); err != nil {
			return errkind.New(errkind.IO, "Join", fmt.Errorf("shard %d: %w", i, err))
		}
	}
	return nil
}
