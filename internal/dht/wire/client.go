package wire

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nonomal/stract/internal/dht"
	"github.com/nonomal/stract/internal/errkind"
)

// Client is the networked counterpart to dht.Client: it dials a member
// node's wire.Server over TCP and speaks the Request/Response frame
// protocol. Writes that fail with NoLeader are retried with backoff
// against the leader hint the server returns, or against the next
// known member if no hint was given; Get never auto-retries (spec.md
// §4.5, Failure semantics).
type Client struct {
	mu      sync.Mutex
	members []string
	conns   map[string]net.Conn
	dial    time.Duration
	call    time.Duration
}

// NewClient builds a Client that knows about members — any address
// hosting a wire.Server for the shard(s) being addressed.
func NewClient(members []string) *Client {
	return &Client{
		members: members,
		conns:   make(map[string]net.Conn),
		dial:    3 * time.Second,
		call:    5 * time.Second,
	}
}

func (c *Client) connFor(addr string) (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	conn, err := net.DialTimeout("tcp", addr, c.dial)
	if err != nil {
		return nil, errkind.New(errkind.IO, "connFor", err)
	}
	c.conns[addr] = conn
	return conn, nil
}

func (c *Client) drop(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		conn.Close()
		delete(c.conns, addr)
	}
}

// call0 sends req to addr and returns its Response, dropping the cached
// connection on any I/O error so the next call redials.
func (c *Client) call0(addr string, req Request) (Response, error) {
	conn, err := c.connFor(addr)
	if err != nil {
		return Response{}, err
	}
	conn.SetDeadline(time.Now().Add(c.call))
	if err := writeFrame(conn, &req); err != nil {
		c.drop(addr)
		return Response{}, errkind.New(errkind.IO, "call", err)
	}
	var resp Response
	if err := readFrame(conn, &resp); err != nil {
		c.drop(addr)
		return Response{}, errkind.New(errkind.IO, "call", err)
	}
	return resp, nil
}

// writeWithRetry sends a write request to members in turn, following
// NoLeader leader hints, with exponential backoff up to 4 attempts
// (spec.md §4.5: "writes fail fast with NoLeader; clients retry with
// backoff against other members").
func (c *Client) writeWithRetry(req Request) (Response, error) {
	addr := c.members[0]
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 4; attempt++ {
		resp, err := c.call0(addr, req)
		if err != nil {
			lastErr = err
			addr = c.nextMember(addr)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		if !resp.OK && resp.Kind == string(errkind.NoLeader) {
			lastErr = errkind.New(errkind.NoLeader, "writeWithRetry", fmt.Errorf("%s", resp.Err))
			if resp.LeaderHint != "" {
				addr = resp.LeaderHint
			} else {
				addr = c.nextMember(addr)
			}
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		return resp, nil
	}
	return Response{}, lastErr
}

func (c *Client) nextMember(current string) string {
	for i, m := range c.members {
		if m == current {
			return c.members[(i+1)%len(c.members)]
		}
	}
	return c.members[0]
}

func respErr(resp Response) error {
	if resp.OK {
		return nil
	}
	if resp.Kind != "" {
		return errkind.New(errkind.Kind(resp.Kind), "wire", fmt.Errorf("%s", resp.Err))
	}
	return fmt.Errorf("%s", resp.Err)
}

// Set writes key=value in table, returning the Raft index it committed
// at so a subsequent GetLinearized against another node can wait for
// it.
func (c *Client) Set(table string, key, value []byte) (uint64, error) {
	resp, err := c.writeWithRetry(Request{Op: dht.OpSet, Table: table, Key: key, Value: value})
	if err != nil {
		return 0, err
	}
	return resp.Index, respErr(resp)
}

// Get reads table[key] from addr's local FSM without going through
// Raft. Unlike writes, Get never auto-retries against another member.
func (c *Client) Get(addr, table string, key []byte) ([]byte, bool, error) {
	resp, err := c.call0(addr, Request{Op: dht.OpGet, Table: table, Key: key})
	if err != nil {
		return nil, false, err
	}
	if !resp.OK {
		return nil, false, respErr(resp)
	}
	return resp.Value, resp.Found, nil
}

// EnsureLinearizedRead commits a trivial write through the cluster
// (following NoLeader hints to the leader) and returns the index a
// following GetLinearized(addr, ...) call should pass as waitIndex to observe it
// (spec.md §4.5, Linearization convention).
func (c *Client) EnsureLinearizedRead(table string) (uint64, error) {
	resp, err := c.writeWithRetry(Request{Op: dht.OpSet, Table: table, Key: []byte("__ensure_linearized_read__")})
	if err != nil {
		return 0, err
	}
	return resp.Index, respErr(resp)
}

// GetLinearized reads table[key] from addr, first blocking there until
// its local FSM has applied at least waitIndex (the value returned by
// EnsureLinearizedRead).
func (c *Client) GetLinearized(addr, table string, key []byte, waitIndex uint64) ([]byte, bool, error) {
	resp, err := c.call0(addr, Request{Op: dht.OpGet, Table: table, Key: key, MinIndex: waitIndex})
	if err != nil {
		return nil, false, err
	}
	if !resp.OK {
		return nil, false, respErr(resp)
	}
	return resp.Value, resp.Found, nil
}

// CreateTable replicates table's existence cluster-wide.
func (c *Client) CreateTable(table string) error {
	resp, err := c.writeWithRetry(Request{Op: dht.OpCreateTable, Table: table})
	if err != nil {
		return err
	}
	return respErr(resp)
}

// DropTable removes table cluster-wide.
func (c *Client) DropTable(table string) error {
	resp, err := c.writeWithRetry(Request{Op: dht.OpDropTable, Table: table})
	if err != nil {
		return err
	}
	return respErr(resp)
}

// CloneTable copies src into dst cluster-wide.
func (c *Client) CloneTable(dst, src string) error {
	resp, err := c.writeWithRetry(Request{Op: dht.OpCloneTable, Table: dst, SourceTable: src})
	if err != nil {
		return err
	}
	return respErr(resp)
}

// AllTables lists the tables known to the member queried.
func (c *Client) AllTables() ([]string, error) {
	resp, err := c.call0(c.members[0], Request{Op: dht.OpAllTables})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, respErr(resp)
	}
	return resp.Tables, nil
}

// BatchSet writes every pair in table as a single request.
func (c *Client) BatchSet(table string, pairs []dht.KV) error {
	resp, err := c.writeWithRetry(Request{Op: dht.OpBatchSet, Table: table, Pairs: pairs})
	if err != nil {
		return err
	}
	return respErr(resp)
}

// Upsert merges value into table[key] using upsertID, returning the
// merged value.
func (c *Client) Upsert(table string, key, value []byte, upsertID string) ([]byte, error) {
	resp, err := c.writeWithRetry(Request{Op: dht.OpUpsert, Table: table, Key: key, Value: value, UpsertID: upsertID})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, respErr(resp)
	}
	return resp.Value, nil
}

// BatchUpsert merges every triple in table.
func (c *Client) BatchUpsert(table string, triples []dht.UpsertTriple) error {
	resp, err := c.writeWithRetry(Request{Op: dht.OpBatchUpsert, Table: table, Triples: triples})
	if err != nil {
		return err
	}
	return respErr(resp)
}

// BatchGet reads every key in keys from table on the member queried.
func (c *Client) BatchGet(addr, table string, keys [][]byte) (map[string][]byte, error) {
	resp, err := c.call0(addr, Request{Op: dht.OpBatchGet, Table: table, Keys: keys})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, respErr(resp)
	}
	return resp.Values, nil
}

// Stream reads a point-in-time snapshot of table from the member
// queried.
func (c *Client) Stream(addr, table string) ([]dht.KV, error) {
	resp, err := c.call0(addr, Request{Op: dht.OpStream, Table: table})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, respErr(resp)
	}
	return resp.Pairs, nil
}

// Join asks addr's shardIndex to add nodeID at nodeAddress as a voter.
func (c *Client) Join(addr string, shardIndex int, nodeID, nodeAddress string) error {
	resp, err := c.call0(addr, Request{Op: dht.OpJoin, ShardIndex: shardIndex, NodeID: nodeID, Address: nodeAddress})
	if err != nil {
		return err
	}
	return respErr(resp)
}

// Close closes every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, addr)
	}
	return firstErr
}
