package wire

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/nonomal/stract/internal/dht"
	"github.com/nonomal/stract/internal/errkind"
)

// Server accepts client connections and dispatches wire Requests
// against a local Cluster/Client pair, serving the networked equivalent
// of dht.Client's embedded API.
type Server struct {
	cluster *dht.Cluster
	client  *dht.Client
	ln      net.Listener
	timeout time.Duration
	log     *slog.Logger
}

// NewServer builds a Server over cluster, using client for every
// operation that doesn't need direct shard access (Get with a
// MinIndex wait does).
func NewServer(cluster *dht.Cluster, client *dht.Client, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{cluster: cluster, client: client, timeout: 5 * time.Second, log: log}
}

// Serve listens on addr and handles connections until the listener is
// closed.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errkind.New(errkind.IO, "Serve", err)
	}
	s.ln = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errkind.New(errkind.IO, "Serve", err)
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			if err != io.EOF {
				s.log.Warn("dht_wire_read_failed", slog.String("error", err.Error()))
			}
			return
		}
		resp := s.dispatch(req)
		if err := writeFrame(conn, &resp); err != nil {
			s.log.Warn("dht_wire_write_failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Op {
	case dht.OpCreateTable:
		return errOrOK(s.client.CreateTable(req.Table))

	case dht.OpDropTable:
		return errOrOK(s.client.DropTable(req.Table))

	case dht.OpCloneTable:
		return errOrOK(s.client.CloneTable(req.Table, req.SourceTable))

	case dht.OpAllTables:
		return Response{OK: true, Tables: s.client.AllTables()}

	case dht.OpSet:
		idx, err := s.client.Set(req.Table, req.Key, req.Value)
		if err != nil {
			return s.errResponseHinted(err, req.Key)
		}
		return Response{OK: true, Index: idx}

	case dht.OpBatchSet:
		return errOrOK(s.client.BatchSet(req.Table, req.Pairs))

	case dht.OpUpsert:
		val, err := s.client.Upsert(req.Table, req.Key, req.Value, req.UpsertID)
		if err != nil {
			return s.errResponseHinted(err, req.Key)
		}
		return Response{OK: true, Value: val}

	case dht.OpBatchUpsert:
		return errOrOK(s.client.BatchUpsert(req.Table, req.Triples))

	case dht.OpGet:
		shard := s.cluster.ShardFor(req.Key)
		if req.MinIndex > 0 {
			if err := shard.WaitApplied(req.MinIndex, s.timeout); err != nil {
				return errResponse(err)
			}
		}
		val, found := shard.Get(req.Table, req.Key)
		return Response{OK: true, Value: val, Found: found}

	case dht.OpBatchGet:
		return Response{OK: true, Values: s.client.BatchGet(req.Table, req.Keys)}

	case dht.OpStream:
		return Response{OK: true, Pairs: s.client.Stream(req.Table)}

	case dht.OpJoin:
		if req.ShardIndex < 0 || req.ShardIndex >= s.cluster.NumShards() {
			return Response{OK: false, Err: "wire: shard index out of range"}
		}
		shard := s.cluster.Shard(req.ShardIndex)
		if err := shard.Join(req.NodeID, req.Address); err != nil {
			return s.errResponseHintedShard(err, shard)
		}
		return Response{OK: true}

	default:
		return Response{OK: false, Err: "wire: unknown op"}
	}
}

// errResponseHinted builds an error Response for a content-routed key,
// attaching the shard's known leader address when the failure is
// errkind.NoLeader so the client can retry directly against it.
func (s *Server) errResponseHinted(err error, key []byte) Response {
	return s.errResponseHintedShard(err, s.cluster.ShardFor(key))
}

func (s *Server) errResponseHintedShard(err error, shard *dht.Shard) Response {
	resp := errResponse(err)
	if resp.Kind == string(errkind.NoLeader) {
		if addr, ok := shard.LeaderAddress(); ok {
			resp.LeaderHint = addr
		}
	}
	return resp
}

func errOrOK(err error) Response {
	if err != nil {
		return errResponse(err)
	}
	return Response{OK: true}
}

func errResponse(err error) Response {
	resp := Response{OK: false, Err: err.Error()}
	if kind, ok := errkind.KindOf(err); ok {
		resp.Kind = string(kind)
	}
	return resp
}
