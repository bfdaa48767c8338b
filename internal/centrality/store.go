// Package centrality is the injectable host/page centrality store
// spec.md §9's design note describes ("the centrality store ...
// injected by setter-style builders on the searcher"): a small
// bbolt-backed key/value table satisfying internal/search.Centrality,
// sharing the same embedded-KV approach internal/webgraph uses rather
// than a second storage engine.
package centrality

import (
	"encoding/binary"
	"math"

	bolt "go.etcd.io/bbolt"

	"github.com/nonomal/stract/internal/errkind"
	"github.com/nonomal/stract/internal/webpage"
)

var (
	bucketHost = []byte("host_centrality")
	bucketPage = []byte("page_centrality")
)

// Store is a bbolt-backed HostCentrality/PageCentrality table. It
// satisfies internal/search.Centrality.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the centrality database at path. In
// a deployment sharing the webgraph's bbolt file, pass the same path
// used for webgraph.Open — bbolt allows multiple independent bucket
// sets in one file, so the two stores coexist without contention
// beyond bbolt's own single-writer lock.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errkind.New(errkind.IO, "centrality.Open", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketHost); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketPage)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errkind.New(errkind.IO, "centrality.Open", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

// SetHostCentrality records host's centrality score.
func (s *Store) SetHostCentrality(host string, score float64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHost).Put([]byte(host), float64Bytes(score))
	})
	if err != nil {
		return errkind.New(errkind.IO, "SetHostCentrality", err)
	}
	return nil
}

// HostCentrality returns host's recorded centrality score, or zero if
// none was ever recorded (a missing entry is not an error — most hosts
// in a fresh index have no computed score yet).
func (s *Store) HostCentrality(host string) float64 {
	var score float64
	_ = s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketHost).Get([]byte(host)); raw != nil {
			score = bytesFloat64(raw)
		}
		return nil
	})
	return score
}

// SetPageCentrality records addr's centrality score. addr.DocAddress is
// not stable across segment merges, so entries here are only valid
// until the next merge; callers recompute after merge_into_max_segments
// runs (spec.md §4.1).
func (s *Store) SetPageCentrality(addr webpage.DocAddress, score float64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPage).Put(addrKey(addr), float64Bytes(score))
	})
	if err != nil {
		return errkind.New(errkind.IO, "SetPageCentrality", err)
	}
	return nil
}

// PageCentrality returns addr's recorded centrality score, if any.
func (s *Store) PageCentrality(addr webpage.DocAddress) (float64, bool) {
	var score float64
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketPage).Get(addrKey(addr)); raw != nil {
			score = bytesFloat64(raw)
			found = true
		}
		return nil
	})
	return score, found
}

// ClearPageCentrality drops every recorded page score — called after a
// merge invalidates every DocAddress in the index.
func (s *Store) ClearPageCentrality() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPage); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketPage)
		return err
	})
	if err != nil {
		return errkind.New(errkind.IO, "ClearPageCentrality", err)
	}
	return nil
}

func addrKey(addr webpage.DocAddress) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint32(key[:4], addr.SegmentOrd)
	binary.BigEndian.PutUint32(key[4:], addr.DocID)
	return key
}

func float64Bytes(f float64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
	return buf[:]
}

func bytesFloat64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}
