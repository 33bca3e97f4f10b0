package state

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lunfardo314/unitrie/common"
	"golang.org/x/crypto/blake2b"
)

// Persistence of full snapshots. A persisted snapshot is the authoritative
// state, never a cache: a restarted node loads the latest snapshot and must
// serve identical queries and hashes without replaying history.
//
// Layout in the KV store:
//
//	's' || height (8 BE) -> hash || canonical bytes || blake2b-256 checksum
//	'L'                  -> latest persisted height (8 BE)
//
// The snapshot record and the latest pointer are committed in one batch:
// a crash either leaves the previous snapshot intact or installs the new
// one completely.

const (
	snapshotPrefix  = byte('s')
	latestKeyPrefix = byte('L')
)

type KVStore interface {
	common.KVReader
	common.BatchedUpdatable
}

func snapshotKey(height uint64) []byte {
	ret := make([]byte, 9)
	ret[0] = snapshotPrefix
	binary.BigEndian.PutUint64(ret[1:], height)
	return ret
}

func latestKey() []byte {
	return []byte{latestKeyPrefix}
}

// SaveSnapshot durably writes the store as the snapshot for its height and
// moves the latest pointer. Any error is a PersistenceFailure: the caller
// must not report the block as connected
func SaveSnapshot(kvs KVStore, s *Store) error {
	data := s.Bytes()
	h := s.Hash()

	record := make([]byte, 0, HashLength+len(data)+blake2b.Size256)
	record = append(record, h[:]...)
	record = append(record, data...)
	checksum := blake2b.Sum256(record)
	record = append(record, checksum[:]...)

	var hBuf [8]byte
	binary.BigEndian.PutUint64(hBuf[:], s.Height())

	batch := kvs.BatchedWriter()
	batch.Set(snapshotKey(s.Height()), record)
	batch.Set(latestKey(), hBuf[:])
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("SaveSnapshot: %w", err)
	}
	return nil
}

// PruneSnapshot removes one retained snapshot record (used when the
// rollback window slides forward)
func PruneSnapshot(kvs KVStore, height uint64) error {
	batch := kvs.BatchedWriter()
	batch.Set(snapshotKey(height), nil)
	return batch.Commit()
}

// LatestSnapshotHeight returns the height of the latest persisted snapshot
func LatestSnapshotHeight(kvs KVStore) (uint64, bool) {
	b := kvs.Get(latestKey())
	if len(b) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(b), true
}

// LoadSnapshot reads and verifies the snapshot persisted for the height
func LoadSnapshot(kvs KVStore, height uint64) (*Store, error) {
	record := kvs.Get(snapshotKey(height))
	if len(record) < HashLength+blake2b.Size256 {
		return nil, fmt.Errorf("LoadSnapshot: no snapshot for height %d", height)
	}
	payload := record[:len(record)-blake2b.Size256]
	checksum := blake2b.Sum256(payload)
	if !bytes.Equal(checksum[:], record[len(record)-blake2b.Size256:]) {
		return nil, fmt.Errorf("LoadSnapshot: checksum mismatch for height %d", height)
	}

	var h [HashLength]byte
	copy(h[:], payload[:HashLength])
	s, err := StoreFromBytes(payload[HashLength:])
	if err != nil {
		return nil, fmt.Errorf("LoadSnapshot: %w", err)
	}
	if s.Height() != height {
		return nil, fmt.Errorf("LoadSnapshot: height mismatch: record %d, state %d", height, s.Height())
	}
	s.setHash(h)
	return s, nil
}

// LoadLatest restores the authoritative state after restart
func LoadLatest(kvs KVStore) (*Store, error) {
	h, ok := LatestSnapshotHeight(kvs)
	if !ok {
		return nil, fmt.Errorf("LoadLatest: empty state store")
	}
	return LoadSnapshot(kvs, h)
}
