package chain

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Dezzmeister/tsengcoin/crypto"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlocksByHeight = []byte("blocks_by_height")
	bucketUtxos          = []byte("utxos_by_txn_hash")
	bucketMeta           = []byte("meta")
)

var keyTipHeight = []byte("tip_height")

// DiskStore persists a ChainStore's main chain and confirmed UTXO set to a
// bbolt database so a restart doesn't require a full re-sync. Forks,
// orphans and pending/unconfirmed UTXO entries are never persisted — they
// are exactly the in-flight state a restarting node is expected to rebuild
// from its peers.
type DiskStore struct {
	db *bolt.DB
}

// OpenDiskStore opens (creating if absent) a bbolt database at path.
func OpenDiskStore(path string) (*DiskStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("chain: open disk store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocksByHeight, bucketUtxos, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DiskStore{db: db}, nil
}

func (d *DiskStore) Close() error {
	return d.db.Close()
}

func heightKey(height int) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(height))
	return b[:]
}

// Snapshot persists cs's entire main chain (overwriting any previously
// stored main chain at those heights) and the confirmed UTXO set.
func (d *DiskStore) Snapshot(cs *ChainStore) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(bucketBlocksByHeight)
		for h := range cs.Main {
			if err := blocks.Put(heightKey(h), MarshalBlock(&cs.Main[h])); err != nil {
				return err
			}
		}

		utxos := tx.Bucket(bucketUtxos)
		for hash, entry := range cs.Utxos.entries {
			if entry.Block == nil {
				continue // unconfirmed entries belong to pending, not the disk snapshot
			}
			if err := utxos.Put(hash[:], marshalUtxoEntry(entry)); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		var tipHeight [8]byte
		binary.BigEndian.PutUint64(tipHeight[:], uint64(len(cs.Main)-1))
		return meta.Put(keyTipHeight, tipHeight[:])
	})
}

// LoadChainStore reconstructs a ChainStore from a previously persisted
// DiskStore. If the database holds no blocks yet, it returns a
// freshly-seeded genesis store instead (mirroring NewChainStore).
func LoadChainStore(d *DiskStore) (*ChainStore, error) {
	var blocks []Block
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlocksByHeight)
		return b.ForEach(func(k, v []byte) error {
			block, err := UnmarshalBlock(v)
			if err != nil {
				return fmt.Errorf("chain: corrupt block at height %d: %w", binary.BigEndian.Uint64(k), err)
			}
			blocks = append(blocks, *block)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return NewChainStore(), nil
	}

	utxos := NewUTXOIndex()
	err = d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUtxos)
		return b.ForEach(func(k, v []byte) error {
			entry, err := unmarshalUtxoEntry(v)
			if err != nil {
				return fmt.Errorf("chain: corrupt utxo entry: %w", err)
			}
			var hash crypto.Hash256
			copy(hash[:], k)
			utxos.entries[hash] = entry
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return &ChainStore{
		Main:    blocks,
		Forks:   nil,
		Orphans: make(map[crypto.Hash256]Block),
		Utxos:   utxos,
	}, nil
}

// marshalUtxoEntry / unmarshalUtxoEntry encode a UtxoEntry as:
// block_hash (32) | txn_hash (32) | count u32le | (output_idx u32le)*count
func marshalUtxoEntry(e *UtxoEntry) []byte {
	out := make([]byte, 0, 32+32+4+4*len(e.LiveOutputIndices))
	if e.Block != nil {
		out = append(out, e.Block[:]...)
	} else {
		out = append(out, crypto.ZeroHash256[:]...)
	}
	out = append(out, e.Txn[:]...)
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(e.LiveOutputIndices)))
	out = append(out, count[:]...)
	for idx := range e.LiveOutputIndices {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], idx)
		out = append(out, b[:]...)
	}
	return out
}

func unmarshalUtxoEntry(b []byte) (*UtxoEntry, error) {
	if len(b) < 32+32+4 {
		return nil, fmt.Errorf("truncated utxo entry")
	}
	var blockHash, txnHash crypto.Hash256
	copy(blockHash[:], b[0:32])
	copy(txnHash[:], b[32:64])
	count := binary.LittleEndian.Uint32(b[64:68])
	off := 68
	indices := make(map[uint32]bool, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(b) {
			return nil, fmt.Errorf("truncated utxo entry index list")
		}
		indices[binary.LittleEndian.Uint32(b[off:off+4])] = true
		off += 4
	}
	entry := &UtxoEntry{Txn: txnHash, LiveOutputIndices: indices}
	if blockHash != crypto.ZeroHash256 {
		bh := blockHash
		entry.Block = &bh
	}
	return entry, nil
}
