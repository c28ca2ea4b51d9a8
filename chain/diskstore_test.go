package chain

import (
	"path/filepath"
	"testing"
)

func TestDiskStoreSnapshotLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.db")

	d, err := OpenDiskStore(path)
	if err != nil {
		t.Fatalf("OpenDiskStore: %v", err)
	}
	defer d.Close()

	cs := NewChainStore()
	b1 := chainBlock(cs.Tip().Header.Hash, "b1", lightTarget(1))
	cs.AddBlock(b1)
	cs.Utxos.ApplyUnconfirmed(&b1.Transactions[0])
	cs.Utxos.Confirm(b1.Header.Hash)

	if err := d.Snapshot(cs); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	loaded, err := LoadChainStore(d)
	if err != nil {
		t.Fatalf("LoadChainStore: %v", err)
	}
	if len(loaded.Main) != len(cs.Main) {
		t.Fatalf("main length = %d, want %d", len(loaded.Main), len(cs.Main))
	}
	if loaded.Main[len(loaded.Main)-1].Header.Hash != cs.Tip().Header.Hash {
		t.Fatal("expected loaded tip to match the snapshotted tip")
	}

	entry, ok := loaded.Utxos.Entry(b1.Transactions[0].Hash)
	if !ok || entry.Block == nil || *entry.Block != b1.Header.Hash {
		t.Fatal("expected the confirmed UTXO entry to survive the round trip")
	}

	genesisEntry, ok := loaded.Utxos.Entry(cs.Main[0].Transactions[0].Hash)
	if !ok || genesisEntry.Block == nil {
		t.Fatal("expected genesis coinbase UTXO entry to survive the round trip")
	}
}

func TestLoadChainStoreEmptyDatabaseReturnsGenesis(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.db")

	d, err := OpenDiskStore(path)
	if err != nil {
		t.Fatalf("OpenDiskStore: %v", err)
	}
	defer d.Close()

	loaded, err := LoadChainStore(d)
	if err != nil {
		t.Fatalf("LoadChainStore: %v", err)
	}
	if len(loaded.Main) != 1 || loaded.Main[0].Header.Hash != GenesisHash {
		t.Fatal("expected an empty database to load back as a fresh genesis store")
	}
}
