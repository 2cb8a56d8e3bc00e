package storage

import (
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/tabagent/tabagent/pkg/model"
)

// canonicalize folds a free-text property value the same way the entity
// linker's dictionary matcher normalizes candidate text, so that lookups
// are insensitive to case and surrounding whitespace.
func canonicalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func structKey(propKey, value string, nodeID model.NodeID) []byte {
	key := []byte{prefixStruct}
	key = append(key, []byte(propKey)...)
	key = append(key, 0x00)
	key = append(key, []byte(canonicalize(value))...)
	key = append(key, 0x00)
	return append(key, []byte(nodeID)...)
}

func structPrefix(propKey, value string) []byte {
	key := []byte{prefixStruct}
	key = append(key, []byte(propKey)...)
	key = append(key, 0x00)
	key = append(key, []byte(canonicalize(value))...)
	return append(key, 0x00)
}

// IndexProperty registers nodeID under (propKey, value) in the Structural
// Index. It commits in its own write transaction, separate from the one
// that creates or updates the node; WriteTxn.IndexProperty is the variant
// that joins an open write transaction.
func (b *BadgerEngine) IndexProperty(nodeID model.NodeID, propKey, value string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(structKey(propKey, value, nodeID), []byte{})
	})
}

// UnindexProperty removes a previously registered (propKey, value) entry.
func (b *BadgerEngine) UnindexProperty(nodeID model.NodeID, propKey, value string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := structKey(propKey, value, nodeID)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// QueryProperty returns every node ID registered under (propKey, value),
// in sorted order (Badger's LSM keeps keys sorted, so this is free).
func (b *BadgerEngine) QueryProperty(propKey, value string) ([]model.NodeID, error) {
	var ids []model.NodeID
	prefix := structPrefix(propKey, value)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, model.NodeID(key[len(prefix):]))
		}
		return nil
	})
	return ids, err
}
