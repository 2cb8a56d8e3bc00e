package storage

import (
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/tabagent/tabagent/pkg/model"
)

// WriteTxn is an explicit write transaction spanning the node, edge,
// embedding, and structural sub-databases. Only one WriteTxn may be open at
// a time across every engine in the process; while one is open, BeginWrite
// returns ErrWriterBusy at once instead of waiting for it to finish.
type WriteTxn struct {
	engine *BadgerEngine
	txn    *badger.Txn
	done   bool
}

// writerMu serializes BeginWrite calls so "only one writer" is enforced at
// the Go level even though Badger itself would otherwise happily queue
// concurrent Update calls.
var writerMu sync.Mutex

// BeginWrite opens a write transaction. Returns ErrWriterBusy immediately
// if another write transaction is already open (non-blocking, per the
// spec's requirement that writer contention surface as an error rather than
// silently queuing callers indefinitely).
func (b *BadgerEngine) BeginWrite() (*WriteTxn, error) {
	if !writerMu.TryLock() {
		return nil, ErrWriterBusy
	}
	return &WriteTxn{engine: b, txn: b.db.NewTransaction(true)}, nil
}

// Commit durably applies every write made through this transaction. After
// Commit returns nil, the data is guaranteed visible to subsequently opened
// read transactions (spec.md §5's ordering invariant).
func (w *WriteTxn) Commit() error {
	if w.done {
		return nil
	}
	w.done = true
	defer writerMu.Unlock()
	err := w.txn.Commit()
	if err == badger.ErrConflict {
		return ErrWriterBusy
	}
	return err
}

// Abort discards every write made through this transaction.
func (w *WriteTxn) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.txn.Discard()
	writerMu.Unlock()
}

func (w *WriteTxn) PutNode(node *model.Node) error {
	data, err := encodeNode(node)
	if err != nil {
		return err
	}
	if err := w.txn.Set(nodeKey(node.ID), data); err != nil {
		return err
	}
	if err := w.txn.Set(archivedKey(node.ID), encodeArchived(node)); err != nil {
		return err
	}
	return w.txn.Set(kindIndexKey(node.Kind, node.ID), []byte{})
}

func (w *WriteTxn) PutEdge(edge *model.Edge) error {
	data, err := encodeEdge(edge)
	if err != nil {
		return err
	}
	if err := w.txn.Set(edgeKey(edge.ID), data); err != nil {
		return err
	}
	if err := w.txn.Set(outgoingKey(edge.StartNode, edge.ID), []byte{}); err != nil {
		return err
	}
	return w.txn.Set(incomingKey(edge.EndNode, edge.ID), []byte{})
}

func (w *WriteTxn) PutEmbedding(e *model.Embedding) error {
	data, err := encodeEmbedding(e)
	if err != nil {
		return err
	}
	return w.txn.Set(embeddingKey(e.ID), data)
}

func (w *WriteTxn) IndexProperty(nodeID model.NodeID, propKey, value string) error {
	return w.txn.Set(structKey(propKey, value, nodeID), []byte{})
}

// UnindexProperty removes a Structural Index entry within the same write
// transaction as whatever record change makes the entry stale, the
// transactional counterpart to IndexProperty.
func (w *WriteTxn) UnindexProperty(nodeID model.NodeID, propKey, value string) error {
	key := structKey(propKey, value, nodeID)
	if _, err := w.txn.Get(key); err == badger.ErrKeyNotFound {
		return nil
	} else if err != nil {
		return err
	}
	return w.txn.Delete(key)
}

// DeleteNode removes a node row and its kind-index entry within this
// transaction. It does not cascade to edges or the Structural/Vector
// indexes — callers that need that do it explicitly with UnindexProperty
// and their own edge cleanup, the same way BadgerEngine.DeleteNode composes
// those steps outside an explicit WriteTxn.
func (w *WriteTxn) DeleteNode(id model.NodeID, kind model.Kind) error {
	if err := w.txn.Delete(kindIndexKey(kind, id)); err != nil {
		return err
	}
	return w.txn.Delete(nodeKey(id))
}
