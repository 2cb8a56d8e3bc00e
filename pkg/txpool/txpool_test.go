package txpool

import (
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAcquire_ReturnsUsableTransaction(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))

	pool := New(db)
	reader := pool.Acquire()
	defer reader.Release()

	item, err := reader.Txn().Get([]byte("k"))
	require.NoError(t, err)
	val, err := item.ValueCopy(nil)
	require.NoError(t, err)
	require.Equal(t, "v", string(val))
}

func TestRelease_DiscardsAndAllowsReuse(t *testing.T) {
	db := openTestDB(t)
	pool := New(db)

	r1 := pool.Acquire()
	txn1 := r1.Txn()
	r1.Release()

	// After release, a new Acquire may hand back the same shell with a
	// fresh transaction; the old one must already be discarded.
	r2 := pool.Acquire()
	defer r2.Release()
	require.NotSame(t, txn1, r2.Txn(), "Acquire should hand out a fresh transaction, not the discarded one")
}

func TestAcquire_ObservesWritesCommittedBeforeAcquire(t *testing.T) {
	db := openTestDB(t)
	pool := New(db)

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("before"), []byte("1"))
	}))

	reader := pool.Acquire()
	defer reader.Release()

	_, err := reader.Txn().Get([]byte("before"))
	require.NoError(t, err)

	// A write committed after Acquire must not be visible in this
	// snapshot: read transactions see a point-in-time view.
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("after"), []byte("2"))
	}))
	_, err = reader.Txn().Get([]byte("after"))
	require.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestPool_ConcurrentAcquireRelease(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("shared"), []byte("value"))
	}))

	pool := New(db)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r := pool.Acquire()
				_, err := r.Txn().Get([]byte("shared"))
				r.Release()
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
