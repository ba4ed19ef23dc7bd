package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/keyvaluedb"
)

type testValue struct {
	_    struct{} `cbor:",toarray"`
	Name string
	N    uint64
}

func initBoltDB(t *testing.T) *BoltDB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func isEmpty(t *testing.T, db *BoltDB) bool {
	t.Helper()
	empty, err := keyvaluedb.IsEmpty(db)
	require.NoError(t, err)
	return empty
}

func TestBoltDB_ReadWriteDelete(t *testing.T) {
	db := initBoltDB(t)
	require.True(t, isEmpty(t, db))
	require.NotEmpty(t, db.Path())

	var v testValue
	found, err := db.Read([]byte("a"), &v)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, db.Write([]byte("a"), &testValue{Name: "foo", N: 3}))
	found, err = db.Read([]byte("a"), &v)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "foo", v.Name)
	require.EqualValues(t, 3, v.N)
	require.False(t, isEmpty(t, db))

	require.NoError(t, db.Delete([]byte("a")))
	found, err = db.Read([]byte("a"), &v)
	require.NoError(t, err)
	require.False(t, found)
}

func TestBoltDB_InvalidInput(t *testing.T) {
	db := initBoltDB(t)
	require.ErrorIs(t, db.Write(nil, &testValue{}), keyvaluedb.ErrInvalidKey)
	var nilValue *testValue
	require.ErrorIs(t, db.Write([]byte("a"), nilValue), keyvaluedb.ErrValueIsNil)
	_, err := db.Read([]byte{}, &testValue{})
	require.ErrorIs(t, err, keyvaluedb.ErrInvalidKey)
	require.ErrorIs(t, db.Delete(nil), keyvaluedb.ErrInvalidKey)
}

func TestBoltDB_Iterators(t *testing.T) {
	db := initBoltDB(t)
	for _, n := range []uint64{3, 1, 2, 10} {
		require.NoError(t, db.Write(keyvaluedb.Uint64ToKey(n), &testValue{N: n}))
	}

	it := db.First()
	var got []uint64
	for ; it.Valid(); it.Next() {
		var v testValue
		require.NoError(t, it.Value(&v))
		require.Equal(t, v.N, keyvaluedb.KeyToUint64(it.Key()))
		got = append(got, v.N)
	}
	require.NoError(t, it.Close())
	require.Equal(t, []uint64{1, 2, 3, 10}, got)

	it = db.Last()
	require.True(t, it.Valid())
	require.EqualValues(t, 10, keyvaluedb.KeyToUint64(it.Key()))
	it.Prev()
	require.EqualValues(t, 3, keyvaluedb.KeyToUint64(it.Key()))
	require.NoError(t, it.Close())

	it = db.Find(keyvaluedb.Uint64ToKey(4))
	require.True(t, it.Valid())
	require.EqualValues(t, 10, keyvaluedb.KeyToUint64(it.Key()))
	require.NoError(t, it.Close())

	it = db.Find(keyvaluedb.Uint64ToKey(11))
	require.False(t, it.Valid())
	require.Nil(t, it.Key())
	require.EqualError(t, it.Value(&testValue{}), "iterator invalid")
	require.NoError(t, it.Close())
}

func TestBoltTx_Nil(t *testing.T) {
	tx, err := NewBoltTx(nil, []byte("test"), nil, nil)
	require.EqualError(t, err, "db is nil")
	require.Nil(t, tx)
}

func TestBoltTx_CommitAndRollback(t *testing.T) {
	db := initBoltDB(t)

	tx, err := db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("test1"), &testValue{N: 1}))
	require.NoError(t, tx.Write([]byte("test2"), &testValue{N: 2}))
	var v testValue
	found, err := tx.Read([]byte("test1"), &v)
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, tx.Rollback())
	require.True(t, isEmpty(t, db))

	tx, err = db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("test1"), &testValue{N: 1}))
	require.NoError(t, tx.Write([]byte("test2"), &testValue{N: 2}))
	require.NoError(t, tx.Delete([]byte("test1")))
	require.NoError(t, tx.Commit())

	found, err = db.Read([]byte("test1"), &v)
	require.NoError(t, err)
	require.False(t, found)
	found, err = db.Read([]byte("test2"), &v)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 2, v.N)
}
