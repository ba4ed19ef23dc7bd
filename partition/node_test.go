package partition

import (
	"context"
	gocrypto "crypto"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/crypto"
	test "github.com/alphabill-org/guild/internal/testutils"
	"github.com/alphabill-org/guild/internal/testutils/observability"
	testsig "github.com/alphabill-org/guild/internal/testutils/sig"
	testtransaction "github.com/alphabill-org/guild/internal/testutils/transaction"
	"github.com/alphabill-org/guild/keyvaluedb"
	"github.com/alphabill-org/guild/keyvaluedb/memorydb"
	"github.com/alphabill-org/guild/txbuffer"
	"github.com/alphabill-org/guild/txsystem"
	"github.com/alphabill-org/guild/txsystem/guild"
	"github.com/alphabill-org/guild/txsystem/treasury"
	"github.com/alphabill-org/guild/types"
)

const genesisTime = 1700000000

type testPartition struct {
	genesis *guild.Genesis
	// signer of the rank 9 member
	member    crypto.Signer
	blocks    *memorydb.MemoryDB
	partition *Node
}

func newTestGenesis(t *testing.T) (*guild.Genesis, crypto.Signer) {
	_, bootstrap := testsig.CreateSignerAndIdentity(t)
	signer, id := testsig.CreateSignerAndIdentity(t)
	return &guild.Genesis{
		PartitionID:        guild.DefaultPartitionID,
		Timestamp:          genesisTime,
		BootstrapAuthority: bootstrap,
		Members:            []guild.GenesisMember{{Identity: id, Rank: 9}},
		CloseBootstrap:     true,
	}, signer
}

func newTxSystem(t *testing.T, g *guild.Genesis) *txsystem.GenericTxSystem {
	s, err := guild.NewGenesisState(g)
	require.NoError(t, err)
	txs, err := guild.NewTxSystem(observability.Default(t), guild.WithState(s), guild.WithPartitionID(g.PartitionID))
	require.NoError(t, err)
	return txs
}

func newTestPartition(t *testing.T, opts ...NodeOption) *testPartition {
	g, signer := newTestGenesis(t)
	tp := &testPartition{genesis: g, member: signer, blocks: memorydb.New()}
	opts = append([]NodeOption{WithBlockStore(tp.blocks)}, opts...)
	n, err := NewNode(context.Background(), g.PartitionID, newTxSystem(t, g), observability.Default(t), opts...)
	require.NoError(t, err)
	tp.partition = n
	return tp
}

func depositTx(t *testing.T, amount uint64) *types.TransactionOrder {
	signer, _ := testsig.CreateSignerAndIdentity(t)
	return testtransaction.NewTransactionOrder(t,
		testtransaction.WithUnitID(treasury.FundID),
		testtransaction.WithTransactionType(treasury.TxDeposit),
		testtransaction.WithAttributes(&treasury.DepositAttributes{Asset: treasury.NativeAsset, Amount: treasury.NewAmount(amount)}),
		testtransaction.WithSigner(signer))
}

func lockTx(t *testing.T, signer crypto.Signer, timeout uint64) *types.TransactionOrder {
	return testtransaction.NewTransactionOrder(t,
		testtransaction.WithUnitID(treasury.FundID),
		testtransaction.WithTransactionType(treasury.TxLockFunds),
		testtransaction.WithAttributes(&treasury.LockFundsAttributes{}),
		testtransaction.WithTimeout(timeout),
		testtransaction.WithSigner(signer))
}

func (tp *testPartition) submit(t *testing.T, txs ...*types.TransactionOrder) [][]byte {
	t.Helper()
	var hashes [][]byte
	for _, tx := range txs {
		h, err := tp.partition.SubmitTx(context.Background(), tx)
		require.NoError(t, err)
		hashes = append(hashes, h)
	}
	return hashes
}

func (tp *testPartition) produceBlock(t *testing.T, now uint64) {
	t.Helper()
	require.NoError(t, tp.partition.produceBlock(context.Background(), time.Unix(int64(now), 0)))
}

func fundBalance(t *testing.T, n *Node) string {
	u, err := n.TransactionSystemState().GetUnit(treasury.FundID, true)
	require.NoError(t, err)
	return u.Data().(*treasury.Fund).Balance(treasury.NativeAsset).String()
}

func Test_NewNode_invalidConfiguration(t *testing.T) {
	obs := observability.NOPObservability()
	g, _ := newTestGenesis(t)

	n, err := NewNode(context.Background(), g.PartitionID, nil, obs)
	require.ErrorIs(t, err, ErrTxSystemIsNil)
	require.Nil(t, n)

	n, err = NewNode(context.Background(), 0, newTxSystem(t, g), obs)
	require.ErrorIs(t, err, ErrPartitionIDIsNil)
	require.Nil(t, n)

	_, err = NewNode(context.Background(), g.PartitionID, newTxSystem(t, g), obs, WithBlockInterval(0))
	require.EqualError(t, err, "invalid node configuration: block interval must be positive, got 0s")

	_, err = NewNode(context.Background(), g.PartitionID, newTxSystem(t, g), obs, WithMaxTxPerBlock(0))
	require.EqualError(t, err, "invalid node configuration: max transactions per block must be at least 1, got 0")

	_, err = NewNode(context.Background(), g.PartitionID, newTxSystem(t, g), obs, WithTxBufferSize(0))
	require.ErrorContains(t, err, "creating tx buffer")
}

func Test_Node_SubmitTx(t *testing.T) {
	tp := newTestPartition(t)
	ctx := context.Background()

	_, err := tp.partition.SubmitTx(ctx, nil)
	require.EqualError(t, err, "transaction is nil")

	tx := testtransaction.NewTransactionOrder(t, testtransaction.WithPartitionID(0x01))
	_, err = tp.partition.SubmitTx(ctx, tx)
	require.ErrorIs(t, err, txsystem.ErrInvalidPartitionIdentifier)

	_, err = tp.partition.SubmitTx(ctx, lockTx(t, tp.member, 1))
	require.ErrorIs(t, err, ErrTxTimeout)

	tx = testtransaction.NewTransactionOrder(t, testtransaction.WithOwnerProof([]byte{1, 2, 3}))
	_, err = tp.partition.SubmitTx(ctx, tx)
	require.ErrorIs(t, err, txsystem.ErrInvalidOwnerProof)

	tx = depositTx(t, 10)
	hash, err := tp.partition.SubmitTx(ctx, tx)
	require.NoError(t, err)
	expected, err := tx.Hash(gocrypto.SHA256)
	require.NoError(t, err)
	require.Equal(t, expected, hash)

	_, err = tp.partition.SubmitTx(ctx, tx)
	require.ErrorIs(t, err, txbuffer.ErrTxInBuffer)
}

func Test_Node_produceBlock(t *testing.T) {
	tp := newTestPartition(t)
	n := tp.partition
	require.EqualValues(t, 0, n.LatestBlockNumber())

	// nothing in the buffer, no block
	tp.produceBlock(t, genesisTime+1)
	require.EqualValues(t, 0, n.LatestBlockNumber())

	hashes := tp.submit(t, depositTx(t, 10), lockTx(t, tp.member, 10), lockTx(t, tp.member, 11))
	// owner proof is not valid, the transaction is dropped
	_, err := n.txBuffer.Add(context.Background(), testtransaction.NewTransactionOrder(t, testtransaction.WithOwnerProof([]byte{1})))
	require.NoError(t, err)

	tp.produceBlock(t, genesisTime+10)
	require.EqualValues(t, 1, n.LatestBlockNumber())
	require.Zero(t, n.txBuffer.Len())

	b, err := n.GetBlock(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, b.IsValid())
	require.Equal(t, guild.DefaultPartitionID, b.Header.PartitionID)
	require.EqualValues(t, 1, b.Header.Round)
	require.EqualValues(t, genesisTime+10, b.Header.Timestamp)
	require.Nil(t, b.Header.PreviousBlockHash)
	require.Len(t, b.Transactions, 3)
	require.True(t, b.Transactions[0].Succeeded())
	require.True(t, b.Transactions[1].Succeeded())
	require.False(t, b.Transactions[2].Succeeded())
	require.Contains(t, b.Transactions[2].ServerMetadata.ProcessingDetails, treasury.ErrFundLocked.Error())
	require.Equal(t, "10", fundBalance(t, n))

	txr, idx, err := n.GetTransactionRecord(context.Background(), hashes[2])
	require.NoError(t, err)
	require.Equal(t, &TxIndex{RoundNumber: 1, TxOrderIndex: 2}, idx)
	require.Equal(t, b.Transactions[2], txr)

	_, err = n.GetBlock(context.Background(), 2)
	require.ErrorIs(t, err, ErrBlockNotFound)

	// block time doesn't go backwards, blocks are chained
	tp.submit(t, depositTx(t, 5))
	tp.produceBlock(t, genesisTime)
	b2, err := n.GetBlock(context.Background(), 2)
	require.NoError(t, err)
	require.EqualValues(t, genesisTime+10, b2.Header.Timestamp)
	h, err := b.Hash(gocrypto.SHA256)
	require.NoError(t, err)
	require.Equal(t, h, b2.Header.PreviousBlockHash)
	require.Equal(t, "15", fundBalance(t, n))
}

func Test_Node_emptyRoundIsReverted(t *testing.T) {
	tp := newTestPartition(t)
	n := tp.partition

	// only invalid transactions, no block is produced
	_, err := n.txBuffer.Add(context.Background(), testtransaction.NewTransactionOrder(t, testtransaction.WithOwnerProof([]byte{1})))
	require.NoError(t, err)
	tp.produceBlock(t, genesisTime+1)
	require.EqualValues(t, 0, n.LatestBlockNumber())

	tp.submit(t, depositTx(t, 1))
	tp.produceBlock(t, genesisTime+2)
	require.EqualValues(t, 1, n.LatestBlockNumber())
}

func Test_Node_maxTxPerBlock(t *testing.T) {
	tp := newTestPartition(t, WithMaxTxPerBlock(2))
	tp.submit(t, depositTx(t, 1), depositTx(t, 2), depositTx(t, 3))
	tp.produceBlock(t, genesisTime+1)
	tp.produceBlock(t, genesisTime+2)

	b, err := tp.partition.GetBlock(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, b.Transactions, 2)
	b, err = tp.partition.GetBlock(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, b.Transactions, 1)
	require.Equal(t, "6", fundBalance(t, tp.partition))
}

func Test_Node_replayBlocks(t *testing.T) {
	tp := newTestPartition(t)
	hashes := tp.submit(t, depositTx(t, 10), lockTx(t, tp.member, 10))
	tp.produceBlock(t, genesisTime+10)
	tp.submit(t, depositTx(t, 7), lockTx(t, tp.member, 11))
	tp.produceBlock(t, genesisTime+20)
	require.EqualValues(t, 2, tp.partition.LatestBlockNumber())
	expected, err := tp.partition.transactionSystem.StateSummary()
	require.NoError(t, err)

	// new node on the genesis state catches up from the block store
	n, err := NewNode(context.Background(), tp.genesis.PartitionID, newTxSystem(t, tp.genesis), observability.Default(t), WithBlockStore(tp.blocks))
	require.NoError(t, err)
	require.EqualValues(t, 2, n.LatestBlockNumber())
	summary, err := n.transactionSystem.StateSummary()
	require.NoError(t, err)
	require.Equal(t, expected.Root, summary.Root)
	require.Equal(t, "17", fundBalance(t, n))

	// tx index is rebuilt
	_, idx, err := n.GetTransactionRecord(context.Background(), hashes[1])
	require.NoError(t, err)
	require.Equal(t, &TxIndex{RoundNumber: 1, TxOrderIndex: 1}, idx)

	// and the node continues the chain
	tp2 := &testPartition{genesis: tp.genesis, member: tp.member, blocks: tp.blocks, partition: n}
	tp2.submit(t, depositTx(t, 3))
	tp2.produceBlock(t, genesisTime+30)
	b2, err := n.GetBlock(context.Background(), 2)
	require.NoError(t, err)
	b3, err := n.GetBlock(context.Background(), 3)
	require.NoError(t, err)
	h, err := b2.Hash(gocrypto.SHA256)
	require.NoError(t, err)
	require.Equal(t, h, b3.Header.PreviousBlockHash)
}

func Test_Node_replayBlocks_stateMismatch(t *testing.T) {
	tp := newTestPartition(t)
	tp.submit(t, depositTx(t, 10))
	tp.produceBlock(t, genesisTime+10)

	var b types.Block
	found, err := tp.blocks.Read(keyvaluedb.Uint64ToKey(1), &b)
	require.NoError(t, err)
	require.True(t, found)
	b.StateHash = []byte{1, 2, 3}
	require.NoError(t, tp.blocks.Write(keyvaluedb.Uint64ToKey(1), &b))

	_, err = NewNode(context.Background(), tp.genesis.PartitionID, newTxSystem(t, tp.genesis), observability.Default(t), WithBlockStore(tp.blocks))
	require.ErrorContains(t, err, "failed to replay block 1: transaction system state does not match block")
}

func Test_Node_replayBlocks_wrongPartition(t *testing.T) {
	tp := newTestPartition(t)
	tp.submit(t, depositTx(t, 10))
	tp.produceBlock(t, genesisTime+10)

	g := *tp.genesis
	g.PartitionID = 0x10
	_, err := NewNode(context.Background(), g.PartitionID, newTxSystem(t, &g), observability.Default(t), WithBlockStore(tp.blocks))
	require.ErrorContains(t, err, "block is for partition 00000007, expected 00000010")
}

func Test_Node_Run(t *testing.T) {
	tp := newTestPartition(t, WithBlockInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tp.partition.Run(ctx) }()

	tp.submit(t, depositTx(t, 10))
	test.WaitForRound(t, tp.partition.LatestBlockNumber, 1)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(test.WaitDuration):
		t.Fatal("node didn't stop")
	}
}

func Test_TxIndexer(t *testing.T) {
	idx := NewTxIndexer(gocrypto.SHA256, memorydb.New(), observability.NOPObservability().Logger())
	require.EqualValues(t, 0, idx.LatestIndexedRound())

	txr := testtransaction.NewTransactionRecord(t)
	b := &types.Block{Header: &types.Header{PartitionID: 7, Round: 3}, Transactions: []*types.TransactionRecord{txr}}
	require.NoError(t, idx.IndexBlock(context.Background(), b))
	require.EqualValues(t, 3, idx.LatestIndexedRound())
	require.EqualError(t, idx.IndexBlock(context.Background(), b), "block 3 already indexed")

	h, err := txr.TransactionOrder.Hash(gocrypto.SHA256)
	require.NoError(t, err)
	ti, err := idx.Read(h)
	require.NoError(t, err)
	require.Equal(t, &TxIndex{RoundNumber: 3, TxOrderIndex: 0}, ti)

	_, err = idx.Read([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrIndexNotFound)
}

func Test_DefaultTxValidator(t *testing.T) {
	_, err := NewDefaultTxValidator(0)
	require.EqualError(t, err, "invalid transaction partition identifier: 00000000")

	v, err := NewDefaultTxValidator(guild.DefaultPartitionID)
	require.NoError(t, err)
	signer, _ := testsig.CreateSignerAndIdentity(t)

	tx := testtransaction.NewTransactionOrder(t, testtransaction.WithTimeout(5), testtransaction.WithSigner(signer))
	require.NoError(t, v.Validate(tx, 4))
	require.ErrorIs(t, v.Validate(tx, 5), ErrTxTimeout)
	require.EqualError(t, v.Validate(&types.TransactionOrder{}, 1), "transaction is nil")
}
