package partition

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alphabill-org/guild/keyvaluedb"
	"github.com/alphabill-org/guild/logger"
	"github.com/alphabill-org/guild/types"
)

var (
	ErrIndexNotFound     = errors.New("index not found")
	keyLatestRoundNumber = []byte("latestRoundNumber")
)

type (
	// TxIndex is the location of the transaction record in the block store.
	TxIndex struct {
		_            struct{} `cbor:",toarray"`
		RoundNumber  uint64
		TxOrderIndex int
	}

	// TxIndexer maps the hash of the transaction order to the TxIndex.
	TxIndexer struct {
		hashAlgorithm crypto.Hash
		storage       keyvaluedb.KeyValueDB
		log           *slog.Logger
	}
)

func NewTxIndexer(algo crypto.Hash, db keyvaluedb.KeyValueDB, l *slog.Logger) *TxIndexer {
	return &TxIndexer{
		hashAlgorithm: algo,
		storage:       db,
		log:           l,
	}
}

// IndexBlock writes the index entries of all the transactions of the block.
func (p *TxIndexer) IndexBlock(ctx context.Context, block *types.Block) (err error) {
	roundNumber := block.GetRoundNumber()
	if roundNumber <= p.LatestIndexedRound() {
		return fmt.Errorf("block %d already indexed", roundNumber)
	}
	dbTx, err := p.storage.StartTx()
	if err != nil {
		return fmt.Errorf("start DB transaction failed: %w", err)
	}
	defer func() {
		if err != nil {
			if e := dbTx.Rollback(); e != nil {
				err = errors.Join(err, fmt.Errorf("index transaction rollback failed: %w", e))
			}
			return
		}
		err = dbTx.Commit()
	}()

	for i, txr := range block.Transactions {
		var orderHash []byte
		if orderHash, err = txr.TransactionOrder.Hash(p.hashAlgorithm); err != nil {
			return fmt.Errorf("hashing transaction %d: %w", i, err)
		}
		if err = dbTx.Write(orderHash, &TxIndex{RoundNumber: roundNumber, TxOrderIndex: i}); err != nil {
			return fmt.Errorf("writing index of transaction %d: %w", i, err)
		}
	}
	if err = dbTx.Write(keyLatestRoundNumber, roundNumber); err != nil {
		return fmt.Errorf("round number update failed: %w", err)
	}
	p.log.Log(ctx, logger.LevelTrace, fmt.Sprintf("indexed %d transactions of block %d", len(block.Transactions), roundNumber))
	return nil
}

func (p *TxIndexer) LatestIndexedRound() uint64 {
	var blockNr uint64
	if found, err := p.storage.Read(keyLatestRoundNumber, &blockNr); !found || err != nil {
		return 0
	}
	return blockNr
}

func (p *TxIndexer) Read(txOrderHash []byte) (*TxIndex, error) {
	index := &TxIndex{}
	f, err := p.storage.Read(txOrderHash, index)
	if err != nil {
		return nil, fmt.Errorf("tx index query failed: %w", err)
	}
	if !f {
		return nil, ErrIndexNotFound
	}
	return index, nil
}
