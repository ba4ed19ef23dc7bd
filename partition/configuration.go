package partition

import (
	gocrypto "crypto"
	"errors"
	"fmt"
	"time"

	"github.com/alphabill-org/guild/keyvaluedb"
	"github.com/alphabill-org/guild/keyvaluedb/memorydb"
	"github.com/alphabill-org/guild/txsystem"
	"github.com/alphabill-org/guild/types"
)

const (
	DefaultBlockInterval        = time.Second
	DefaultMaxTxPerBlock        = 1000
	DefaultTxBufferSize    uint = 1000
)

var (
	ErrTxSystemIsNil    = errors.New("transaction system is nil")
	ErrPartitionIDIsNil = errors.New("partition identifier is unassigned")
)

type (
	configuration struct {
		partitionID   types.PartitionID
		txValidator   TxValidator
		blockStore    keyvaluedb.KeyValueDB
		txIndexStore  keyvaluedb.KeyValueDB
		blockInterval time.Duration // how often the node attempts to produce a block
		maxTxPerBlock int
		txBufferSize  uint
		hashAlgorithm gocrypto.Hash
		clock         func() time.Time
	}

	NodeOption func(c *configuration)
)

func WithBlockStore(blockStore keyvaluedb.KeyValueDB) NodeOption {
	return func(c *configuration) {
		c.blockStore = blockStore
	}
}

// WithTxIndex sets the store of the "transaction hash -> block" index.
func WithTxIndex(db keyvaluedb.KeyValueDB) NodeOption {
	return func(c *configuration) {
		c.txIndexStore = db
	}
}

func WithBlockInterval(interval time.Duration) NodeOption {
	return func(c *configuration) {
		c.blockInterval = interval
	}
}

func WithMaxTxPerBlock(count int) NodeOption {
	return func(c *configuration) {
		c.maxTxPerBlock = count
	}
}

func WithTxBufferSize(size uint) NodeOption {
	return func(c *configuration) {
		c.txBufferSize = size
	}
}

func WithTxValidator(txValidator TxValidator) NodeOption {
	return func(c *configuration) {
		c.txValidator = txValidator
	}
}

func WithHashAlgorithm(hashAlgorithm gocrypto.Hash) NodeOption {
	return func(c *configuration) {
		c.hashAlgorithm = hashAlgorithm
	}
}

// WithClock sets the source of block timestamps.
func WithClock(clock func() time.Time) NodeOption {
	return func(c *configuration) {
		c.clock = clock
	}
}

func loadAndValidateConfiguration(partitionID types.PartitionID, txs txsystem.TransactionSystem, nodeOptions ...NodeOption) (*configuration, error) {
	if txs == nil {
		return nil, ErrTxSystemIsNil
	}
	if partitionID == 0 {
		return nil, ErrPartitionIDIsNil
	}
	c := &configuration{
		partitionID:   partitionID,
		blockInterval: DefaultBlockInterval,
		maxTxPerBlock: DefaultMaxTxPerBlock,
		txBufferSize:  DefaultTxBufferSize,
		hashAlgorithm: gocrypto.SHA256,
		clock:         time.Now,
	}
	for _, option := range nodeOptions {
		option(c)
	}
	if err := c.initMissingDefaults(); err != nil {
		return nil, err
	}
	if err := c.isValid(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *configuration) initMissingDefaults() (err error) {
	if c.blockStore == nil {
		c.blockStore = memorydb.New()
	}
	if c.txIndexStore == nil {
		c.txIndexStore = memorydb.New()
	}
	if c.txValidator == nil {
		if c.txValidator, err = NewDefaultTxValidator(c.partitionID); err != nil {
			return fmt.Errorf("creating tx validator: %w", err)
		}
	}
	return nil
}

func (c *configuration) isValid() error {
	if c.blockInterval <= 0 {
		return fmt.Errorf("block interval must be positive, got %s", c.blockInterval)
	}
	if c.maxTxPerBlock < 1 {
		return fmt.Errorf("max transactions per block must be at least 1, got %d", c.maxTxPerBlock)
	}
	if !c.hashAlgorithm.Available() {
		return fmt.Errorf("hash algorithm %s is not available", c.hashAlgorithm)
	}
	return nil
}
