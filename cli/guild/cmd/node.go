package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/guild/keyvaluedb/boltdb"
	"github.com/alphabill-org/guild/logger"
	"github.com/alphabill-org/guild/partition"
	"github.com/alphabill-org/guild/rpc"
	"github.com/alphabill-org/guild/txsystem/guild"
)

const (
	blockStoreFileName   = "blocks.db"
	txIndexStoreFileName = "txindex.db"

	defaultRESTServerAddress = "localhost:26866"
)

type nodeFlags struct {
	*baseConfiguration
	GenesisFile    string
	BlockStoreFile string
	TxIndexFile    string

	RESTServerAddress string
	RESTMaxBodyBytes  int64

	BlockInterval time.Duration
	MaxTxPerBlock int
	TxBufferSize  uint
}

func newNodeCmd(config *baseConfiguration) *cobra.Command {
	flags := &nodeFlags{baseConfiguration: config}
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Starts the guild node",
		Long: `Starts the guild node: blocks stored in the block database are replayed on top
of the genesis state, after that the node produces new blocks from the submitted
transactions and serves the REST API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.GenesisFile, genesisCmdFlag, "",
		fmt.Sprintf("path to the genesis file (default %s)", filepath.Join("$GUILD_HOME", defaultGenesisFileName)))
	cmd.Flags().StringVar(&flags.BlockStoreFile, "block-db", "",
		fmt.Sprintf("path to the block database (default %s)", filepath.Join("$GUILD_HOME", blockStoreFileName)))
	cmd.Flags().StringVar(&flags.TxIndexFile, "tx-index-db", "",
		fmt.Sprintf("path to the transaction index database (default %s)", filepath.Join("$GUILD_HOME", txIndexStoreFileName)))
	cmd.Flags().StringVar(&flags.RESTServerAddress, "rest-server-address", defaultRESTServerAddress, "address of the REST API server")
	cmd.Flags().Int64Var(&flags.RESTMaxBodyBytes, "rest-server-max-body", rpc.DefaultMaxBodyBytes, "maximum size of the REST API request body in bytes")
	cmd.Flags().DurationVar(&flags.BlockInterval, "block-interval", partition.DefaultBlockInterval, "how often the node makes a block")
	cmd.Flags().IntVar(&flags.MaxTxPerBlock, "max-tx-per-block", partition.DefaultMaxTxPerBlock, "maximum number of transactions in a block")
	cmd.Flags().UintVar(&flags.TxBufferSize, "tx-buffer-size", partition.DefaultTxBufferSize, "maximum number of transactions waiting in the buffer")
	return cmd
}

func runNode(ctx context.Context, flags *nodeFlags) (rErr error) {
	g, err := guild.LoadGenesis(flags.pathInHome(flags.GenesisFile, defaultGenesisFileName))
	if err != nil {
		return err
	}

	// log records get the round of the latest block
	var nodeRef atomic.Pointer[partition.Node]
	baseLog := flags.observe.Logger()
	log := slog.New(logger.NewRoundHandler(baseLog.Handler(), func() uint64 {
		if n := nodeRef.Load(); n != nil {
			return n.LatestBlockNumber()
		}
		return 0
	}))
	obs := flags.observe.withLogger(log)

	s, err := guild.NewGenesisState(g)
	if err != nil {
		return fmt.Errorf("creating genesis state: %w", err)
	}
	txs, err := guild.NewTxSystem(obs, guild.WithState(s), guild.WithPartitionID(g.PartitionID))
	if err != nil {
		return fmt.Errorf("creating transaction system: %w", err)
	}

	blockStore, err := boltdb.New(flags.pathInHome(flags.BlockStoreFile, blockStoreFileName))
	if err != nil {
		return fmt.Errorf("opening block store: %w", err)
	}
	defer func() { rErr = errors.Join(rErr, blockStore.Close()) }()
	txIndex, err := boltdb.New(flags.pathInHome(flags.TxIndexFile, txIndexStoreFileName))
	if err != nil {
		return fmt.Errorf("opening transaction index: %w", err)
	}
	defer func() { rErr = errors.Join(rErr, txIndex.Close()) }()

	node, err := partition.NewNode(ctx, g.PartitionID, txs, obs,
		partition.WithBlockStore(blockStore),
		partition.WithTxIndex(txIndex),
		partition.WithBlockInterval(flags.BlockInterval),
		partition.WithMaxTxPerBlock(flags.MaxTxPerBlock),
		partition.WithTxBufferSize(flags.TxBufferSize),
	)
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}
	nodeRef.Store(node)

	log.InfoContext(ctx, fmt.Sprintf("starting guild node of partition %s: BuildInfo=%s", g.PartitionID, buildInfo()))
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error { return node.Run(ctx) })

	eg.Go(func() error {
		registrars := []rpc.Registrar{
			rpc.NodeEndpoints(node, obs),
			rpc.GuildEndpoints(node, obs),
		}
		if h := obs.MetricsHandler(); h != nil {
			registrars = append(registrars, rpc.RegistrarFunc(func(r *mux.Router) {
				r.Handle("/metrics", h).Methods(http.MethodGet)
			}))
		}
		server := rpc.NewRESTServer(flags.RESTServerAddress, flags.RESTMaxBodyBytes, obs, registrars...)
		log.InfoContext(ctx, fmt.Sprintf("REST server listening on %s", flags.RESTServerAddress))
		return httpsrv.Run(ctx, *server, httpsrv.ShutdownTimeout(5*time.Second))
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var vcsData []string
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			vcsData = append(vcsData, s.Key+"="+s.Value)
		}
	}
	return strings.Join(vcsData, " ")
}
