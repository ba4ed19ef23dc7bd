package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alphabill-org/guild/txsystem/guild"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/txsystem/treasury"
	"github.com/alphabill-org/guild/txsystem/votingpower"
	"github.com/alphabill-org/guild/types"
)

const (
	defaultGenesisFileName = "genesis.yaml"

	genesisCmdFlag = "genesis"
)

type genesisFlags struct {
	*baseConfiguration
	GenesisFile string

	KeyFile            string
	PartitionID        uint32
	Timestamp          uint64
	BootstrapAuthority string
	Members            []string
	Balances           []string
	Parameters         map[string]string
	CloseBootstrap     bool
	Force              bool
}

func newGenesisCmd(config *baseConfiguration) *cobra.Command {
	flags := &genesisFlags{baseConfiguration: config}
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Creates and verifies the genesis of the guild",
	}
	cmd.PersistentFlags().StringVar(&flags.GenesisFile, genesisCmdFlag, "", fmt.Sprintf("path to the genesis file (default: %s)", filepath.Join("$GUILD_HOME", defaultGenesisFileName)))

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Creates new genesis file",
		Long: `Creates new genesis file. Members are given as "identity:rank" pairs and get
member IDs in the order they are listed, the first member gets ID 1.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return genesisNew(flags)
		},
	}
	newCmd.Flags().Uint32Var(&flags.PartitionID, "partition-id", uint32(guild.DefaultPartitionID), "partition identifier of the guild")
	newCmd.Flags().Uint64Var(&flags.Timestamp, "timestamp", 0, "genesis time as unix seconds (default current time)")
	newCmd.Flags().StringVar(&flags.BootstrapAuthority, "bootstrap-authority", "", "identity of the bootstrap authority (default identity of the keys file)")
	newCmd.Flags().StringVarP(&flags.KeyFile, keyFileCmdFlag, "k", "", fmt.Sprintf("path to the keys file (default: %s)", filepath.Join("$GUILD_HOME", defaultKeysFileName)))
	newCmd.Flags().StringArrayVar(&flags.Members, "member", nil, `initial member as "identity:rank", may be repeated`)
	newCmd.Flags().StringArrayVar(&flags.Balances, "balance", nil, `initial fund balance as "asset:amount", may be repeated`)
	newCmd.Flags().StringToStringVar(&flags.Parameters, "parameter", nil, "governance parameter overrides as name=value pairs")
	newCmd.Flags().BoolVar(&flags.CloseBootstrap, "close-bootstrap", false, "close the bootstrap phase at genesis")
	newCmd.Flags().BoolVarP(&flags.Force, "force", "f", false, "overwrite existing genesis file")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verifies the genesis file and prints the summary of the genesis state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return genesisVerify(flags)
		},
	}

	cmd.AddCommand(newCmd, verifyCmd)
	return cmd
}

func (f *genesisFlags) genesisFilePath() string {
	return f.pathInHome(f.GenesisFile, defaultGenesisFileName)
}

func genesisNew(flags *genesisFlags) error {
	file := flags.genesisFilePath()
	if _, err := os.Stat(file); err == nil && !flags.Force {
		return fmt.Errorf("genesis file %s already exists, use --force to overwrite", file)
	}

	g := &guild.Genesis{
		PartitionID:    types.PartitionID(flags.PartitionID),
		Timestamp:      flags.Timestamp,
		CloseBootstrap: flags.CloseBootstrap,
	}
	if g.Timestamp == 0 {
		g.Timestamp = uint64(time.Now().Unix())
	}

	if flags.BootstrapAuthority != "" {
		if err := g.BootstrapAuthority.UnmarshalText([]byte(flags.BootstrapAuthority)); err != nil {
			return fmt.Errorf("invalid bootstrap authority: %w", err)
		}
	} else {
		kf, err := loadKeyFile(flags.pathInHome(flags.KeyFile, defaultKeysFileName))
		if err != nil {
			return fmt.Errorf("bootstrap authority not given and loading keys failed: %w", err)
		}
		g.BootstrapAuthority = kf.Identity
	}

	var errs []error
	for _, s := range flags.Members {
		m, err := parseGenesisMember(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.Members = append(g.Members, m)
	}
	for _, s := range flags.Balances {
		b, err := parseGenesisBalance(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.Balances = append(g.Balances, b)
	}
	if len(flags.Parameters) > 0 {
		g.Parameters = make(map[string]uint64, len(flags.Parameters))
		for name, v := range flags.Parameters {
			value, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid value of parameter %s: %w", name, err))
				continue
			}
			g.Parameters[name] = value
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	// applying to an empty state validates the parameters and the grants too
	if _, err := guild.NewGenesisState(g); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}

	b, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(file, b, 0600); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}
	consoleWriter.Println("genesis saved to", file)
	return nil
}

func genesisVerify(flags *genesisFlags) error {
	g, err := guild.LoadGenesis(flags.genesisFilePath())
	if err != nil {
		return err
	}
	s, err := guild.NewGenesisState(g)
	if err != nil {
		return err
	}

	registry := membership.NewRegistry(s)
	reg, err := registry.Data()
	if err != nil {
		return fmt.Errorf("reading membership registry: %w", err)
	}
	bootstrapOpen, err := registry.BootstrapOpen()
	if err != nil {
		return fmt.Errorf("reading bootstrap state: %w", err)
	}
	total, err := votingpower.NewLedger(s).TotalAt(0)
	if err != nil {
		return err
	}
	f, err := treasury.NewCustody(s).Fund()
	if err != nil {
		return fmt.Errorf("reading fund: %w", err)
	}

	consoleWriter.Printf("partition: %s\n", g.PartitionID)
	consoleWriter.Printf("state hash: %s\n", types.Bytes(s.CommittedHash()))
	consoleWriter.Printf("units: %d\n", s.Size())
	consoleWriter.Printf("members: %d\n", reg.LastMemberID)
	consoleWriter.Printf("total voting power: %d\n", total)
	consoleWriter.Printf("bootstrap open: %t\n", bootstrapOpen)
	for _, b := range f.Balances {
		consoleWriter.Printf("balance %s: %s\n", b.Asset, b.Amount)
	}
	return nil
}

func parseGenesisMember(s string) (guild.GenesisMember, error) {
	id, r, ok := strings.Cut(s, ":")
	if !ok {
		return guild.GenesisMember{}, fmt.Errorf("invalid member %q, expected identity:rank", s)
	}
	m := guild.GenesisMember{}
	if err := m.Identity.UnmarshalText([]byte(id)); err != nil {
		return m, fmt.Errorf("invalid identity of member %q: %w", s, err)
	}
	v, err := strconv.ParseUint(r, 10, 8)
	if err != nil {
		return m, fmt.Errorf("invalid rank of member %q: %w", s, err)
	}
	m.Rank = rank.Rank(v)
	return m, m.Rank.Valid()
}

func parseGenesisBalance(s string) (guild.GenesisBalance, error) {
	asset, amount, ok := strings.Cut(s, ":")
	if !ok || asset == "" {
		return guild.GenesisBalance{}, fmt.Errorf("invalid balance %q, expected asset:amount", s)
	}
	b := guild.GenesisBalance{Asset: asset, Amount: treasury.NewAmount(0)}
	if err := b.Amount.UnmarshalText([]byte(amount)); err != nil {
		return b, err
	}
	return b, nil
}
