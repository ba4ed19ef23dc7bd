package guild

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/params"
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/txsystem/treasury"
	"github.com/alphabill-org/guild/types"
)

type (
	/*
	Genesis describes the initial state of the guild. Members are admitted via
	the bootstrap pathway in the order they are listed, so the first member gets
	ID 1 and so on - rank linked grants refer to the members by these IDs.
	*/
	Genesis struct {
		PartitionID        types.PartitionID      `yaml:"partitionId"`
		Timestamp          uint64                 `yaml:"timestamp"`
		BootstrapAuthority types.Identity         `yaml:"bootstrapAuthority"`
		Members            []GenesisMember        `yaml:"members"`
		Parameters         map[string]uint64      `yaml:"parameters"`
		Balances           []GenesisBalance       `yaml:"balances"`
		CallTargets        []types.Identity       `yaml:"callTargets"`
		RankGrants         []GenesisRankGrant     `yaml:"rankGrants"`
		IdentityGrants     []GenesisIdentityGrant `yaml:"identityGrants"`
		CloseBootstrap     bool                   `yaml:"closeBootstrap"`
	}

	GenesisMember struct {
		Identity types.Identity `yaml:"identity"`
		Rank     rank.Rank      `yaml:"rank"`
	}

	GenesisBalance struct {
		Asset  string           `yaml:"asset"`
		Amount *treasury.Amount `yaml:"amount"`
	}

	GenesisRankGrant struct {
		Member     uint64           `yaml:"member"`
		Base       *treasury.Amount `yaml:"base"`
		Multiplier *treasury.Amount `yaml:"multiplier"`
		MinRank    rank.Rank        `yaml:"minRank"`
		Period     uint64           `yaml:"period"`
	}

	GenesisIdentityGrant struct {
		Principal types.Identity   `yaml:"principal"`
		Base      *treasury.Amount `yaml:"base"`
		Period    uint64           `yaml:"period"`
	}
)

// LoadGenesis reads and validates genesis from the YAML file.
func LoadGenesis(filename string) (*Genesis, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}
	g := &Genesis{}
	if err := yaml.Unmarshal(b, g); err != nil {
		return nil, fmt.Errorf("decoding genesis file %s: %w", filename, err)
	}
	if err := g.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	return g, nil
}

func (g *Genesis) IsValid() error {
	var errs []error
	if g.PartitionID == 0 {
		errs = append(errs, errors.New("partition ID must be assigned"))
	}
	if g.BootstrapAuthority.IsZero() {
		errs = append(errs, errors.New("bootstrap authority must be assigned"))
	}
	for i, m := range g.Members {
		if m.Identity.IsZero() {
			errs = append(errs, fmt.Errorf("member %d: identity must be assigned", i+1))
		}
		if err := m.Rank.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("member %d: %w", i+1, err))
		}
	}
	for i, b := range g.Balances {
		if b.Amount == nil {
			errs = append(errs, fmt.Errorf("balance %d: amount must be assigned", i))
		}
	}
	for i, rg := range g.RankGrants {
		if rg.Member == 0 || rg.Member > uint64(len(g.Members)) {
			errs = append(errs, fmt.Errorf("rank grant %d: unknown member %d", i, rg.Member))
		}
		if rg.Base == nil || rg.Multiplier == nil {
			errs = append(errs, fmt.Errorf("rank grant %d: base and multiplier must be assigned", i))
		}
	}
	for i, ig := range g.IdentityGrants {
		if ig.Base == nil {
			errs = append(errs, fmt.Errorf("identity grant %d: base must be assigned", i))
		}
	}
	return errors.Join(errs...)
}

/*
Apply creates the genesis units in the state "s", the changes are not committed.
All the power checkpoints are recorded at height 0.
*/
func (g *Genesis) Apply(s *state.State) error {
	if err := g.IsValid(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	registry := membership.NewRegistry(s)
	if err := registry.Init(g.BootstrapAuthority); err != nil {
		return fmt.Errorf("initializing membership registry: %w", err)
	}
	for _, m := range g.Members {
		if _, err := registry.Admit(membership.PathwayBootstrap, m.Identity, m.Rank, g.Timestamp, 0); err != nil {
			return fmt.Errorf("admitting member %s: %w", m.Identity, err)
		}
	}

	names := make([]string, 0, len(g.Parameters))
	for name := range g.Parameters {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p, err := params.Parse(name)
		if err != nil {
			return err
		}
		if err := s.Apply(params.Set(p, g.Parameters[name])); err != nil {
			return fmt.Errorf("setting parameter %s: %w", name, err)
		}
	}

	custody := treasury.NewCustody(s)
	for _, b := range g.Balances {
		if err := custody.Deposit(b.Asset, b.Amount); err != nil {
			return fmt.Errorf("initial balance of %q: %w", b.Asset, err)
		}
	}
	for _, target := range g.CallTargets {
		if err := custody.SetCallTarget(target, true); err != nil {
			return fmt.Errorf("adding call target %s: %w", target, err)
		}
	}

	limiter := treasury.NewLimiter(s, registry)
	for _, rg := range g.RankGrants {
		if err := limiter.GrantRankLinked(rg.Member, rg.Base, rg.Multiplier, rg.MinRank, rg.Period, g.Timestamp); err != nil {
			return fmt.Errorf("granting treasurer role to member %d: %w", rg.Member, err)
		}
	}
	for _, ig := range g.IdentityGrants {
		if err := limiter.GrantIdentityLinked(ig.Principal, ig.Base, ig.Period, g.Timestamp); err != nil {
			return fmt.Errorf("granting treasurer role to %s: %w", ig.Principal, err)
		}
	}

	if g.CloseBootstrap {
		if err := registry.CloseBootstrap(); err != nil {
			return fmt.Errorf("closing bootstrap phase: %w", err)
		}
	}
	return nil
}

// NewGenesisState returns state with the genesis applied and committed as round 0.
func NewGenesisState(g *Genesis, opts ...state.Option) (*state.State, error) {
	s := state.NewEmptyState(opts...)
	if err := g.Apply(s); err != nil {
		return nil, err
	}
	if _, err := s.CalculateRoot(); err != nil {
		return nil, fmt.Errorf("calculating genesis state root: %w", err)
	}
	if err := s.Commit(0); err != nil {
		return nil, fmt.Errorf("committing genesis state: %w", err)
	}
	return s, nil
}
