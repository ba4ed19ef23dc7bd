package cmd

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	acc "github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"

	abcrypto "github.com/alphabill-org/guild/crypto"
	"github.com/alphabill-org/guild/types"
)

const (
	mnemonicEntropyBitSize = 128
	defaultKeysFileName    = "keys.json"

	keyFileCmdFlag = "key-file"
)

type (
	// keyFile is the content of the keys file, the authority key of a guild member.
	keyFile struct {
		Mnemonic       string         `json:"mnemonic,omitempty"`
		DerivationPath string         `json:"derivationPath,omitempty"`
		PrivateKey     types.Bytes    `json:"privateKey"`
		PublicKey      types.Bytes    `json:"publicKey"`
		Identity       types.Identity `json:"identity"`
	}

	keysFlags struct {
		*baseConfiguration
		KeyFile  string
		Mnemonic string
		Account  uint64
		Force    bool
	}
)

func newKeysCmd(config *baseConfiguration) *cobra.Command {
	flags := &keysFlags{baseConfiguration: config}
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manages the authority keys of guild members",
	}
	cmd.PersistentFlags().StringVarP(&flags.KeyFile, keyFileCmdFlag, "k", "", fmt.Sprintf("path to the keys file (default: %s)", filepath.Join("$GUILD_HOME", defaultKeysFileName)))

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generates new authority key",
		Long:  `Generates new secp256k1 authority key from the mnemonic (new mnemonic is generated when not given) and saves it into the keys file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return keysGenerate(flags)
		},
	}
	generateCmd.Flags().StringVar(&flags.Mnemonic, "mnemonic", "", "BIP-39 mnemonic to derive the key from")
	generateCmd.Flags().Uint64Var(&flags.Account, "account", 0, "account index of the derivation path")
	generateCmd.Flags().BoolVarP(&flags.Force, "force", "f", false, "overwrite existing keys file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Prints the identity and the public key of the keys file",
		RunE: func(cmd *cobra.Command, args []string) error {
			kf, err := loadKeyFile(flags.keyFilePath())
			if err != nil {
				return err
			}
			consoleWriter.Println("identity:", kf.Identity.String())
			consoleWriter.Println("public key:", kf.PublicKey.String())
			return nil
		},
	}

	cmd.AddCommand(generateCmd, showCmd)
	return cmd
}

func (f *keysFlags) keyFilePath() string {
	return f.pathInHome(f.KeyFile, defaultKeysFileName)
}

func keysGenerate(flags *keysFlags) error {
	file := flags.keyFilePath()
	if _, err := os.Stat(file); err == nil && !flags.Force {
		return fmt.Errorf("keys file %s already exists, use --force to overwrite", file)
	}

	kf, err := newAccountKey(flags.Mnemonic, flags.Account)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}
	if err := kf.writeTo(file); err != nil {
		return fmt.Errorf("saving keys: %w", err)
	}
	if flags.Mnemonic == "" {
		consoleWriter.Println("mnemonic:", kf.Mnemonic)
	}
	consoleWriter.Println("identity:", kf.Identity.String())
	consoleWriter.Println("keys saved to", file)
	return nil
}

// newAccountKey derives the authority key of the account from mnemonic, or generates mnemonic first if empty string is provided.
func newAccountKey(mnemonic string, account uint64) (*keyFile, error) {
	if mnemonic == "" {
		entropy, err := bip39.NewEntropy(mnemonicEntropyBitSize)
		if err != nil {
			return nil, err
		}
		if mnemonic, err = bip39.NewMnemonic(entropy); err != nil {
			return nil, err
		}
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, err
	}

	// only HDPrivateKeyID is used from chaincfg.MainNetParams, as the version
	// flag of the extended key
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	derivationPath := newDerivationPath(account)
	path, err := acc.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, err
	}
	privateKey, err := derivePrivateKey(path, masterKey)
	if err != nil {
		return nil, err
	}

	kf, err := keyFileFromPrivateKey(ethcrypto.FromECDSA(privateKey))
	if err != nil {
		return nil, err
	}
	kf.Mnemonic = mnemonic
	kf.DerivationPath = derivationPath
	return kf, nil
}

// newDerivationPath returns BIP-44 derivation path m / purpose' / coin_type' / account' / change / address_index
func newDerivationPath(account uint64) string {
	return fmt.Sprintf("m/44'/634'/%d'/0/0", account)
}

func derivePrivateKey(path acc.DerivationPath, masterKey *hdkeychain.ExtendedKey) (*ecdsa.PrivateKey, error) {
	var err error
	var derivedKey = masterKey
	for _, n := range path {
		derivedKey, err = derivedKey.Derive(n)
		if err != nil {
			return nil, err
		}
	}

	privateKey, err := derivedKey.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return privateKey.ToECDSA(), nil
}

func keyFileFromPrivateKey(privKey []byte) (*keyFile, error) {
	signer, err := abcrypto.NewInMemorySecp256K1SignerFromKey(privKey)
	if err != nil {
		return nil, err
	}
	verifier, err := signer.Verifier()
	if err != nil {
		return nil, err
	}
	pubKey, err := verifier.MarshalPublicKey()
	if err != nil {
		return nil, err
	}
	return &keyFile{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Identity:   types.IdentityFromPubKey(pubKey),
	}, nil
}

func (kf *keyFile) writeTo(file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, b, 0600)
}

func loadKeyFile(file string) (*keyFile, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading keys file: %w", err)
	}
	kf := &keyFile{}
	if err := json.Unmarshal(b, kf); err != nil {
		return nil, fmt.Errorf("decoding keys file %s: %w", file, err)
	}
	// the private key is authoritative, the rest is derived from it
	derived, err := keyFileFromPrivateKey(kf.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key in %s: %w", file, err)
	}
	if derived.Identity != kf.Identity {
		return nil, fmt.Errorf("identity %s in the keys file doesn't match the private key", kf.Identity)
	}
	derived.Mnemonic = kf.Mnemonic
	derived.DerivationPath = kf.DerivationPath
	return derived, nil
}
