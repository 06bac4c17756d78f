package yap

import (
	"github.com/gagliardetto/solana-go"
)

// PDAs groups the program-derived addresses the engine needs for every
// transaction. Derivation is pure: the same program id always yields
// the same addresses.
type PDAs struct {
	Config        solana.PublicKey
	ConfigBump    uint8
	Mint          solana.PublicKey
	Vault         solana.PublicKey
	PendingClaims solana.PublicKey
}

// DerivePDAs derives the program's singleton accounts.
func DerivePDAs(programID solana.PublicKey) (PDAs, error) {
	config, configBump, err := solana.FindProgramAddress([][]byte{[]byte(ConfigSeed)}, programID)
	if err != nil {
		return PDAs{}, err
	}
	mint, _, err := solana.FindProgramAddress([][]byte{[]byte(MintSeed)}, programID)
	if err != nil {
		return PDAs{}, err
	}
	vault, _, err := solana.FindProgramAddress([][]byte{[]byte(VaultSeed)}, programID)
	if err != nil {
		return PDAs{}, err
	}
	pending, _, err := solana.FindProgramAddress([][]byte{[]byte(PendingClaimsSeed)}, programID)
	if err != nil {
		return PDAs{}, err
	}
	return PDAs{
		Config:        config,
		ConfigBump:    configBump,
		Mint:          mint,
		Vault:         vault,
		PendingClaims: pending,
	}, nil
}

// DeriveUserClaim derives the per-wallet claim status account.
func DeriveUserClaim(programID, wallet solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(UserClaimSeed), wallet.Bytes()}, programID)
}
