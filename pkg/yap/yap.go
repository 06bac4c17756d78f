// Package yap contains the off-chain bindings for the YAP token
// program: PDA derivation, instruction encoding, account layouts, the
// claim merkle tree, and the rate-limited emission pool. Everything
// here is a byte-exact wire contract with the on-chain program and must
// not drift from it.
package yap

// Account discriminators, first 8 bytes of every program account.
var (
	ConfigDiscriminator    = [8]byte{'y', 'a', 'p', 'c', 'o', 'n', 'f', 'g'}
	UserClaimDiscriminator = [8]byte{'y', 'a', 'p', 'c', 'l', 'a', 'i', 'm'}
)

// PDA seeds.
const (
	ConfigSeed        = "config"
	MintSeed          = "mint"
	VaultSeed         = "vault"
	PendingClaimsSeed = "pending_claims"
	UserClaimSeed     = "user_claim"
)

const (
	// Decimals is the YAP mint precision.
	Decimals = 9

	// SecondsPerYear is the emission pool's annual window.
	SecondsPerYear = 365 * 24 * 3600

	// MaxProofDepth bounds claim proofs; supports 2^32 leaves.
	MaxProofDepth = 32
)
