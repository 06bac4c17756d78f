package yap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ConfigLen is the fixed size of the program's config account.
const ConfigLen = 8 + 32 + 32 + 32 + 32 + 32 + 8 + 8 + 8 + 32 + 2 + 1 // 227

// UserClaimStatusLen is the fixed size of a per-wallet claim account.
const UserClaimStatusLen = 8 + 8 + 8 + 1 // 25

// ErrBadDiscriminator is returned when account data does not carry the
// expected discriminator, i.e. the address holds some other account.
var ErrBadDiscriminator = errors.New("unexpected account discriminator")

// Config mirrors the on-chain config account, borsh layout, little-endian.
type Config struct {
	Mint               solana.PublicKey
	Vault              solana.PublicKey
	PendingClaims      solana.PublicKey
	MerkleRoot         [32]byte
	MerkleUpdater      solana.PublicKey
	CurrentSupply      uint64
	LastInflationTs    int64
	LastDistributionTs int64
	Admin              solana.PublicKey
	InflationRateBps   uint16
	Bump               uint8
}

// HasMerkleRoot reports whether a distribution root has ever been set.
func (c *Config) HasMerkleRoot() bool {
	return c.MerkleRoot != [32]byte{}
}

// DecodeConfig parses a raw config account.
func DecodeConfig(data []byte) (*Config, error) {
	if len(data) != ConfigLen {
		return nil, fmt.Errorf("config account is %d bytes, want %d", len(data), ConfigLen)
	}
	if !bytes.Equal(data[:8], ConfigDiscriminator[:]) {
		return nil, fmt.Errorf("%w: %q", ErrBadDiscriminator, data[:8])
	}

	var c Config
	off := 8
	c.Mint = solana.PublicKeyFromBytes(data[off : off+32])
	off += 32
	c.Vault = solana.PublicKeyFromBytes(data[off : off+32])
	off += 32
	c.PendingClaims = solana.PublicKeyFromBytes(data[off : off+32])
	off += 32
	copy(c.MerkleRoot[:], data[off:off+32])
	off += 32
	c.MerkleUpdater = solana.PublicKeyFromBytes(data[off : off+32])
	off += 32
	c.CurrentSupply = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	c.LastInflationTs = int64(binary.LittleEndian.Uint64(data[off : off+8]))
	off += 8
	c.LastDistributionTs = int64(binary.LittleEndian.Uint64(data[off : off+8]))
	off += 8
	c.Admin = solana.PublicKeyFromBytes(data[off : off+32])
	off += 32
	c.InflationRateBps = binary.LittleEndian.Uint16(data[off : off+2])
	off += 2
	c.Bump = data[off]
	return &c, nil
}

// UserClaimStatus mirrors the per-wallet claim account.
type UserClaimStatus struct {
	ClaimedAmount uint64
	TotalBurned   uint64
	Bump          uint8
}

// DecodeUserClaimStatus parses a raw user claim account.
func DecodeUserClaimStatus(data []byte) (*UserClaimStatus, error) {
	if len(data) != UserClaimStatusLen {
		return nil, fmt.Errorf("user claim account is %d bytes, want %d", len(data), UserClaimStatusLen)
	}
	if !bytes.Equal(data[:8], UserClaimDiscriminator[:]) {
		return nil, fmt.Errorf("%w: %q", ErrBadDiscriminator, data[:8])
	}
	return &UserClaimStatus{
		ClaimedAmount: binary.LittleEndian.Uint64(data[8:16]),
		TotalBurned:   binary.LittleEndian.Uint64(data[16:24]),
		Bump:          data[24],
	}, nil
}
