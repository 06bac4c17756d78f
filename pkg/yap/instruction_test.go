package yap

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDistribute(t *testing.T) {
	t.Parallel()

	root := make([]byte, 32)
	for i := range root {
		root[i] = byte(i)
	}

	data, err := EncodeDistribute(360_000_000_000, root)
	require.NoError(t, err)
	require.Len(t, data, 41)
	assert.Equal(t, InstructionDistribute, data[0])
	assert.Equal(t, uint64(360_000_000_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, root, data[9:])

	_, err = EncodeDistribute(1, make([]byte, 31))
	require.ErrorIs(t, err, ErrMalformedRoot)
}

func TestEncodeClaim(t *testing.T) {
	t.Parallel()

	proof := make([][32]byte, 3)
	for i := range proof {
		proof[i][0] = byte(i + 1)
	}

	data, err := EncodeClaim(3_160_000_000_000, proof)
	require.NoError(t, err)
	require.Len(t, data, 1+8+4+3*32)
	assert.Equal(t, InstructionClaim, data[0])
	assert.Equal(t, uint64(3_160_000_000_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[9:13]))
	for i := range proof {
		assert.Equal(t, proof[i][:], data[13+32*i:13+32*(i+1)])
	}

	t.Run("empty proof", func(t *testing.T) {
		t.Parallel()
		data, err := EncodeClaim(7, nil)
		require.NoError(t, err)
		require.Len(t, data, 13)
		assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[9:13]))
	})

	t.Run("too deep", func(t *testing.T) {
		t.Parallel()
		_, err := EncodeClaim(7, make([][32]byte, MaxProofDepth+1))
		require.ErrorIs(t, err, ErrProofTooLong)
	})
}

func TestEncodeSimplePayloads(t *testing.T) {
	t.Parallel()

	updater := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")

	init := EncodeInitialize(updater, 500)
	require.Len(t, init, 35)
	assert.Equal(t, InstructionInitialize, init[0])
	assert.Equal(t, updater.Bytes(), init[1:33])
	assert.Equal(t, uint16(500), binary.LittleEndian.Uint16(init[33:35]))

	assert.Equal(t, []byte{InstructionTriggerInflation}, EncodeTriggerInflation())

	burn := EncodeBurn(123)
	require.Len(t, burn, 9)
	assert.Equal(t, InstructionBurn, burn[0])
	assert.Equal(t, uint64(123), binary.LittleEndian.Uint64(burn[1:9]))

	upd := EncodeUpdateMerkleUpdater(updater)
	require.Len(t, upd, 33)
	assert.Equal(t, InstructionUpdateMerkleUpdater, upd[0])

	rate := EncodeUpdateInflationRate(250)
	require.Len(t, rate, 3)
	assert.Equal(t, InstructionUpdateInflationRate, rate[0])
	assert.Equal(t, uint16(250), binary.LittleEndian.Uint16(rate[1:3]))
}

func TestNewDistributeInstruction(t *testing.T) {
	t.Parallel()

	programID := randomWallet(t)
	updater := randomWallet(t)
	pdas, err := DerivePDAs(programID)
	require.NoError(t, err)

	ix, err := NewDistributeInstruction(programID, pdas, updater, 100, make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, programID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, updater, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, pdas.Config, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsWritable)
	assert.Equal(t, pdas.Vault, accounts[2].PublicKey)
	assert.Equal(t, pdas.PendingClaims, accounts[3].PublicKey)
	assert.Equal(t, pdas.Mint, accounts[4].PublicKey)
	assert.Equal(t, solana.TokenProgramID, accounts[5].PublicKey)
}

func TestNewClaimInstruction(t *testing.T) {
	t.Parallel()

	programID := randomWallet(t)
	user := randomWallet(t)
	pdas, err := DerivePDAs(programID)
	require.NoError(t, err)
	ata, _, err := solana.FindAssociatedTokenAddress(user, pdas.Mint)
	require.NoError(t, err)
	userClaim, _, err := DeriveUserClaim(programID, user)
	require.NoError(t, err)

	ix, err := NewClaimInstruction(programID, pdas, user, ata, 55, make([][32]byte, 2))
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 9)
	assert.Equal(t, user, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, ata, accounts[1].PublicKey)
	assert.Equal(t, userClaim, accounts[2].PublicKey)
	assert.Equal(t, pdas.Config, accounts[3].PublicKey)
	assert.False(t, accounts[3].IsWritable)
	assert.Equal(t, pdas.PendingClaims, accounts[4].PublicKey)
	assert.Equal(t, solana.SystemProgramID, accounts[7].PublicKey)
	assert.Equal(t, solana.SysVarRentPubkey, accounts[8].PublicKey)
}
