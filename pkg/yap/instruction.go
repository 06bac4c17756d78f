package yap

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators: borsh enum variant tags, one byte each.
const (
	InstructionInitialize          uint8 = 0
	InstructionTriggerInflation    uint8 = 1
	InstructionDistribute          uint8 = 2
	InstructionClaim               uint8 = 3
	InstructionBurn                uint8 = 4
	InstructionUpdateMerkleUpdater uint8 = 5
	InstructionUpdateInflationRate uint8 = 6
)

var (
	// ErrMalformedRoot is returned when a merkle root is not 32 bytes.
	ErrMalformedRoot = errors.New("merkle root must be 32 bytes")

	// ErrProofTooLong is returned when a claim proof exceeds MaxProofDepth.
	ErrProofTooLong = errors.New("merkle proof exceeds max depth")
)

// EncodeInitialize builds the Initialize payload:
// [0][merkle_updater:32][inflation_rate_bps:u16].
func EncodeInitialize(merkleUpdater solana.PublicKey, inflationRateBps uint16) []byte {
	data := make([]byte, 0, 1+32+2)
	data = append(data, InstructionInitialize)
	data = append(data, merkleUpdater.Bytes()...)
	data = binary.LittleEndian.AppendUint16(data, inflationRateBps)
	return data
}

// EncodeTriggerInflation builds the TriggerInflation payload: [1].
func EncodeTriggerInflation() []byte {
	return []byte{InstructionTriggerInflation}
}

// EncodeDistribute builds the Distribute payload:
// [2][amount:u64][merkle_root:32], 41 bytes total.
func EncodeDistribute(amount uint64, merkleRoot []byte) ([]byte, error) {
	if len(merkleRoot) != 32 {
		return nil, fmt.Errorf("%w: got %d", ErrMalformedRoot, len(merkleRoot))
	}
	data := make([]byte, 0, 1+8+32)
	data = append(data, InstructionDistribute)
	data = binary.LittleEndian.AppendUint64(data, amount)
	data = append(data, merkleRoot...)
	return data, nil
}

// EncodeClaim builds the Claim payload:
// [3][amount:u64][proof_len:u32][proof_len x 32], 13+32n bytes total.
func EncodeClaim(amount uint64, proof [][32]byte) ([]byte, error) {
	if len(proof) > MaxProofDepth {
		return nil, fmt.Errorf("%w: %d > %d", ErrProofTooLong, len(proof), MaxProofDepth)
	}
	data := make([]byte, 0, 1+8+4+32*len(proof))
	data = append(data, InstructionClaim)
	data = binary.LittleEndian.AppendUint64(data, amount)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(proof)))
	for i := range proof {
		data = append(data, proof[i][:]...)
	}
	return data, nil
}

// EncodeBurn builds the Burn payload: [4][amount:u64].
func EncodeBurn(amount uint64) []byte {
	data := make([]byte, 0, 1+8)
	data = append(data, InstructionBurn)
	return binary.LittleEndian.AppendUint64(data, amount)
}

// EncodeUpdateMerkleUpdater builds the UpdateMerkleUpdater payload:
// [5][new_updater:32].
func EncodeUpdateMerkleUpdater(newUpdater solana.PublicKey) []byte {
	data := make([]byte, 0, 1+32)
	data = append(data, InstructionUpdateMerkleUpdater)
	return append(data, newUpdater.Bytes()...)
}

// EncodeUpdateInflationRate builds the UpdateInflationRate payload:
// [6][new_rate_bps:u16].
func EncodeUpdateInflationRate(newRateBps uint16) []byte {
	data := make([]byte, 0, 1+2)
	data = append(data, InstructionUpdateInflationRate)
	return binary.LittleEndian.AppendUint16(data, newRateBps)
}

// NewDistributeInstruction assembles the full Distribute instruction
// with the account list the program expects.
func NewDistributeInstruction(programID solana.PublicKey, pdas PDAs, merkleUpdater solana.PublicKey, amount uint64, merkleRoot []byte) (solana.Instruction, error) {
	data, err := EncodeDistribute(amount, merkleRoot)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(merkleUpdater, false, true),
		solana.NewAccountMeta(pdas.Config, true, false),
		solana.NewAccountMeta(pdas.Vault, true, false),
		solana.NewAccountMeta(pdas.PendingClaims, true, false),
		solana.NewAccountMeta(pdas.Mint, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewClaimInstruction assembles the full Claim instruction for a user.
func NewClaimInstruction(programID solana.PublicKey, pdas PDAs, user, userTokenAccount solana.PublicKey, amount uint64, proof [][32]byte) (solana.Instruction, error) {
	data, err := EncodeClaim(amount, proof)
	if err != nil {
		return nil, err
	}
	userClaim, _, err := DeriveUserClaim(programID, user)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(userTokenAccount, true, false),
		solana.NewAccountMeta(userClaim, true, false),
		solana.NewAccountMeta(pdas.Config, false, false),
		solana.NewAccountMeta(pdas.PendingClaims, true, false),
		solana.NewAccountMeta(pdas.Mint, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}
