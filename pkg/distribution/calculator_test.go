package distribution

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yapprotocol/yap-engine/pkg/amount"
)

func cum(t *testing.T, s string) amount.Cumulative {
	t.Helper()
	c, err := amount.CumulativeFromString(s)
	require.NoError(t, err)
	return c
}

func TestAllocatablePoints(t *testing.T) {
	t.Parallel()

	e := Eligible{Points: 100, PointsDistributed: 40}
	assert.Equal(t, int64(60), e.AllocatablePoints())

	// Upstream points ledger shrank below what was already converted.
	e = Eligible{Points: 30, PointsDistributed: 40}
	assert.Equal(t, int64(0), e.AllocatablePoints())
}

func TestCompute(t *testing.T) {
	t.Parallel()

	t.Run("proportional split", func(t *testing.T) {
		t.Parallel()
		users := []Eligible{
			{UserID: uuid.New(), Wallet: "a", Points: 100},
			{UserID: uuid.New(), Wallet: "b", Points: 900},
		}
		pool := big.NewInt(10_000_000_000) // 10 YAP

		entries, totalPending := Compute(users, pool)
		require.Equal(t, int64(1000), totalPending)
		require.Len(t, entries, 2)

		// 100 of 1000 points earns 10% of the pool.
		assert.Equal(t, "1000000000", entries[0].Earned.String())
		assert.Equal(t, "9000000000", entries[1].Earned.String())
		assert.Equal(t, int64(100), entries[0].PointsConverted)
		assert.Equal(t, "1000000000", entries[0].Cumulative.String())
	})

	t.Run("prior cumulative carried forward", func(t *testing.T) {
		t.Parallel()
		users := []Eligible{{
			UserID:            uuid.New(),
			Wallet:            "a",
			Points:            500,
			PointsDistributed: 400,
			PriorCumulative:   cum(t, "2800000000000"),
		}}
		entries, totalPending := Compute(users, big.NewInt(360_000_000_000))
		require.Equal(t, int64(100), totalPending)
		require.Len(t, entries, 1)
		assert.Equal(t, "360000000000", entries[0].Earned.String())
		assert.Equal(t, "3160000000000", entries[0].Cumulative.String())
	})

	t.Run("zero total pending never divides", func(t *testing.T) {
		t.Parallel()
		users := []Eligible{
			{UserID: uuid.New(), Wallet: "a", Points: 50, PointsDistributed: 50},
			{UserID: uuid.New(), Wallet: "b", Points: 0},
		}
		entries, totalPending := Compute(users, big.NewInt(1_000_000_000))
		assert.Equal(t, int64(0), totalPending)
		require.Len(t, entries, 2)
		for _, e := range entries {
			assert.Equal(t, 0, e.Earned.Sign())
		}
	})

	t.Run("remainder floors", func(t *testing.T) {
		t.Parallel()
		users := []Eligible{
			{UserID: uuid.New(), Wallet: "a", Points: 1},
			{UserID: uuid.New(), Wallet: "b", Points: 1},
			{UserID: uuid.New(), Wallet: "c", Points: 1},
		}
		entries, _ := Compute(users, big.NewInt(10))
		var total int64
		for _, e := range entries {
			total += e.Earned.Raw().Int64()
		}
		// floor(10/3) each; one raw unit stays in the vault.
		assert.Equal(t, int64(9), total)
	})

	t.Run("nil pool", func(t *testing.T) {
		t.Parallel()
		entries, totalPending := Compute([]Eligible{{UserID: uuid.New(), Wallet: "a", Points: 5}}, nil)
		assert.Equal(t, int64(5), totalPending)
		require.Len(t, entries, 1)
		assert.Equal(t, 0, entries[0].Earned.Sign())
	})
}

func TestEstimateShare(t *testing.T) {
	t.Parallel()

	est := EstimateShare(100, 1000, big.NewInt(10_000_000_000))
	assert.InDelta(t, 10.0, est.SharePercent, 1e-9)
	assert.Equal(t, "1000000000", est.EstimatedReward.String())

	est = EstimateShare(0, 1000, big.NewInt(10))
	assert.Zero(t, est.SharePercent)
	assert.Equal(t, 0, est.EstimatedReward.Sign())

	est = EstimateShare(100, 0, big.NewInt(10))
	assert.Zero(t, est.SharePercent)
	assert.Equal(t, 0, est.EstimatedReward.Sign())
}
