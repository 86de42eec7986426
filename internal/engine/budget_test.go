package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/core"
)

func TestValidateBudgetPeriod(t *testing.T) {
	err := ValidateBudgetPeriod(core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1), dec("100.00"))
	assert.ErrorIs(t, err, core.ErrInvalidRange)

	err = ValidateBudgetPeriod(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31), dec("0"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	err = ValidateBudgetPeriod(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31), dec("-10"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	assert.NoError(t, ValidateBudgetPeriod(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 1), dec("0.01")))
}

func TestComputeBudgetUtilization(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		spent    string
		ratio    string
		exceeded bool
	}{
		{"over budget", "500.00", "600.00", "1.2", true},
		{"exactly at limit", "500.00", "500.00", "1", false},
		{"one cent over", "500.00", "500.01", "1.00002", true},
		{"nothing spent", "500.00", "0", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ComputeBudgetUtilization(core.Budget{Amount: dec(tt.amount)}, dec(tt.spent))
			require.NoError(t, err)
			assert.True(t, u.Ratio.Equal(dec(tt.ratio)), "ratio = %s", u.Ratio)
			assert.Equal(t, tt.exceeded, u.Exceeded)
			assert.True(t, u.Remaining.Equal(dec(tt.amount).Sub(dec(tt.spent))))
		})
	}
}

func TestComputeBudgetUtilizationRejectsBadInput(t *testing.T) {
	_, err := ComputeBudgetUtilization(core.Budget{Amount: dec("0")}, dec("1"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = ComputeBudgetUtilization(core.Budget{Amount: dec("10")}, dec("-1"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestUtilizationPercent(t *testing.T) {
	u, err := ComputeBudgetUtilization(core.Budget{Amount: dec("500.00")}, dec("600.00"))
	require.NoError(t, err)
	assert.Equal(t, "120", u.Percent())
}
