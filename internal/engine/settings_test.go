package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/testutil"
)

func TestSettings_Deductions(t *testing.T) {
	store := testutil.SetupTestDB(t)
	settings := NewSettings(store)
	ctx := context.Background()

	d, err := settings.CreateDeduction(ctx, userA, DeductionRequest{
		Type:       "mileage",
		TaxYear:    2025,
		Amount:     decimal.RequireFromString("670.00"),
		TaxSavings: decimal.RequireFromString("160.80"),
		Metadata:   map[string]any{"miles": 1000},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)

	list, total, err := settings.ListDeductions(ctx, userA, 2025, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "mileage", list[0].Type)

	list, _, err = settings.ListDeductions(ctx, userB, 2025, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	for name, req := range map[string]DeductionRequest{
		"missing type":    {TaxYear: 2025},
		"bad year":        {Type: "x", TaxYear: 3000},
		"negative amount": {Type: "x", TaxYear: 2025, Amount: decimal.NewFromInt(-1)},
	} {
		_, err := settings.CreateDeduction(ctx, userA, req)
		assert.True(t, common.IsValidation(err), "%s: got %v", name, err)
	}
}

func TestSettings_TaxRate(t *testing.T) {
	store := testutil.SetupTestDB(t)
	settings := NewSettings(store)
	ctx := context.Background()

	_, err := settings.SetTaxRate(ctx, userA, 2025, decimal.RequireFromString("0.22"))
	require.NoError(t, err)

	stored, err := store.GetTaxYearSettings(ctx, userA, 2025)
	require.NoError(t, err)
	assert.Equal(t, "0.22", stored.TaxRate.String())

	_, err = settings.SetTaxRate(ctx, userA, 2025, decimal.RequireFromString("1.5"))
	assert.True(t, common.IsValidation(err))
	_, err = settings.SetTaxRate(ctx, userA, 2025, decimal.RequireFromString("-0.1"))
	assert.True(t, common.IsValidation(err))
	_, err = settings.SetTaxRate(ctx, userA, 1990, decimal.RequireFromString("0.1"))
	assert.True(t, common.IsValidation(err))
}

func TestSettings_TaxYearSettings(t *testing.T) {
	store := testutil.SetupTestDB(t)
	settings := NewSettings(store)
	ctx := context.Background()

	defaults, err := settings.TaxYearSettings(ctx, userA, 2025)
	require.NoError(t, err)
	assert.Equal(t, userA, defaults.UserID)
	assert.Equal(t, 2025, defaults.TaxYear)
	assert.Equal(t, "0.24", defaults.TaxRate.String())

	_, err = settings.SetTaxRate(ctx, userA, 2025, decimal.RequireFromString("0.32"))
	require.NoError(t, err)

	stored, err := settings.TaxYearSettings(ctx, userA, 2025)
	require.NoError(t, err)
	assert.Equal(t, "0.32", stored.TaxRate.String())

	other, err := settings.TaxYearSettings(ctx, userB, 2025)
	require.NoError(t, err)
	assert.Equal(t, "0.24", other.TaxRate.String())

	_, err = settings.TaxYearSettings(ctx, userA, 1990)
	assert.True(t, common.IsValidation(err))
	_, err = settings.TaxYearSettings(ctx, "", 2025)
	assert.True(t, common.IsAuthorization(err))
}

func TestSettings_OrgSettings(t *testing.T) {
	store := testutil.SetupTestDB(t)
	settings := NewSettings(store)
	ctx := context.Background()

	empty, err := settings.OrgSettings(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, model.OrgSettings{UserID: userA}, empty)

	_, err = settings.SaveOrgSettings(ctx, userA, model.OrgSettings{FilingType: "llp"})
	assert.True(t, common.IsValidation(err))

	saved, err := settings.SaveOrgSettings(ctx, userA, model.OrgSettings{UserID: userB, BusinessName: "Acme", FilingType: "s_corp"})
	require.NoError(t, err)
	assert.Equal(t, userA, saved.UserID, "owner always comes from the caller")

	got, err := settings.OrgSettings(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.BusinessName)
	assert.Equal(t, "s_corp", got.FilingType)
}
