package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/testutil"
)

func completedTxn(user, vendorName, amount string, month time.Month, txType model.TransactionType) model.Transaction {
	pct := 100
	txn := testutil.NewTransaction(user, vendorName, testutil.WithAmount(amount), testutil.WithStatus(model.StatusCompleted))
	txn.Type = txType
	txn.Date = time.Date(2025, month, 10, 0, 0, 0, 0, time.UTC)
	txn.ScheduleCLine = "18"
	txn.Category = "Office expense"
	txn.DeductionPercent = &pct
	return txn
}

func TestSummaryService_Summary(t *testing.T) {
	store := testutil.SetupTestDB(t)
	svc := NewSummaryService(store)
	ctx := context.Background()

	income := completedTxn(userA, "Acme Client", "10000", time.February, model.TypeIncome)
	expense := completedTxn(userA, "Staples", "-4000", time.May, model.TypeExpense)
	pending := testutil.NewTransaction(userA, "Delta", testutil.WithAmount("-999"))
	testutil.SeedTransactions(t, store, income, expense, pending, completedTxn(userB, "Other", "-50", time.May, model.TypeExpense))

	got, err := svc.Summary(ctx, userA, 2025, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, got.TransactionCount, "pending rows are excluded")
	assert.InDelta(t, 0.24, got.TaxRate, 1e-9)
	assert.Nil(t, got.FilingType)
	assert.Equal(t, "sole_proprietor", got.Filing.Type)
	assert.Nil(t, got.Quarter)

	assert.InDelta(t, 10000, got.GrossIncome, 0.005)
	assert.InDelta(t, 4000, got.TotalExpenses, 0.005)
	assert.InDelta(t, 6000, got.NetProfit, 0.005)
	assert.InDelta(t, 5541, got.SEEarnings, 0.005)
	assert.InDelta(t, 847.77, got.SelfEmploymentTax, 0.01)
	assert.InDelta(t, 1338.27, got.IncomeTax, 0.01)
	assert.InDelta(t, 2186.04, got.TotalTaxLiability, 0.01)
	assert.InDelta(t, 546.51, got.EstimatedQuarterlyPayment, 0.01)

	t.Run("quarter filter", func(t *testing.T) {
		q2, err := svc.Summary(ctx, userA, 2025, 2)
		require.NoError(t, err)
		require.NotNil(t, q2.Quarter)
		assert.Equal(t, 2, *q2.Quarter)
		assert.Equal(t, 1, q2.TransactionCount)
		assert.InDelta(t, 0, q2.GrossIncome, 0.005)
		assert.InDelta(t, 4000, q2.TotalExpenses, 0.005)
	})

	t.Run("stored rate, deductions and filing type", func(t *testing.T) {
		require.NoError(t, store.UpsertTaxYearSettings(ctx, model.TaxYearSettings{UserID: userA, TaxYear: 2025, TaxRate: decimal.RequireFromString("0.32")}))
		require.NoError(t, store.UpsertOrgSettings(ctx, model.OrgSettings{UserID: userA, FilingType: "single_llc"}))
		require.NoError(t, store.CreateDeduction(ctx, &model.Deduction{
			ID: uuid.NewString(), UserID: userA, Type: "home_office", TaxYear: 2025,
			Amount: decimal.NewFromInt(1500), TaxSavings: decimal.NewFromInt(360),
		}))

		got, err := svc.Summary(ctx, userA, 2025, 0)
		require.NoError(t, err)
		assert.InDelta(t, 0.32, got.TaxRate, 1e-9)
		require.NotNil(t, got.FilingType)
		assert.Equal(t, "single_llc", *got.FilingType)
		assert.Equal(t, "single_llc", got.Filing.Type)
		assert.InDelta(t, 5500, got.TotalExpenses, 0.005)
		assert.InDelta(t, 1500, got.CategoryBreakdown["home_office"], 0.005)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := svc.Summary(ctx, userA, 1999, 0)
		assert.True(t, common.IsValidation(err))
		_, err = svc.Summary(ctx, userA, 2025, 5)
		assert.True(t, common.IsValidation(err))
		_, err = svc.Summary(ctx, "", 2025, 0)
		assert.True(t, common.IsAuthorization(err))
	})
}
