package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "test",
			paramName: "param",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       "   ",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "string with spaces",
			str:       "  test  ",
			paramName: "param",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.paramName) {
				t.Errorf("validateString() error should contain param name %s, got %v", tt.paramName, err)
			}
		})
	}
}

func TestValidatePercent(t *testing.T) {
	pct := func(v int) *int { return &v }
	tests := []struct {
		pct     *int
		name    string
		wantErr bool
	}{
		{name: "unset", pct: nil},
		{name: "zero", pct: pct(0)},
		{name: "half", pct: pct(50)},
		{name: "full", pct: pct(100)},
		{name: "negative", pct: pct(-1), wantErr: true},
		{name: "over 100", pct: pct(101), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePercent(tt.pct)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePercent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPercent) {
				t.Errorf("validatePercent() error should wrap ErrInvalidPercent, got %v", err)
			}
		})
	}
}

func TestValidateTransaction(t *testing.T) {
	valid := func() model.Transaction {
		return model.Transaction{
			ID:      "txn123",
			UserID:  "user-a",
			Date:    time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			Type:    model.TypeExpense,
			Status:  model.StatusPending,
			TaxYear: 2025,
		}
	}
	bad := 150

	tests := []struct {
		mutate  func(*model.Transaction)
		name    string
		errMsg  string
		wantErr bool
	}{
		{name: "valid transaction", mutate: func(*model.Transaction) {}},
		{name: "income", mutate: func(txn *model.Transaction) { txn.Type = model.TypeIncome }},
		{name: "missing ID", mutate: func(txn *model.Transaction) { txn.ID = "" }, wantErr: true, errMsg: "missing ID"},
		{name: "missing user", mutate: func(txn *model.Transaction) { txn.UserID = "" }, wantErr: true, errMsg: "missing user ID"},
		{name: "zero date", mutate: func(txn *model.Transaction) { txn.Date = time.Time{} }, wantErr: true, errMsg: "missing date"},
		{name: "missing tax year", mutate: func(txn *model.Transaction) { txn.TaxYear = 0 }, wantErr: true, errMsg: "missing tax year"},
		{name: "unknown type", mutate: func(txn *model.Transaction) { txn.Type = "transfer" }, wantErr: true, errMsg: "invalid type"},
		{name: "unknown status", mutate: func(txn *model.Transaction) { txn.Status = "archived" }, wantErr: true, errMsg: "invalid status"},
		{name: "bad percent", mutate: func(txn *model.Transaction) { txn.DeductionPercent = &bad }, wantErr: true, errMsg: "between 0 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := valid()
			tt.mutate(&txn)
			err := validateTransaction(&txn)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTransaction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrInvalidTransaction) {
				t.Errorf("validateTransaction() error should wrap ErrInvalidTransaction, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validateTransaction() error should contain %s, got %v", tt.errMsg, err)
			}
		})
	}
}
