// Package ofx reads OFX/QFX bank and credit card downloads into rows the
// ingester can store.
package ofx

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at end of line that lost their closing bracket.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
	"DEPOSIT":         true,
}

// Statement is the content of one OFX file.
type Statement struct {
	Accounts []string
	Rows     []engine.IngestRow
}

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads bank and credit card statements from r. Debits become expense
// rows and credits become income rows.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Statement{}, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return Statement{}, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var (
		stmt     Statement
		accounts = make(map[string]bool)
		logger   = common.Logger(ctx)
	)

	for _, msg := range resp.Bank {
		bank, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		acct := string(bank.BankAcctFrom.AcctID)
		if acct != "" {
			accounts[acct] = true
		}
		if bank.BankTranList == nil {
			logger.Debug("Bank statement has no transactions", "account", acct)
			continue
		}
		stmt.Rows = append(stmt.Rows, p.convertAll(bank.BankTranList.Transactions)...)
	}

	for _, msg := range resp.CreditCard {
		card, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		acct := string(card.CCAcctFrom.AcctID)
		if acct != "" {
			accounts[acct] = true
		}
		if card.BankTranList == nil {
			logger.Debug("Credit card statement has no transactions", "account", acct)
			continue
		}
		stmt.Rows = append(stmt.Rows, p.convertAll(card.BankTranList.Transactions)...)
	}

	for acct := range accounts {
		stmt.Accounts = append(stmt.Accounts, acct)
	}
	sort.Strings(stmt.Accounts)

	logger.Info("Parsed OFX file",
		"transactions", len(stmt.Rows),
		"bank_statements", len(resp.Bank),
		"cc_statements", len(resp.CreditCard))

	return stmt, nil
}

func (p *Parser) convertAll(txns []ofxgo.Transaction) []engine.IngestRow {
	rows := make([]engine.IngestRow, 0, len(txns))
	for _, tx := range txns {
		rows = append(rows, p.convertTransaction(tx))
	}
	return rows
}

// convertTransaction converts an OFX transaction to an ingest row. OFX amounts
// are signed, negative for debits.
func (p *Parser) convertTransaction(tx ofxgo.Transaction) engine.IngestRow {
	amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(2))
	if err != nil {
		amount = decimal.Zero
	}

	txType := model.TypeExpense
	if amount.IsPositive() {
		txType = model.TypeIncome
	}

	row := engine.IngestRow{
		Date:            tx.DtPosted.Format("2006-01-02"),
		Vendor:          p.extractMerchantName(tx),
		Description:     strings.TrimSpace(string(tx.Memo)),
		Amount:          amount,
		TransactionType: string(txType),
	}
	if tx.CheckNum != "" {
		row.Notes = "Check " + string(tx.CheckNum)
	}
	return row
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && (name == "" || genericNames[strings.ToUpper(name)]) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " left behind by "PURCHASE AUTHORIZED ON".
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}
