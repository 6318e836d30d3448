package api

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
)

// ContentTypeNDJSON is the media type of the analysis event stream.
const ContentTypeNDJSON = "application/x-ndjson"

type listResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return common.NewValidationError("body", "invalid request body")
	}
	return nil
}

// queryInt parses an optional integer query parameter. Absent means zero.
func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError(key, fmt.Sprintf("%s must be an integer", key))
	}
	return n, nil
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type analyzeRequest struct {
	TransactionIDs []string `json:"transactionIds"`
}

// analyze validates the request up front, then streams categorization
// events as NDJSON. Once the stream has started, failures are reported as
// events rather than status codes.
func (s *Server) analyze(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	run, err := s.orchestrator.Prepare(ctx, userID(c), req.TransactionIDs)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, ContentTypeNDJSON)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Run-ID", run.ID())
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		run.Stream(ctx, engine.NewNDJSONSink(w))
	})
	return nil
}

func (s *Server) autoSort(c *fiber.Ctx) error {
	var req engine.AutoSortRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.autoSorter.ApplyRule(c.UserContext(), userID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) listAutoSortRules(c *fiber.Ctx) error {
	rules, err := s.autoSorter.Rules(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(listResponse[model.AutoSortRule]{Data: rules, Count: len(rules)})
}

func (s *Server) listTransactions(c *fiber.Ctx) error {
	filter := service.TransactionFilter{
		VendorNormalized: strings.TrimSpace(c.Query("vendor_normalized")),
		ExcludeID:        strings.TrimSpace(c.Query("exclude_id")),
		Status:           model.Status(c.Query("status")),
	}

	switch txType := model.TransactionType(c.Query("transaction_type")); txType {
	case "", model.TypeExpense, model.TypeIncome:
		filter.Type = txType
	default:
		return common.NewValidationError("transaction_type", fmt.Sprintf("unknown transaction type %q", txType))
	}

	var err error
	if filter.TaxYear, err = queryInt(c, "tax_year"); err != nil {
		return err
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return err
	}

	txns, err := s.reviewer.List(c.UserContext(), userID(c), filter)
	if err != nil {
		return err
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	return c.JSON(listResponse[model.Transaction]{Data: txns, Count: len(txns)})
}

func (s *Server) similarTransactions(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}
	txns, err := s.reviewer.Similar(c.UserContext(), userID(c), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	return c.JSON(listResponse[model.Transaction]{Data: txns, Count: len(txns)})
}

func (s *Server) addTransaction(c *fiber.Ctx) error {
	var row engine.IngestRow
	if err := parseBody(c, &row); err != nil {
		return err
	}
	txn, err := s.ingester.AddManual(c.UserContext(), userID(c), row)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

type uploadRequest struct {
	Rows    []engine.IngestRow `json:"rows"`
	TaxYear int                `json:"taxYear"`
}

func (s *Server) upload(c *fiber.Ctx) error {
	var req uploadRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.ingester.Import(c.UserContext(), userID(c), req.Rows, engine.ImportOptions{
		Source:  "upload",
		TaxYear: req.TaxYear,
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// uploadOFX imports a statement sent as the multipart field "file".
// Re-uploading the same statement skips rows already stored.
func (s *Server) uploadOFX(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return common.NewValidationError("file", "an OFX file is required in form field \"file\"")
	}
	taxYear, err := strconv.Atoi(c.FormValue("taxYear", "0"))
	if err != nil {
		return common.NewValidationError("taxYear", "taxYear must be an integer")
	}

	f, err := header.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	ctx := c.UserContext()
	stmt, err := s.ofx.Parse(ctx, f)
	if err != nil {
		return common.NewValidationError("file", err.Error())
	}
	if len(stmt.Rows) == 0 {
		return c.JSON(engine.ImportResult{})
	}

	res, err := s.ingester.Import(ctx, userID(c), stmt.Rows, engine.ImportOptions{
		Source:  "ofx",
		TaxYear: taxYear,
		Dedupe:  true,
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

type updateRequest struct {
	QuickLabel       *string       `json:"quick_label"`
	BusinessPurpose  *string       `json:"business_purpose"`
	Notes            *string       `json:"notes"`
	Status           *model.Status `json:"status"`
	DeductionPercent *int          `json:"deduction_percent"`
	ID               string        `json:"id"`
}

func (s *Server) updateTransaction(c *fiber.Ctx) error {
	var req updateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	err := s.reviewer.Update(c.UserContext(), userID(c), service.ReviewUpdate{
		ID:               req.ID,
		QuickLabel:       req.QuickLabel,
		BusinessPurpose:  req.BusinessPurpose,
		Notes:            req.Notes,
		Status:           req.Status,
		DeductionPercent: req.DeductionPercent,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) listDeductions(c *fiber.Ctx) error {
	taxYear, err := queryInt(c, "tax_year")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}

	list, total, err := s.settings.ListDeductions(c.UserContext(), userID(c), taxYear, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(listResponse[model.Deduction]{Data: list, Count: total})
}

func (s *Server) createDeduction(c *fiber.Ctx) error {
	var req engine.DeductionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	d, err := s.settings.CreateDeduction(c.UserContext(), userID(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

type taxYearSettingsRequest struct {
	TaxRate decimal.Decimal `json:"tax_rate"`
	TaxYear int             `json:"tax_year"`
}

func (s *Server) saveTaxYearSettings(c *fiber.Ctx) error {
	var req taxYearSettingsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	settings, err := s.settings.SetTaxRate(c.UserContext(), userID(c), req.TaxYear, req.TaxRate)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": settings})
}

func (s *Server) getTaxYearSettings(c *fiber.Ctx) error {
	taxYear, err := queryInt(c, "tax_year")
	if err != nil {
		return err
	}
	if taxYear == 0 {
		taxYear = s.now().Year()
	}
	settings, err := s.settings.TaxYearSettings(c.UserContext(), userID(c), taxYear)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": settings})
}

func (s *Server) getOrgSettings(c *fiber.Ctx) error {
	org, err := s.settings.OrgSettings(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": org})
}

func (s *Server) saveOrgSettings(c *fiber.Ctx) error {
	var req model.OrgSettings
	if err := parseBody(c, &req); err != nil {
		return err
	}
	org, err := s.settings.SaveOrgSettings(c.UserContext(), userID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": org})
}

func (s *Server) taxSummary(c *fiber.Ctx) error {
	taxYear, err := queryInt(c, "tax_year")
	if err != nil {
		return err
	}
	if taxYear == 0 {
		taxYear = s.now().Year()
	}
	quarter, err := queryInt(c, "quarter")
	if err != nil {
		return err
	}

	summary, err := s.summaries.Summary(c.UserContext(), userID(c), taxYear, quarter)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}
