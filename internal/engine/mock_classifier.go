package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

// MockClassifier is an offline Classifier. It returns deterministic results
// based on vendor keywords and records every batch it receives.
type MockClassifier struct {
	err     error
	omit    map[string]bool
	batches [][]model.Representative
	mu      sync.Mutex
}

// NewMockClassifier creates a new mock classifier.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{omit: make(map[string]bool)}
}

type mockRule struct {
	keywords   []string
	category   string
	line       string
	labels     []string
	confidence float64
	meal       bool
	travel     bool
	personal   bool
}

var mockRules = []mockRule{
	{keywords: []string{"starbucks", "coffee", "cafe", "restaurant", "grill", "diner", "chipotle"}, category: "Meals", line: "24b", labels: []string{"Business Meal", "Client Dinner", "Working Lunch"}, confidence: 0.92, meal: true},
	{keywords: []string{"delta", "united", "airbnb", "marriott", "hilton", "uber", "lyft"}, category: "Travel", line: "24a", labels: []string{"Business Travel", "Client Visit", "Conference"}, confidence: 0.9, travel: true},
	{keywords: []string{"github", "figma", "notion", "slack", "adobe", "aws", "google"}, category: "Software", line: "27a", labels: []string{"Business Software", "SaaS Tool", "Dev Tools"}, confidence: 0.95},
	{keywords: []string{"staples", "office depot", "amazon"}, category: "Office expense", line: "18", labels: []string{"Office Supplies", "Desk Equipment"}, confidence: 0.8},
	{keywords: []string{"comcast", "verizon", "att", "t mobile"}, category: "Utilities", line: "25", labels: []string{"Phone/Internet", "Business Phone"}, confidence: 0.85},
	{keywords: []string{"netflix", "spotify", "hulu", "whole foods"}, category: "Personal", line: "27", labels: []string{"Personal"}, confidence: 0.7, personal: true},
}

// Classify implements Classifier.
func (m *MockClassifier) Classify(_ context.Context, reps []model.Representative) (model.ClassificationBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make([]model.Representative, len(reps))
	copy(batch, reps)
	m.batches = append(m.batches, batch)

	if m.err != nil {
		return model.ClassificationBatch{InputTokens: 10 * len(reps)}, m.err
	}

	out := model.ClassificationBatch{
		Results:      make(map[string]model.ClassificationResult, len(reps)),
		InputTokens:  10 * len(reps),
		OutputTokens: 5 * len(reps),
	}
	for _, r := range reps {
		if m.omit[r.ID] {
			continue
		}
		out.Results[r.ID] = mockResult(r)
	}
	return out, nil
}

func mockResult(r model.Representative) model.ClassificationResult {
	name := strings.ToLower(r.Vendor)
	rule := mockRule{category: "Other expenses", line: "27", labels: []string{"Business Expense", "Miscellaneous"}, confidence: 0.55}
	for _, candidate := range mockRules {
		if containsAny(name, candidate.keywords) {
			rule = candidate
			break
		}
	}

	confidence := rule.confidence
	meal, travel := rule.meal, rule.travel
	res := model.ClassificationResult{
		ID:            r.ID,
		Category:      rule.category,
		ScheduleCLine: rule.line,
		Confidence:    &confidence,
		QuickLabels:   rule.labels,
		IsMeal:        &meal,
		IsTravel:      &travel,
		Deductibility: model.LikelyDeductible,
	}
	if rule.personal {
		res.Deductibility = model.LikelyPersonal
	}
	return res
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// SetError makes every following call fail with err. Nil clears it.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Omit leaves the representative with this id out of every response.
func (m *MockClassifier) Omit(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omit[id] = true
}

// Batches returns a copy of every batch received.
func (m *MockClassifier) Batches() [][]model.Representative {
	m.mu.Lock()
	defer m.mu.Unlock()

	batches := make([][]model.Representative, len(m.batches))
	copy(batches, m.batches)
	return batches
}

// CallCount returns the number of Classify calls.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// Reset clears recorded calls and injected failures.
func (m *MockClassifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = nil
	m.err = nil
	m.omit = make(map[string]bool)
}
