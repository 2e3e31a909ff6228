// Package chart loads a chart of accounts and GST code table from a
// YAML file and seeds the account catalog of a new book.
package chart

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

// AccountDef is one account entry of a chart file.
type AccountDef struct {
	Name           string  `yaml:"name"`
	Type           string  `yaml:"type"`
	Kind           string  `yaml:"kind"` // optional override of the type-derived kind
	Parent         string  `yaml:"parent"`
	OpeningBalance float64 `yaml:"opening_balance"`
	OpeningDate    string  `yaml:"opening_date"` // YYYY-MM-DD
}

// GSTCode is one tax code entry of a chart file.
type GSTCode struct {
	Code        string  `yaml:"code"`
	Rate        float64 `yaml:"rate"`
	Description string  `yaml:"description"`
	Taxable     bool    `yaml:"taxable"`
}

// Chart is a parsed chart-of-accounts file.
type Chart struct {
	Accounts []AccountDef `yaml:"accounts"`
	GSTCodes []GSTCode    `yaml:"gst_codes"`

	codes map[string]GSTCode
}

// Load parses a chart of accounts from a YAML file.
func Load(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart file: %w", err)
	}
	return Parse(data)
}

// Parse parses a chart of accounts from YAML bytes.
func Parse(data []byte) (*Chart, error) {
	var chart Chart
	if err := yaml.Unmarshal(data, &chart); err != nil {
		return nil, fmt.Errorf("failed to parse chart YAML: %w", err)
	}

	for i, def := range chart.Accounts {
		if def.Name == "" {
			return nil, fmt.Errorf("chart account %d: missing name", i)
		}
		if !ledger.AccountType(def.Type).Valid() {
			return nil, fmt.Errorf("chart account %q: unknown type %q", def.Name, def.Type)
		}
	}

	chart.buildCodeMap()
	return &chart, nil
}

func (c *Chart) buildCodeMap() {
	c.codes = make(map[string]GSTCode, len(c.GSTCodes))
	for _, code := range c.GSTCodes {
		c.codes[strings.ToUpper(code.Code)] = code
	}
}

// Taxable reports whether a GST code denotes a taxable supply. Codes
// missing from the table fall back to the built-in classification.
// Satisfies ledger.TaxableFunc.
func (c *Chart) Taxable(code string) bool {
	if entry, ok := c.codes[strings.ToUpper(code)]; ok {
		return entry.Taxable
	}
	return ledger.DefaultTaxable(code)
}

// Rate returns the tax rate for a GST code, or 0 if unknown.
func (c *Chart) Rate(code string) float64 {
	if entry, ok := c.codes[strings.ToUpper(code)]; ok {
		return entry.Rate
	}
	return 0
}

// Seed creates every chart account that does not already exist, in
// file order so parents precede children. Existing accounts (by name)
// are left untouched. Returns the number of accounts created.
func (c *Chart) Seed(accounts *ledger.AccountStore) (int, error) {
	created := 0
	for _, def := range c.Accounts {
		existing, err := accounts.GetByName(def.Name)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}

		input := ledger.AccountInput{
			Name:           def.Name,
			Type:           ledger.AccountType(def.Type),
			Kind:           ledger.AccountKind(def.Kind),
			OpeningBalance: def.OpeningBalance,
		}

		if def.OpeningDate != "" {
			date, err := time.ParseInLocation(ledger.DateLayout, def.OpeningDate, time.UTC)
			if err != nil {
				return created, fmt.Errorf("chart account %q: invalid opening date: %w", def.Name, err)
			}
			input.OpeningDate = date
		}

		if def.Parent != "" {
			parent, err := accounts.GetByName(def.Parent)
			if err != nil {
				return created, err
			}
			if parent == nil {
				return created, fmt.Errorf("chart account %q: parent %q not found", def.Name, def.Parent)
			}
			input.ParentID = &parent.ID
		}

		if _, err := accounts.Create(input); err != nil {
			return created, fmt.Errorf("failed to seed account %q: %w", def.Name, err)
		}
		created++
	}

	return created, nil
}

// Default returns the built-in small-business chart used when no chart
// file is configured.
func Default() *Chart {
	chart := &Chart{
		Accounts: []AccountDef{
			{Name: "Checking", Type: "ASSET"},
			{Name: "Savings", Type: "ASSET"},
			{Name: "Credit Card", Type: "LIABILITY"},
			{Name: "GST Collected", Type: "LIABILITY"},
			{Name: "GST Paid", Type: "ASSET"},
			{Name: "Opening Balance Equity", Type: "EQUITY"},
			{Name: "Sales", Type: "INCOME"},
			{Name: "Interest Income", Type: "INCOME"},
			{Name: "Office Expenses", Type: "EXPENSE"},
			{Name: "Bank Fees", Type: "EXPENSE"},
			{Name: "Utilities", Type: "EXPENSE"},
		},
		GSTCodes: []GSTCode{
			{Code: "GST", Rate: 0.1, Description: "Goods and services tax", Taxable: true},
			{Code: "FRE", Rate: 0, Description: "GST-free", Taxable: false},
			{Code: "INP", Rate: 0, Description: "Input-taxed", Taxable: false},
		},
	}
	chart.buildCodeMap()
	return chart
}
