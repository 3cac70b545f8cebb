package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"kitty/internal/cli"
	"kitty/internal/core"
)

// legacyExpense matches the JSON export format of the previous tracker.
// Amounts are decimal strings and the responsible members may appear
// under the older "beneficiaries" name, as a list or a CSV string.
type legacyExpense struct {
	Date          string          `json:"date"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Amount        string          `json:"amount"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"paymentMethod"`
	Payer         string          `json:"payer"`
	Responsible   json.RawMessage `json:"responsible"`
	Beneficiaries json.RawMessage `json:"beneficiaries"`
}

func (le legacyExpense) toExpense() (core.Expense, error) {
	date, err := core.ParseDate(le.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("date %q: %w", le.Date, err)
	}

	cents, err := core.ParseDecimalToCents(le.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("amount %q: %w", le.Amount, err)
	}

	raw := le.Responsible
	if len(raw) == 0 {
		raw = le.Beneficiaries
	}
	resp, err := decodeResponsible(raw)
	if err != nil {
		return core.Expense{}, err
	}

	return core.Expense{
		Date:           date,
		Title:          le.Title,
		Description:    le.Description,
		Amount:         core.Money{Cents: cents},
		Category:       le.Category,
		PaymentMethod:  le.PaymentMethod,
		Payer:          le.Payer,
		Responsibility: resp,
	}, nil
}

func decodeResponsible(raw json.RawMessage) (core.Responsibility, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return core.Everyone(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return core.ParseResponsibility(s), nil
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return core.Split(names...), nil
	}

	return core.Responsibility{}, fmt.Errorf("responsible must be a string or an array, got %s", raw)
}

func main() {
	strict := flag.Bool("strict", false, "abort on the first invalid record instead of skipping it")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-strict] <export.json>\n", os.Args[0])
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := cli.LoadAndValidateConfig(logger)
	house := cfg.House()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("Failed to read export file", "path", path, "error", err)
		os.Exit(1)
	}

	var records []legacyExpense
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Error("Failed to parse export file", "path", path, "error", err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx := context.Background()
	imported := 0
	skipped := 0

	for i, record := range records {
		e, err := record.toExpense()
		if err == nil {
			err = e.Validate(house)
		}
		if err != nil {
			if *strict {
				logger.Error("Invalid record", "index", i, "title", record.Title, "error", err)
				os.Exit(1)
			}
			logger.Warn("Skipping invalid record", "index", i, "title", record.Title, "error", err)
			skipped++
			continue
		}

		if _, err := repo.CreateExpense(ctx, e); err != nil {
			logger.Error("Failed to save record", "index", i, "title", e.Title, "error", err)
			os.Exit(1)
		}
		imported++
	}

	logger.Info("Import complete",
		"path", path,
		"imported", imported,
		"skipped", skipped,
		"total", len(records))
}
