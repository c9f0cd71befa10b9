package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/gasto/internal/categorize"
	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/config"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/rules"
	"github.com/Veraticus/gasto/internal/statement"
	"github.com/Veraticus/gasto/internal/storage"
)

// app bundles what most commands need: the database, the persisted rule
// set loaded into memory and the engine reading it.
type app struct {
	cfg    *config.Config
	store  *storage.SQLiteStorage
	rules  *rules.Store
	engine *categorize.Engine
}

// openApp opens and migrates the database, then loads the rule set. An empty
// database is seeded with the default rules.
func openApp(ctx context.Context) (*app, error) {
	cfg := appConfig
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	store, err := initStorage(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	ruleStore, err := rules.Load(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		store:  store,
		rules:  ruleStore,
		engine: categorize.NewWithConfig(ruleStore, cfg.CategorizeConfig()),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// initStorage opens the database and runs migrations.
func initStorage(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.ExpandPath(dbPath))
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// expandFiles expands globs, keeping plain paths that exist.
func expandFiles(args []string) ([]string, error) {
	var files []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return nil, common.NewUserError("No statement files found to import", common.ErrNoTransactions)
	}
	return files, nil
}

// parseDirection accepts income, expense or an empty string for both.
func parseDirection(s string) (model.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "both":
		return model.DirectionAny, nil
	case "income", "ingreso", "in":
		return model.DirectionIncome, nil
	case "expense", "gasto", "out":
		return model.DirectionExpense, nil
	}
	return "", fmt.Errorf("unknown direction %q (want income or expense)", s)
}

// parseAmountFlag reads an amount typed on the command line in either decimal
// notation.
func parseAmountFlag(s string) (float64, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	amount, err := statement.ParseAmount(s)
	if err != nil {
		return 0, err
	}
	return amount.InexactFloat64(), nil
}

// parseDateFlag reads YYYY-MM-DD; empty means today.
func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
