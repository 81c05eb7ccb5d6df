// Package repository maps domain records onto the keys of a storage.Store.
// The layout matches the records written by earlier versions of the tracker:
// "expenses" holds a JSON array, "userInfo" a JSON object and "theme" a bare string.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"
)

const (
	KeyExpenses = "expenses"
	KeyProfile  = "userInfo"
	KeyTheme    = "theme"
)

// ErrMalformed is returned when a stored value cannot be decoded.
var ErrMalformed = errors.New("malformed stored value")

type Repository struct {
	store  storage.Store
	logger *log.Logger
}

func New(store storage.Store) *Repository {
	return &Repository{
		store:  store,
		logger: log.Default().WithComponent(log.ComponentRepository),
	}
}

// LoadExpenses returns the stored collection, empty when the key is absent or null.
func (r *Repository) LoadExpenses(ctx context.Context) ([]core.Expense, error) {
	raw, err := r.store.Get(ctx, KeyExpenses)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.Expense{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	var expenses []core.Expense
	if err := json.Unmarshal([]byte(raw), &expenses); err != nil {
		return nil, fmt.Errorf("load expenses: %w: %w", ErrMalformed, err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}

	r.logger.DebugContext(ctx, "Expenses loaded", log.FieldCount, len(expenses))
	return expenses, nil
}

// SaveExpenses replaces the whole stored collection.
func (r *Repository) SaveExpenses(ctx context.Context, expenses []core.Expense) error {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	data, err := json.Marshal(expenses)
	if err != nil {
		return fmt.Errorf("encode expenses: %w", err)
	}
	if err := r.store.Set(ctx, KeyExpenses, string(data)); err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}
	return nil
}

// LoadProfile returns the stored profile, or the default one when none is stored.
func (r *Repository) LoadProfile(ctx context.Context) (core.UserProfile, error) {
	raw, err := r.store.Get(ctx, KeyProfile)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && strings.TrimSpace(raw) == "null") {
		return core.DefaultProfile(), nil
	}
	if err != nil {
		return core.DefaultProfile(), fmt.Errorf("load profile: %w", err)
	}

	var profile core.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return core.DefaultProfile(), fmt.Errorf("load profile: %w: %w", ErrMalformed, err)
	}
	return profile, nil
}

func (r *Repository) SaveProfile(ctx context.Context, profile core.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := r.store.Set(ctx, KeyProfile, string(data)); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// LoadTheme falls back to light for a missing or unknown value.
func (r *Repository) LoadTheme(ctx context.Context) (core.Theme, error) {
	raw, err := r.store.Get(ctx, KeyTheme)
	if errors.Is(err, storage.ErrNotFound) {
		return core.ThemeLight, nil
	}
	if err != nil {
		return core.ThemeLight, fmt.Errorf("load theme: %w", err)
	}

	theme, err := core.ParseTheme(raw)
	if err != nil {
		r.logger.WarnContext(ctx, "Ignoring unknown theme", log.FieldKey, KeyTheme, "value", raw)
		return core.ThemeLight, nil
	}
	return theme, nil
}

func (r *Repository) SaveTheme(ctx context.Context, theme core.Theme) error {
	if err := r.store.Set(ctx, KeyTheme, string(theme)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}
