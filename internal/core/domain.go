package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the minute-precision local timestamp used for the "date" field.
const DateLayout = "2006-01-02T15:04"

// DefaultProfileName marks a profile that was never filled in.
const DefaultProfileName = "User"

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type (
	Theme string

	Expense struct {
		ID          string
		Amount      decimal.Decimal
		Category    string
		OccurredAt  time.Time
		Description string
		SortKey     int64 // epoch millis of OccurredAt, fixed at creation
	}

	UserProfile struct {
		Name   string
		Salary decimal.Decimal
	}
)

var (
	ErrInvalidAmount = errors.New("amount must be a finite number >= 0")
	ErrEmptyCategory = errors.New("category cannot be empty")
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrInvalidSalary = errors.New("salary must be greater than zero")
	ErrInvalidTheme  = errors.New("theme must be light or dark")
)

// ValidationError reports bad user input. It unwraps to one of the sentinel errors above.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DefaultProfile is used when nothing has been stored yet.
func DefaultProfile() UserProfile {
	return UserProfile{Name: DefaultProfileName, Salary: decimal.Zero}
}

// NewProfile validates and normalizes a profile submitted by the user.
func NewProfile(name string, salary decimal.Decimal) (UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UserProfile{}, &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if !salary.IsPositive() {
		return UserProfile{}, &ValidationError{Field: "salary", Err: ErrInvalidSalary}
	}
	return UserProfile{Name: name, Salary: salary}, nil
}

// Configured reports whether the profile unlocks the tracker.
func (p UserProfile) Configured() bool {
	name := strings.TrimSpace(p.Name)
	return name != "" && name != DefaultProfileName && p.Salary.IsPositive()
}

// Equal compares profiles by value.
func (p UserProfile) Equal(o UserProfile) bool {
	return p.Name == o.Name && p.Salary.Equal(o.Salary)
}

// NewExpense builds an expense, defaulting the description and deriving the sort key.
func NewExpense(id string, amount decimal.Decimal, category string, occurredAt time.Time, description string) (Expense, error) {
	category = strings.TrimSpace(category)
	if amount.IsNegative() {
		return Expense{}, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if category == "" {
		return Expense{}, &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	if strings.TrimSpace(description) == "" {
		description = category
	}
	occurredAt = occurredAt.Truncate(time.Minute)
	return Expense{
		ID:          id,
		Amount:      amount,
		Category:    category,
		OccurredAt:  occurredAt,
		Description: description,
		SortKey:     occurredAt.UnixMilli(),
	}, nil
}

// Equal compares expenses field by field, amounts by value.
func (e Expense) Equal(o Expense) bool {
	return e.ID == o.ID &&
		e.Amount.Equal(o.Amount) &&
		e.Category == o.Category &&
		e.OccurredAt.Equal(o.OccurredAt) &&
		e.Description == o.Description &&
		e.SortKey == o.SortKey
}

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", &ValidationError{Field: "theme", Err: ErrInvalidTheme}
}

// ParseOccurredAt reads a "2006-01-02T15:04" value in loc, falling back to RFC 3339.
func ParseOccurredAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.In(loc), nil
}

type expenseJSON struct {
	ID          string `json:"id"`
	Amount      number `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}

// MarshalJSON keeps the record layout used by the persisted "expenses" key.
// date is wall-clock time in time.Local, the zone UnmarshalJSON reads it in.
func (e Expense) MarshalJSON() ([]byte, error) {
	return json.Marshal(expenseJSON{
		ID:          e.ID,
		Amount:      number(e.Amount),
		Category:    e.Category,
		Date:        e.OccurredAt.In(time.Local).Format(DateLayout),
		Description: e.Description,
		Timestamp:   e.SortKey,
	})
}

func (e *Expense) UnmarshalJSON(data []byte) error {
	var raw expenseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID == "" {
		return errors.New("expense without id")
	}
	occurredAt, err := ParseOccurredAt(raw.Date, time.Local)
	if err != nil {
		return err
	}
	sortKey := raw.Timestamp
	if sortKey == 0 {
		sortKey = occurredAt.UnixMilli()
	} else if exact := time.UnixMilli(sortKey).In(time.Local); exact.Format(DateLayout) == occurredAt.Format(DateLayout) {
		// date only keeps minutes; the timestamp restores the exact instant
		occurredAt = exact
	}
	*e = Expense{
		ID:          raw.ID,
		Amount:      decimal.Decimal(raw.Amount),
		Category:    raw.Category,
		OccurredAt:  occurredAt,
		Description: raw.Description,
		SortKey:     sortKey,
	}
	return nil
}

type profileJSON struct {
	Name   string `json:"name"`
	Salary number `json:"salary"`
}

func (p UserProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(profileJSON{Name: p.Name, Salary: number(p.Salary)})
}

func (p *UserProfile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = UserProfile{Name: raw.Name, Salary: decimal.Decimal(raw.Salary)}
	return nil
}
