package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"expensetracker/internal/aggregate"
	"expensetracker/internal/core"
	"expensetracker/internal/tracker"
)

// Tracker is the part of the controller the shell drives.
type Tracker interface {
	AddExpense(ctx context.Context, in tracker.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	SaveProfile(ctx context.Context, name string, salary decimal.Decimal) error
	EditProfile(ctx context.Context)
	SetFilter(ctx context.Context, f aggregate.Filter) error
	SetTheme(ctx context.Context, theme core.Theme) error
	Recompute(ctx context.Context)
}

var (
	errUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("usage")
)

const helpText = `Commands:
  add <amount> <category> [YYYY-MM-DDTHH:MM] [description...]
      quote multi-word categories: add 12 "Eating out" pizza
  delete <id>
  profile <name> <monthly salary>
  edit-profile
  filter <all|today|week|month> [category|all]
  theme <light|dark>
  show
  help
  quit`

// shell turns input lines into controller commands.
type shell struct {
	tracker Tracker
	println func(a ...any)
	loc     *time.Location
}

func newShell(t Tracker, println func(a ...any)) *shell {
	return &shell{tracker: t, println: println, loc: time.Local}
}

// exec runs one line. It reports true when the user asked to quit.
func (s *shell) exec(ctx context.Context, line string) (bool, error) {
	fields, err := splitArgs(line)
	if err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "add":
		return false, s.add(ctx, args)
	case "delete", "rm":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: delete <id>", errUsage)
		}
		return false, s.tracker.DeleteExpense(ctx, args[0])
	case "profile":
		return false, s.profile(ctx, args)
	case "edit-profile":
		s.tracker.EditProfile(ctx)
		return false, nil
	case "filter":
		return false, s.filter(ctx, args)
	case "theme":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: theme <light|dark>", errUsage)
		}
		theme, err := core.ParseTheme(args[0])
		if err != nil {
			return false, err
		}
		return false, s.tracker.SetTheme(ctx, theme)
	case "show":
		s.tracker.Recompute(ctx)
		return false, nil
	case "help", "?":
		s.println(helpText)
		return false, nil
	case "quit", "exit":
		return true, nil
	}
	return false, fmt.Errorf("%w %q, type help for the list", errUnknownCommand, fields[0])
}

// splitArgs splits on whitespace. Single or double quotes group words into
// one argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inArg = r, true
		case unicode.IsSpace(r):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}

func (s *shell) add(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: add <amount> <category> [YYYY-MM-DDTHH:MM] [description...]", errUsage)
	}
	amount, err := core.ParseAmount(args[0])
	if err != nil {
		return err
	}

	in := tracker.ExpenseInput{Amount: amount, Category: args[1]}
	rest := args[2:]
	if len(rest) > 0 {
		if at, err := time.ParseInLocation(core.DateLayout, rest[0], s.loc); err == nil {
			in.OccurredAt = at
			rest = rest[1:]
		}
	}
	in.Description = strings.Join(rest, " ")

	e, err := s.tracker.AddExpense(ctx, in)
	if err != nil {
		return err
	}
	s.println("Added", e.ID)
	return nil
}

// profile takes the salary from the last argument so names may contain spaces.
func (s *shell) profile(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: profile <name> <monthly salary>", errUsage)
	}
	salary, err := decimal.NewFromString(strings.ReplaceAll(args[len(args)-1], ",", "."))
	if err != nil {
		return fmt.Errorf("invalid salary %q: %w", args[len(args)-1], err)
	}
	return s.tracker.SaveProfile(ctx, strings.Join(args[:len(args)-1], " "), salary)
}

func (s *shell) filter(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: filter <all|today|week|month> [category|all]", errUsage)
	}
	mode, err := aggregate.ParseDateMode(args[0])
	if err != nil {
		return err
	}
	f := aggregate.Filter{Date: mode, Category: aggregate.AllCategories}
	if len(args) > 1 {
		f.Category = strings.Join(args[1:], " ")
	}
	return s.tracker.SetFilter(ctx, f)
}
