// Package tracker owns the state of one tracker instance: the expense
// collection, the user profile and the display settings. Local commands and
// events received from other instances go through the same Controller, which
// persists every mutation, broadcasts local ones and hands a fresh View to
// its Sink.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/aggregate"
	"expensetracker/internal/bus"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/repository"
)

// ErrProfileRequired is returned by expense commands before a profile is saved.
var ErrProfileRequired = errors.New("save a profile before recording expenses")

// Repository is the persistence the controller needs.
type Repository interface {
	LoadExpenses(ctx context.Context) ([]core.Expense, error)
	SaveExpenses(ctx context.Context, expenses []core.Expense) error
	LoadProfile(ctx context.Context) (core.UserProfile, error)
	SaveProfile(ctx context.Context, profile core.UserProfile) error
	LoadTheme(ctx context.Context) (core.Theme, error)
	SaveTheme(ctx context.Context, theme core.Theme) error
}

// ExpenseInput is a new expense as entered by the user. A zero OccurredAt
// means now; a blank Description defaults to the category.
type ExpenseInput struct {
	Amount      decimal.Decimal
	Category    string
	OccurredAt  time.Time
	Description string
}

type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDs(ids IDGenerator) Option {
	return func(c *Controller) { c.ids = ids }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) { c.logger = logger.WithComponent(log.ComponentTracker) }
}

type Controller struct {
	repo   Repository
	bus    bus.Bus
	sink   Sink
	now    func() time.Time
	ids    IDGenerator
	logger *log.Logger

	mu          sync.Mutex
	expenses    *core.Collection
	profile     core.UserProfile
	theme       core.Theme
	filter      aggregate.Filter
	mode        Mode
	formVisible bool
	view        View
	subscribed  bool

	pendingExpenses bool
	pendingProfile  bool
	pendingTheme    bool
	warning         string
}

func New(repo Repository, b bus.Bus, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		repo:     repo,
		bus:      b,
		sink:     sink,
		now:      time.Now,
		ids:      &MillisIDs{},
		logger:   log.Default().WithComponent(log.ComponentTracker),
		expenses: core.NewCollection(),
		profile:  core.DefaultProfile(),
		theme:    core.ThemeLight,
		filter:   aggregate.DefaultFilter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = bus.Noop{}
	}
	return c
}

// Load reads the persisted state, starts listening to the bus and renders.
// Unreadable state falls back to defaults; only a bus failure is returned.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var problems []string

	expenses, err := c.repo.LoadExpenses(ctx)
	if err != nil {
		problems = append(problems, c.loadFailed(ctx, "expenses", err))
		expenses = nil
	}
	profile, err := c.repo.LoadProfile(ctx)
	if err != nil {
		problems = append(problems, c.loadFailed(ctx, "profile", err))
		profile = core.DefaultProfile()
	}
	theme, err := c.repo.LoadTheme(ctx)
	if err != nil {
		problems = append(problems, c.loadFailed(ctx, "theme", err))
		theme = core.ThemeLight
	}

	c.expenses = core.NewCollection(expenses...)
	c.profile = profile
	c.theme = theme
	c.mode = ModeUnconfigured
	if profile.Configured() {
		c.mode = ModeActive
	}
	// The profile form is offered on every start, prefilled when configured.
	c.formVisible = true
	c.warning = ""
	for _, p := range problems {
		if p != "" {
			c.warning = p
		}
	}

	c.logger.InfoContext(ctx, "Tracker state loaded",
		log.FieldCount, c.expenses.Len(),
		log.FieldMode, c.mode.String())

	if !c.subscribed {
		if err := c.bus.Subscribe(c.OnRemoteEvent); err != nil {
			c.render(ctx)
			return fmt.Errorf("subscribe to sync bus: %w", err)
		}
		c.subscribed = true
	}

	c.render(ctx)
	return nil
}

// loadFailed logs a load error and returns the warning to show, if any.
// Malformed values are only logged; an unreachable store is surfaced.
func (c *Controller) loadFailed(ctx context.Context, what string, err error) string {
	if errors.Is(err, repository.ErrMalformed) {
		c.logger.WarnContext(ctx, "Discarding malformed stored state",
			log.FieldKey, what,
			log.FieldError, err,
			"error_type", log.ErrorTypeMalformed)
		return ""
	}
	c.logger.WarnContext(ctx, "Store unavailable, starting from defaults",
		log.FieldKey, what,
		log.FieldError, err,
		"error_type", log.ErrorTypeStorage)
	return fmt.Sprintf("Stored %s could not be read: %v", what, err)
}

// AddExpense records a new expense, persists the collection and broadcasts it.
func (c *Controller) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeActive {
		return core.Expense{}, ErrProfileRequired
	}

	now := c.now()
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	e, err := core.NewExpense(c.ids.NextID(now), in.Amount, in.Category, occurredAt, in.Description)
	if err != nil {
		return core.Expense{}, err
	}

	c.expenses.Upsert(e)
	c.logger.InfoContext(ctx, "Expense added", log.NewFields().
		WithOperation(log.OpCreate).
		WithExpense(e.ID, e.Amount.String(), e.Category).
		ToSlice()...)

	c.persistExpenses(ctx)
	c.publish(ctx, bus.AddEvent(e))
	c.render(ctx)
	return e, nil
}

// DeleteExpense removes an expense. Unknown IDs are not an error; the delete
// is still persisted and broadcast.
func (c *Controller) DeleteExpense(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeActive {
		return ErrProfileRequired
	}

	fields := log.NewFields().WithOperation(log.OpDelete)
	fields[log.FieldExpenseID] = id
	if e, ok := c.expenses.Get(id); ok {
		fields.WithExpense(e.ID, e.Amount.String(), e.Category)
	}
	fields["found"] = c.expenses.Remove(id)
	c.logger.InfoContext(ctx, "Expense deleted", fields.ToSlice()...)

	c.persistExpenses(ctx)
	c.publish(ctx, bus.DeleteEvent(id))
	c.render(ctx)
	return nil
}

// SaveProfile validates and stores the profile, unlocking the tracker.
// Invalid input changes nothing and broadcasts nothing.
func (c *Controller) SaveProfile(ctx context.Context, name string, salary decimal.Decimal) error {
	profile, err := core.NewProfile(name, salary)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.profile = profile
	c.mode = ModeActive
	c.formVisible = false
	c.logger.InfoContext(ctx, "Profile saved",
		log.FieldOperation, log.OpUpdate,
		"name", profile.Name,
		"salary", profile.Salary.String())

	c.persistProfile(ctx)
	c.publish(ctx, bus.ProfileEvent(profile))
	c.render(ctx)
	return nil
}

// EditProfile shows the profile form again without changing the mode.
func (c *Controller) EditProfile(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formVisible = true
	c.render(ctx)
}

// OnRemoteEvent applies a mutation made by another instance. It persists but
// never broadcasts. A profile update shows the profile form so the user
// confirms it here too.
func (c *Controller) OnRemoteEvent(ctx context.Context, e bus.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fields := log.NewFields().WithEvent(string(e.Kind), true)
	switch e.Kind {
	case bus.EventAdd:
		replaced := c.expenses.Upsert(*e.Expense)
		fields.WithExpense(e.Expense.ID, e.Expense.Amount.String(), e.Expense.Category)
		fields["replaced"] = replaced
		c.persistExpenses(ctx)
	case bus.EventDelete:
		fields["found"] = c.expenses.Remove(e.ID)
		fields[log.FieldExpenseID] = e.ID
		c.persistExpenses(ctx)
	case bus.EventProfileUpdate:
		c.profile = *e.Profile
		c.formVisible = true
		c.persistProfile(ctx)
	}

	c.logger.InfoContext(ctx, "Applied remote event", fields.ToSlice()...)
	c.render(ctx)
	return nil
}

// Recompute renders the current state again.
func (c *Controller) Recompute(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render(ctx)
}

// SetFilter changes the date and category selection of the table and charts.
func (c *Controller) SetFilter(ctx context.Context, f aggregate.Filter) error {
	if f.Date == "" {
		f.Date = aggregate.DateAll
	}
	if _, err := aggregate.ParseDateMode(string(f.Date)); err != nil {
		return err
	}
	if f.Category == "" {
		f.Category = aggregate.AllCategories
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
	c.render(ctx)
	return nil
}

// SetTheme persists the theme of this instance. Themes are not broadcast.
func (c *Controller) SetTheme(ctx context.Context, theme core.Theme) error {
	if _, err := core.ParseTheme(string(theme)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = theme
	c.persistTheme(ctx)
	c.render(ctx)
	return nil
}

// Flush retries writes that failed earlier. It returns an error while the
// store is still refusing them.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending() {
		return nil
	}
	if c.pendingExpenses {
		c.persistExpenses(ctx)
	}
	if c.pendingProfile {
		c.persistProfile(ctx)
	}
	if c.pendingTheme {
		c.persistTheme(ctx)
	}

	c.render(ctx)
	if c.pending() {
		return fmt.Errorf("flush: %s", c.warning)
	}
	c.logger.InfoContext(ctx, "Pending changes saved", log.FieldOperation, log.OpSync)
	return nil
}

// Reload re-reads expenses and profile from the store, picking up changes
// whose events this instance missed. It does nothing while local writes are
// pending, and renders only when something changed.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending() {
		return nil
	}

	expenses, err := c.repo.LoadExpenses(ctx)
	if err != nil {
		return fmt.Errorf("reload expenses: %w", err)
	}
	profile, err := c.repo.LoadProfile(ctx)
	if err != nil {
		return fmt.Errorf("reload profile: %w", err)
	}

	recovered := c.warning != ""
	c.warning = ""
	changed := !sameExpenses(c.expenses.Items(), expenses) || !c.profile.Equal(profile)
	if !changed && !recovered {
		return nil
	}

	c.expenses = core.NewCollection(expenses...)
	c.profile = profile
	c.logger.InfoContext(ctx, "Reloaded state from store",
		log.FieldOperation, log.OpSync,
		log.FieldCount, c.expenses.Len())
	c.render(ctx)
	return nil
}

func sameExpenses(a, b []core.Expense) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (c *Controller) Expenses() []core.Expense {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expenses.Items()
}

func (c *Controller) Profile() core.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) ProfileFormVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.formVisible
}

func (c *Controller) Theme() core.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// View returns the last rendered view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) pending() bool {
	return c.pendingExpenses || c.pendingProfile || c.pendingTheme
}

func (c *Controller) persistExpenses(ctx context.Context) {
	err := c.repo.SaveExpenses(ctx, c.expenses.Items())
	c.pendingExpenses = err != nil
	c.persisted(ctx, repository.KeyExpenses, err)
}

func (c *Controller) persistProfile(ctx context.Context) {
	err := c.repo.SaveProfile(ctx, c.profile)
	c.pendingProfile = err != nil
	c.persisted(ctx, repository.KeyProfile, err)
}

func (c *Controller) persistTheme(ctx context.Context) {
	err := c.repo.SaveTheme(ctx, c.theme)
	c.pendingTheme = err != nil
	c.persisted(ctx, repository.KeyTheme, err)
}

func (c *Controller) persisted(ctx context.Context, key string, err error) {
	if err != nil {
		c.warning = fmt.Sprintf("Changes are not saved yet: %v", err)
		c.logger.WarnContext(ctx, "Failed to persist state, will retry",
			log.FieldKey, key,
			log.FieldError, err,
			"error_type", log.ErrorTypeStorage)
		return
	}
	if !c.pending() {
		c.warning = ""
	}
}

// publish never fails the command: the local change is already saved.
func (c *Controller) publish(ctx context.Context, e bus.Event) {
	if err := c.bus.Publish(ctx, e); err != nil {
		c.logger.WarnContext(ctx, "Failed to broadcast change",
			log.FieldEventKind, e.Kind,
			log.FieldError, err,
			"error_type", log.ErrorTypeNetwork)
	}
}

func (c *Controller) render(ctx context.Context) {
	now := c.now()
	summary := aggregate.Summarize(c.expenses.Items(), c.profile, c.filter, now)
	c.view = View{
		Mode:               c.mode,
		ProfileFormVisible: c.formVisible,
		Profile:            c.profile,
		Theme:              c.theme,
		Filter:             c.filter,
		Expenses:           summary.Expenses,
		Totals:             summary.Totals,
		ByCategory:         summary.ByCategory,
		ByDay:              summary.ByDay,
		Categories:         summary.Categories,
		Warning:            c.warning,
		GeneratedAt:        now,
	}
	if c.sink != nil {
		c.sink.Render(ctx, c.view)
	}
}
