// Package google mirrors tracker views into a Google Sheets spreadsheet, one
// block per series: summary figures, the filtered expenses, the category
// share and the daily trend.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/log"
	"expensetracker/internal/tracker"
)

const writeTimeout = 30 * time.Second

// Options configure a Publisher. One of the credential fields, or
// GOOGLE_APPLICATION_CREDENTIALS, must point at a service account.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Publisher is a tracker.Sink. Render only hands the view over; Run does the
// network calls, always with the most recent view, so a slow API never holds
// up the controller.
type Publisher struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	latest        chan tracker.View
	logger        *log.Logger
}

var _ tracker.Sink = (*Publisher)(nil)

func New(ctx context.Context, opts Options) (*Publisher, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newPublisher(svc, spreadsheetID, opts.SheetName), nil
}

func newPublisher(svc *gsheet.Service, spreadsheetID, sheetName string) *Publisher {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	return &Publisher{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		latest:        make(chan tracker.View, 1),
		logger: log.Default().WithComponent(log.ComponentSheets).With(
			log.FieldSpreadsheet, spreadsheetID),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		var err error
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Render keeps only the newest view for Run; it never blocks.
func (p *Publisher) Render(_ context.Context, v tracker.View) {
	for {
		select {
		case p.latest <- v:
			return
		default:
		}
		select {
		case <-p.latest:
		default:
		}
	}
}

// Run writes views to the spreadsheet until ctx ends. Write failures are
// logged; the next view is written in full anyway.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Spreadsheet publisher started", "sheet", p.sheetName)
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-p.latest:
			if err := p.write(ctx, v); err != nil {
				p.logger.ErrorContext(ctx, "Failed to update spreadsheet",
					log.FieldError, err,
					"error_type", log.ErrorTypeNetwork)
			}
		}
	}
}

func (p *Publisher) write(ctx context.Context, v tracker.View) error {
	if p.svc == nil {
		return errors.New("sheets service not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := p.svc.Spreadsheets.Values.BatchClear(p.spreadsheetID, &gsheet.BatchClearValuesRequest{
		Ranges: []string{ClearRange(p.sheetName)},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", p.sheetName, err)
	}

	_, err = p.svc.Spreadsheets.Values.BatchUpdate(p.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             ValueRanges(p.sheetName, v),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet %s: %w", p.sheetName, err)
	}

	p.logger.DebugContext(ctx, "Spreadsheet updated", log.FieldCount, len(v.Expenses))
	return nil
}
