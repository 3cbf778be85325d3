// Package google writes ledger reports to a Google spreadsheet using service
// account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenses/internal/analytics"
	ports "expenses/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
	categorySheet string
}

var _ ports.ReportWriter = (*Client)(nil)

// Options selects the spreadsheet, its two report sheets and the credentials.
// CredentialsJSON wins over CredentialsFile.
type Options struct {
	SpreadsheetID   string
	SummarySheet    string
	CategorySheet   string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated as a service account. Extra
// client options are appended after the credentials.
func New(ctx context.Context, opts Options, extra ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if opts.SummarySheet == "" || opts.CategorySheet == "" {
		return nil, errors.New("missing report sheet names")
	}

	clientOpts := extra
	if len(extra) == 0 {
		creds, err := credentials(opts)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
			goption.WithHTTPClient(newHTTPClientWithPooling()),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets report writer ready",
		"component", "sheets",
		"summary_sheet", opts.SummarySheet,
		"category_sheet", opts.CategorySheet)

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		summarySheet:  opts.SummarySheet,
		categorySheet: opts.CategorySheet,
	}, nil
}

func credentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case opts.CredentialsFile != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read application credentials: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials")
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm between exports.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}
}

func (c *Client) WriteMonthlySummary(ctx context.Context, rows []analytics.MonthSummary) error {
	return c.replace(ctx, c.summarySheet, "A:D", ports.SummaryValues(rows))
}

func (c *Client) WriteCategoryTotals(ctx context.Context, rows []analytics.CategoryShare) error {
	return c.replace(ctx, c.categorySheet, "A:C", ports.CategoryValues(rows))
}

// replace clears the sheet's columns then writes values from A1, so rows
// left over from a longer previous export disappear.
func (c *Client) replace(ctx context.Context, sheet, cols string, values [][]any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!%s", quoteSheet(sheet), cols)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}

	writeRange := fmt.Sprintf("%s!A1", quoteSheet(sheet))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", sheet, err)
	}

	slog.DebugContext(ctx, "Report sheet written", "component", "sheets", "sheet", sheet, "rows", len(values)-1)
	return nil
}

// quoteSheet wraps a sheet name for A1 notation, doubling embedded quotes.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
