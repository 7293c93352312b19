// Package google mirrors budget cells into a Google Sheet, one tab per month.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"budgetd/internal/core"
	ports "budgetd/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var (
	_ ports.CellWriter  = (*Client)(nil)
	_ ports.MonthReader = (*Client)(nil)
)

// DefaultTabPrefix names month tabs "Budget 2024-03".
const DefaultTabPrefix = "Budget"

var header = []any{"Category ID", "Group", "Category", "Assigned", "Activity", "Remaining"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabPrefix     string

	mu    sync.Mutex
	known map[string]bool // tabs verified to exist
}

// New wraps an existing service.
func New(svc *gsheet.Service, spreadsheetID, tabPrefix string) *Client {
	if tabPrefix == "" {
		tabPrefix = DefaultTabPrefix
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, tabPrefix: tabPrefix, known: map[string]bool{}}
}

// NewFromEnv creates a client authenticated with a service account.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. GOOGLE_SHEET_PREFIX overrides the tab prefix.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "component", "sheets", "spreadsheet_id", spreadsheetID)
	return New(svc, spreadsheetID, strings.TrimSpace(os.Getenv("GOOGLE_SHEET_PREFIX"))), nil
}

func credentialsFromEnv() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func (c *Client) tabName(month core.Month) string {
	return fmt.Sprintf("%s %s", c.tabPrefix, month)
}

// UpsertBudgetCell writes the category's line in the month tab, creating the
// tab with a header row when it does not exist yet.
func (c *Client) UpsertBudgetCell(ctx context.Context, cell ports.BudgetCell) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if cell.CategoryID == 0 {
		return "", core.ErrMissingCategory
	}
	tab := c.tabName(cell.Month)
	if err := c.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	ids, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tab+"!A:A").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read category ids of %s: %w", tab, err)
	}
	values := &gsheet.ValueRange{Values: [][]any{cellRow(cell)}}

	if row := findRow(ids.Values, cell.CategoryID); row > 0 {
		rng := fmt.Sprintf("%s!A%d:F%d", tab, row, row)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
		return rng, nil
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, tab+"!A:F", values).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", tab, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return tab, nil
}

// ReadMonth returns the lines of the month tab; a missing tab reads as empty.
func (c *Client) ReadMonth(ctx context.Context, month core.Month) ([]ports.BudgetCell, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	tab := c.tabName(month)
	exists, err := c.tabExists(ctx, tab)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tab+"!A2:F").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tab, err)
	}
	return parseCells(month, resp.Values)
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	exists, err := c.tabExists(ctx, tab)
	if err != nil || exists {
		return err
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}}}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add tab %s: %w", tab, err)
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, tab+"!A1:F1", &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %s: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created month tab", "component", "sheets", "tab", tab)

	c.mu.Lock()
	c.known[tab] = true
	c.mu.Unlock()
	return nil
}

func (c *Client) tabExists(ctx context.Context, tab string) (bool, error) {
	c.mu.Lock()
	ok := c.known[tab]
	c.mu.Unlock()
	if ok {
		return true, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("get spreadsheet: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.known[sh.Properties.Title] = true
		}
	}
	return c.known[tab], nil
}
