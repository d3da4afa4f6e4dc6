// Package sheetstore binds the expediente service to a Google Sheets
// worksheet: header reads, bulk record reads, rectangular value writes, and
// batched cell background formatting.
package sheetstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/mdiaze-dotcom/made-drcm/expediente"
)

// Client implements expediente.Store against one worksheet of one
// spreadsheet. It is safe for concurrent use.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string

	mu       sync.Mutex
	resolved bool
	gridID   int64
	title    string
}

// New builds a Sheets-backed store. worksheet selects a tab by title; empty
// means the spreadsheet's first tab. credentialsFile points at a service
// account key with the spreadsheets scope.
func New(ctx context.Context, spreadsheetID, worksheet, credentialsFile string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheetstore: empty spreadsheet id")
	}
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheetstore: build sheets client: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet}, nil
}

// Header returns the trimmed column names of row 1.
func (c *Client) Header(ctx context.Context) ([]string, error) {
	title, _, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}
	vr, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rangeRef(title, "1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheetstore: read header: %w", err)
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}
	header := make([]string, 0, len(vr.Values[0]))
	for _, cell := range vr.Values[0] {
		header = append(header, strings.TrimSpace(cellString(cell)))
	}
	return header, nil
}

// Records returns every data row keyed by the header, starting at row 2.
// Values come back formatted, the way the sheet displays them. Rows shorter
// than the header are padded with empty cells.
func (c *Client) Records(ctx context.Context) ([]expediente.Row, error) {
	title, _, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}
	vr, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rangeRef(title, "")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheetstore: read records: %w", err)
	}
	if len(vr.Values) < 2 {
		return nil, nil
	}
	header := vr.Values[0]
	records := make([]expediente.Row, 0, len(vr.Values)-1)
	for _, raw := range vr.Values[1:] {
		row := make(expediente.Row, len(header))
		for i, name := range header {
			key := strings.TrimSpace(cellString(name))
			if key == "" {
				continue
			}
			if i < len(raw) {
				row[key] = raw[i]
			} else {
				row[key] = ""
			}
		}
		records = append(records, row)
	}
	return records, nil
}

// WriteRange overwrites the rectangle anchored at the 1-based (row, col)
// with the given values, USER_ENTERED so dates and numbers keep their sheet
// semantics.
func (c *Client) WriteRange(ctx context.Context, row, col int, values [][]string) error {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil
	}
	title, _, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	ref := rowColToA1(row, col) + ":" + rowColToA1(row+len(values)-1, col+len(values[0])-1)
	vals := make([][]any, len(values))
	for i, r := range values {
		cells := make([]any, len(r))
		for j, cell := range r {
			cells[j] = cell
		}
		vals[i] = cells
	}
	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, rangeRef(title, ref), &sheets.ValueRange{Values: vals}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheetstore: update range %s: %w", ref, err)
	}
	return nil
}

// FormatCells recolors cell backgrounds in one BatchUpdate request.
func (c *Client) FormatCells(ctx context.Context, cells []expediente.CellFormat) error {
	if len(cells) == 0 {
		return nil
	}
	_, gridID, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	reqs := make([]*sheets.Request, 0, len(cells))
	for _, cell := range cells {
		reqs = append(reqs, formatRequest(gridID, cell))
	}
	_, err = c.svc.Spreadsheets.
		BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheetstore: apply cell formatting: %w", err)
	}
	return nil
}

// formatRequest shapes one RepeatCell request setting only the background
// color of a single 1-based cell.
func formatRequest(gridID int64, cell expediente.CellFormat) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          gridID,
				StartRowIndex:    int64(cell.Row - 1),
				EndRowIndex:      int64(cell.Row),
				StartColumnIndex: int64(cell.Col - 1),
				EndColumnIndex:   int64(cell.Col),
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					BackgroundColor: &sheets.Color{
						Red:   cell.Background.Red,
						Green: cell.Background.Green,
						Blue:  cell.Background.Blue,
						ForceSendFields: []string{"Red", "Green", "Blue"},
					},
				},
			},
			Fields: "userEnteredFormat.backgroundColor",
		},
	}
}

// resolve looks up the worksheet's title and numeric grid id once and caches
// them for the client's lifetime.
func (c *Client) resolve(ctx context.Context) (string, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.title, c.gridID, nil
	}
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets(properties(sheetId,title,index))").
		Context(ctx).
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("sheetstore: read spreadsheet metadata: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties == nil {
			continue
		}
		if c.worksheet == "" || sh.Properties.Title == c.worksheet {
			c.title = sh.Properties.Title
			c.gridID = sh.Properties.SheetId
			c.resolved = true
			return c.title, c.gridID, nil
		}
	}
	return "", 0, fmt.Errorf("sheetstore: worksheet %q not found", c.worksheet)
}

func cellString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
