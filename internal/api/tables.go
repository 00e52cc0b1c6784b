package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/semtab/semtab-cli/internal/table"
)

// TableInfo is one entry of a dataset's table collection.
type TableInfo struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	NCols               int    `json:"nCols,omitempty"`
	NRows               int    `json:"nRows,omitempty"`
	NCellsReconciliated int    `json:"nCellsReconciliated,omitempty"`
	LastModifiedDate    string `json:"lastModifiedDate,omitempty"`
}

// Export formats accepted by the table export endpoint.
const (
	ExportFormatCSV = "csv"
	ExportFormatW3C = "w3c"
)

// ListTables retrieves all tables of a dataset.
func (c *Client) ListTables(ctx context.Context, datasetID string) ([]TableInfo, error) {
	if datasetID == "" {
		return nil, ValidationError{Message: "dataset id is required"}
	}
	var resp collection[TableInfo]
	if err := c.call(ctx, http.MethodGet, "/dataset/"+datasetID+"/table", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list tables of dataset %s: %w", datasetID, err)
	}
	return resp.Collection, nil
}

// GetTable retrieves a full table (metadata, columns, rows). The table id is
// stamped into the result because the backend omits it from the body.
func (c *Client) GetTable(ctx context.Context, datasetID, tableID string) (*table.Table, error) {
	if datasetID == "" || tableID == "" {
		return nil, ValidationError{Message: "dataset id and table id are required"}
	}
	raw, err := c.callRaw(ctx, http.MethodGet, "/dataset/"+datasetID+"/table/"+tableID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get table %s: %w", tableID, err)
	}
	t, err := table.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse table %s: %w", tableID, err)
	}
	t.Meta.ID = tableID
	if t.Meta.IDDataset == "" {
		t.Meta.IDDataset = datasetID
	}
	return t, nil
}

// AddTable uploads the frame as a CSV table in the dataset and returns the
// new table id.
func (c *Client) AddTable(ctx context.Context, datasetID, name string, frame *table.Frame) (string, error) {
	if datasetID == "" {
		return "", ValidationError{Message: "dataset id is required"}
	}
	if name == "" {
		return "", ValidationError{Message: "table name is required"}
	}
	csvData, err := frame.CSVBytes()
	if err != nil {
		return "", fmt.Errorf("failed to encode table csv: %w", err)
	}

	var resp struct {
		Tables []TableInfo `json:"tables"`
	}
	if err := c.upload(ctx, "/dataset/"+datasetID+"/table", name, name+".csv", csvData, &resp); err != nil {
		return "", fmt.Errorf("failed to add table: %w", err)
	}
	if len(resp.Tables) == 0 || resp.Tables[0].ID == "" {
		return "", fmt.Errorf("backend returned no table id")
	}
	return resp.Tables[0].ID, nil
}

// DeleteTable removes a table from a dataset.
func (c *Client) DeleteTable(ctx context.Context, datasetID, tableID string) error {
	if datasetID == "" || tableID == "" {
		return ValidationError{Message: "dataset id and table id are required"}
	}
	if err := c.call(ctx, http.MethodDelete, "/dataset/"+datasetID+"/table/"+tableID, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete table %s: %w", tableID, err)
	}
	return nil
}

// ExportTable downloads a table in the given export format and returns the
// raw document (CSV text or W3C JSON).
func (c *Client) ExportTable(ctx context.Context, datasetID, tableID, format string) ([]byte, error) {
	if datasetID == "" || tableID == "" {
		return nil, ValidationError{Message: "dataset id and table id are required"}
	}
	switch format {
	case ExportFormatCSV, ExportFormatW3C:
	default:
		return nil, ValidationError{Message: fmt.Sprintf("invalid export format %q (expected csv|w3c)", format)}
	}

	query := url.Values{"format": {format}}
	raw, err := c.callRaw(ctx, http.MethodGet, "/dataset/"+datasetID+"/table/"+tableID+"/export", query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to export table %s: %w", tableID, err)
	}
	return raw, nil
}

// PushTable updates a table on the backend with an enriched payload.
func (c *Client) PushTable(ctx context.Context, datasetID, tableID string, payload *table.BackendPayload) error {
	if datasetID == "" || tableID == "" {
		return ValidationError{Message: "dataset id and table id are required"}
	}
	if payload == nil {
		return ValidationError{Message: "payload is required"}
	}
	if err := c.call(ctx, http.MethodPut, "/dataset/"+datasetID+"/table/"+tableID, nil, payload, nil); err != nil {
		return fmt.Errorf("failed to push table %s: %w", tableID, err)
	}
	return nil
}
