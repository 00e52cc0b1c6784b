package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/semtab/semtab-cli/internal/table"
)

// Extender service ids the client knows how to build payloads for.
const (
	ExtenderOpenMeteo        = "meteoPropertiesOpenMeteo"
	ExtenderReconciledColumn = "reconciledColumnExt"
)

// ExtendOptions carries the extender-specific inputs. DateColumn and
// DecimalFormat are required by the Open-Meteo extender and ignored by the
// reconciled-column extender.
type ExtendOptions struct {
	DateColumn    string
	DecimalFormat string
}

// ListExtenders retrieves the catalog of extension services.
func (c *Client) ListExtenders(ctx context.Context) ([]Service, error) {
	services, err := c.listServices(ctx, "/extenders/list")
	if err != nil {
		return nil, fmt.Errorf("failed to list extenders: %w", err)
	}
	return services, nil
}

// ExtenderParameters returns one extender's parameters split by whether the
// service marks them required.
func (c *Client) ExtenderParameters(ctx context.Context, serviceID string) (*ServiceParameters, error) {
	services, err := c.ListExtenders(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := findService(services, serviceID)
	if err != nil {
		return nil, err
	}

	params := &ServiceParameters{Mandatory: []Parameter{}, Optional: []Parameter{}}
	for _, p := range normalizeParams(svc.FormParams) {
		if p.Mandatory {
			params.Mandatory = append(params.Mandatory, p)
		} else {
			params.Optional = append(params.Optional, p)
		}
	}
	return params, nil
}

// extendResponse is the shape returned by POST /extenders: new columns with
// their cells keyed by row id.
type extendResponse struct {
	Columns map[string]extendColumn `json:"columns"`
}

type extendColumn struct {
	Label string                `json:"label"`
	Cells map[string]extendCell `json:"cells"`
}

type extendCell struct {
	Label    string            `json:"label"`
	Metadata []table.Candidate `json:"metadata"`
}

// ExtendColumn enriches a reconciled column with properties from an
// extension service and splices the returned columns into a copy of the
// table. It returns the extended table and the backend update payload.
func (c *Client) ExtendColumn(ctx context.Context, t *table.Table, column, extenderID string, properties []string, opts ExtendOptions) (*table.Table, *table.BackendPayload, error) {
	if _, ok := t.Columns[column]; !ok {
		return nil, nil, ValidationError{Message: fmt.Sprintf("column %q does not exist in the table", column)}
	}

	var payload any
	switch extenderID {
	case ExtenderOpenMeteo:
		if opts.DateColumn == "" || opts.DecimalFormat == "" {
			return nil, nil, ValidationError{Message: "date column and decimal format are required for the Open-Meteo extender"}
		}
		payload = buildMeteoRequest(t, column, extenderID, properties, opts)
	case ExtenderReconciledColumn:
		payload = buildReconciledColumnRequest(t, column, extenderID, properties)
	default:
		return nil, nil, ValidationError{Message: fmt.Sprintf("unsupported extender %q", extenderID)}
	}

	var resp extendResponse
	if err := c.call(ctx, http.MethodPost, "/extenders", nil, payload, &resp); err != nil {
		return nil, nil, fmt.Errorf("extension request failed: %w", err)
	}

	extended, err := spliceExtension(t, &resp)
	if err != nil {
		return nil, nil, err
	}
	return extended, extended.ToBackendPayload(), nil
}

// itemIDs maps each row to the id of its top entity candidate in the given
// column. Rows without candidates are left out.
func itemIDs(t *table.Table, column string) map[string]string {
	items := map[string]string{}
	for _, rowID := range t.RowIDs() {
		cell, ok := t.Rows[rowID].Cells[column]
		if !ok || len(cell.Metadata) == 0 {
			continue
		}
		items[rowID] = cell.Metadata[0].ID
	}
	return items
}

// buildMeteoRequest assembles the Open-Meteo payload: entity ids per row,
// the date column values and the requested weather parameters.
func buildMeteoRequest(t *table.Table, column, extenderID string, properties []string, opts ExtendOptions) map[string]any {
	dates := map[string][]any{}
	for _, rowID := range t.RowIDs() {
		dates[rowID] = []any{cellLabel(t.Rows[rowID], opts.DateColumn), []any{}, opts.DateColumn}
	}
	return map[string]any{
		"serviceId":     extenderID,
		"dates":         dates,
		"decimalFormat": []string{opts.DecimalFormat},
		"items":         map[string]any{column: itemIDs(t, column)},
		"weatherParams": properties,
	}
}

// buildReconciledColumnRequest assembles the reconciled-column payload: the
// full column (label, candidates, column name) per row plus the entity ids.
func buildReconciledColumnRequest(t *table.Table, column, extenderID string, properties []string) map[string]any {
	columnData := map[string][]any{}
	for _, rowID := range t.RowIDs() {
		cell, ok := t.Rows[rowID].Cells[column]
		if !ok {
			continue
		}
		metadata := cell.Metadata
		if metadata == nil {
			metadata = []table.Candidate{}
		}
		columnData[rowID] = []any{cell.Label, metadata, column}
	}
	return map[string]any{
		"serviceId": extenderID,
		"column":    columnData,
		"property":  properties,
		"items":     map[string]any{column: itemIDs(t, column)},
	}
}

// spliceExtension adds the returned columns and cells to a copy of the
// table, marking them as extended.
func spliceExtension(t *table.Table, resp *extendResponse) (*table.Table, error) {
	out, err := t.Clone()
	if err != nil {
		return nil, err
	}

	for name, colData := range resp.Columns {
		out.Columns[name] = &table.Column{
			ID:     name,
			Label:  colData.Label,
			Status: table.StatusExtended,
			Kind:   "extended",
		}
		for rowID, cellData := range colData.Cells {
			row, ok := out.Rows[rowID]
			if !ok {
				return nil, fmt.Errorf("extension result references unknown row %q", rowID)
			}
			row.Cells[name] = &table.Cell{
				ID:       rowID + "$" + name,
				Label:    cellData.Label,
				Metadata: cellData.Metadata,
			}
		}
	}
	return out, nil
}
