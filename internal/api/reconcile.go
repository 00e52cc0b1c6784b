package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/semtab/semtab-cli/internal/table"
)

// Reconciliator service ids the client knows how to build payloads for.
const (
	ReconciliatorGeocodingHere     = "geocodingHere"
	ReconciliatorGeocodingGeonames = "geocodingGeonames"
	ReconciliatorGeonames          = "geonames"
)

// The column context carries the plain-http form; per-entity map links use
// https.
const (
	mapsContextURL = "http://www.google.com/maps/place/"
	mapsPlaceURL   = "https://www.google.com/maps/place/"
)

// supportPartServices are the reconciliators that take two extra support
// columns (street/city style) alongside the main column.
var supportPartServices = map[string]bool{
	ReconciliatorGeocodingHere:     true,
	ReconciliatorGeocodingGeonames: true,
}

// knownReconciliators guards against ids the payload builder cannot serve.
var knownReconciliators = map[string]bool{
	ReconciliatorGeocodingHere:     true,
	ReconciliatorGeocodingGeonames: true,
	ReconciliatorGeonames:          true,
}

// ListReconciliators retrieves the catalog of reconciliation services.
func (c *Client) ListReconciliators(ctx context.Context) ([]Service, error) {
	services, err := c.listServices(ctx, "/reconciliators/list")
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliators: %w", err)
	}
	return services, nil
}

// ReconciliatorParameters returns the parameters of one reconciliator: the
// fixed inputs every reconciliation takes, plus the service's own form
// parameters.
func (c *Client) ReconciliatorParameters(ctx context.Context, serviceID string) (*ServiceParameters, error) {
	services, err := c.ListReconciliators(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := findService(services, serviceID)
	if err != nil {
		return nil, err
	}
	return &ServiceParameters{
		Mandatory: []Parameter{
			{Name: "table", Type: "json", Mandatory: true, Description: "The table data in JSON format"},
			{Name: "columnName", Type: "string", Mandatory: true, Description: "The name of the column to reconcile"},
			{Name: "idReconciliator", Type: "string", Mandatory: true, Description: "The ID of the reconciliator to use"},
		},
		Optional: normalizeParams(svc.FormParams),
	}, nil
}

// reconcileItem is one entry of the reconciliation request and response: the
// column header item plus one item per cell, identified as "rowID$column".
type reconcileItem struct {
	ID       string            `json:"id"`
	Label    string            `json:"label,omitempty"`
	Metadata []table.Candidate `json:"metadata,omitempty"`
}

// reconcileRequest is the payload POSTed to /reconciliators/{id}.
type reconcileRequest struct {
	ServiceID  string           `json:"serviceId"`
	Items      []reconcileItem  `json:"items"`
	SecondPart map[string][]any `json:"secondPart"`
	ThirdPart  map[string][]any `json:"thirdPart"`
}

// Reconcile matches the values of one column against a reconciliation
// service and splices the results back into a copy of the table. It returns
// the enriched table and the backend update payload. supportColumns feeds
// the second/third part columns required by the geocoding services.
func (c *Client) Reconcile(ctx context.Context, t *table.Table, column, serviceID string, supportColumns []string) (*table.Table, *table.BackendPayload, error) {
	if !knownReconciliators[serviceID] {
		return nil, nil, ValidationError{Message: fmt.Sprintf(
			"invalid reconciliator id %q (expected %s, %s or %s)",
			serviceID, ReconciliatorGeocodingHere, ReconciliatorGeocodingGeonames, ReconciliatorGeonames)}
	}
	if _, ok := t.Columns[column]; !ok {
		return nil, nil, ValidationError{Message: fmt.Sprintf("column %q does not exist in the table", column)}
	}
	if supportPartServices[serviceID] && len(supportColumns) < 2 {
		return nil, nil, ValidationError{Message: fmt.Sprintf("reconciliator %s requires two support columns", serviceID)}
	}

	payload, err := buildReconcileRequest(t, column, serviceID, supportColumns)
	if err != nil {
		return nil, nil, err
	}

	var results []reconcileItem
	if err := c.call(ctx, http.MethodPost, "/reconciliators/"+serviceID, nil, payload, &results); err != nil {
		return nil, nil, fmt.Errorf("reconciliation request failed: %w", err)
	}

	enriched, err := spliceReconciliation(t, results, column, time.Now())
	if err != nil {
		return nil, nil, err
	}
	restructureReconciled(enriched)
	return enriched, enriched.ToBackendPayload(), nil
}

// buildReconcileRequest assembles the service payload: a header item for the
// column itself followed by one item per row cell.
func buildReconcileRequest(t *table.Table, column, serviceID string, supportColumns []string) (*reconcileRequest, error) {
	req := &reconcileRequest{
		ServiceID:  serviceID,
		Items:      []reconcileItem{{ID: column, Label: column}},
		SecondPart: map[string][]any{},
		ThirdPart:  map[string][]any{},
	}

	for _, rowID := range t.RowIDs() {
		row := t.Rows[rowID]
		cell, ok := row.Cells[column]
		if !ok {
			return nil, ValidationError{Message: fmt.Sprintf("row %s has no cell for column %q", rowID, column)}
		}
		req.Items = append(req.Items, reconcileItem{
			ID:    rowID + "$" + column,
			Label: cell.Label,
		})

		if supportPartServices[serviceID] {
			second := cellLabel(row, supportColumns[0])
			third := cellLabel(row, supportColumns[1])
			req.SecondPart[rowID] = []any{second, []any{}, supportColumns[0]}
			req.ThirdPart[rowID] = []any{third, []any{}, supportColumns[1]}
		}
	}
	return req, nil
}

func cellLabel(row *table.Row, column string) string {
	if cell, ok := row.Cells[column]; ok {
		return cell.Label
	}
	return ""
}

// spliceReconciliation merges the service results into a copy of the table:
// the column gains reconciled status, context and candidate metadata; each
// answered cell gains its top candidate and score bounds.
func spliceReconciliation(t *table.Table, results []reconcileItem, column string, now time.Time) (*table.Table, error) {
	out, err := t.Clone()
	if err != nil {
		return nil, err
	}
	out.Touch(now)

	col, ok := out.Columns[column]
	if !ok {
		return nil, ValidationError{Message: fmt.Sprintf("column %q does not exist in the table", column)}
	}
	col.Status = table.StatusReconciliated
	col.Kind = "entity"
	col.Context = map[string]table.Context{
		"georss": {
			URI:           mapsContextURL,
			Total:         len(results) - 1,
			Reconciliated: len(results) - 1,
		},
	}
	col.AnnotationMeta = &table.AnnotationMeta{
		Annotated:    true,
		Match:        table.MatchInfo{Value: true},
		LowestScore:  1,
		HighestScore: 1,
	}

	reconciled := 0
	headerSeen := false
	for _, item := range results {
		if item.ID == column {
			col.Metadata = item.Metadata
			headerSeen = true
			continue
		}

		rowID, cellID, ok := strings.Cut(item.ID, "$")
		if !ok {
			return nil, fmt.Errorf("malformed reconciliation result id %q", item.ID)
		}
		row, ok := out.Rows[rowID]
		if !ok {
			return nil, fmt.Errorf("reconciliation result references unknown row %q", rowID)
		}
		cell, ok := row.Cells[cellID]
		if !ok {
			return nil, fmt.Errorf("reconciliation result references unknown cell %q", item.ID)
		}
		// Cells the service could not match come back without candidates;
		// they stay unannotated.
		if len(item.Metadata) == 0 {
			continue
		}

		best := item.Metadata[0]
		cell.Metadata = []table.Candidate{best}
		cell.AnnotationMeta = &table.AnnotationMeta{
			Annotated:    true,
			Match:        table.MatchInfo{Value: best.Match},
			LowestScore:  best.Score,
			HighestScore: best.Score,
		}
		reconciled++
	}
	if !headerSeen {
		return nil, fmt.Errorf("reconciliation response is missing the %q column entry", column)
	}

	out.Meta.NCellsReconciliated = reconciled
	return out, nil
}

// restructureReconciled rewrites reconciled columns into the entity form the
// backend stores: candidates move under a single root entry, names become
// {value, uri} objects with map links for georss ids, and score bounds are
// recomputed from the cells.
func restructureReconciled(t *table.Table) {
	var reconciledColumns []string
	for name, col := range t.Columns {
		if col.Status == table.StatusReconciliated {
			reconciledColumns = append(reconciledColumns, name)
		}
	}

	for _, name := range reconciledColumns {
		col := t.Columns[name]

		root := table.Candidate{
			ID:    "None:",
			Match: true,
			Score: 0,
			Name:  table.EntityName{},
		}
		for _, item := range col.Metadata {
			root.Entity = append(root.Entity, table.Candidate{
				ID:    item.ID,
				Name:  table.EntityName{Value: item.Name.Value, URI: mapsURL(item.ID)},
				Score: item.Score,
				Match: item.Match,
				Type:  item.Type,
			})
		}
		col.Metadata = []table.Candidate{root}

		var scores []float64
		for _, row := range t.Rows {
			cell, ok := row.Cells[name]
			if !ok || len(cell.Metadata) == 0 {
				continue
			}
			scores = append(scores, cell.Metadata[0].Score)
		}
		lowest, highest := scoreBounds(scores)
		col.AnnotationMeta = &table.AnnotationMeta{
			Annotated:    true,
			Match:        table.MatchInfo{Value: true, Reason: "reconciliator"},
			LowestScore:  lowest,
			HighestScore: highest,
		}
		col.Kind = ""
	}

	for _, row := range t.Rows {
		for cellID, cell := range row.Cells {
			if !containsString(reconciledColumns, cellID) {
				continue
			}
			for i, item := range cell.Metadata {
				cell.Metadata[i] = table.Candidate{
					ID:      item.ID,
					Name:    table.EntityName{Value: item.Name.Value, URI: mapsURL(item.ID)},
					Feature: item.Feature,
					Score:   item.Score,
					Match:   item.Match,
					Type:    item.Type,
				}
			}
			if cell.AnnotationMeta != nil {
				cell.AnnotationMeta.Match = table.MatchInfo{Value: true, Reason: "reconciliator"}
				if len(cell.Metadata) > 0 {
					cell.AnnotationMeta.LowestScore = cell.Metadata[0].Score
					cell.AnnotationMeta.HighestScore = cell.Metadata[0].Score
				}
			}
		}
	}
}

// mapsURL derives a map link for georss-prefixed entity ids; other ids have
// no dereferenceable location.
func mapsURL(id string) string {
	if coords, ok := strings.CutPrefix(id, "georss:"); ok {
		return mapsPlaceURL + coords
	}
	return ""
}

func scoreBounds(scores []float64) (lowest, highest float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	lowest, highest = scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lowest {
			lowest = s
		}
		if s > highest {
			highest = s
		}
	}
	return lowest, highest
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
