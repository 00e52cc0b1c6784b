package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semtab/semtab-cli/internal/table"
)

// cityTable builds a small two-row table with city, street and country
// columns, the shape the enrichment round-trips operate on.
func cityTable() *table.Table {
	return &table.Table{
		Meta: table.Meta{
			ID:        "7",
			IDDataset: "42",
			Name:      "Cities",
			NCols:     3,
			NRows:     2,
			NCells:    6,
		},
		Columns: map[string]*table.Column{
			"city":    {ID: "city", Label: "city"},
			"street":  {ID: "street", Label: "street"},
			"country": {ID: "country", Label: "country"},
		},
		Rows: map[string]*table.Row{
			"r0": {ID: "r0", Cells: map[string]*table.Cell{
				"city":    {Label: "Berlin"},
				"street":  {Label: "Unter den Linden"},
				"country": {Label: "Germany"},
			}},
			"r1": {ID: "r1", Cells: map[string]*table.Cell{
				"city":    {Label: "Oslo"},
				"street":  {Label: "Karl Johans gate"},
				"country": {Label: "Norway"},
			}},
		},
	}
}

func TestListReconciliatorsDropsIncompleteEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reconciliators/list", r.URL.Path)
		w.Write([]byte(`[
			{"id": "geonames", "relativeUrl": "/geonames", "name": "GeoNames"},
			{"id": "", "name": "broken"},
			{"id": "noName"}
		]`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	services, err := client.ListReconciliators(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "geonames", services[0].ID)
}

func TestReconciliatorParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{
				"id": "geocodingHere",
				"name": "HERE Geocoding",
				"formParams": [
					{"id": "apiKey", "inputType": "text", "rules": ["required"]},
					{"id": "language", "inputType": "select"}
				]
			}
		]`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	params, err := client.ReconciliatorParameters(context.Background(), "geocodingHere")
	require.NoError(t, err)

	require.Len(t, params.Mandatory, 3)
	assert.Equal(t, "table", params.Mandatory[0].Name)
	assert.Equal(t, "columnName", params.Mandatory[1].Name)
	assert.Equal(t, "idReconciliator", params.Mandatory[2].Name)

	require.Len(t, params.Optional, 2)
	assert.Equal(t, "apiKey", params.Optional[0].Name)
	assert.True(t, params.Optional[0].Mandatory)
	assert.False(t, params.Optional[1].Mandatory)
}

func TestReconciliatorParametersUnknownService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.ReconciliatorParameters(context.Background(), "nope")
	var nfErr NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestReconcileValidation(t *testing.T) {
	client, err := NewClient("http://example.com", StaticToken("tok"))
	require.NoError(t, err)
	tbl := cityTable()

	var valErr ValidationError

	_, _, err = client.Reconcile(context.Background(), tbl, "city", "wikidata", nil)
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message, "invalid reconciliator id")

	_, _, err = client.Reconcile(context.Background(), tbl, "missing", ReconciliatorGeonames, nil)
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message, `column "missing"`)

	_, _, err = client.Reconcile(context.Background(), tbl, "city", ReconciliatorGeocodingHere, []string{"street"})
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message, "two support columns")
}

func TestBuildReconcileRequest(t *testing.T) {
	req, err := buildReconcileRequest(cityTable(), "city", ReconciliatorGeonames, nil)
	require.NoError(t, err)

	assert.Equal(t, ReconciliatorGeonames, req.ServiceID)
	require.Len(t, req.Items, 3)
	assert.Equal(t, reconcileItem{ID: "city", Label: "city"}, req.Items[0])
	assert.Equal(t, "r0$city", req.Items[1].ID)
	assert.Equal(t, "Berlin", req.Items[1].Label)
	assert.Equal(t, "r1$city", req.Items[2].ID)
	assert.Empty(t, req.SecondPart)
	assert.Empty(t, req.ThirdPart)
}

func TestBuildReconcileRequestSupportParts(t *testing.T) {
	req, err := buildReconcileRequest(cityTable(), "city", ReconciliatorGeocodingHere, []string{"street", "country"})
	require.NoError(t, err)

	require.Contains(t, req.SecondPart, "r0")
	assert.Equal(t, []any{"Unter den Linden", []any{}, "street"}, req.SecondPart["r0"])
	require.Contains(t, req.ThirdPart, "r1")
	assert.Equal(t, []any{"Norway", []any{}, "country"}, req.ThirdPart["r1"])
}

func TestReconcileSplicesResults(t *testing.T) {
	var requestBody reconcileRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reconciliators/geonames", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&requestBody))
		w.Write([]byte(`[
			{"id": "city", "label": "city", "metadata": []},
			{"id": "r0$city", "label": "Berlin", "metadata": [
				{"id": "georss:52.52,13.40", "name": "Berlin", "score": 0.98, "match": true},
				{"id": "georss:52.40,13.05", "name": "Berlin (Potsdam)", "score": 0.41, "match": false}
			]},
			{"id": "r1$city", "label": "Oslo", "metadata": []}
		]`))
	}))
	defer server.Close()

	original := cityTable()
	client := newTestClient(t, server)
	enriched, payload, err := client.Reconcile(context.Background(), original, "city", ReconciliatorGeonames, nil)
	require.NoError(t, err)

	// The caller's table is untouched.
	assert.Empty(t, original.Columns["city"].Status)
	assert.Nil(t, original.Rows["r0"].Cells["city"].Metadata)

	col := enriched.Columns["city"]
	assert.Equal(t, table.StatusReconciliated, col.Status)
	require.Contains(t, col.Context, "georss")
	assert.Equal(t, 2, col.Context["georss"].Total)
	assert.Equal(t, "http://www.google.com/maps/place/", col.Context["georss"].URI)

	// Only the top candidate is kept on the cell.
	cell := enriched.Rows["r0"].Cells["city"]
	require.Len(t, cell.Metadata, 1)
	assert.Equal(t, "georss:52.52,13.40", cell.Metadata[0].ID)
	require.NotNil(t, cell.AnnotationMeta)
	assert.True(t, cell.AnnotationMeta.Annotated)
	assert.Equal(t, 0.98, cell.AnnotationMeta.LowestScore)

	// The unmatched cell stays unannotated.
	assert.Empty(t, enriched.Rows["r1"].Cells["city"].Metadata)
	assert.Nil(t, enriched.Rows["r1"].Cells["city"].AnnotationMeta)

	assert.Equal(t, 1, enriched.Meta.NCellsReconciliated)
	assert.Equal(t, 1, payload.TableInstance.NCellsReconciliated)
	assert.Equal(t, 0.98, payload.TableInstance.MinMetaScore)
	assert.Equal(t, 0.98, payload.TableInstance.MaxMetaScore)
	assert.NotEmpty(t, enriched.Meta.LastModifiedDate)
}

func TestReconcileMalformedResultID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "city", "label": "city"},
			{"id": "no-separator", "label": "x"}
		]`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, _, err := client.Reconcile(context.Background(), cityTable(), "city", ReconciliatorGeonames, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed reconciliation result id")
}

func TestReconcileMissingHeaderEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "r0$city", "label": "Berlin", "metadata": []}
		]`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, _, err := client.Reconcile(context.Background(), cityTable(), "city", ReconciliatorGeonames, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestRestructureReconciled(t *testing.T) {
	tbl := cityTable()
	col := tbl.Columns["city"]
	col.Status = table.StatusReconciliated
	col.Kind = "entity"
	col.Metadata = []table.Candidate{
		{ID: "georss:52.52,13.40", Name: table.EntityName{Value: "Berlin"}, Score: 0.98, Match: true},
	}
	cell := tbl.Rows["r0"].Cells["city"]
	cell.Metadata = []table.Candidate{
		{ID: "georss:52.52,13.40", Name: table.EntityName{Value: "Berlin"}, Score: 0.98, Match: true},
	}
	cell.AnnotationMeta = &table.AnnotationMeta{Annotated: true, LowestScore: 0.98, HighestScore: 0.98}

	restructureReconciled(tbl)

	// Candidates move under a single root entry.
	require.Len(t, col.Metadata, 1)
	root := col.Metadata[0]
	assert.Equal(t, "None:", root.ID)
	require.Len(t, root.Entity, 1)
	assert.Equal(t, "https://www.google.com/maps/place/52.52,13.40", root.Entity[0].Name.URI)
	assert.Empty(t, col.Kind)

	require.NotNil(t, col.AnnotationMeta)
	assert.Equal(t, "reconciliator", col.AnnotationMeta.Match.Reason)
	assert.Equal(t, 0.98, col.AnnotationMeta.LowestScore)
	assert.Equal(t, 0.98, col.AnnotationMeta.HighestScore)

	// Cell candidates gain the maps URI and the reconciliator match reason.
	assert.Equal(t, "https://www.google.com/maps/place/52.52,13.40", cell.Metadata[0].Name.URI)
	assert.Equal(t, "reconciliator", cell.AnnotationMeta.Match.Reason)
}

func TestMapsURL(t *testing.T) {
	assert.Equal(t, "https://www.google.com/maps/place/52.52,13.40", mapsURL("georss:52.52,13.40"))
	assert.Empty(t, mapsURL("wd:Q64"))
}

func TestScoreBounds(t *testing.T) {
	lowest, highest := scoreBounds(nil)
	assert.Equal(t, 0.0, lowest)
	assert.Equal(t, 0.0, highest)

	lowest, highest = scoreBounds([]float64{0.7, 0.2, 0.9})
	assert.Equal(t, 0.2, lowest)
	assert.Equal(t, 0.9, highest)
}

func TestSpliceReconciliationTouchesTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 45, 123000000, time.UTC)
	results := []reconcileItem{{ID: "city", Label: "city"}}

	out, err := spliceReconciliation(cityTable(), results, "city", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15T10:30:45.123Z", out.Meta.LastModifiedDate)
}
