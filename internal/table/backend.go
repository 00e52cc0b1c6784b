package table

// BackendPayload is the normalized shape the backend expects on table update:
// the table instance plus columns and rows in byId/allIds form.
type BackendPayload struct {
	TableInstance TableInstance  `json:"tableInstance"`
	Columns       BackendColumns `json:"columns"`
	Rows          BackendRows    `json:"rows"`
}

// TableInstance mirrors Meta with recomputed reconciliation counters.
type TableInstance struct {
	ID                  string  `json:"id"`
	IDDataset           string  `json:"idDataset"`
	Name                string  `json:"name"`
	NCols               int     `json:"nCols"`
	NRows               int     `json:"nRows"`
	NCells              int     `json:"nCells"`
	NCellsReconciliated int     `json:"nCellsReconciliated"`
	LastModifiedDate    string  `json:"lastModifiedDate"`
	MinMetaScore        float64 `json:"minMetaScore"`
	MaxMetaScore        float64 `json:"maxMetaScore"`
}

// BackendColumns carries the column map plus its key order.
type BackendColumns struct {
	ByID   map[string]*Column `json:"byId"`
	AllIDs []string           `json:"allIds"`
}

// BackendRows carries the row map plus its key order.
type BackendRows struct {
	ByID   map[string]*Row `json:"byId"`
	AllIDs []string        `json:"allIds"`
}

// ToBackendPayload derives the backend update payload from a table. The
// reconciled-cell counter and meta score bounds are recomputed from the cell
// annotations rather than trusted from the header.
func (t *Table) ToBackendPayload() *BackendPayload {
	minScore, maxScore := t.MetaScoreBounds()
	return &BackendPayload{
		TableInstance: TableInstance{
			ID:                  t.Meta.ID,
			IDDataset:           t.Meta.IDDataset,
			Name:                t.Meta.Name,
			NCols:               t.Meta.NCols,
			NRows:               t.Meta.NRows,
			NCells:              t.Meta.NCells,
			NCellsReconciliated: t.AnnotatedCellCount(),
			LastModifiedDate:    t.Meta.LastModifiedDate,
			MinMetaScore:        minScore,
			MaxMetaScore:        maxScore,
		},
		Columns: BackendColumns{
			ByID:   t.Columns,
			AllIDs: t.ColumnNames(),
		},
		Rows: BackendRows{
			ByID:   t.Rows,
			AllIDs: t.RowIDs(),
		},
	}
}
