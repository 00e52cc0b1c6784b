// Package table models the W3C-style JSON table structure exchanged with the
// enrichment backend: a metadata header plus column and row maps whose cells
// carry labels and entity annotation metadata.
package table

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Column statuses assigned by enrichment operations.
const (
	StatusEmpty         = "empty"
	StatusReconciliated = "reconciliated"
	StatusExtended      = "extended"
)

// Table is the full JSON table payload: metadata, columns keyed by name and
// rows keyed by row id ("r0", "r1", ...).
type Table struct {
	Meta    Meta               `json:"table"`
	Columns map[string]*Column `json:"columns"`
	Rows    map[string]*Row    `json:"rows"`
}

// Meta holds table-level metadata and counters.
type Meta struct {
	ID                  string  `json:"id"`
	IDDataset           string  `json:"idDataset"`
	Name                string  `json:"name"`
	NCols               int     `json:"nCols"`
	NRows               int     `json:"nRows"`
	NCells              int     `json:"nCells"`
	NCellsReconciliated int     `json:"nCellsReconciliated"`
	LastModifiedDate    string  `json:"lastModifiedDate,omitempty"`
	MinMetaScore        float64 `json:"minMetaScore,omitempty"`
	MaxMetaScore        float64 `json:"maxMetaScore,omitempty"`
}

// Column describes one column and its annotation state.
type Column struct {
	ID             string             `json:"id"`
	Label          string             `json:"label"`
	Status         string             `json:"status,omitempty"`
	Context        map[string]Context `json:"context,omitempty"`
	Kind           string             `json:"kind,omitempty"`
	Metadata       []Candidate        `json:"metadata,omitempty"`
	AnnotationMeta *AnnotationMeta    `json:"annotationMeta,omitempty"`
}

// Context summarizes reconciliation coverage for a service prefix.
type Context struct {
	URI           string `json:"uri"`
	Total         int    `json:"total"`
	Reconciliated int    `json:"reconciliated"`
}

// Row holds the cells of one table row, keyed by column name.
type Row struct {
	ID    string           `json:"id"`
	Cells map[string]*Cell `json:"cells"`
}

// Cell is a single table cell with its entity candidates.
type Cell struct {
	ID             string          `json:"id,omitempty"`
	Label          string          `json:"label"`
	Metadata       []Candidate     `json:"metadata,omitempty"`
	AnnotationMeta *AnnotationMeta `json:"annotationMeta,omitempty"`
}

// Candidate is one entity candidate attached to a cell or column. The
// reconciliation service returns Name as a bare string; the restructured form
// uses a {value, uri} object. EntityName handles both.
type Candidate struct {
	ID      string      `json:"id"`
	Name    EntityName  `json:"name"`
	Feature []any       `json:"feature,omitempty"`
	Score   float64     `json:"score"`
	Match   bool        `json:"match"`
	Type    []TypeRef   `json:"type,omitempty"`
	Entity  []Candidate `json:"entity,omitempty"`
}

// TypeRef identifies an entity type from the reconciliation service.
type TypeRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// EntityName carries an entity label and an optional dereference URI.
type EntityName struct {
	Value string `json:"value"`
	URI   string `json:"uri"`
}

// UnmarshalJSON accepts either a plain string (service wire form) or the
// structured {value, uri} object.
func (n *EntityName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.Value = s
		n.URI = ""
		return nil
	}
	type alias EntityName
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("entity name must be a string or an object: %w", err)
	}
	*n = EntityName(obj)
	return nil
}

// AnnotationMeta records match state and score bounds for an annotated cell
// or column.
type AnnotationMeta struct {
	Annotated    bool      `json:"annotated"`
	Match        MatchInfo `json:"match"`
	LowestScore  float64   `json:"lowestScore"`
	HighestScore float64   `json:"highestScore"`
}

// MatchInfo is the match flag with an optional provenance reason.
type MatchInfo struct {
	Value  bool   `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// Parse decodes a JSON table payload.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing table: %w", err)
	}
	if t.Columns == nil {
		t.Columns = map[string]*Column{}
	}
	if t.Rows == nil {
		t.Rows = map[string]*Row{}
	}
	return &t, nil
}

// ColumnNames returns the column names sorted for deterministic iteration.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RowIDs returns the row ids sorted by their numeric suffix where possible,
// falling back to lexicographic order.
func (t *Table) RowIDs() []string {
	ids := make([]string, 0, len(t.Rows))
	for id := range t.Rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		var a, b int
		an, aerr := fmt.Sscanf(ids[i], "r%d", &a)
		bn, berr := fmt.Sscanf(ids[j], "r%d", &b)
		if an == 1 && bn == 1 && aerr == nil && berr == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Touch stamps the table's last modified date with the backend's timestamp
// format (millisecond precision, Zulu suffix).
func (t *Table) Touch(now time.Time) {
	t.Meta.LastModifiedDate = now.UTC().Format("2006-01-02T15:04:05.000") + "Z"
}

// AnnotatedCellCount counts cells whose annotation metadata marks them
// annotated.
func (t *Table) AnnotatedCellCount() int {
	n := 0
	for _, row := range t.Rows {
		for _, cell := range row.Cells {
			if cell.AnnotationMeta != nil && cell.AnnotationMeta.Annotated {
				n++
			}
		}
	}
	return n
}

// MetaScoreBounds returns the lowest and highest annotation scores across all
// annotated cells. With no annotated cells the bounds default to [0, 1].
func (t *Table) MetaScoreBounds() (min, max float64) {
	first := true
	for _, row := range t.Rows {
		for _, cell := range row.Cells {
			if cell.AnnotationMeta == nil || !cell.AnnotationMeta.Annotated {
				continue
			}
			low := cell.AnnotationMeta.LowestScore
			high := cell.AnnotationMeta.HighestScore
			if first {
				min, max = low, high
				first = false
				continue
			}
			if low < min {
				min = low
			}
			if high > max {
				max = high
			}
		}
	}
	if first {
		return 0, 1
	}
	return min, max
}

// Clone returns a deep copy of the table via JSON round-trip. Enrichment
// operations work on a copy so the caller's table is left untouched.
func (t *Table) Clone() (*Table, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("cloning table: %w", err)
	}
	return Parse(data)
}
