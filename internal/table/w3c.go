package table

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// The W3C export format is a JSON array whose first element maps header keys
// ("th0", "th1", ...) to column labels, and whose remaining elements map the
// column labels to cell objects.

type w3cCell struct {
	Label string `json:"label"`
}

// ParseW3C converts a W3C-format export into a frame. The header element is
// required; rows missing a column yield an error so silent misalignment
// cannot slip through.
func ParseW3C(data []byte) (*Frame, error) {
	var items []map[string]w3cCell
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing w3c export: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("w3c export is empty")
	}

	header := items[0]
	keys := make([]string, 0, len(header))
	for key := range header {
		if strings.HasPrefix(key, "th") {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("w3c export has no header entries")
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(strings.TrimPrefix(keys[i], "th"))
		b, berr := strconv.Atoi(strings.TrimPrefix(keys[j], "th"))
		if aerr == nil && berr == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})

	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = header[key].Label
	}

	f := NewFrame(names...)
	for i, item := range items[1:] {
		rec := make([]string, len(names))
		for j, name := range names {
			cell, ok := item[name]
			if !ok {
				return nil, fmt.Errorf("w3c row %d is missing column %q", i+1, name)
			}
			rec[j] = cell.Label
		}
		f.Records = append(f.Records, rec)
	}
	return f, nil
}
