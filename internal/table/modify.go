package table

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"
)

// Modifier is a named frame transformation. Args carry the modifier-specific
// parameters; transformations return a new frame and leave the input alone.
type Modifier struct {
	Name        string
	Description string
	Apply       func(f *Frame, args ModifierArgs) (*Frame, string, error)
}

// ModifierArgs holds the union of parameters the modifiers accept.
type ModifierArgs struct {
	Column string            // iso_date, lower_case
	Rename map[string]string // rename_columns
	Types  map[string]string // convert_types
	Order  []string          // reorder_columns
}

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Modifiers returns the registry of available modifiers, sorted by name.
func Modifiers() []Modifier {
	mods := []Modifier{
		{
			Name:        "iso_date",
			Description: "Convert a date column to ISO 8601 format (YYYY-MM-DD).",
			Apply: func(f *Frame, args ModifierArgs) (*Frame, string, error) {
				return ISODate(f, args.Column)
			},
		},
		{
			Name:        "lower_case",
			Description: "Convert all values in a column to lowercase.",
			Apply: func(f *Frame, args ModifierArgs) (*Frame, string, error) {
				out, err := LowerCase(f, args.Column)
				return out, "", err
			},
		},
		{
			Name:        "drop_na",
			Description: "Remove rows with missing values.",
			Apply: func(f *Frame, _ ModifierArgs) (*Frame, string, error) {
				out, dropped := DropNA(f)
				return out, fmt.Sprintf("dropped %d rows with missing values", dropped), nil
			},
		},
		{
			Name:        "rename_columns",
			Description: "Rename columns according to a given mapping.",
			Apply: func(f *Frame, args ModifierArgs) (*Frame, string, error) {
				out, err := RenameColumns(f, args.Rename)
				return out, "", err
			},
		},
		{
			Name:        "convert_types",
			Description: "Validate and normalize column values to a target type.",
			Apply: func(f *Frame, args ModifierArgs) (*Frame, string, error) {
				out, err := ConvertTypes(f, args.Types)
				return out, "", err
			},
		},
		{
			Name:        "reorder_columns",
			Description: "Reorder columns according to a specified order.",
			Apply: func(f *Frame, args ModifierArgs) (*Frame, string, error) {
				out, err := ReorderColumns(f, args.Order)
				return out, "", err
			},
		},
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })
	return mods
}

// Modify applies the named modifier. It returns the transformed frame and an
// informational message where the modifier produces one.
func Modify(f *Frame, name string, args ModifierArgs) (*Frame, string, error) {
	for _, mod := range Modifiers() {
		if mod.Name == name {
			return mod.Apply(f, args)
		}
	}
	return nil, "", fmt.Errorf("modifier %q not found", name)
}

// ISODate converts a date column to ISO 8601 (YYYY-MM-DD). Values already in
// that shape are left as-is; anything else is parsed leniently. Unparseable
// values fail the whole conversion, reporting the offending row indices.
func ISODate(f *Frame, column string) (*Frame, string, error) {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return nil, "", fmt.Errorf("column %q does not exist", column)
	}

	allISO := true
	for _, rec := range f.Records {
		if !isoDatePattern.MatchString(rec[idx]) {
			allISO = false
			break
		}
	}
	if allISO {
		return f.Clone(), "column is already in ISO 8601 format (YYYY-MM-DD)", nil
	}

	out := f.Clone()
	var invalid []int
	for i, rec := range out.Records {
		parsed, err := dateparse.ParseAny(rec[idx])
		if err != nil {
			invalid = append(invalid, i)
			continue
		}
		rec[idx] = parsed.Format("2006-01-02")
	}
	if len(invalid) > 0 {
		return nil, "", fmt.Errorf("column %q contains invalid date values at rows %v", column, invalid)
	}
	return out, "date column converted to ISO 8601 format", nil
}

// LowerCase lowercases every value in the named column.
func LowerCase(f *Frame, column string) (*Frame, error) {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("column %q does not exist", column)
	}
	out := f.Clone()
	for _, rec := range out.Records {
		rec[idx] = strings.ToLower(rec[idx])
	}
	return out, nil
}

// DropNA removes rows that contain any missing value and reports how many
// were dropped. Empty strings and the usual CSV NA spellings count as
// missing.
func DropNA(f *Frame) (*Frame, int) {
	out := &Frame{Columns: append([]string(nil), f.Columns...)}
	dropped := 0
	for _, rec := range f.Records {
		if recordHasNA(rec) {
			dropped++
			continue
		}
		out.Records = append(out.Records, append([]string(nil), rec...))
	}
	return out, dropped
}

func recordHasNA(rec []string) bool {
	for _, v := range rec {
		switch strings.TrimSpace(strings.ToLower(v)) {
		case "", "na", "n/a", "nan", "null":
			return true
		}
	}
	return false
}

// RenameColumns renames columns according to the mapping. Every key must be
// an existing column.
func RenameColumns(f *Frame, mapping map[string]string) (*Frame, error) {
	var missing []string
	for old := range mapping {
		if !f.HasColumn(old) {
			missing = append(missing, old)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("columns %v do not exist", missing)
	}
	out := f.Clone()
	for i, name := range out.Columns {
		if renamed, ok := mapping[name]; ok {
			out.Columns[i] = renamed
		}
	}
	return out, nil
}

// ConvertTypes validates that every value of a column converts to the target
// type and normalizes the textual representation. Supported types: int,
// float, bool, string.
func ConvertTypes(f *Frame, types map[string]string) (*Frame, error) {
	out := f.Clone()
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		idx := out.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("column %q does not exist", name)
		}
		target := types[name]
		for i, rec := range out.Records {
			converted, err := convertValue(rec[idx], target)
			if err != nil {
				return nil, fmt.Errorf("converting column %q to %s at row %d: %w", name, target, i, err)
			}
			rec[idx] = converted
		}
	}
	return out, nil
}

func convertValue(value, target string) (string, error) {
	switch target {
	case "int", "int64":
		n, err := cast.ToInt64E(value)
		if err != nil {
			return "", err
		}
		return cast.ToString(n), nil
	case "float", "float64":
		n, err := cast.ToFloat64E(value)
		if err != nil {
			return "", err
		}
		return cast.ToString(n), nil
	case "bool":
		b, err := cast.ToBoolE(value)
		if err != nil {
			return "", err
		}
		return cast.ToString(b), nil
	case "string":
		return value, nil
	default:
		return "", fmt.Errorf("unsupported type %q (expected int|float|bool|string)", target)
	}
}

// ReorderColumns reorders the frame to the given column order. The order must
// name existing columns only; columns left out are dropped, matching the
// select-style semantics of the backend UI.
func ReorderColumns(f *Frame, order []string) (*Frame, error) {
	var missing []string
	indices := make([]int, 0, len(order))
	for _, name := range order {
		idx := f.ColumnIndex(name)
		if idx < 0 {
			missing = append(missing, name)
			continue
		}
		indices = append(indices, idx)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("columns %v do not exist", missing)
	}

	out := NewFrame(order...)
	for _, rec := range f.Records {
		reordered := make([]string, len(indices))
		for i, idx := range indices {
			reordered[i] = rec[idx]
		}
		out.Records = append(out.Records, reordered)
	}
	return out, nil
}
