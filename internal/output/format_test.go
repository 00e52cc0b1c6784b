package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"  JSON  ", FormatJSON, false},
		{"ndjson", FormatNDJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsStructured(t *testing.T) {
	structured := []Format{FormatJSON, FormatNDJSON, FormatYAML}
	for _, f := range structured {
		if !IsStructured(f) {
			t.Errorf("IsStructured(%v) = false, want true", f)
		}
	}
	for _, f := range []Format{FormatText, FormatTable} {
		if IsStructured(f) {
			t.Errorf("IsStructured(%v) = true, want false", f)
		}
	}
}

type testDataset struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	NTables int    `json:"nTables,omitempty"`
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)

	err := p.Print(context.Background(), testDataset{ID: "1", Name: "demo", NTables: 2})
	if err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	var got testDataset
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.Name != "demo" {
		t.Errorf("got %+v", got)
	}
}

func TestPrintJSONWithQuery(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)

	ctx := WithQuery(context.Background(), ".[].name")
	data := []map[string]interface{}{
		{"id": "1", "name": "demo"},
		{"id": "2", "name": "cities"},
	}
	if err := p.Print(ctx, data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	want := "\"demo\"\n\"cities\"\n"
	if buf.String() != want {
		t.Errorf("Print() with query = %q, want %q", buf.String(), want)
	}
}

func TestPrintJSONQueryOverStructs(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)

	ctx := WithQuery(context.Background(), ".[].name")
	data := []testDataset{{ID: "1", Name: "demo"}, {ID: "2", Name: "cities"}}
	if err := p.Print(ctx, data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	want := "\"demo\"\n\"cities\"\n"
	if buf.String() != want {
		t.Errorf("Print() with query = %q, want %q", buf.String(), want)
	}
}

func TestPrintNDJSONQueryOverStructs(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatNDJSON)

	ctx := WithQuery(context.Background(), ".[] | {id}")
	data := []testDataset{{ID: "1", Name: "demo"}}
	if err := p.Print(ctx, data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if buf.String() != "{\"id\":\"1\"}\n" {
		t.Errorf("Print() with query = %q", buf.String())
	}
}

func TestPrintJSONInvalidQuery(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)

	ctx := WithQuery(context.Background(), ".[")
	if err := p.Print(ctx, map[string]string{}); err == nil {
		t.Error("Print() with invalid query should fail")
	}
}

func TestPrintNDJSONSlice(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatNDJSON)

	data := []testDataset{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	if err := p.Print(context.Background(), data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("ndjson output should have 2 lines, got %d: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		var item testDataset
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			t.Errorf("line %q is not valid JSON: %v", line, err)
		}
	}
}

func TestPrintTextStruct(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatText)

	// NTables is zero and tagged omitempty, so it stays out of the output.
	if err := p.Print(context.Background(), testDataset{ID: "1", Name: "demo"}); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "id: 1") || !strings.Contains(out, "name: demo") {
		t.Errorf("text output missing fields: %q", out)
	}
	if strings.Contains(out, "nTables") {
		t.Errorf("text output should omit empty omitempty fields: %q", out)
	}
}

func TestPrintTextMapSortsKeys(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatText)

	data := map[string]int{"b": 2, "a": 1, "c": 3}
	if err := p.Print(context.Background(), data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	want := "a: 1\nb: 2\nc: 3\n"
	if buf.String() != want {
		t.Errorf("Print() = %q, want %q", buf.String(), want)
	}
}

func TestPrintTableFromStructs(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	data := []testDataset{{ID: "1", Name: "demo", NTables: 2}}
	if err := p.Print(context.Background(), data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "id") || !strings.Contains(out, "nTables") {
		t.Errorf("table output missing headers: %q", out)
	}
	if !strings.Contains(out, "demo") {
		t.Errorf("table output missing row data: %q", out)
	}
}

func TestPrintTableExplicitTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	data := Table{
		Headers: []string{"City", "Country"},
		Rows:    [][]string{{"Berlin", "Germany"}},
	}
	if err := p.Print(context.Background(), data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "City") || !strings.Contains(out, "Berlin") {
		t.Errorf("table output = %q", out)
	}
}

func TestPrintTableRejectsNonList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	if err := p.Print(context.Background(), testDataset{ID: "1"}); err == nil {
		t.Error("table format should reject a single struct")
	}
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatYAML)

	if err := p.Print(context.Background(), map[string]string{"name": "demo"}); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if !strings.Contains(buf.String(), "name: demo") {
		t.Errorf("yaml output = %q", buf.String())
	}
}

func TestPrintNil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)

	if err := p.Print(context.Background(), nil); err != nil {
		t.Fatalf("Print(nil) error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Print(nil) should produce no output, got %q", buf.String())
	}
}
