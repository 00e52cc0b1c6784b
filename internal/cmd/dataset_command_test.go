package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/semtab/semtab-cli/internal/api"
	"github.com/semtab/semtab-cli/internal/table"
)

func setupHarness(t *testing.T, fake *fakeClient) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, string, func()) {
	t.Helper()

	restore := snapshotCLIState()

	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	in := &bytes.Buffer{}

	rootCmd.SetOut(out)
	rootCmd.SetErr(errBuf)
	rootCmd.SetIn(in)
	rootCmd.SetContext(withIO(context.Background(), in, out, errBuf))

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	prevEnvGet := envGet
	envGet = func(key string) string { return "" }

	prevNewClient := newClientFunc
	newClientFunc = func(server string, tokens api.TokenProvider, opts ...api.ClientOption) (api.SemTabAPI, error) {
		return fake, nil
	}

	cleanup := func() {
		envGet = prevEnvGet
		newClientFunc = prevNewClient
		restore()
	}
	return out, errBuf, in, cfgPath, cleanup
}

func credArgs(cfgPath string, rest ...string) []string {
	base := []string{
		"--config", cfgPath,
		"--base-url", "https://semtab.test", "--username", "alice", "--password", "secret",
	}
	return append(base, rest...)
}

func TestDatasetListJSON(t *testing.T) {
	fake := &fakeClient{
		ListDatasetsFunc: func(ctx context.Context) ([]api.Dataset, error) {
			return []api.Dataset{{ID: "42", Name: "Cities", NTables: 2}}, nil
		},
	}
	out, _, _, cfgPath, cleanup := setupHarness(t, fake)
	defer cleanup()

	rootCmd.SetArgs(credArgs(cfgPath, "--output", "json", "dataset", "list"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var datasets []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		NTables int    `json:"nTables"`
	}
	if err := json.Unmarshal(out.Bytes(), &datasets); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(datasets) != 1 || datasets[0].ID != "42" || datasets[0].NTables != 2 {
		t.Fatalf("unexpected output: %+v", datasets)
	}
}

func TestDatasetListQueryFiltersOutput(t *testing.T) {
	fake := &fakeClient{
		ListDatasetsFunc: func(ctx context.Context) ([]api.Dataset, error) {
			return []api.Dataset{
				{ID: "42", Name: "Cities", NTables: 2},
				{ID: "43", Name: "Rivers"},
			}, nil
		},
	}
	out, _, _, cfgPath, cleanup := setupHarness(t, fake)
	defer cleanup()

	rootCmd.SetArgs(credArgs(cfgPath, "--output", "json", "--query", ".[].name", "dataset", "list"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got := out.String(); got != "\"Cities\"\n\"Rivers\"\n" {
		t.Fatalf("expected query-filtered output, got:\n%s", got)
	}
}

func TestTableDeleteMultipleReportsPerID(t *testing.T) {
	var deleted []string
	fake := &fakeClient{
		DeleteTableFunc: func(ctx context.Context, datasetID, tableID string) error {
			if tableID == "8" {
				return api.NotFoundError{Message: "not found"}
			}
			deleted = append(deleted, tableID)
			return nil
		},
	}
	out, _, _, cfgPath, cleanup := setupHarness(t, fake)
	defer cleanup()

	rootCmd.SetArgs(credArgs(cfgPath, "--output", "json", "--yes", "table", "delete", "42", "7", "8", "9"))
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error when one delete fails, got nil")
	}

	if len(deleted) != 2 || deleted[0] != "7" || deleted[1] != "9" {
		t.Fatalf("expected tables 7 and 9 deleted despite the failure, got %v", deleted)
	}

	var results []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 per-table results, got %d", len(results))
	}
	if results[1].Status != "failed" || results[1].Error != "table not found" {
		t.Fatalf("unexpected result for table 8: %+v", results[1])
	}
}

func TestDatasetDeleteConfirmationAborts(t *testing.T) {
	deleted := false
	fake := &fakeClient{
		DeleteDatasetFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	_, errBuf, in, cfgPath, cleanup := setupHarness(t, fake)
	defer cleanup()

	in.WriteString("no\n")
	rootCmd.SetArgs(credArgs(cfgPath, "--output", "text", "dataset", "delete", "42"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if deleted {
		t.Fatal("expected delete to be aborted")
	}
	if got := errBuf.String(); !bytes.Contains([]byte(got), []byte("Aborted")) {
		t.Fatalf("expected abort message, got %q", got)
	}
}

func TestDatasetDeleteWithYes(t *testing.T) {
	var gotID string
	fake := &fakeClient{
		DeleteDatasetFunc: func(ctx context.Context, id string) error {
			gotID = id
			return nil
		},
	}
	out, _, _, cfgPath, cleanup := setupHarness(t, fake)
	defer cleanup()

	rootCmd.SetArgs(credArgs(cfgPath, "--output", "json", "--yes", "dataset", "delete", "42"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if gotID != "42" {
		t.Fatalf("expected dataset 42 deleted, got %q", gotID)
	}
	var result map[string]string
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if result["status"] != "deleted" {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestDatasetAddFromCSV(t *testing.T) {
	var gotName string
	var gotColumns []string
	fake := &fakeClient{
		AddDatasetFunc: func(ctx context.Context, name string, frame *table.Frame) (string, error) {
			gotName = name
			gotColumns = frame.Columns
			return "99", nil
		},
	}
	out, _, _, cfgPath, cleanup := setupHarness(t, fake)
	defer cleanup()

	csvPath := filepath.Join(t.TempDir(), "cities.csv")
	if err := os.WriteFile(csvPath, []byte("City,Country\nBerlin,DE\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rootCmd.SetArgs(credArgs(cfgPath, "--output", "json", "dataset", "add", "Cities", "--file", csvPath))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if gotName != "Cities" {
		t.Fatalf("expected name 'Cities', got %q", gotName)
	}
	if len(gotColumns) != 2 || gotColumns[0] != "City" {
		t.Fatalf("unexpected columns: %v", gotColumns)
	}
	var result map[string]string
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if result["id"] != "99" {
		t.Fatalf("unexpected result: %v", result)
	}
}
