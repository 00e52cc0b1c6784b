package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semtab/semtab-cli/internal/api"
	"github.com/semtab/semtab-cli/internal/output"
	"github.com/semtab/semtab-cli/internal/table"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage tables within a dataset",
	Long: `Manage tables within a dataset on the SemTab server.

This command provides subcommands for listing, inspecting, uploading,
downloading, and deleting tables.`,
}

var tableListCmd = &cobra.Command{
	Use:   "list <dataset-id>",
	Short: "List tables in a dataset",
	Long: `List all tables in a dataset.

Examples:
  semtab table list 42
  semtab table list 42 --output table`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID := args[0]

		client := GetClient()
		tables, err := client.ListTables(cmd.Context(), datasetID)
		if err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("dataset not found: %s", datasetID)
			}
			return fmt.Errorf("failed to list tables: %w", err)
		}

		if structuredOutputRequested() || GetOutputFormat() == output.FormatTable {
			return printStructured(cmd, tables)
		}

		out := stdoutFromContext(cmd.Context())
		if len(tables) == 0 {
			fmt.Fprintln(out, "No tables found.")
			return nil
		}
		for _, t := range tables {
			fmt.Fprintf(out, "%s\t%s\t(%d rows, %d cols)\n", t.ID, t.Name, t.NRows, t.NCols)
		}
		return nil
	},
}

var tableGetCmd = &cobra.Command{
	Use:   "get <dataset-id> <table-id>",
	Short: "Get a table with its annotations",
	Long: `Get a table by id, including any reconciliation and extension
annotations.

The default text view shows a summary; use --output json for the full
annotated table.

Examples:
  semtab table get 42 7
  semtab table get 42 7 --output json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, tableID := args[0], args[1]

		client := GetClient()
		t, err := client.GetTable(cmd.Context(), datasetID, tableID)
		if err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("table not found: %s", tableID)
			}
			return fmt.Errorf("failed to get table: %w", err)
		}

		if structuredOutputRequested() {
			return printStructured(cmd, t)
		}

		out := stdoutFromContext(cmd.Context())
		fmt.Fprintf(out, "Name: %s\n", t.Meta.Name)
		fmt.Fprintf(out, "ID: %s (dataset %s)\n", t.Meta.ID, t.Meta.IDDataset)
		fmt.Fprintf(out, "Size: %d rows x %d columns (%d cells)\n", t.Meta.NRows, t.Meta.NCols, t.Meta.NCells)
		fmt.Fprintf(out, "Reconciliated cells: %d\n", t.Meta.NCellsReconciliated)
		if t.Meta.LastModifiedDate != "" {
			fmt.Fprintf(out, "Last modified: %s\n", t.Meta.LastModifiedDate)
		}
		fmt.Fprintf(out, "Columns: %s\n", strings.Join(t.ColumnNames(), ", "))
		return nil
	},
}

var tableShowCmd = &cobra.Command{
	Use:   "show <dataset-id> <table-id>",
	Short: "Show table data as a grid",
	Long: `Show the table's cell values as a grid.

With --metadata, annotated columns get an extra column summarizing the
best entity candidate per cell.

Examples:
  semtab table show 42 7
  semtab table show 42 7 --metadata
  semtab table show 42 7 --output csv > table.csv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, tableID := args[0], args[1]
		withMetadata, _ := cmd.Flags().GetBool("metadata")

		client := GetClient()
		t, err := client.GetTable(cmd.Context(), datasetID, tableID)
		if err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("table not found: %s", tableID)
			}
			return fmt.Errorf("failed to get table: %w", err)
		}

		frame := table.FromTable(t, withMetadata)

		if structuredOutputRequested() {
			return printStructured(cmd, frameRecords(frame))
		}

		return printStructured(cmd, output.Table{Headers: frame.Columns, Rows: frame.Records})
	},
}

var tableAddCmd = &cobra.Command{
	Use:   "add <dataset-id> <name>",
	Short: "Upload a CSV file as a new table",
	Long: `Upload a CSV file as a new table in a dataset.

Use --file to point at a CSV file, or - to read CSV from stdin.

Examples:
  semtab table add 42 "Cities" --file cities.csv
  cat cities.csv | semtab table add 42 "Cities" --file -`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, name := args[0], args[1]
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		frame, err := readFrameSource(cmd, file)
		if err != nil {
			return err
		}

		client := GetClient()
		id, err := client.AddTable(cmd.Context(), datasetID, name, frame)
		if err != nil {
			return fmt.Errorf("failed to add table: %w", err)
		}

		if structuredOutputRequested() {
			return printStructured(cmd, map[string]string{
				"status":  "created",
				"id":      id,
				"name":    name,
				"dataset": datasetID,
			})
		}

		fmt.Fprintf(stdoutFromContext(cmd.Context()), "Added table %s (id: %s)\n", name, id)
		return nil
	},
}

// tableDeleteResult is the per-table outcome of a delete run.
type tableDeleteResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

var tableDeleteCmd = &cobra.Command{
	Use:   "delete <dataset-id> <table-id>...",
	Short: "Delete one or more tables",
	Long: `Delete tables from a dataset. Each table is deleted independently
and reported separately; a failure on one id does not stop the rest.

This action is destructive and cannot be undone. Use the --yes flag
to skip the confirmation prompt.

Examples:
  semtab table delete 42 7
  semtab table delete 42 7 8 9 --yes`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, tableIDs := args[0], args[1:]

		if !confirmDestructive(cmd, fmt.Sprintf("Are you sure you want to delete %d table(s)? This cannot be undone.", len(tableIDs))) {
			return nil
		}

		client := GetClient()
		results := make([]tableDeleteResult, 0, len(tableIDs))
		failed := 0
		for _, tableID := range tableIDs {
			err := client.DeleteTable(cmd.Context(), datasetID, tableID)
			switch {
			case err == nil:
				results = append(results, tableDeleteResult{ID: tableID, Status: "deleted"})
			default:
				failed++
				msg := err.Error()
				if _, ok := err.(api.NotFoundError); ok {
					msg = "table not found"
				}
				results = append(results, tableDeleteResult{ID: tableID, Status: "failed", Error: msg})
			}
		}

		if structuredOutputRequested() {
			if err := printStructured(cmd, results); err != nil {
				return err
			}
		} else {
			out := stdoutFromContext(cmd.Context())
			for _, res := range results {
				if res.Status == "deleted" {
					fmt.Fprintf(out, "Deleted table: %s\n", res.ID)
				} else {
					fmt.Fprintf(out, "Failed to delete table %s: %s\n", res.ID, res.Error)
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("failed to delete %d of %d tables", failed, len(tableIDs))
		}
		return nil
	},
}

var tableDownloadCmd = &cobra.Command{
	Use:   "download <dataset-id> <table-id>",
	Short: "Download a table as CSV or W3C JSON",
	Long: `Download a table in CSV or W3C annotated JSON format.

The W3C export carries cell annotations; the CSV export is plain data.
With --zip, the CSV is wrapped in a zip archive.

Examples:
  semtab table download 42 7 --out table.csv
  semtab table download 42 7 --export-format w3c --out table.json
  semtab table download 42 7 --zip --out table.zip
  semtab table download 42 7            # writes to stdout`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, tableID := args[0], args[1]
		exportFormat, _ := cmd.Flags().GetString("export-format")
		outPath, _ := cmd.Flags().GetString("out")
		zipped, _ := cmd.Flags().GetBool("zip")

		if zipped && exportFormat != api.ExportFormatCSV {
			return fmt.Errorf("--zip is only supported with the csv export format")
		}

		client := GetClient()
		data, err := client.ExportTable(cmd.Context(), datasetID, tableID, exportFormat)
		if err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("table not found: %s", tableID)
			}
			return fmt.Errorf("failed to download table: %w", err)
		}

		if zipped {
			frame, err := table.ReadCSV(strings.NewReader(string(data)))
			if err != nil {
				return fmt.Errorf("failed to parse downloaded CSV: %w", err)
			}
			if outPath == "" {
				return frame.WriteCSVZip(stdoutFromContext(cmd.Context()), tableID+".csv")
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			defer f.Close()
			if err := frame.WriteCSVZip(f, tableID+".csv"); err != nil {
				return fmt.Errorf("failed to write zip: %w", err)
			}
		} else if outPath == "" {
			if _, err := stdoutFromContext(cmd.Context()).Write(data); err != nil {
				return err
			}
		} else if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}

		if outPath != "" && !output.QuietFromContext(cmd.Context()) {
			fmt.Fprintf(stderrFromContext(cmd.Context()), "Wrote %s\n", outPath)
		}
		return nil
	},
}

var tablePushCmd = &cobra.Command{
	Use:   "push <dataset-id> <table-id>",
	Short: "Push a locally annotated table to the server",
	Long: `Push a locally annotated table back to the server.

The table JSON is read from --file (use - for stdin) in the same shape
'table get --output json' produces. The server receives a full update
including recomputed reconciliation counts and score bounds.

Examples:
  semtab table push 42 7 --file table.json
  semtab table get 42 7 --output json | semtab table push 42 7 --file -`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, tableID := args[0], args[1]
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		raw, err := readInputSource(file, stdinFromContext(cmd.Context()))
		if err != nil {
			return err
		}
		t, err := table.Parse([]byte(raw))
		if err != nil {
			return fmt.Errorf("failed to parse table JSON: %w", err)
		}
		if t.Meta.ID == "" {
			t.Meta.ID = tableID
		}
		if t.Meta.IDDataset == "" {
			t.Meta.IDDataset = datasetID
		}

		client := GetClient()
		if err := client.PushTable(cmd.Context(), datasetID, tableID, t.ToBackendPayload()); err != nil {
			return fmt.Errorf("failed to push table: %w", err)
		}

		if structuredOutputRequested() {
			return printStructured(cmd, map[string]string{
				"status":  "pushed",
				"id":      tableID,
				"dataset": datasetID,
			})
		}

		fmt.Fprintf(stdoutFromContext(cmd.Context()), "Pushed table: %s\n", tableID)
		return nil
	},
}

func init() {
	tableCmd.AddCommand(tableListCmd)
	tableCmd.AddCommand(tableGetCmd)
	tableCmd.AddCommand(tableShowCmd)
	tableCmd.AddCommand(tableAddCmd)
	tableCmd.AddCommand(tableDeleteCmd)
	tableCmd.AddCommand(tableDownloadCmd)
	tableCmd.AddCommand(tablePushCmd)

	rootCmd.AddCommand(tableCmd)

	tableShowCmd.Flags().Bool("metadata", false, "Include entity annotation summary columns")
	tableAddCmd.Flags().String("file", "", "CSV file to upload (use - for stdin)")
	tableDownloadCmd.Flags().String("export-format", api.ExportFormatCSV, "Export format (csv|w3c)")
	tableDownloadCmd.Flags().String("out", "", "Write output to file instead of stdout")
	tableDownloadCmd.Flags().Bool("zip", false, "Wrap the CSV in a zip archive")
	tablePushCmd.Flags().String("file", "", "Annotated table JSON to push (use - for stdin)")
}

// frameRecords renders a frame as a list of column-keyed maps for
// structured output.
func frameRecords(f *table.Frame) []map[string]string {
	records := make([]map[string]string, 0, len(f.Records))
	for _, rec := range f.Records {
		row := make(map[string]string, len(f.Columns))
		for i, col := range f.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		records = append(records, row)
	}
	return records
}
