package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semtab/semtab-cli/internal/api"
	"github.com/semtab/semtab-cli/internal/output"
	"github.com/semtab/semtab-cli/internal/table"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage datasets on the SemTab server",
	Long: `Manage datasets on the SemTab server.

A dataset is a named collection of tables. This command provides
subcommands for listing, creating, and deleting datasets.`,
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets",
	Long: `List all datasets on the server.

Examples:
  semtab dataset list
  semtab dataset list --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := GetClient()
		datasets, err := client.ListDatasets(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list datasets: %w", err)
		}

		if structuredOutputRequested() {
			return printStructured(cmd, datasets)
		}

		out := stdoutFromContext(cmd.Context())
		if len(datasets) == 0 {
			fmt.Fprintln(out, "No datasets found.")
			return nil
		}
		if GetOutputFormat() == output.FormatTable {
			return printStructured(cmd, datasets)
		}
		for _, ds := range datasets {
			fmt.Fprintf(out, "%s\t%s\t(%d tables)\n", ds.ID, ds.Name, ds.NTables)
		}
		return nil
	},
}

var datasetAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a dataset from a CSV file",
	Long: `Create a new dataset on the server, seeded with a CSV file.

The server requires an initial table to create a dataset. Use --file to
point at a CSV file, or - to read CSV from stdin.

Examples:
  semtab dataset add "My Dataset" --file cities.csv
  cat cities.csv | semtab dataset add "My Dataset" --file -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		frame, err := readFrameSource(cmd, file)
		if err != nil {
			return err
		}

		client := GetClient()
		id, err := client.AddDataset(cmd.Context(), name, frame)
		if err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}

		if structuredOutputRequested() {
			return printStructured(cmd, map[string]string{
				"status": "created",
				"id":     id,
				"name":   name,
			})
		}

		fmt.Fprintf(stdoutFromContext(cmd.Context()), "Created dataset %s (id: %s)\n", name, id)
		return nil
	},
}

var datasetDeleteCmd = &cobra.Command{
	Use:   "delete <dataset-id>",
	Short: "Delete a dataset",
	Long: `Delete a dataset and all its tables from the server.

This action is destructive and cannot be undone. Use the --yes flag
to skip the confirmation prompt.

Examples:
  semtab dataset delete 42
  semtab dataset delete 42 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID := args[0]

		if !confirmDestructive(cmd, fmt.Sprintf("Are you sure you want to delete dataset %s and all its tables? This cannot be undone.", datasetID)) {
			return nil
		}

		client := GetClient()
		if err := client.DeleteDataset(cmd.Context(), datasetID); err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("dataset not found: %s", datasetID)
			}
			return fmt.Errorf("failed to delete dataset: %w", err)
		}

		if structuredOutputRequested() {
			return printStructured(cmd, map[string]string{
				"status": "deleted",
				"id":     datasetID,
			})
		}

		fmt.Fprintf(stdoutFromContext(cmd.Context()), "Deleted dataset: %s\n", datasetID)
		return nil
	},
}

func init() {
	datasetCmd.AddCommand(datasetListCmd)
	datasetCmd.AddCommand(datasetAddCmd)
	datasetCmd.AddCommand(datasetDeleteCmd)

	rootCmd.AddCommand(datasetCmd)

	datasetAddCmd.Flags().String("file", "", "CSV file to seed the dataset with (use - for stdin)")
}

// confirmDestructive prompts for confirmation unless --yes was given.
// Returns false when the user aborts.
func confirmDestructive(cmd *cobra.Command, message string) bool {
	if output.YesFromContext(cmd.Context()) {
		return true
	}
	errOut := cmd.ErrOrStderr()
	fmt.Fprintln(errOut, message)
	fmt.Fprint(errOut, "Type 'yes' to confirm: ")
	reader := bufio.NewReader(stdinFromContext(cmd.Context()))
	confirm, _ := reader.ReadString('\n')
	if strings.TrimSpace(confirm) != "yes" {
		fmt.Fprintln(errOut, "Aborted.")
		return false
	}
	return true
}

// readFrameSource reads a CSV frame from a file path or stdin when source is "-".
func readFrameSource(cmd *cobra.Command, source string) (*table.Frame, error) {
	if strings.TrimSpace(source) == "-" {
		frame, err := table.ReadCSV(stdinFromContext(cmd.Context()))
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV from stdin: %w", err)
		}
		return frame, nil
	}
	frame, err := table.ReadCSVFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return frame, nil
}
