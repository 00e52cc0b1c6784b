package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semtab/semtab-cli/internal/output"
	"github.com/semtab/semtab-cli/internal/table"
)

var modifyCmd = &cobra.Command{
	Use:   "modify",
	Short: "Clean and reshape CSV data locally",
	Long: `Clean and reshape CSV data locally, without talking to the server.

Modifiers read a CSV file, transform it, and write the result. They are
typically used to prepare data before uploading it as a table.`,
}

var modifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available modifiers",
	Long: `List the available data modifiers.

Examples:
  semtab modify list
  semtab modify list --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modifiers := table.Modifiers()

		if structuredOutputRequested() {
			type modifierInfo struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			infos := make([]modifierInfo, 0, len(modifiers))
			for _, m := range modifiers {
				infos = append(infos, modifierInfo{Name: m.Name, Description: m.Description})
			}
			return printStructured(cmd, infos)
		}

		out := stdoutFromContext(cmd.Context())
		for _, m := range modifiers {
			fmt.Fprintf(out, "%s\t%s\n", m.Name, m.Description)
		}
		return nil
	},
}

var modifyRunCmd = &cobra.Command{
	Use:   "run <modifier>",
	Short: "Apply a modifier to a CSV file",
	Long: `Apply a modifier to a CSV file.

The input is read from --file (use - for stdin) and the result is
written to --out, or to stdout when --out is omitted.

Modifier arguments:
  --column   target column (iso_date, lower_case)
  --rename   old=new column mapping, repeatable (rename_columns)
  --type     column=type mapping, repeatable (convert_types)
  --order    column name in the desired order, repeatable (reorder_columns)

Examples:
  semtab modify run lower_case --file data.csv --column city --out clean.csv
  semtab modify run iso_date --file data.csv --column date
  semtab modify run drop_na --file data.csv --out clean.csv
  semtab modify run rename_columns --file data.csv --rename town=city
  semtab modify run convert_types --file data.csv --type population=int
  semtab modify run reorder_columns --file data.csv --order city --order date`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		file, _ := cmd.Flags().GetString("file")
		outPath, _ := cmd.Flags().GetString("out")
		column, _ := cmd.Flags().GetString("column")
		renames, _ := cmd.Flags().GetStringArray("rename")
		types, _ := cmd.Flags().GetStringArray("type")
		order, _ := cmd.Flags().GetStringArray("order")

		if file == "" {
			return fmt.Errorf("--file is required")
		}

		frame, err := readFrameSource(cmd, file)
		if err != nil {
			return err
		}

		renameMap, err := parsePairs(renames, "--rename")
		if err != nil {
			return err
		}
		typeMap, err := parsePairs(types, "--type")
		if err != nil {
			return err
		}

		modArgs := table.ModifierArgs{
			Column: column,
			Rename: renameMap,
			Types:  typeMap,
			Order:  order,
		}

		result, message, err := table.Modify(frame, name, modArgs)
		if err != nil {
			return err
		}

		if outPath == "" {
			if err := result.WriteCSV(stdoutFromContext(cmd.Context())); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}
		} else if err := result.WriteCSVFile(outPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}

		if message != "" && !output.QuietFromContext(cmd.Context()) {
			fmt.Fprintln(stderrFromContext(cmd.Context()), message)
		}
		return nil
	},
}

func init() {
	modifyCmd.AddCommand(modifyListCmd)
	modifyCmd.AddCommand(modifyRunCmd)

	rootCmd.AddCommand(modifyCmd)

	modifyRunCmd.Flags().String("file", "", "Input CSV file (use - for stdin)")
	modifyRunCmd.Flags().String("out", "", "Write output to file instead of stdout")
	modifyRunCmd.Flags().String("column", "", "Target column")
	modifyRunCmd.Flags().StringArray("rename", nil, "old=new column mapping (repeatable)")
	modifyRunCmd.Flags().StringArray("type", nil, "column=type mapping (repeatable)")
	modifyRunCmd.Flags().StringArray("order", nil, "Column name in desired order (repeatable)")
}

// parsePairs parses key=value flag values into a map.
func parsePairs(pairs []string, flagName string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid %s value %q (expected key=value)", flagName, pair)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}
