package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semtab/semtab-cli/internal/api"
)

var extendCmd = &cobra.Command{
	Use:   "extend",
	Short: "Extend reconciled columns with external properties",
	Long: `Extend reconciled columns with properties from external services.

Extension takes a column that has already been reconciled and appends
new columns with data looked up for each matched entity, such as
weather observations or knowledge-base properties.`,
}

var extendServicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List available extension services",
	Long: `List the extension services the server offers.

Examples:
  semtab extend services
  semtab extend services --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := GetClient()
		services, err := client.ListExtenders(cmd.Context())
		if err != nil {
			return err
		}
		return printServices(cmd, services)
	},
}

var extendParamsCmd = &cobra.Command{
	Use:   "params <service-id>",
	Short: "Show the parameters an extension service accepts",
	Long: `Show the mandatory and optional parameters of an extension service.

Examples:
  semtab extend params meteoPropertiesOpenMeteo
  semtab extend params reconciledColumnExt --output json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := GetClient()
		params, err := client.ExtenderParameters(cmd.Context(), args[0])
		if err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("extender not found: %s", args[0])
			}
			return err
		}
		return printServiceParameters(cmd, params)
	},
}

var extendRunCmd = &cobra.Command{
	Use:   "run <dataset-id> <table-id> <column>",
	Short: "Extend a reconciled column and push the result",
	Long: `Extend a reconciled column with service properties and push the
extended table back to the server.

The Open-Meteo extender needs --date-column and --decimal-format in
addition to the weather --property flags. Use --dry-run to print the
extended table without pushing it.

Examples:
  semtab extend run 42 7 city --service reconciledColumnExt --property population
  semtab extend run 42 7 city --service meteoPropertiesOpenMeteo \
      --property apparent_temperature_max --date-column date --decimal-format comma
  semtab extend run 42 7 city --service reconciledColumnExt --property population --dry-run`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, tableID, column := args[0], args[1], args[2]
		serviceID, _ := cmd.Flags().GetString("service")
		properties, _ := cmd.Flags().GetStringArray("property")
		dateColumn, _ := cmd.Flags().GetString("date-column")
		decimalFormat, _ := cmd.Flags().GetString("decimal-format")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if serviceID == "" {
			return fmt.Errorf("--service is required")
		}
		if len(properties) == 0 {
			return fmt.Errorf("at least one --property is required")
		}

		client := GetClient()
		t, err := client.GetTable(cmd.Context(), datasetID, tableID)
		if err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("table not found: %s", tableID)
			}
			return fmt.Errorf("failed to get table: %w", err)
		}

		opts := api.ExtendOptions{
			DateColumn:    dateColumn,
			DecimalFormat: decimalFormat,
		}
		extended, payload, err := client.ExtendColumn(cmd.Context(), t, column, serviceID, properties, opts)
		if err != nil {
			return fmt.Errorf("extension failed: %w", err)
		}

		if !dryRun {
			if err := client.PushTable(cmd.Context(), datasetID, tableID, payload); err != nil {
				return fmt.Errorf("extension succeeded but push failed: %w", err)
			}
		}

		if structuredOutputRequested() {
			return printStructured(cmd, extended)
		}

		out := stdoutFromContext(cmd.Context())
		fmt.Fprintf(out, "Extended column %s with %s\n", column, serviceID)
		added := len(extended.Columns) - len(t.Columns)
		fmt.Fprintf(out, "New columns: %d\n", added)
		if dryRun {
			fmt.Fprintln(out, "Dry run: table not pushed.")
		} else {
			fmt.Fprintf(out, "Pushed table: %s\n", tableID)
		}
		return nil
	},
}

func init() {
	extendCmd.AddCommand(extendServicesCmd)
	extendCmd.AddCommand(extendParamsCmd)
	extendCmd.AddCommand(extendRunCmd)

	rootCmd.AddCommand(extendCmd)

	extendRunCmd.Flags().String("service", "", "Extension service id")
	extendRunCmd.Flags().StringArray("property", nil, "Property to fetch for each entity (repeatable)")
	extendRunCmd.Flags().String("date-column", "", "Date column for the Open-Meteo extender")
	extendRunCmd.Flags().String("decimal-format", "", "Decimal format for the Open-Meteo extender")
	extendRunCmd.Flags().Bool("dry-run", false, "Extend locally without pushing the table")
}
