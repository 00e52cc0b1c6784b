package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semtab/semtab-cli/internal/api"
	"github.com/semtab/semtab-cli/internal/output"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile table columns against knowledge bases",
	Long: `Reconcile table columns against knowledge bases.

Reconciliation matches the values of a column to entities in an external
service (geocoders, GeoNames) and annotates each cell with its best
candidate.`,
}

var reconcileServicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List available reconciliation services",
	Long: `List the reconciliation services the server offers.

Examples:
  semtab reconcile services
  semtab reconcile services --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := GetClient()
		services, err := client.ListReconciliators(cmd.Context())
		if err != nil {
			return err
		}
		return printServices(cmd, services)
	},
}

var reconcileParamsCmd = &cobra.Command{
	Use:   "params <service-id>",
	Short: "Show the parameters a reconciliation service accepts",
	Long: `Show the mandatory and optional parameters of a reconciliation
service.

Examples:
  semtab reconcile params geocodingHere
  semtab reconcile params geonames --output json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := GetClient()
		params, err := client.ReconciliatorParameters(cmd.Context(), args[0])
		if err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("reconciliator not found: %s", args[0])
			}
			return err
		}
		return printServiceParameters(cmd, params)
	},
}

var reconcileRunCmd = &cobra.Command{
	Use:   "run <dataset-id> <table-id> <column>",
	Short: "Reconcile a column and push the result",
	Long: `Reconcile one column of a table against a service and push the
annotated table back to the server.

Geocoding services need two --support-column flags naming extra address
columns. Use --dry-run to print the annotated table without pushing it.

Examples:
  semtab reconcile run 42 7 city --service geonames
  semtab reconcile run 42 7 address --service geocodingHere \
      --support-column street --support-column city
  semtab reconcile run 42 7 city --service geonames --dry-run --output json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, tableID, column := args[0], args[1], args[2]
		serviceID, _ := cmd.Flags().GetString("service")
		supportColumns, _ := cmd.Flags().GetStringArray("support-column")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if serviceID == "" {
			return fmt.Errorf("--service is required")
		}

		client := GetClient()
		t, err := client.GetTable(cmd.Context(), datasetID, tableID)
		if err != nil {
			if _, ok := err.(api.NotFoundError); ok {
				return fmt.Errorf("table not found: %s", tableID)
			}
			return fmt.Errorf("failed to get table: %w", err)
		}

		annotated, payload, err := client.Reconcile(cmd.Context(), t, column, serviceID, supportColumns)
		if err != nil {
			return fmt.Errorf("reconciliation failed: %w", err)
		}

		if !dryRun {
			if err := client.PushTable(cmd.Context(), datasetID, tableID, payload); err != nil {
				return fmt.Errorf("reconciliation succeeded but push failed: %w", err)
			}
		}

		if structuredOutputRequested() {
			return printStructured(cmd, annotated)
		}

		out := stdoutFromContext(cmd.Context())
		fmt.Fprintf(out, "Reconciled column %s with %s\n", column, serviceID)
		fmt.Fprintf(out, "Annotated cells: %d\n", annotated.AnnotatedCellCount())
		if dryRun {
			fmt.Fprintln(out, "Dry run: table not pushed.")
		} else {
			fmt.Fprintf(out, "Pushed table: %s\n", tableID)
		}
		return nil
	},
}

func init() {
	reconcileCmd.AddCommand(reconcileServicesCmd)
	reconcileCmd.AddCommand(reconcileParamsCmd)
	reconcileCmd.AddCommand(reconcileRunCmd)

	rootCmd.AddCommand(reconcileCmd)

	reconcileRunCmd.Flags().String("service", "", "Reconciliation service id")
	reconcileRunCmd.Flags().StringArray("support-column", nil, "Extra column for geocoding services (repeatable)")
	reconcileRunCmd.Flags().Bool("dry-run", false, "Annotate locally without pushing the table")
}

// printServices renders a service catalog.
func printServices(cmd *cobra.Command, services []api.Service) error {
	if structuredOutputRequested() {
		return printStructured(cmd, services)
	}

	out := stdoutFromContext(cmd.Context())
	if len(services) == 0 {
		fmt.Fprintln(out, "No services available.")
		return nil
	}
	if GetOutputFormat() == output.FormatTable {
		return printStructured(cmd, services)
	}
	for _, svc := range services {
		fmt.Fprintf(out, "%s\t%s\n", svc.ID, svc.Name)
		if svc.Description != "" {
			fmt.Fprintf(out, "\t%s\n", svc.Description)
		}
	}
	return nil
}

// printServiceParameters renders a mandatory/optional parameter split.
func printServiceParameters(cmd *cobra.Command, params *api.ServiceParameters) error {
	if structuredOutputRequested() {
		return printStructured(cmd, params)
	}

	out := stdoutFromContext(cmd.Context())
	fmt.Fprintln(out, "Mandatory parameters:")
	for _, p := range params.Mandatory {
		fmt.Fprintf(out, "  %s (%s)", p.Name, p.Type)
		if p.Description != "" {
			fmt.Fprintf(out, " - %s", p.Description)
		}
		fmt.Fprintln(out)
	}
	if len(params.Optional) == 0 {
		return nil
	}
	fmt.Fprintln(out, "Optional parameters:")
	for _, p := range params.Optional {
		fmt.Fprintf(out, "  %s (%s)", p.Name, p.Type)
		if p.Description != "" {
			fmt.Fprintf(out, " - %s", p.Description)
		}
		fmt.Fprintln(out)
	}
	return nil
}
