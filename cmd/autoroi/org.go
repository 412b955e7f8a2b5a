package main

import (
	"fmt"
	"os"

	"github.com/hyperengineering/autoroi/internal/config"
	"github.com/hyperengineering/autoroi/internal/snapshot"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/validation"
	"github.com/spf13/cobra"
)

var (
	orgDBOverride string
	orgJSONOutput bool
	exportOutput  string
	importOrg     string
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage stored organizations",
	Long:  "List, export and import organization datasets without running the server.",
}

var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored organizations",
	Args:  cobra.NoArgs,
	RunE:  runOrgList,
}

var orgExportCmd = &cobra.Command{
	Use:   "export <org-id>",
	Short: "Export an organization as a backup document",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrgExport,
}

var orgImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a backup document or dataset file",
	Long: "Import a backup document produced by 'org export'. A plain dataset file\n" +
		"(JSON or YAML with groups and processes) is accepted with --org.",
	Args: cobra.ExactArgs(1),
	RunE: runOrgImport,
}

func init() {
	orgCmd.PersistentFlags().StringVar(&orgDBOverride, "db", "",
		"Database path (overrides config and AUTOROI_DB_PATH)")
	orgCmd.PersistentFlags().BoolVar(&orgJSONOutput, "json", false,
		"Output in JSON format")

	orgExportCmd.Flags().StringVarP(&exportOutput, "out", "o", "",
		"Write the document to a file instead of stdout")
	orgImportCmd.Flags().StringVar(&importOrg, "org", "",
		"Target organization (defaults to the document's organization)")

	orgCmd.AddCommand(orgListCmd)
	orgCmd.AddCommand(orgExportCmd)
	orgCmd.AddCommand(orgImportCmd)
}

// openStore opens the SQLite store from config with optional --db override.
func openStore() (store.Store, error) {
	path := orgDBOverride
	if path == "" {
		cfg, err := config.LoadOffline()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Database.Path
	}
	return store.NewSQLiteStore(path)
}

func runOrgList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	orgs, err := s.ListOrganizations(cmd.Context())
	if err != nil {
		return fmt.Errorf("list organizations: %w", err)
	}

	if orgJSONOutput {
		items := make([]map[string]any, len(orgs))
		for i, o := range orgs {
			items[i] = map[string]any{
				"id":                      o.ID,
				"processes":               o.ProcessCount,
				"has_cost_classification": o.HasCostClasses,
			}
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"organizations": items,
			"total":         len(items),
		})
	}

	if len(orgs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No organizations found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tPROCESSES\tCLASSIFICATION")
	for _, o := range orgs {
		classification := "no"
		if o.HasCostClasses {
			classification = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", o.ID, o.ProcessCount, classification)
	}
	return w.Flush()
}

func runOrgExport(cmd *cobra.Command, args []string) error {
	orgID := args[0]
	if verr := validation.ValidateOrganizationID("org-id", orgID); verr != nil {
		return verr
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	doc, err := snapshot.Export(cmd.Context(), s, orgID)
	if err != nil {
		return fmt.Errorf("export %s: %w", orgID, err)
	}
	data, err := snapshot.Encode(doc)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(exportOutput, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s (%d processes) to %s\n", orgID, len(doc.Dataset.Processes), exportOutput)
	return nil
}

func runOrgImport(cmd *cobra.Command, args []string) error {
	if importOrg != "" {
		if verr := validation.ValidateOrganizationID("org", importOrg); verr != nil {
			return verr
		}
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	var (
		orgID     string
		processes int
	)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	if doc, derr := snapshot.Decode(data); derr == nil && doc.OrganizationID != "" {
		if err := snapshot.Import(ctx, s, doc, importOrg); err != nil {
			return err
		}
		orgID = doc.OrganizationID
		if importOrg != "" {
			orgID = importOrg
		}
		processes = len(doc.Dataset.Processes)
	} else {
		// Not a backup document: treat it as a dataset file.
		if importOrg == "" {
			return fmt.Errorf("%s is not a backup document; pass --org to import it as a dataset", args[0])
		}
		if err := importDataset(ctx, s, args[0], importOrg); err != nil {
			return err
		}
		orgID = importOrg
		ds, err := s.LoadData(ctx, orgID)
		if err != nil {
			return err
		}
		processes = len(ds.Processes)
	}

	if orgJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"id":        orgID,
			"processes": processes,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d processes)\n", orgID, processes)
	return nil
}
