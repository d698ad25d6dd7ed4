// auditctl runs scraping and batch maintenance against the staging and legacy databases
// without going through the HTTP API.
//
// Usage (from backend directory):
//
//	STAGING_DB_DRIVER=sqlite go run ./cmd/auditctl scrape --url "https://portal/?p=licitacao&ano=2021"
//	go run ./cmd/auditctl batches
//	go run ./cmd/auditctl hash-password 's3cret'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bitbucket.org/mmdatafocus/audit_backend/audit"
	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/scraper"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "auditctl",
	Short: "Licitação reconciliation maintenance CLI",
	Long: `auditctl scrapes source portals into staging batches and inspects or
removes batches. Settings come from flags, then environment variables, then .env.`,
	SilenceUsage: true,
}

func init() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.PersistentFlags().String("legacy-table", "", "legacy table name (LEGACY_TABLE_NAME)")
	rootCmd.PersistentFlags().String("legacy-id-column", "", "legacy identity column (LEGACY_ID_COLUMN)")
	rootCmd.PersistentFlags().Bool("pretty", true, "indent JSON output")
	_ = viper.BindPFlag("legacy_table_name", rootCmd.PersistentFlags().Lookup("legacy-table"))
	_ = viper.BindPFlag("legacy_id_column", rootCmd.PersistentFlags().Lookup("legacy-id-column"))
	_ = viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))

	rootCmd.AddCommand(scrapeCmd(), previewCmd(), schemaCmd(), batchesCmd(), statusCmd(), deleteBatchCmd(), migrateCmd(), hashPasswordCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	if viper.GetBool("pretty") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func openStaging() (*models.StagingStore, error) {
	db, err := config.OpenDatabase(config.StagingDBSettings())
	if err != nil {
		return nil, err
	}
	return models.NewStagingStore(db), nil
}

func openLegacy() (*models.LegacyStore, error) {
	db, err := config.OpenDatabase(config.LegacyDBSettings())
	if err != nil {
		return nil, err
	}
	return models.NewLegacyStore(db, legacyTable(), legacyIdColumn())
}

func legacyTable() string {
	if v := viper.GetString("legacy_table_name"); v != "" {
		return v
	}
	return config.LegacyTableName()
}

func legacyIdColumn() string {
	if v := viper.GetString("legacy_id_column"); v != "" {
		return v
	}
	return config.LegacyIdColumn()
}

func auditService() (*audit.Service, error) {
	staging, err := openStaging()
	if err != nil {
		return nil, err
	}
	legacy, err := openLegacy()
	if err != nil {
		return nil, err
	}
	settings := audit.SettingsFromEnv()
	settings.LegacyTable = legacy.Table()
	settings.LegacyIdColumn = legacy.IdColumn()
	return audit.NewService(staging, legacy, settings, nil), nil
}

func selectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("container", "", "container selector (default "+scraper.DefaultContainerSelector+")")
	cmd.Flags().String("edital", "", "edital selector inside the container")
	cmd.Flags().String("titulo", "", "title selector inside the container")
	cmd.Flags().String("descricao", "", "description selector inside the container")
}

func selectorsFrom(cmd *cobra.Command) scraper.Selectors {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return scraper.Selectors{
		Container: get("container"),
		Edital:    get("edital"),
		Titulo:    get("titulo"),
		Descricao: get("descricao"),
	}
}

func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape a source URL into a new staging batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rawURL, _ := cmd.Flags().GetString("url")
			staging, err := openStaging()
			if err != nil {
				return err
			}
			svc := scraper.NewService(staging, scraper.DefaultFetcher(), nil)
			svc.Snapshots = scraper.DefaultSnapshotter()
			result, err := svc.Run(cmd.Context(), rawURL, selectorsFrom(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "batch %s: %d items, %d partitions failed\n", result.BatchId, len(result.Items), result.Failed())
			return printJSON(result.Partitions)
		},
	}
	cmd.Flags().String("url", "", "source page URL")
	_ = cmd.MarkFlagRequired("url")
	selectorFlags(cmd)
	return cmd
}

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the first containers a selector matches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rawURL, _ := cmd.Flags().GetString("url")
			container, _ := cmd.Flags().GetString("container")
			svc := scraper.NewService(nil, scraper.DefaultFetcher(), nil)
			result, err := svc.Preview(cmd.Context(), rawURL, container)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d containers found\n", result.Count)
			fmt.Println(result.Html)
			return nil
		},
	}
	cmd.Flags().String("url", "", "source page URL")
	cmd.Flags().String("container", "", "container selector")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List the legacy table columns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			legacy, err := openLegacy()
			if err != nil {
				return err
			}
			columns, err := legacy.Columns(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(columns)
		},
	}
}

func batchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List staging batches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			staging, err := openStaging()
			if err != nil {
				return err
			}
			batches, err := staging.ListBatches(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(batches)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <batchId>",
		Short: "Show status counts and partitions of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := auditService()
			if err != nil {
				return err
			}
			status, err := svc.BatchStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			parts, err := svc.BatchPartitions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"status": status, "partitions": parts})
		},
	}
}

func deleteBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-batch <batchId>",
		Short: "Delete every staged item of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}
			svc, err := auditService()
			if err != nil {
				return err
			}
			res, err := svc.DeleteBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().Bool("yes", false, "confirm deletion")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the staging tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := config.OpenDatabase(config.StagingDBSettings())
			if err != nil {
				return err
			}
			if err := models.MigrateTable(db); err != nil {
				return err
			}
			return closeDB(db)
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for OPERATOR_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			hashed, err := utils.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Println(string(hashed))
			return nil
		},
	}
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
