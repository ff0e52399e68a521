package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/seanankenbruck/insidebi-ai/internal/app"
	"github.com/seanankenbruck/insidebi-ai/internal/database"
	"github.com/seanankenbruck/insidebi-ai/internal/processor"
	"github.com/seanankenbruck/insidebi-ai/internal/sqlgen"
	"github.com/seanankenbruck/insidebi-ai/internal/warehouse"
)

func newAskCmd(env *environment) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question and print the SQL and rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := env.load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			logger := env.logger("insidebi")
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			qp := processor.NewQueryProcessor(a.Resolver, a.Feedback, a.Model(), logger)
			resp, err := qp.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(env.out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printAnswer(env.out, resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func newTrainCmd(env *environment) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Load golden question/SQL pairs into the example store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := env.load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if file == "" {
				file = cfg.Cache.GoldenPath
			}

			logger := env.logger("trainer")
			store, err := app.OpenExampleStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := sqlgen.NewTrainer(store, logger).TrainFile(ctx, file)
			if err != nil {
				return err
			}
			total, err := store.Count(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(env.out, "trained %d, failed %d, %d examples stored (%s)\n", report.Trained, report.Failed, total, cfg.Examples.Store)
			for _, e := range report.Errors {
				fmt.Fprintf(env.out, "  %s\n", e)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d pairs failed to train", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "golden SQL file (defaults to GOLDEN_SQL_PATH)")
	return cmd
}

func newMigrateCmd(env *environment) *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create and seed the warehouse, or the pgvector example store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := env.load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger := env.logger("migrate")

			if set == database.SetWarehouse || set == "all" {
				cfg.Warehouse.AutoMigrate = true
				client, err := app.OpenWarehouse(ctx, cfg, logger)
				if err != nil {
					return err
				}
				version, _, err := database.Version(client.DB(), client.Driver(), database.SetWarehouse)
				client.Close()
				if err != nil {
					return err
				}
				fmt.Fprintf(env.out, "warehouse (%s) at version %d\n", cfg.Warehouse.Driver, version)
			}

			if set == database.SetExamples || set == "all" {
				if cfg.Examples.Store != "postgres" {
					if set == "all" {
						return nil
					}
					return fmt.Errorf("example store %q has no migrations", cfg.Examples.Store)
				}
				pg := app.ExamplesPostgresConfig(cfg)
				if err := database.VerifyPostgres(ctx, pg.DSN(), pg.Database); err != nil {
					return err
				}
				if err := database.RunMigrations(ctx, database.MigrationConfig{
					Driver:      warehouse.DriverPostgres,
					DatabaseURL: pg.DSN(),
					Set:         database.SetExamples,
				}); err != nil {
					return err
				}
				db, err := sql.Open("postgres", pg.DSN())
				if err != nil {
					return err
				}
				err = database.HealthCheck(ctx, db)
				db.Close()
				if err != nil {
					return err
				}
				fmt.Fprintf(env.out, "example store %s@%s/%s migrated\n", pg.Username, pg.Host, pg.Database)
			}

			switch set {
			case database.SetWarehouse, database.SetExamples, "all":
				return nil
			default:
				return fmt.Errorf("unknown migration set %q", set)
			}
		},
	}
	cmd.Flags().StringVar(&set, "set", database.SetWarehouse, "migration set: warehouse, examples or all")
	return cmd
}

func newSuggestCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "List example questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, q := range processor.Suggestions {
				fmt.Fprintf(env.out, "%d. %s\n", i+1, q)
			}
			return nil
		},
	}
}

func printAnswer(w io.Writer, resp *processor.AskResponse) {
	source := "generated"
	if resp.FromCache {
		source = "cache"
	}
	fmt.Fprintf(w, "-- %s (%s)\n%s\n\n", resp.ChartType, source, resp.SQL)
	renderTable(w, resp)
	fmt.Fprintln(w, resp.Summary)
}

func renderTable(w io.Writer, resp *processor.AskResponse) {
	if len(resp.Columns) == 0 {
		return
	}

	header := make([]string, len(resp.Columns))
	for i, col := range resp.Columns {
		header[i] = col.Name
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	for _, record := range resp.Data {
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = cell(record[name])
		}
		table.Append(row)
	}
	table.Render()
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
