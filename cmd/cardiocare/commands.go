package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cardiocare-risk-server/internal/app"
	"github.com/cardiocare-risk-server/internal/config"
	"github.com/cardiocare-risk-server/internal/database"
	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/records"
)

type cliContext struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	cc := &cliContext{}

	rootCmd := &cobra.Command{
		Use:          "cardiocare",
		Short:        "CardioCare heart-disease risk administration",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cc.configFile, "config", "", "path to a YAML configuration file")

	rootCmd.AddCommand(cc.assessCmd())
	rootCmd.AddCommand(cc.recordsCmd())
	rootCmd.AddCommand(cc.migrateCmd())
	return rootCmd
}

// load reads the configuration and a logger writing to the command's stderr.
func (cc *cliContext) load(cmd *cobra.Command) (*config.Manager, *logrus.Logger, error) {
	manager, err := config.NewManager(cc.configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, nil, err
	}
	cfg := manager.GetConfig()
	return manager, config.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format), nil
}

func (cc *cliContext) build(cmd *cobra.Command) (*app.App, error) {
	manager, logger, err := cc.load(cmd)
	if err != nil {
		return nil, err
	}
	return app.Build(cmd.Context(), manager.GetConfig(), logger)
}

func (cc *cliContext) assessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess <input.json>",
		Short: "Assess heart-disease risk for the clinical input in a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			var input domain.ClinicalInput
			if err := json.Unmarshal(data, &input); err != nil {
				return fmt.Errorf("failed to parse input: %w", err)
			}

			a, err := cc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			sess, err := a.Workflow.StartSession(ctx)
			if err != nil {
				return err
			}
			defer a.Workflow.EndSession(context.Background(), sess.ID)

			result, err := a.Workflow.Assess(ctx, sess.ID, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (confidence %s)\n", result.RiskLabel, result.FormattedConfidence())
			return nil
		},
	}
}

func (cc *cliContext) recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect, export and import patient records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved records in insertion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.Records.All(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range all {
				fmt.Fprintf(out, "%s\t%s\t%d\t%s\t%s\t%s\n",
					rec.PatientID, rec.PatientName, rec.Age, rec.Sex, rec.PredictionResult, rec.ConfidenceScore)
			}
			fmt.Fprintf(out, "%d record(s)\n", len(all))
			return nil
		},
	})

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write every record to stdout as JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if format != "json" && format != "csv" {
				return fmt.Errorf("unsupported format %q: use json or csv", format)
			}

			a, err := cc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if format == "csv" {
				return records.ExportCSV(cmd.Context(), a.Records, cmd.OutOrStdout())
			}
			return records.ExportJSON(cmd.Context(), a.Records, cmd.OutOrStdout())
		},
	}
	exportCmd.Flags().String("format", "json", "Output format (json|csv)")
	cmd.AddCommand(exportCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "import <export.json>",
		Short: "Append the records of a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open export: %w", err)
			}
			defer f.Close()

			a, err := cc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			imported, skipped, err := records.ImportJSON(cmd.Context(), a.Records, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s), skipped %d\n", imported, skipped)
			return nil
		},
	})

	return cmd
}

func (cc *cliContext) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the PostgreSQL record schema",
	}

	runner := func(cmd *cobra.Command) (*database.MigrationRunner, error) {
		manager, logger, err := cc.load(cmd)
		if err != nil {
			return nil, err
		}
		path := manager.GetDatabaseConfig().MigrationsPath
		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			path = dir
		}
		if path == "" {
			path = database.DefaultMigrationsPath
		}
		return database.NewMigrationRunner(manager.GetDatabaseURL(), path, logger)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			mr, err := runner(cmd)
			if err != nil {
				return err
			}
			defer mr.Close()
			return mr.Up(cmd.Context())
		},
	}
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			mr, err := runner(cmd)
			if err != nil {
				return err
			}
			defer mr.Close()
			return mr.Down(cmd.Context())
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			mr, err := runner(cmd)
			if err != nil {
				return err
			}
			defer mr.Close()
			version, dirty, err := mr.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}

	for _, c := range []*cobra.Command{upCmd, downCmd, versionCmd} {
		c.Flags().String("dir", "", "Path to migrations directory")
		cmd.AddCommand(c)
	}
	return cmd
}
