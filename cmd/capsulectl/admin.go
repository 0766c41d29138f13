package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/repository"
	"github.com/noah-isme/timecapsule-api/internal/service"
	"github.com/noah-isme/timecapsule-api/internal/wikipedia"
	"github.com/noah-isme/timecapsule-api/pkg/database"
)

func (a *app) openDB() (*sqlx.DB, error) {
	db, err := database.NewPostgres(a.cfg.Database)
	if err != nil {
		return nil, codeError(2, "connecting database: %s", err)
	}
	return db, nil
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return codeError(2, "%s", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSeedCommand(a *app) *cobra.Command {
	var fixturePath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load categories and events from a YAML fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := loadFixture(fixturePath)
			if err != nil {
				return codeError(3, "%s", err)
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			seeder := service.NewSeedService(
				repository.NewUserRepository(db),
				repository.NewCategoryRepository(db),
				repository.NewEventRepository(db),
				a.logger,
			)
			result, err := seeder.Seed(cmd.Context(), fixture)
			if err != nil {
				return codeError(2, "%s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories and %d events (%d already present)\n",
				result.Categories, result.Events, result.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "YAML fixture file (defaults to the bundled catalog)")
	return cmd
}

func loadFixture(path string) (*service.SeedFixture, error) {
	if path == "" {
		return service.DefaultFixture()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return service.LoadFixture(f)
}

type populateFlags struct {
	year   int
	month  int
	day    int
	fast   bool
	remote bool
}

func newPopulateCommand(a *app) *cobra.Command {
	var flags populateFlags
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Import Wikipedia \"on this day\" tech events",
		Long: "Imports tech-related entries of the Wikipedia \"on this day\" feed for a year, a month or a single day.\n" +
			"With --remote the import is queued on the running API instead of executed locally.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := flags.request()
			if err := validator.New().Struct(req); err != nil {
				return codeError(3, "invalid range: %s", err)
			}
			if flags.remote {
				return a.populateRemote(cmd, req)
			}
			return a.populateLocal(cmd, req)
		},
	}
	f := cmd.Flags()
	f.IntVar(&flags.year, "year", 0, "Year to import")
	f.IntVar(&flags.month, "month", 0, "Restrict to one month")
	f.IntVar(&flags.day, "day", 0, "Restrict to one day (requires --month)")
	f.BoolVar(&flags.fast, "fast", false, "Use the short delay between feed requests")
	f.BoolVar(&flags.remote, "remote", false, "Queue the import on the API")
	return cmd
}

func (f populateFlags) request() dto.ImportRequest {
	req := dto.ImportRequest{Year: f.year, Fast: f.fast}
	if f.month != 0 {
		month := f.month
		req.Month = &month
	}
	if f.day != 0 {
		day := f.day
		req.Day = &day
	}
	return req
}

func (a *app) populateLocal(cmd *cobra.Command, req dto.ImportRequest) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	feed := wikipedia.NewClient(wikipedia.Config{
		BaseURL:   a.cfg.Wikipedia.BaseURL,
		UserAgent: a.cfg.Wikipedia.UserAgent,
		Timeout:   a.cfg.Wikipedia.Timeout,
	}, a.logger)
	importer := service.NewImporter(feed, repository.NewEventRepository(db), users, nil, a.logger, service.ImporterConfig{
		Archivist: a.cfg.Imports.Archivist,
		Keywords:  a.cfg.Imports.Keywords,
		Delay:     a.cfg.Imports.Delay,
		FastDelay: a.cfg.Imports.FastDelay,
	})

	result, err := importer.Run(cmd.Context(), req)
	if err != nil {
		return codeError(2, "%s", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fetched %d days: %d created, %d skipped, %d failed\n",
		result.DaysFetched, result.Created, result.Skipped, result.Failed)
	return nil
}

func (a *app) populateRemote(cmd *cobra.Command, req dto.ImportRequest) error {
	c, err := a.client()
	if err != nil {
		return codeError(3, "%s", err)
	}
	job, err := c.EnqueueImport(cmd.Context(), req)
	if err != nil {
		return codeError(2, "%s", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued import %s (%s)\n", job.ID, job.Status)
	return nil
}
