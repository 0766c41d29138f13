package main

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/timecapsule-api/internal/discovery"
	"github.com/noah-isme/timecapsule-api/internal/models"
	"github.com/noah-isme/timecapsule-api/internal/trivia"
	"github.com/noah-isme/timecapsule-api/pkg/storage"
)

type discoverFlags struct {
	link        string
	granularity string
	date        string
	month       string
	years       string
	category    string
	sort        string
}

// update turns the explicitly set flags into one filter update.
func (f discoverFlags) update(cmd *cobra.Command) (discovery.Update, error) {
	var u discovery.Update
	changed := cmd.Flags().Changed

	if changed("view") {
		g := discovery.Granularity(f.granularity)
		if !g.Valid() {
			return u, fmt.Errorf("view must be daily or monthly")
		}
		u = u.WithGranularity(g)
	}
	if changed("date") {
		d, err := discovery.ParseDate(f.date)
		if err != nil {
			return u, err
		}
		u = u.WithDate(d)
	}
	if changed("month") {
		m, err := discovery.ParseYearMonth(f.month)
		if err != nil {
			return u, err
		}
		u = u.WithMonth(m)
	}
	if changed("years") {
		u = u.WithYearsText(f.years)
	}
	if changed("category") {
		u = u.WithCategory(f.category)
	}
	if changed("sort") {
		s := models.EventSort(f.sort)
		if !s.Valid() {
			return u, fmt.Errorf("sort must be historical or newest")
		}
		u = u.WithSort(s)
	}
	return u, nil
}

func newDiscoverCommand(a *app) *cobra.Command {
	var flags discoverFlags
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse events with the discovery filters",
		Long: "Opens a discovery session (optionally from a deep link such as \"category_id=...&sort=newest\"),\n" +
			"applies the given filters and prints the resulting events and the shareable link.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := url.ParseQuery(strings.TrimPrefix(flags.link, "?"))
			if err != nil {
				return codeError(3, "invalid link: %s", err)
			}
			update, err := flags.update(cmd)
			if err != nil {
				return codeError(3, "%s", err)
			}

			c, err := a.client()
			if err != nil {
				return codeError(3, "%s", err)
			}
			session := discovery.NewSession(c, discovery.WithLogger(a.logger))
			session.Start(cmd.Context(), entry, update)
			session.Wait()

			view := session.View()
			printView(cmd.OutOrStdout(), view, session.QueryString())
			if view.Err != "" {
				return codeError(2, "%s", view.Err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.link, "link", "", "Deep link query string to start from")
	f.StringVar(&flags.granularity, "view", string(discovery.GranularityDaily), "Picker granularity: daily or monthly")
	f.StringVar(&flags.date, "date", "", "Day picker value (YYYY-MM-DD)")
	f.StringVar(&flags.month, "month", "", "Month picker value (YYYY-MM)")
	f.StringVar(&flags.years, "years", "", "Year text, e.g. 1969 or 1969,1983")
	f.StringVar(&flags.category, "category", "", "Category id")
	f.StringVar(&flags.sort, "sort", string(models.EventSortHistorical), "historical or newest")
	return cmd
}

func printView(w io.Writer, view discovery.View, link string) {
	fmt.Fprintf(w, "query: %s\n", view.Query)
	if link != "" {
		fmt.Fprintf(w, "link:  ?%s\n", link)
	}
	if view.Err != "" {
		fmt.Fprintf(w, "error: %s\n", view.Err)
	}
	if view.Notice != "" {
		fmt.Fprintln(w, view.Notice)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range view.Events {
		names := make([]string, 0, len(e.EventCategories))
		for _, ec := range e.EventCategories {
			names = append(names, ec.Category.Name)
		}
		fmt.Fprintf(tw, "%04d-%02d-%02d\t%s\t%s\n", e.Year, e.Month, e.Day, e.Title, strings.Join(names, ", "))
	}
	tw.Flush() //nolint:errcheck
}

func newTriviaCommand(a *app) *cobra.Command {
	var rounds int
	cmd := &cobra.Command{
		Use:   "trivia",
		Short: "Guess the year of random events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return codeError(3, "%s", err)
			}
			game := trivia.NewGame(c, a.logger)
			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())

			for round := 0; rounds <= 0 || round < rounds; round++ {
				question, err := game.Next(cmd.Context())
				if err != nil {
					fmt.Fprintln(out, game.Feedback())
					return codeError(2, "%s", err)
				}
				fmt.Fprintf(out, "\n%s\nYear? ", question.Description)

				for {
					if !scanner.Scan() {
						fmt.Fprintf(out, "\nFinal score: %d\n", game.Score())
						return scanner.Err()
					}
					outcome, err := game.Guess(scanner.Text())
					if err != nil {
						return err
					}
					fmt.Fprintln(out, outcome.Feedback)
					if outcome.Valid {
						break
					}
					fmt.Fprint(out, "Year? ")
				}
				fmt.Fprintf(out, "Score: %d\n", game.Score())
			}
			fmt.Fprintf(out, "\nFinal score: %d\n", game.Score())
			return nil
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 0, "Stop after this many questions (0 plays until input ends)")
	return cmd
}

func newLoginCommand(a *app, signup bool) *cobra.Command {
	var username, password string
	use, short := "login", "Authenticate and print a bearer token"
	if signup {
		use, short = "signup", "Register an account and print a bearer token"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return codeError(3, "%s", err)
			}
			authenticate := c.Login
			if signup {
				authenticate = c.Signup
			}
			resp, err := authenticate(cmd.Context(), username, password)
			if err != nil {
				return codeError(2, "%s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\nexport CAPSULE_API_TOKEN=%s\n", resp.User.Username, resp.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Account name")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var (
		flags  discoverFlags
		format string
		outDir string
		keep   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the filtered events as CSV, PDF or iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := url.ParseQuery(strings.TrimPrefix(flags.link, "?"))
			if err != nil {
				return codeError(3, "invalid link: %s", err)
			}
			update, err := flags.update(cmd)
			if err != nil {
				return codeError(3, "%s", err)
			}

			state := discovery.InitialState(time.Now(), discovery.ParseDeepLink(entry))
			if !update.Empty() {
				state = state.Apply(update)
			}
			query := discovery.Resolve(state)

			c, err := a.client()
			if err != nil {
				return codeError(3, "%s", err)
			}
			payload, filename, err := c.Export(cmd.Context(), query, format)
			if err != nil {
				return codeError(2, "%s", err)
			}
			if filename == "" {
				filename = "time-capsule." + format
			}

			store, err := storage.NewLocalStorage(outDir)
			if err != nil {
				return codeError(2, "%s", err)
			}
			if keep > 0 {
				removed, err := store.CleanupOlderThan(keep)
				if err != nil {
					a.logger.Sugar().Warnw("export cleanup failed", "error", err)
				}
				for _, name := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
				}
			}
			if _, err := store.Save(filename, payload); err != nil {
				return codeError(2, "%s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes) for %s\n", store.Path(filename), len(payload), query)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "csv", "csv, pdf or ics")
	f.StringVar(&outDir, "out", "./exports", "Directory the file is written to")
	f.DurationVar(&keep, "keep", 0, "Delete earlier exports older than this duration")
	f.StringVar(&flags.link, "link", "", "Deep link query string to start from")
	f.StringVar(&flags.granularity, "view", string(discovery.GranularityDaily), "Picker granularity: daily or monthly")
	f.StringVar(&flags.date, "date", "", "Day picker value (YYYY-MM-DD)")
	f.StringVar(&flags.month, "month", "", "Month picker value (YYYY-MM)")
	f.StringVar(&flags.years, "years", "", "Year text, e.g. 1969 or 1969,1983")
	f.StringVar(&flags.category, "category", "", "Category id")
	f.StringVar(&flags.sort, "sort", string(models.EventSortHistorical), "historical or newest")
	return cmd
}
