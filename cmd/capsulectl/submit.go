package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/timecapsule-api/internal/eventform"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

type submitFlags struct {
	edit        string
	title       string
	description string
	source      string
	image       string
	year        int
	month       int
	day         int
	categories  []string
	remove      []int
}

func newSubmitCommand(a *app) *cobra.Command {
	var flags submitFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create an event, or edit one of yours with --edit",
		Long: "Categories are given as CATEGORY=relationship where CATEGORY is an id or a name from the catalog.\n" +
			"When editing, --category rows are appended to the existing ones and --remove drops rows by position.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return codeError(3, "%s", err)
			}
			user, err := c.CheckSession(cmd.Context())
			if err != nil {
				return codeError(2, "%s", err)
			}
			if user == nil {
				return codeError(3, "not signed in: run capsulectl login and set CAPSULE_API_TOKEN")
			}

			editor := eventform.NewEditor(c, user.ID, time.Now, a.logger)
			form, err := editor.Load(cmd.Context(), flags.edit)
			if err != nil {
				if errors.Is(err, appErrors.ErrForbidden) {
					return codeError(3, "%s", err)
				}
				return codeError(2, "%s", err)
			}
			if err := flags.apply(cmd, form); err != nil {
				return codeError(3, "%s", err)
			}

			event, err := editor.Submit(cmd.Context(), form)
			if verrs, ok := eventform.IsValidation(err); ok {
				printValidation(cmd.OutOrStdout(), verrs)
				return codeError(3, "event not submitted")
			}
			if err != nil {
				return codeError(2, "%s", err)
			}

			verb := "created"
			if form.Editing() {
				verb = "updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s event %s: %s (%04d-%02d-%02d)\n", verb, event.ID, event.Title, event.Year, event.Month, event.Day)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.edit, "edit", "", "Id of the event to edit")
	f.StringVar(&flags.title, "title", "", "Event title")
	f.StringVar(&flags.description, "description", "", "Event description")
	f.StringVar(&flags.source, "source", "", "Source link")
	f.StringVar(&flags.image, "image", "", "Image URL")
	f.IntVar(&flags.year, "year", 0, "Year")
	f.IntVar(&flags.month, "month", 0, "Month (1-12)")
	f.IntVar(&flags.day, "day", 0, "Day of month")
	f.StringArrayVar(&flags.categories, "category", nil, "CATEGORY=relationship (may be repeated)")
	f.IntSliceVar(&flags.remove, "remove", nil, "Positions of existing category rows to drop")
	return cmd
}

// apply copies the set flags onto the loaded form.
func (f submitFlags) apply(cmd *cobra.Command, form *eventform.Form) error {
	changed := cmd.Flags().Changed
	d := &form.Draft
	if changed("title") {
		d.Title = f.title
	}
	if changed("description") {
		d.Description = f.description
	}
	if changed("source") {
		d.SourceLink = f.source
	}
	if changed("image") {
		d.ImageURL = f.image
	}
	if changed("year") {
		d.Year = f.year
	}
	if changed("month") {
		d.Month = f.month
	}
	if changed("day") {
		d.Day = f.day
	}

	if d.Categories == nil {
		d.Categories = eventform.NewAssignmentSet()
	}
	// Remove from the highest position down so earlier indexes stay valid.
	positions := append([]int(nil), f.remove...)
	sort.Sort(sort.Reverse(sort.IntSlice(positions)))
	for _, i := range positions {
		if err := d.Categories.RemoveAt(i); err != nil {
			return err
		}
	}
	for _, raw := range f.categories {
		ref, relationship, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("category %q must be CATEGORY=relationship", raw)
		}
		row := d.Categories.Add()
		if err := d.Categories.Set(row, resolveCategory(form.Catalog, ref), relationship); err != nil {
			return err
		}
	}
	return nil
}

func resolveCategory(catalog []models.Category, ref string) string {
	ref = strings.TrimSpace(ref)
	for _, c := range catalog {
		if c.ID == ref || strings.EqualFold(c.Name, ref) {
			return c.ID
		}
	}
	return ref
}

func printValidation(w io.Writer, errs eventform.ValidationErrors) {
	for _, fe := range errs {
		fmt.Fprintf(w, "  %s: %s\n", fe.Field, fe.Message)
	}
}
