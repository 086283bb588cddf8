package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"citizen-card-cli/app"
	"citizen-card-cli/model"
	"citizen-card-cli/store"
)

var (
	movieCategory string
	movieSearch   string
	movieSort     string
	movieOrder    string
	moviePage     int
	movieReset    bool
)

var moviesCmd = &cobra.Command{
	Use:   "movies",
	Short: "List movies now showing",
	Long: `List movies now showing. Filters are remembered between runs,
use --reset to clear them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/movies"); err != nil {
				return err
			}
			filters := a.Movies.Filters()
			if movieReset {
				filters = store.MovieFilters{}
			}
			if cmd.Flags().Changed("category") {
				id, err := categoryID(a.Movies.Categories(), movieCategory)
				if err != nil {
					return err
				}
				filters.CategoryID = id
			}
			// A new keyword starts from the first page unless a page is asked for.
			search := cmd.Flags().Changed("search") && moviePage == 0
			if cmd.Flags().Changed("search") && !search {
				filters.Keyword = movieSearch
			}
			if cmd.Flags().Changed("sort") {
				filters.SortBy = movieSort
			}
			if cmd.Flags().Changed("order") {
				filters.Order = movieOrder
			}
			a.Movies.SetFilters(filters)
			if moviePage > 0 {
				a.Movies.SetPage(moviePage)
			}
			fetch := a.Movies.FetchMovies
			if search {
				fetch = func(ctx context.Context) error { return a.Movies.Search(ctx, movieSearch) }
			}
			if err := fetch(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			movies := a.Movies.FilteredMovies()
			if len(movies) == 0 {
				fmt.Fprintln(out, "No movies match these filters.")
				return nil
			}
			renderMovies(out, movies)
			p := a.Movies.Pagination()
			fmt.Fprintf(out, "page %d, %d movies in total\n", p.Page, p.Total)
			return nil
		})
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List movie categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			t := newTable(cmd.OutOrStdout(), table.Row{"ID", "Category", "Movies", "Description"})
			for _, c := range a.Movies.Categories() {
				t.AppendRow(table.Row{c.ID, c.Name, c.MovieCount, c.Description})
			}
			t.Render()
			return nil
		})
	},
}

var movieCmd = &cobra.Command{
	Use:   "movie <id>",
	Short: "Show a movie and its upcoming showings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/movies/"+args[0]); err != nil {
				return err
			}
			if err := a.Movies.FetchMovie(ctx, args[0]); err != nil {
				return err
			}
			m, _ := a.Movies.CurrentMovie()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s, %d min, rated %.1f)\n", m.Name, m.CategoryName, m.Duration, m.Rating)
			if m.Description != "" {
				fmt.Fprintln(out, m.Description)
			}
			fmt.Fprintln(out)
			if len(m.Showings) == 0 {
				fmt.Fprintln(out, "No upcoming showings.")
				return nil
			}
			renderShowings(out, m.Showings)
			return nil
		})
	},
}

func init() {
	moviesCmd.Flags().StringVarP(&movieCategory, "category", "c", "", "category name or id, empty for all")
	moviesCmd.Flags().StringVarP(&movieSearch, "search", "s", "", "search keyword")
	moviesCmd.Flags().StringVar(&movieSort, "sort", "", "sort by name, date or category")
	moviesCmd.Flags().StringVar(&movieOrder, "order", "", "asc or desc")
	moviesCmd.Flags().IntVarP(&moviePage, "page", "p", 0, "page number")
	moviesCmd.Flags().BoolVar(&movieReset, "reset", false, "clear remembered filters")

	rootCmd.AddCommand(moviesCmd, categoriesCmd, movieCmd)
}

func categoryID(categories []model.Category, nameOrID string) (string, error) {
	if nameOrID == "" {
		return "", nil
	}
	for _, c := range categories {
		if c.ID.String() == nameOrID || strings.EqualFold(c.Name, nameOrID) {
			return c.ID.String(), nil
		}
	}
	return "", fmt.Errorf("unknown category %q", nameOrID)
}
