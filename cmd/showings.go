package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"citizen-card-cli/app"
	"citizen-card-cli/model"
)

var showingDate string

var showingsCmd = &cobra.Command{
	Use:   "showings [movie-id]",
	Short: "List the showings of a movie",
	Long: `List the showings of a movie ordered by time.
Without a movie id you pick one from the current movie list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDate(showingDate)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			movieID := ""
			if len(args) == 1 {
				movieID = args[0]
			} else {
				if err := a.Movies.FetchMovies(ctx); err != nil {
					return err
				}
				if movieID, err = promptSelectMovie(a.Movies.Movies()); err != nil {
					return err
				}
			}
			if err := a.Movies.FetchShowings(ctx, movieID, date); err != nil {
				return err
			}
			showings := a.Movies.Showings()
			if len(showings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No showings found.")
				return nil
			}
			renderShowings(cmd.OutOrStdout(), showings)
			return nil
		})
	},
}

var seatsCmd = &cobra.Command{
	Use:   "seats <showing-id>",
	Short: "Show the seat map of a showing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Movies.FetchSeatMap(ctx, args[0]); err != nil {
				return err
			}
			seatMap, _ := a.Movies.SeatMap()
			renderSeatMap(cmd.OutOrStdout(), seatMap, nil)
			return nil
		})
	},
}

func init() {
	showingsCmd.Flags().StringVarP(&showingDate, "date", "d", "", "only showings on this day (YYYY-MM-DD)")
	rootCmd.AddCommand(showingsCmd, seatsCmd)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func promptSelectMovie(movies []model.Movie) (string, error) {
	if len(movies) == 0 {
		return "", errors.New("no movies to choose from")
	}
	movieIDByName := make(map[string]string, len(movies))
	for _, m := range movies {
		movieIDByName[m.Name] = m.ID.String()
	}
	names := maps.Keys(movieIDByName)
	sort.Strings(names)

	selectMovie := promptui.Select{
		Label: "Select Movie",
		Items: names,
		Size:  10,
	}
	_, name, err := selectMovie.Run()
	if err != nil {
		return "", err
	}
	return movieIDByName[name], nil
}

func promptSelectShowing(showings []model.Showing) (string, error) {
	if len(showings) == 0 {
		return "", errors.New("no showings to choose from")
	}
	showingIDByLabel := make(map[string]string, len(showings))
	for _, s := range showings {
		label := fmt.Sprintf("%s  %s  (%d seats left)", when(s.ShowTime), s.VenueName, s.AvailableSeats)
		showingIDByLabel[label] = s.ID.String()
	}
	labels := maps.Keys(showingIDByLabel)
	sort.Strings(labels)

	selectShowing := promptui.Select{
		Label: "Select Showing",
		Items: labels,
		Size:  10,
	}
	_, label, err := selectShowing.Run()
	if err != nil {
		return "", err
	}
	return showingIDByLabel[label], nil
}
