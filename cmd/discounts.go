package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"citizen-card-cli/app"
	"citizen-card-cli/model"
	"citizen-card-cli/store"
)

var (
	discountType     string
	discountCategory string
	discountStatus   string
	discountSort     string
	discountOrder    string
	discountPage     int
	discountMine     bool

	useBooking string
	useAmount  float64
)

var discountsCmd = &cobra.Command{
	Use:   "discounts",
	Short: "List discounts, or only the ones your card can use with --mine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/discounts"); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if discountMine {
				if err := a.Discounts.FetchMemberDiscounts(ctx); err != nil {
					return err
				}
				mine := a.Discounts.MemberDiscounts()
				if len(mine) == 0 {
					fmt.Fprintln(out, "No discounts available for your card right now.")
					return nil
				}
				renderDiscounts(out, mine, time.Now())
				return nil
			}

			a.Discounts.SetFilters(store.DiscountFilters{
				Type:     strings.ToUpper(discountType),
				Category: strings.ToUpper(discountCategory),
				Status:   discountStatus,
				SortBy:   discountSort,
				Order:    discountOrder,
			})
			if discountPage > 0 {
				a.Discounts.SetPage(discountPage)
			}
			if err := a.Discounts.FetchDiscounts(ctx); err != nil {
				return err
			}
			discounts := a.Discounts.FilteredDiscounts()
			if len(discounts) == 0 {
				fmt.Fprintln(out, "No discounts match these filters.")
				return nil
			}
			renderDiscounts(out, discounts, time.Now())
			p := a.Discounts.Pagination()
			fmt.Fprintf(out, "page %d, %d discounts in total, %d active\n", p.Page, p.Total, len(a.Discounts.ActiveDiscounts()))
			return nil
		})
	},
}

var discountCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a discount and whether you can use it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/discounts/"+args[0]); err != nil {
				return err
			}
			if err := a.Discounts.FetchDiscount(ctx, args[0]); err != nil {
				return err
			}
			check, err := a.Discounts.CheckAvailability(ctx, args[0])
			if err != nil {
				return err
			}
			d, _ := a.Discounts.CurrentDiscount()
			availability := "available"
			if !check.IsAvailable {
				availability = "not available"
				if check.Reason != "" {
					availability += ": " + check.Reason
				}
			}
			rows := details{
				{"Discount", d.Name},
				{"Description", d.Description},
				{"Value", discountValue(d)},
				{"Category", d.Category},
				{"Minimum purchase", money(d.MinPurchase)},
				{"Valid", when(d.ValidFrom) + " to " + when(d.ValidUntil)},
				{"Uses", remaining(d)},
				{"For you", availability},
			}
			if d.Terms != "" {
				rows = append(rows, [2]string{"Terms", d.Terms})
			}
			t := newTable(cmd.OutOrStdout(), nil)
			t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 50}})
			t.AppendRows(rows.rows())
			t.Render()
			return nil
		})
	},
}

var useDiscountCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Redeem a discount against a purchase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/discounts/"+args[0]); err != nil {
				return err
			}
			if err := a.Discounts.FetchDiscount(ctx, args[0]); err != nil {
				return err
			}
			if !a.Discounts.CanUseDiscount(args[0]) {
				return fmt.Errorf("discount %s cannot be used right now", args[0])
			}
			usage, err := a.Discounts.UseDiscount(ctx, args[0], model.DiscountUseRequest{BookingID: model.ID(useBooking), Amount: useAmount})
			if usage.ID == "" {
				return err
			}
			if err != nil {
				a.ReportError("refresh discounts", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Used %s, saved %s.\n", usage.DiscountName, money(usage.Amount))
			if d, ok := a.Discounts.CurrentDiscount(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Uses: %s\n", remaining(d))
			}
			return nil
		})
	},
}

var discountHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List the discounts you have used",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/discounts"); err != nil {
				return err
			}
			if err := a.Discounts.FetchUsageHistory(ctx); err != nil {
				return err
			}
			usages := a.Discounts.UsageHistory()
			if len(usages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No discounts used yet.")
				return nil
			}
			t := newTable(cmd.OutOrStdout(), table.Row{"Discount", "Saved", "Status", "Date"})
			t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})
			for _, u := range usages {
				t.AppendRow(table.Row{u.DiscountName, money(u.Amount), u.Status, when(u.UsageTime)}, rowConfigAutoMerge)
			}
			t.Render()
			return nil
		})
	},
}

func init() {
	discountsCmd.Flags().BoolVar(&discountMine, "mine", false, "only discounts your card can use now")
	discountsCmd.Flags().StringVarP(&discountType, "type", "t", "", "percentage or fixed")
	discountsCmd.Flags().StringVarP(&discountCategory, "category", "c", "", "general, student or senior")
	discountsCmd.Flags().StringVar(&discountStatus, "status", "", "all, active or expired")
	discountsCmd.Flags().StringVar(&discountSort, "sort", "", "sort by validUntil, usageCount or name")
	discountsCmd.Flags().StringVar(&discountOrder, "order", "", "asc or desc")
	discountsCmd.Flags().IntVarP(&discountPage, "page", "p", 0, "page number")

	useDiscountCmd.Flags().StringVar(&useBooking, "booking", "", "booking the discount applies to")
	useDiscountCmd.Flags().Float64Var(&useAmount, "amount", 0, "purchase amount")

	discountsCmd.AddCommand(discountCmd, useDiscountCmd, discountHistoryCmd)
	rootCmd.AddCommand(discountsCmd)
}
