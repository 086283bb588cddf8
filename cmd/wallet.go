package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"citizen-card-cli/app"
	"citizen-card-cli/model"
	"citizen-card-cli/service"
	"citizen-card-cli/store"
)

var (
	topUpMethod string

	payOrder   string
	payAmount  float64
	payPurpose string

	refundAmount float64
	refundReason string

	txType  string
	txFrom  string
	txTo    string
	txSort  string
	txOrder string
	txPage  int
	txLimit int
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show your e-wallet balance and latest transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/wallet"); err != nil {
				return err
			}
			if err := a.Wallet.Refresh(ctx); err != nil {
				return err
			}
			info, _ := a.Wallet.Info()
			card := a.Wallet.CardInfo()
			out := cmd.OutOrStdout()
			t := newTable(out, nil)
			t.AppendRows(details{
				{"Balance", money(info.Balance)},
				{"Card", maskCard(card.CardNumber)},
				{"Card type", card.CardType},
				{"Status", info.Status},
				{"Updated", when(info.LastUpdated)},
			}.rows())
			t.Render()

			if recent := a.Wallet.RecentTransactions(); len(recent) > 0 {
				fmt.Fprintln(out, "\nRecent transactions")
				renderTransactions(out, recent)
			}
			return nil
		})
	},
}

var topUpCmd = &cobra.Command{
	Use:   "topup <amount>",
	Short: "Add funds to your wallet (1 to 10000)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/wallet/topup"); err != nil {
				return err
			}
			tx, err := a.Wallet.TopUp(ctx, amount, topUpMethod)
			if tx.TransactionID == "" {
				return err
			}
			if err != nil {
				a.ReportError("refresh wallet", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Topped up %s, balance %s.\n", money(tx.Amount), money(a.Wallet.CurrentBalance()))
			return nil
		})
	},
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Pay an order from your wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.ValidateAmount(payAmount); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/wallet"); err != nil {
				return err
			}
			purpose := payPurpose
			if purpose == "" {
				purpose = "Order " + payOrder
			}
			tx, err := a.Wallet.Pay(ctx, model.PaymentRequest{Amount: payAmount, Purpose: purpose, OrderID: payOrder})
			if tx.TransactionID == "" {
				return err
			}
			if err != nil {
				a.ReportError("refresh wallet", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paid %s, transaction %s. Balance %s.\n", money(tx.Amount), tx.TransactionID, money(a.Wallet.CurrentBalance()))
			return nil
		})
	},
}

var refundCmd = &cobra.Command{
	Use:   "refund <transaction-id>",
	Short: "Refund a payment back to your wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/wallet"); err != nil {
				return err
			}
			amount := refundAmount
			if amount == 0 {
				if err := a.Wallet.FetchTransaction(ctx, args[0]); err != nil {
					return err
				}
				original, _ := a.Wallet.CurrentTransaction()
				amount = original.Amount
			}
			reason := refundReason
			if reason == "" {
				r, err := promptText("Reason", "", required)
				if err != nil {
					return err
				}
				reason = r
			}
			tx, err := a.Wallet.Refund(ctx, model.RefundRequest{TransactionID: args[0], Amount: amount, Reason: reason})
			if tx.TransactionID == "" {
				return err
			}
			if err != nil {
				a.ReportError("refresh wallet", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refunded %s, balance %s.\n", money(tx.Amount), money(a.Wallet.CurrentBalance()))
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List wallet transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDate(txFrom)
		if err != nil {
			return err
		}
		to, err := parseDate(txTo)
		if err != nil {
			return err
		}
		if !to.IsZero() {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/wallet/history"); err != nil {
				return err
			}
			filters := store.TransactionFilters{
				Type:      strings.ToUpper(txType),
				StartDate: from,
				EndDate:   to,
				SortBy:    txSort,
				Order:     txOrder,
			}
			a.Wallet.SetFilters(filters)
			if txLimit > 0 {
				a.Wallet.SetLimit(txLimit)
			}
			if txPage > 0 {
				a.Wallet.SetPage(txPage)
			}
			if err := a.Wallet.FetchTransactions(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			txs := a.Wallet.FilteredTransactions()
			if len(txs) == 0 {
				fmt.Fprintln(out, "No transactions.")
				return nil
			}
			renderTransactions(out, txs)
			p := a.Wallet.Pagination()
			fmt.Fprintf(out, "page %d, %d transactions in total, income %s, spent %s\n",
				p.Page, p.Total, money(a.Wallet.TotalIncome()), money(a.Wallet.TotalExpense()))
			return nil
		})
	},
}

var transactionCmd = &cobra.Command{
	Use:   "transaction <id>",
	Short: "Show a wallet transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/wallet/history"); err != nil {
				return err
			}
			if err := a.Wallet.FetchTransaction(ctx, args[0]); err != nil {
				return err
			}
			tx, _ := a.Wallet.CurrentTransaction()
			t := newTable(cmd.OutOrStdout(), nil)
			t.AppendRows(details{
				{"Transaction", tx.TransactionID.String()},
				{"Type", tx.Type},
				{"Amount", money(tx.Amount)},
				{"Balance after", money(tx.Balance)},
				{"Description", tx.Description},
				{"Order", tx.OrderID},
				{"Status", tx.Status},
				{"Date", when(tx.CreatedAt)},
			}.rows())
			t.Render()
			return nil
		})
	},
}

func init() {
	topUpCmd.Flags().StringVarP(&topUpMethod, "method", "m", "card", "payment method")

	payCmd.Flags().StringVar(&payOrder, "order", "", "order or booking id")
	payCmd.Flags().Float64Var(&payAmount, "amount", 0, "amount to pay")
	payCmd.Flags().StringVar(&payPurpose, "purpose", "", "what the payment is for")
	_ = payCmd.MarkFlagRequired("order")
	_ = payCmd.MarkFlagRequired("amount")

	refundCmd.Flags().Float64Var(&refundAmount, "amount", 0, "amount to refund, the full payment by default")
	refundCmd.Flags().StringVar(&refundReason, "reason", "", "why the refund is requested")

	historyCmd.Flags().StringVarP(&txType, "type", "t", "", "topup, payment or refund")
	historyCmd.Flags().StringVar(&txFrom, "from", "", "first day (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&txTo, "to", "", "last day (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&txSort, "sort", "", "sort by time or amount")
	historyCmd.Flags().StringVar(&txOrder, "order", "", "asc or desc")
	historyCmd.Flags().IntVarP(&txPage, "page", "p", 0, "page number")
	historyCmd.Flags().IntVar(&txLimit, "limit", 0, "transactions per page")

	walletCmd.AddCommand(topUpCmd, payCmd, refundCmd, historyCmd, transactionCmd)
	rootCmd.AddCommand(walletCmd)
}

func parseAmount(s string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return amount, service.ValidateAmount(amount)
}
