package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/pilab-dev/cartbuilder/domain"
	"github.com/spf13/cobra"
)

func newOrdersCmd(a *app) *cobra.Command {
	ordersCmd := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"order"},
		Short:   "Place and track orders",
	}
	ordersCmd.AddCommand(
		newOrdersListCmd(a),
		newOrdersGetCmd(a),
		newCheckoutCmd(a),
		newSetStatusCmd(a),
	)
	return ordersCmd
}

func newOrdersListCmd(a *app) *cobra.Command {
	var seller bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your orders, or with --seller the orders containing your products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			list := api.BuyerOrders
			if seller {
				list = api.SellerOrders
			}
			orders, err := list(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, orders, func(w io.Writer) {
				if len(orders) == 0 {
					fmt.Fprintln(w, "No orders.")
					return
				}
				row(w, "ID", "STATUS", "BUYER", "ITEMS", "TOTAL", "CREATED")
				for _, o := range orders {
					row(w, o.ID, o.Status, o.BuyerName, len(o.Items), o.TotalAmount, o.CreatedAt.Format("2006-01-02 15:04"))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&seller, "seller", false, "list orders of your products (sellers only)")
	return cmd
}

func (a *app) renderOrder(cmd *cobra.Command, o *domain.Order) error {
	return a.render(cmd, o, func(w io.Writer) {
		row(w, "ORDER", o.ID)
		row(w, "STATUS", o.Status)
		row(w, "BUYER", o.BuyerName)
		row(w, "SHIP TO", o.ShippingAddress)
		row(w, "TOTAL", o.TotalAmount)
		fmt.Fprintln(w)
		row(w, "PRODUCT", "NAME", "SELLER", "QTY", "PRICE", "TOTAL")
		for _, it := range o.Items {
			row(w, it.Product, it.ProductName, it.SellerName, it.Quantity, it.PriceAtTime, it.TotalPrice)
		}
	})
}

func newOrdersGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order")
			if err != nil {
				return err
			}
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			o, err := api.Order(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.renderOrder(cmd, o)
		},
	}
}

func newCheckoutCmd(a *app) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Turn the cart into an order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if address == "" {
				if address, err = a.prompt(cmd, "Shipping address: "); err != nil {
					return err
				}
			}
			o, err := api.CreateOrder(cmd.Context(), address)
			if err != nil {
				return err
			}
			return a.renderOrder(cmd, o)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "shipping address (prompted when empty)")
	return cmd
}

func newSetStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move an order to another status (sellers only)",
		Long:  "Valid statuses: pending, confirmed, processing, shipped, delivered, cancelled.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order")
			if err != nil {
				return err
			}
			status := domain.OrderStatus(args[1])
			if !status.Valid() {
				return errors.New(cmd.Long)
			}
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			o, err := api.UpdateOrderStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %d is now %s.\n", o.ID, o.Status)
			return nil
		},
	}
}
