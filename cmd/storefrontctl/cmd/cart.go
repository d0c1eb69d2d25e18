package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

func newCartCmd(a *app) *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit your shopping cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			cart, err := api.Cart(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, cart, func(w io.Writer) {
				if len(cart.Items) == 0 {
					fmt.Fprintln(w, "Your cart is empty.")
					return
				}
				row(w, "ITEM", "PRODUCT", "NAME", "QTY", "PRICE", "TOTAL")
				for _, it := range cart.Items {
					row(w, it.ID, it.Product.ID, it.Product.Name, it.Quantity, it.Product.Price, it.TotalPrice)
				}
				fmt.Fprintf(w, "\n%d items\ttotal %s\n", cart.ItemCount, cart.TotalAmount)
			})
		},
	}

	var quantity int
	addCmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product")
			if err != nil {
				return err
			}
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if err := api.AddToCart(cmd.Context(), id, quantity); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d x product %d to the cart.\n", quantity, id)
			return nil
		},
	}
	addCmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "number of units")

	updateCmd := &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Change the quantity of a cart item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "cart item")
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if err := api.UpdateCartItem(cmd.Context(), id, qty); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cart item %d set to %d.\n", id, qty)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove an item from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "cart item")
			if err != nil {
				return err
			}
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if err := api.RemoveCartItem(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cart item %d removed.\n", id)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if err := api.ClearCart(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared.")
			return nil
		},
	}

	cartCmd.AddCommand(addCmd, updateCmd, removeCmd, clearCmd)
	return cartCmd
}
