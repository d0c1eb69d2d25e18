package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/pilab-dev/cartbuilder/client"
	"github.com/pilab-dev/cartbuilder/domain"
	"github.com/spf13/cobra"
)

func newProductsCmd(a *app) *cobra.Command {
	productsCmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "Browse the catalog and manage your products",
	}
	productsCmd.AddCommand(
		newProductsListCmd(a),
		newProductsGetCmd(a),
		newProductsMineCmd(a),
		newProductsCreateCmd(a),
		newProductsUpdateCmd(a),
		newProductsDeleteCmd(a),
	)
	return productsCmd
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

func newProductsListCmd(a *app) *cobra.Command {
	var q client.ProductQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			page, err := api.ListProducts(cmd.Context(), q)
			if err != nil {
				return err
			}
			return a.render(cmd, page, func(w io.Writer) {
				productTable(w, page.Results)
				if page.HasNext() {
					next := q.Page + 1
					if next == 1 {
						next = 2
					}
					fmt.Fprintf(w, "\n%d products in total, use --page %d for more\n", page.Count, next)
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Search, "search", "", "search in name, description and store")
	f.StringVar(&q.MinPrice, "min-price", "", "minimum price")
	f.StringVar(&q.MaxPrice, "max-price", "", "maximum price")
	f.StringVar(&q.Store, "store", "", "filter by store name")
	f.BoolVar(&q.InStock, "in-stock", false, "only products in stock")
	f.StringVar(&q.Sort, "sort", "", "sort by price, name or created_at; prefix with - for descending")
	f.IntVar(&q.Page, "page", 0, "page number")
	f.IntVar(&q.PageSize, "page-size", 0, "products per page (max 100)")
	return cmd
}

func productTable(w io.Writer, ps []domain.Product) {
	row(w, "ID", "NAME", "PRICE", "STOCK", "STORE", "ACTIVE")
	for _, p := range ps {
		row(w, p.ID, p.Name, p.Price, p.Stock, p.StoreName, p.IsActive)
	}
}

func newProductsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a product",
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
			p, err := api.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.renderProduct(cmd, p)
		},
	}
}

func (a *app) renderProduct(cmd *cobra.Command, p *domain.Product) error {
	return a.render(cmd, p, func(w io.Writer) {
		row(w, "ID", p.ID)
		row(w, "NAME", p.Name)
		row(w, "PRICE", p.Price)
		row(w, "STOCK", p.Stock)
		row(w, "STORE", p.StoreName)
		row(w, "ACTIVE", p.IsActive)
		if p.Description != "" {
			row(w, "DESCRIPTION", p.Description)
		}
	})
}

func newProductsMineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your products, inactive ones included (sellers only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			ps, err := api.SellerProducts(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, ps, func(w io.Writer) { productTable(w, ps) })
		},
	}
}

// productFlags binds the product fields; only flags the user set end up in
// the input.
type productFlags struct {
	name, description, price string
	stock                    int
	active                   bool
}

func (pf *productFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&pf.name, "name", "", "product name")
	f.StringVar(&pf.description, "description", "", "product description")
	f.StringVar(&pf.price, "price", "", "unit price, e.g. 19.99")
	f.IntVar(&pf.stock, "stock", 0, "units in stock")
	f.BoolVar(&pf.active, "active", true, "whether the product is listed")
}

func (pf *productFlags) input(cmd *cobra.Command) domain.ProductInput {
	var in domain.ProductInput
	f := cmd.Flags()
	if f.Changed("name") {
		in.Name = &pf.name
	}
	if f.Changed("description") {
		in.Description = &pf.description
	}
	if f.Changed("price") {
		in.Price = &pf.price
	}
	if f.Changed("stock") {
		in.Stock = &pf.stock
	}
	if f.Changed("active") {
		in.IsActive = &pf.active
	}
	return in
}

func newProductsCreateCmd(a *app) *cobra.Command {
	var pf productFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a product (sellers only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			p, err := api.CreateProduct(cmd.Context(), pf.input(cmd))
			if err != nil {
				return err
			}
			return a.renderProduct(cmd, p)
		},
	}
	pf.bind(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newProductsUpdateCmd(a *app) *cobra.Command {
	var pf productFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update one of your products; only the given flags are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product")
			if err != nil {
				return err
			}
			in := pf.input(cmd)
			if in == (domain.ProductInput{}) {
				return errors.New("nothing to update, pass at least one field flag")
			}
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			p, err := api.UpdateProduct(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return a.renderProduct(cmd, p)
		},
	}
	pf.bind(cmd)
	return cmd
}

func newProductsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your products",
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
			if err := api.DeleteProduct(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product %d deleted.\n", id)
			return nil
		},
	}
}
