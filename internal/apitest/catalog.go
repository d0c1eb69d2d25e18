package apitest

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/cartbuilder/domain"
)

var productSorts = map[string]bool{
	"price": true, "-price": true,
	"name": true, "-name": true,
	"created_at": true, "-created_at": true,
}

// view renders p the way the product serializers do. Callers hold a.mu.
func (a *API) view(p *product) domain.Product {
	out := p.Product
	seller := a.accounts[p.sellerID].user.FullName()
	if seller == "" {
		seller = "Unknown Store"
	}
	out.StoreName = seller
	out.SellerName = seller
	out.PrimaryImage = out.Image
	if out.Images == nil {
		out.Images = []domain.ProductImage{}
	}
	return out
}

func (a *API) listProducts(c echo.Context) error {
	q := c.QueryParams()

	var minPrice, maxPrice *int64
	for name, dst := range map[string]**int64{"min_price": &minPrice, "max_price": &maxPrice} {
		if raw := q.Get(name); raw != "" {
			v, err := parseCents(raw)
			if err != nil {
				return fieldErrors(c, map[string][]string{name: {errInvalidAmount.Error()}})
			}
			*dst = &v
		}
	}
	search := strings.ToLower(q.Get("search"))
	store := strings.ToLower(q.Get("store"))
	inStock := strings.EqualFold(q.Get("in_stock"), "true")

	a.mu.Lock()
	matched := make([]*product, 0, len(a.products))
	for _, p := range a.products {
		if !p.IsActive {
			continue
		}
		seller := strings.ToLower(a.accounts[p.sellerID].user.FullName())
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) &&
			!strings.Contains(seller, search) {
			continue
		}
		if store != "" && !strings.Contains(seller, store) {
			continue
		}
		price, _ := parseCents(p.Price)
		if minPrice != nil && price < *minPrice {
			continue
		}
		if maxPrice != nil && price > *maxPrice {
			continue
		}
		if inStock && p.Stock <= 0 {
			continue
		}
		matched = append(matched, p)
	}
	sortProducts(matched, q.Get("sort"))

	views := make([]domain.Product, len(matched))
	for i, p := range matched {
		views[i] = a.view(p)
		// The list serializer omits the description and gallery.
		views[i].Description = ""
		views[i].Images = nil
	}
	a.mu.Unlock()

	page, err := paginate(c, views)
	if err != nil {
		return detail(c, http.StatusNotFound, "Invalid page.")
	}
	return c.JSON(http.StatusOK, page)
}

func sortProducts(ps []*product, by string) {
	if !productSorts[by] {
		by = "-created_at"
	}
	desc := strings.HasPrefix(by, "-")
	field := strings.TrimPrefix(by, "-")

	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if desc {
			a, b = b, a
		}
		switch field {
		case "price":
			pa, _ := parseCents(a.Price)
			pb, _ := parseCents(b.Price)
			return pa < pb
		case "name":
			return a.Name < b.Name
		}
		return a.seq < b.seq
	})
}

func paginate[T any](c echo.Context, items []T) (*domain.Page[T], error) {
	q := c.QueryParams()
	pageNum := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, echo.ErrNotFound
		}
		pageNum = n
	}
	size := defaultPageSize
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = min(n, maxPageSize)
		}
	}

	start := (pageNum - 1) * size
	if start > 0 && start >= len(items) {
		return nil, echo.ErrNotFound
	}
	end := min(start+size, len(items))

	page := &domain.Page[T]{Count: len(items), Results: items[start:end]}
	if end < len(items) {
		page.Next = pageURL(c, pageNum+1)
	}
	if pageNum > 1 {
		page.Previous = pageURL(c, pageNum-1)
	}
	return page, nil
}

func pageURL(c echo.Context, n int) string {
	req := c.Request()
	q := url.Values{}
	for k, v := range req.URL.Query() {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(n))
	u := url.URL{Scheme: c.Scheme(), Host: req.Host, Path: req.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

func (a *API) productDetail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return detail(c, http.StatusNotFound, "Not found.")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.products[id]
	if !ok || !p.IsActive {
		return detail(c, http.StatusNotFound, "No Product matches the given query.")
	}
	return c.JSON(http.StatusOK, a.view(p))
}

func (a *API) sellerProducts(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	uid := currentUserID(c)
	if !a.accounts[uid].user.IsSeller {
		return fail(c, http.StatusForbidden, "Only sellers can access this endpoint")
	}

	own := make([]*product, 0)
	for _, p := range a.products {
		if p.sellerID == uid {
			own = append(own, p)
		}
	}
	sortProducts(own, "-created_at")

	views := make([]domain.Product, len(own))
	for i, p := range own {
		views[i] = a.view(p)
	}
	return c.JSON(http.StatusOK, views)
}

func validateProduct(in domain.ProductInput, create bool) map[string][]string {
	errs := make(map[string][]string)
	if create && (in.Name == nil || *in.Name == "") {
		errs["name"] = []string{"This field is required."}
	}
	if in.Price == nil {
		if create {
			errs["price"] = []string{"This field is required."}
		}
	} else if cents, err := parseCents(*in.Price); err != nil {
		errs["price"] = []string{errInvalidAmount.Error()}
	} else if cents <= 0 {
		errs["price"] = []string{"Price must be greater than 0"}
	}
	if in.Stock != nil && *in.Stock < 0 {
		errs["stock"] = []string{"Stock cannot be negative"}
	}
	return errs
}

func applyProduct(p *product, in domain.ProductInput) {
	set(&p.Name, in.Name)
	set(&p.Description, in.Description)
	if in.Price != nil {
		cents, _ := parseCents(*in.Price)
		p.Price = formatCents(cents)
	}
	set(&p.Stock, in.Stock)
	set(&p.IsActive, in.IsActive)
}

func (a *API) createProduct(c echo.Context) error {
	uid := currentUserID(c)
	a.mu.Lock()
	isSeller := a.accounts[uid].user.IsSeller
	a.mu.Unlock()
	if !isSeller {
		return fail(c, http.StatusForbidden, "Only sellers can create products")
	}

	var in domain.ProductInput
	if err := c.Bind(&in); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}
	if errs := validateProduct(in, true); len(errs) > 0 {
		return fieldErrors(c, errs)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now().UTC()
	p := &product{sellerID: uid}
	p.ID = a.id()
	p.seq = p.ID
	p.IsActive = true
	p.CreatedAt = now
	p.UpdatedAt = now
	applyProduct(p, in)
	a.products[p.ID] = p
	return c.JSON(http.StatusCreated, a.view(p))
}

// ownProduct resolves the :id product of the current seller. Callers hold a.mu.
func (a *API) ownProduct(c echo.Context, action string) (*product, error) {
	uid := currentUserID(c)
	if !a.accounts[uid].user.IsSeller {
		return nil, fail(c, http.StatusForbidden, "Only sellers can "+action+" products")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, detail(c, http.StatusNotFound, "Not found.")
	}
	p, ok := a.products[id]
	if !ok || p.sellerID != uid {
		return nil, detail(c, http.StatusNotFound, "No Product matches the given query.")
	}
	return p, nil
}

func (a *API) updateProduct(c echo.Context) error {
	var in domain.ProductInput
	if err := c.Bind(&in); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.ownProduct(c, "update")
	if p == nil {
		return err
	}
	if errs := validateProduct(in, false); len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	applyProduct(p, in)
	p.UpdatedAt = a.now().UTC()
	return c.JSON(http.StatusOK, a.view(p))
}

func (a *API) deleteProduct(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.ownProduct(c, "delete")
	if p == nil {
		return err
	}
	delete(a.products, p.ID)
	for uid, lines := range a.carts {
		kept := lines[:0]
		for _, l := range lines {
			if l.productID != p.ID {
				kept = append(kept, l)
			}
		}
		a.carts[uid] = kept
	}
	return c.NoContent(http.StatusNoContent)
}
