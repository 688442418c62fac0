package state

import (
	"sort"
	"strings"

	"securemarket/internal/models"

	"github.com/shopspring/decimal"
)

// Catalog sort orders
const (
	SortByName      = "name"
	SortByPriceLow  = "price-low"
	SortByPriceHigh = "price-high"
	SortByRating    = "rating"
)

var (
	shippingFee           = decimal.RequireFromString("9.99")
	freeShippingThreshold = decimal.NewFromInt(100)
)

// CatalogQuery filters and orders the product list
type CatalogQuery struct {
	Search   string
	Category string
	SortBy   string
}

// QueryCatalog returns the products matching q in the requested order.
// The input slice is not modified.
func QueryCatalog(products []models.Product, q CatalogQuery) []models.Product {
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Title), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		out = append(out, p)
	}

	switch q.SortBy {
	case SortByPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortByPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	case SortByRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	}
	return out
}

// FindProduct returns the first product with the given id
func FindProduct(products []models.Product, id string) (models.Product, bool) {
	idx := productIndex(products, id)
	if idx < 0 {
		return models.Product{}, false
	}
	return products[idx], true
}

// CartSummary holds the checkout totals of a cart
type CartSummary struct {
	Items        int             `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Shipping     decimal.Decimal `json:"shipping"`
	Total        decimal.Decimal `json:"total"`
	FreeShipping bool            `json:"freeShipping"`
}

// SummarizeCart computes subtotal, shipping and total. Shipping is free above 100
// and nothing is charged for an empty cart.
func SummarizeCart(cart []models.CartItem) CartSummary {
	summary := CartSummary{
		Subtotal: decimal.Zero,
		Shipping: decimal.Zero,
	}
	for _, item := range cart {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		summary.Subtotal = summary.Subtotal.Add(line)
		summary.Items += item.Quantity
	}
	summary.Subtotal = summary.Subtotal.Round(2)

	if summary.Items > 0 {
		if summary.Subtotal.GreaterThan(freeShippingThreshold) {
			summary.FreeShipping = true
		} else {
			summary.Shipping = shippingFee
		}
	}
	summary.Total = summary.Subtotal.Add(summary.Shipping)
	return summary
}

// Stats are the admin dashboard counters
type Stats struct {
	Products   int            `json:"products"`
	Users      int            `json:"users"`
	Active     int            `json:"activeUsers"`
	Admins     int            `json:"admins"`
	Messages   int            `json:"messages"`
	ByCategory map[string]int `json:"byCategory"`
}

// ComputeStats counts catalog and user figures of a snapshot
func ComputeStats(s models.Snapshot) Stats {
	st := Stats{
		Products: len(s.Products),
		Users:    len(s.Users),
		Messages: len(s.Messages),
		ByCategory: map[string]int{
			models.CategoryDigital:  0,
			models.CategoryPhysical: 0,
			models.CategoryService:  0,
		},
	}
	for _, u := range s.Users {
		if u.IsActive {
			st.Active++
		}
		if u.IsAdmin {
			st.Admins++
		}
	}
	for _, p := range s.Products {
		st.ByCategory[p.Category]++
	}
	return st
}
