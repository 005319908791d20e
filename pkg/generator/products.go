// pkg/generator/products.go
package generator

import (
	"fmt"
	"strconv"
	"strings"
)

// priceRange bounds a subcategory's uniform price draw in rupees.
type priceRange struct {
	Min float64
	Max float64
}

// categoryDef fixes a category's subcategories in a stable order so a
// seed always yields the same catalog.
type categoryDef struct {
	Name          string
	Subcategories []string
}

var productCategories = []categoryDef{
	{"Electronics", []string{"Smartphones", "Laptops", "Tablets", "Headphones", "Smart Watches"}},
	{"Fashion", []string{"Mens Clothing", "Womens Clothing", "Kids Clothing", "Footwear", "Accessories"}},
	{"Home & Kitchen", []string{"Furniture", "Kitchen Appliances", "Home Decor", "Bedding", "Storage"}},
}

var priceRanges = map[string]priceRange{
	"Smartphones":        {8000, 150000},
	"Laptops":            {25000, 120000},
	"Tablets":            {10000, 80000},
	"Headphones":         {500, 25000},
	"Smart Watches":      {2000, 50000},
	"Mens Clothing":      {500, 5000},
	"Womens Clothing":    {600, 8000},
	"Kids Clothing":      {300, 2000},
	"Footwear":           {800, 8000},
	"Accessories":        {300, 5000},
	"Furniture":          {3000, 50000},
	"Kitchen Appliances": {1500, 40000},
	"Home Decor":         {200, 5000},
	"Bedding":            {500, 8000},
	"Storage":            {300, 5000},
}

var suppliers = []string{
	"Tech Supplies India", "Fashion Hub Pvt Ltd", "Home Essentials Co",
	"Elite Electronics", "Style Distributors", "Kitchen World",
	"Mega Suppliers", "Prime Products", "Smart Solutions Ltd",
}

var productVariants = []string{"Pro", "Max", "Plus", "Ultra", "Lite"}

var productHeader = []string{
	"product_id", "product_name", "category", "subcategory", "brand",
	"price", "cost", "stock_quantity", "supplier",
}

// Product is one synthetic catalog row.
type Product struct {
	ID          int64
	Name        string
	Category    string
	Subcategory string
	Brand       string
	Price       float64
	Cost        float64
	Stock       int
	Supplier    string
}

// Products generates an evenly split catalog: the configured count is
// divided across categories and then subcategories, so the result can
// be slightly below the requested count when it does not divide evenly.
func (g *Generator) Products() []Product {
	perCategory := g.cfg.Products / len(productCategories)

	products := make([]Product, 0, g.cfg.Products)
	id := g.productBase

	for _, cat := range productCategories {
		perSubcategory := perCategory / len(cat.Subcategories)

		for _, sub := range cat.Subcategories {
			bounds := priceRanges[sub]

			for i := 0; i < perSubcategory; i++ {
				price := round2(g.uniform(bounds.Min, bounds.Max))

				products = append(products, Product{
					ID:          id,
					Name:        fmt.Sprintf("%s %s", sub, productVariants[g.rng.Intn(len(productVariants))]),
					Category:    cat.Name,
					Subcategory: sub,
					Brand:       strings.Fields(sub)[0],
					Price:       price,
					Cost:        round2(price * g.uniform(0.70, 0.85)),
					Stock:       g.stockFor(cat.Name),
					Supplier:    suppliers[g.rng.Intn(len(suppliers))],
				})
				id++
			}
		}
	}
	return products
}

// stockFor draws stock levels by category: electronics move slowly,
// fashion in bulk.
func (g *Generator) stockFor(category string) int {
	switch category {
	case "Electronics":
		return 20 + g.rng.Intn(181)
	case "Fashion":
		return 50 + g.rng.Intn(451)
	default:
		return 30 + g.rng.Intn(271)
	}
}

func productRows(products []Product) [][]string {
	rows := make([][]string, len(products))
	for i, p := range products {
		rows[i] = []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.Category,
			p.Subcategory,
			p.Brand,
			strconv.FormatFloat(p.Price, 'f', 2, 64),
			strconv.FormatFloat(p.Cost, 'f', 2, 64),
			strconv.Itoa(p.Stock),
			p.Supplier,
		}
	}
	return rows
}
