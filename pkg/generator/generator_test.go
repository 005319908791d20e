// pkg/generator/generator_test.go
package generator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecompipe/pkg/model"
)

var testNow = time.Date(2025, 11, 7, 12, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T, seed int64) *Generator {
	t.Helper()
	cfg := Config{
		Customers: 100,
		Products:  150,
		Orders:    500,
		Seed:      seed,
		OutDir:    t.TempDir(),
	}
	return New(cfg, zap.NewNop()).WithNow(testNow)
}

func TestHeadersMatchDatasetSchemas(t *testing.T) {
	datasets := model.DefaultDatasets()

	assert.Equal(t, datasets[0].Schema.ColumnNames(), customerHeader)
	assert.Equal(t, datasets[1].Schema.ColumnNames(), productHeader)
	assert.Equal(t, datasets[2].Schema.ColumnNames(), orderHeader)
}

func TestSameSeedReproducesFiles(t *testing.T) {
	cfg := Config{Customers: 50, Products: 60, Orders: 200, Seed: 42}

	cfg.OutDir = t.TempDir()
	first, err := New(cfg, zap.NewNop()).WithNow(testNow).GenerateAll()
	require.NoError(t, err)

	firstDir := cfg.OutDir
	cfg.OutDir = t.TempDir()
	second, err := New(cfg, zap.NewNop()).WithNow(testNow).GenerateAll()
	require.NoError(t, err)

	assert.Equal(t, first.Customers, second.Customers)
	assert.Equal(t, first.Orders, second.Orders)

	for _, name := range []string{"customers.csv", "products.csv", "orders.csv"} {
		a, err := os.ReadFile(filepath.Join(firstDir, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(cfg.OutDir, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, "seeded runs must produce identical %s", name)
	}
}

func TestDifferentSeedsUseDisjointIDRanges(t *testing.T) {
	g1 := newTestGenerator(t, 1)
	g2 := newTestGenerator(t, 2)

	assert.Equal(t, int64(11001), g1.customerBase)
	assert.Equal(t, int64(21001), g2.customerBase)

	first := g1.Customers()
	second := g2.Customers()
	assert.Less(t, first[len(first)-1].ID, second[0].ID)
}

func TestCustomersWithinBounds(t *testing.T) {
	g := newTestGenerator(t, 42)
	customers := g.Customers()
	require.Len(t, customers, 100)

	cities := make(map[string]bool, len(indianCities))
	for _, c := range indianCities {
		cities[c.Name] = true
	}

	earliest := testNow.AddDate(0, 0, -730)
	for i, c := range customers {
		assert.Equal(t, g.customerBase+int64(i), c.ID)
		assert.GreaterOrEqual(t, c.Age, 18)
		assert.LessOrEqual(t, c.Age, 70)
		assert.Regexp(t, `^\+91-[6-9]\d{9}$`, c.Phone)
		assert.Contains(t, c.Email, "@")
		assert.True(t, cities[c.City], "unknown city %s", c.City)
		assert.False(t, c.RegistrationDate.Before(earliest))
		assert.False(t, c.RegistrationDate.After(testNow))
	}
}

func TestProductsSplitAcrossSubcategories(t *testing.T) {
	g := newTestGenerator(t, 42)
	products := g.Products()

	// 150 over 3 categories and 5 subcategories each divides exactly.
	require.Len(t, products, 150)

	perSubcategory := make(map[string]int)
	for _, p := range products {
		perSubcategory[p.Subcategory]++

		bounds := priceRanges[p.Subcategory]
		assert.GreaterOrEqual(t, p.Price, bounds.Min)
		assert.LessOrEqual(t, p.Price, bounds.Max)
		assert.Less(t, p.Cost, p.Price)
		assert.GreaterOrEqual(t, p.Cost, round2(p.Price*0.69))
		assert.Positive(t, p.Stock)
	}

	require.Len(t, perSubcategory, 15)
	for sub, count := range perSubcategory {
		assert.Equal(t, 10, count, "subcategory %s", sub)
	}
}

func TestProductCountTruncatesOnUnevenSplit(t *testing.T) {
	g := New(Config{Customers: 10, Products: 500, Orders: 10, Seed: 7}, zap.NewNop())

	// 500/3 = 166 per category, 166/5 = 33 per subcategory.
	assert.Len(t, g.Products(), 495)
}

func TestOrdersReferenceGeneratedEntities(t *testing.T) {
	g := newTestGenerator(t, 42)
	customers := g.Customers()
	products := g.Products()
	orders := g.Orders(customers, products)
	require.Len(t, orders, 500)

	customerIDs := make(map[int64]bool, len(customers))
	for _, c := range customers {
		customerIDs[c.ID] = true
	}
	productPrice := make(map[int64]float64, len(products))
	for _, p := range products {
		productPrice[p.ID] = p.Price
	}

	earliest := testNow.AddDate(0, 0, -180)
	for i, o := range orders {
		assert.Equal(t, g.orderBase+int64(i), o.ID)
		assert.True(t, customerIDs[o.CustomerID], "order %d references unknown customer %d", o.ID, o.CustomerID)

		price, known := productPrice[o.ProductID]
		require.True(t, known, "order %d references unknown product %d", o.ID, o.ProductID)
		assert.Equal(t, price, o.UnitPrice)

		assert.GreaterOrEqual(t, o.Quantity, 1)
		assert.LessOrEqual(t, o.Quantity, 5)
		assert.Equal(t, round2(float64(o.Quantity)*o.UnitPrice), o.TotalAmount)
		assert.Contains(t, paymentMethods, o.PaymentMethod)
		assert.Contains(t, orderStatuses, o.Status)
		assert.False(t, o.Date.Before(earliest))
	}
}

func TestOrderStatusDistribution(t *testing.T) {
	g := New(Config{Customers: 200, Products: 150, Orders: 4000, Seed: 42}, zap.NewNop()).WithNow(testNow)
	customers := g.Customers()
	products := g.Products()
	orders := g.Orders(customers, products)

	delivered := 0
	for _, o := range orders {
		if o.Status == "Delivered" {
			delivered++
		}
	}

	// Weighted at 75%; allow a generous band for sampling noise.
	rate := float64(delivered) / float64(len(orders))
	assert.Greater(t, rate, 0.68)
	assert.Less(t, rate, 0.82)
}

func TestOrdersSurviveTinyCustomerPool(t *testing.T) {
	g := New(Config{Customers: 3, Products: 150, Orders: 50, Seed: 9}, zap.NewNop()).WithNow(testNow)

	orders := g.Orders(g.Customers(), g.Products())
	assert.Len(t, orders, 50)
}

func TestGenerateAllWritesLoadableFiles(t *testing.T) {
	dir := t.TempDir()
	g := New(Config{Customers: 20, Products: 30, Orders: 40, Seed: 5, OutDir: dir}, zap.NewNop()).WithNow(testNow)

	summary, err := g.GenerateAll()
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.Seed)
	assert.Equal(t, 20, summary.Customers)
	assert.Equal(t, 40, summary.Orders)
	require.Len(t, summary.Files, 3)

	for _, path := range summary.Files {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
