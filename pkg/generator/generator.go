// pkg/generator/generator.go
package generator

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
)

// Config controls how much synthetic data one run produces. A zero
// Seed derives one from the clock so repeated runs emit different,
// non-colliding ID ranges.
type Config struct {
	Customers int
	Products  int
	Orders    int
	Seed      int64
	OutDir    string
}

// Summary reports what one generation run produced.
type Summary struct {
	Seed      int64
	Customers int
	Products  int
	Orders    int
	Files     []string
	Elapsed   time.Duration
}

// Generator produces the three warehouse source files with realistic
// Indian e-commerce distributions. All randomness flows from one
// seeded source, so a fixed seed reproduces the exact same files.
//
// IDs are offset by the seed so consecutive runs with different seeds
// land in different ranges and upsert as fresh rows instead of
// rewriting the previous run.
type Generator struct {
	cfg    Config
	seed   int64
	faker  *gofakeit.Faker
	rng    *rand.Rand
	logger *zap.Logger
	now    time.Time

	customerBase int64
	productBase  int64
	orderBase    int64
}

// New creates a generator. The seed fixes both the ID ranges and every
// sampled value.
func New(cfg Config, logger *zap.Logger) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().Unix() % 100000
	}

	return &Generator{
		cfg:    cfg,
		seed:   seed,
		faker:  gofakeit.New(uint64(seed)),
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger.Named("generator"),
		now:    time.Now(),

		// Offsets keep ID ranges disjoint across seeds: customers in
		// steps of 10000, products of 5000, orders of 100.
		customerBase: (seed%100)*10000 + 1001,
		productBase:  (seed%20)*5000 + 2001,
		orderBase:    (seed%1000)*100 + 3001,
	}
}

// WithNow pins the reference time the date windows hang off. Dates are
// drawn from the 730 days before it for registrations and the 180 days
// before it for orders.
func (g *Generator) WithNow(now time.Time) *Generator {
	g.now = now
	return g
}

// GenerateAll produces customers, products, and orders and writes each
// to a CSV file under the configured output directory.
func (g *Generator) GenerateAll() (*Summary, error) {
	start := time.Now()
	g.logger.Info("Generating synthetic data",
		zap.Int64("seed", g.seed),
		zap.Int("customers", g.cfg.Customers),
		zap.Int("products", g.cfg.Products),
		zap.Int("orders", g.cfg.Orders),
		zap.Int64("customerIDBase", g.customerBase),
		zap.Int64("productIDBase", g.productBase),
		zap.Int64("orderIDBase", g.orderBase))

	customers := g.Customers()
	products := g.Products()
	orders := g.Orders(customers, products)

	if err := os.MkdirAll(g.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	summary := &Summary{
		Seed:      g.seed,
		Customers: len(customers),
		Products:  len(products),
		Orders:    len(orders),
	}

	writers := []struct {
		name   string
		header []string
		rows   func() [][]string
	}{
		{"customers.csv", customerHeader, func() [][]string { return customerRows(customers) }},
		{"products.csv", productHeader, func() [][]string { return productRows(products) }},
		{"orders.csv", orderHeader, func() [][]string { return orderRows(orders) }},
	}

	for _, w := range writers {
		path := filepath.Join(g.cfg.OutDir, w.name)
		rows := w.rows()
		if err := writeCSV(path, w.header, rows); err != nil {
			return nil, err
		}
		summary.Files = append(summary.Files, path)
		g.logger.Info("Wrote source file",
			zap.String("path", path),
			zap.Int("rows", len(rows)))
	}

	summary.Elapsed = time.Since(start)
	g.logger.Info("Generation complete",
		zap.Int("customers", summary.Customers),
		zap.Int("products", summary.Products),
		zap.Int("orders", summary.Orders),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// weighted picks an index with probability proportional to its weight.
func (g *Generator) weighted(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	n := g.rng.Intn(total)
	for i, w := range weights {
		if n < w {
			return i
		}
		n -= w
	}
	return len(weights) - 1
}

// uniform returns a value in [min, max) from the seeded source.
func (g *Generator) uniform(min, max float64) float64 {
	return min + g.rng.Float64()*(max-min)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header of %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows of %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return file.Close()
}
