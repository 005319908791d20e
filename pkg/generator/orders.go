// pkg/generator/orders.go
package generator

import (
	"strconv"
	"time"
)

// hourWeights skews order times toward evenings, peaking at 19:00.
var hourWeights = []int{
	2, 1, 1, 1, 2, 3, 5, 7, 8, 10, 12, 15,
	18, 20, 22, 24, 20, 25, 30, 35, 30, 25, 20, 15,
}

var paymentMethods = []string{"UPI", "Credit Card", "Debit Card", "Cash on Delivery", "Net Banking"}
var paymentWeights = []int{50, 20, 15, 10, 5}

var orderStatuses = []string{"Delivered", "Shipped", "Processing", "Cancelled"}
var statusWeights = []int{75, 15, 5, 5}

var quantityWeights = []int{50, 25, 15, 7, 3}

var orderHeader = []string{
	"order_id", "customer_id", "product_id", "quantity", "unit_price",
	"total_amount", "order_date", "payment_method", "order_status",
}

// Order is one synthetic order row.
type Order struct {
	ID            int64
	CustomerID    int64
	ProductID     int64
	Quantity      int
	UnitPrice     float64
	TotalAmount   float64
	Date          time.Time
	PaymentMethod string
	Status        string
}

// Orders generates orders over the trailing 180 days. Customers are
// split into segments by position: the first 20% take half the order
// volume, the next 50% take 40%, and the long tail shares the rest.
func (g *Generator) Orders(customers []Customer, products []Product) []Order {
	if len(customers) == 0 || len(products) == 0 {
		return nil
	}

	buyers := g.assignBuyers(customers)
	start := g.now.AddDate(0, 0, -180)
	dayRange := 181

	orders := make([]Order, 0, g.cfg.Orders)
	for i := 0; i < g.cfg.Orders; i++ {
		product := products[g.rng.Intn(len(products))]
		quantity := 1 + g.weighted(quantityWeights)

		day := start.AddDate(0, 0, g.rng.Intn(dayRange))
		orderedAt := time.Date(day.Year(), day.Month(), day.Day(),
			g.weighted(hourWeights), g.rng.Intn(60), g.rng.Intn(60), 0, day.Location())

		orders = append(orders, Order{
			ID:            g.orderBase + int64(i),
			CustomerID:    buyers[i],
			ProductID:     product.ID,
			Quantity:      quantity,
			UnitPrice:     product.Price,
			TotalAmount:   round2(float64(quantity) * product.Price),
			Date:          orderedAt,
			PaymentMethod: paymentMethods[g.weighted(paymentWeights)],
			Status:        orderStatuses[g.weighted(statusWeights)],
		})
	}
	return orders
}

// assignBuyers builds the shuffled customer assignment for every order
// according to the segment volumes.
func (g *Generator) assignBuyers(customers []Customer) []int64 {
	n := len(customers)
	ids := make([]int64, n)
	for i, c := range customers {
		ids[i] = c.ID
	}

	vip := segment(ids, 0, n*2/10)
	regular := segment(ids, n*2/10, n*7/10)
	occasional := segment(ids, n*7/10, n)

	vipOrders := g.cfg.Orders * 5 / 10
	regularOrders := g.cfg.Orders * 4 / 10
	occasionalOrders := g.cfg.Orders - vipOrders - regularOrders

	buyers := make([]int64, 0, g.cfg.Orders)
	for i := 0; i < vipOrders; i++ {
		buyers = append(buyers, vip[g.rng.Intn(len(vip))])
	}
	for i := 0; i < regularOrders; i++ {
		buyers = append(buyers, regular[g.rng.Intn(len(regular))])
	}
	for i := 0; i < occasionalOrders; i++ {
		buyers = append(buyers, occasional[g.rng.Intn(len(occasional))])
	}

	g.rng.Shuffle(len(buyers), func(i, j int) {
		buyers[i], buyers[j] = buyers[j], buyers[i]
	})
	return buyers
}

// segment slices [from, to) out of ids, falling back to the whole list
// when the customer count is too small to populate the band.
func segment(ids []int64, from, to int) []int64 {
	if from >= to || from >= len(ids) {
		return ids
	}
	if to > len(ids) {
		to = len(ids)
	}
	return ids[from:to]
}

func orderRows(orders []Order) [][]string {
	rows := make([][]string, len(orders))
	for i, o := range orders {
		rows[i] = []string{
			strconv.FormatInt(o.ID, 10),
			strconv.FormatInt(o.CustomerID, 10),
			strconv.FormatInt(o.ProductID, 10),
			strconv.Itoa(o.Quantity),
			strconv.FormatFloat(o.UnitPrice, 'f', 2, 64),
			strconv.FormatFloat(o.TotalAmount, 'f', 2, 64),
			o.Date.Format("2006-01-02 15:04:05"),
			o.PaymentMethod,
			o.Status,
		}
	}
	return rows
}
