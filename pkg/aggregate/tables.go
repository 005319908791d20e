// pkg/aggregate/tables.go
package aggregate

// Table pairs a summary table with the SQL that creates and rebuilds it.
// Refresh statements repopulate from scratch, so column order in the DDL
// must match the SELECT list exactly.
type Table struct {
	Name    string
	DDL     string
	Refresh string
}

// Tables returns the aggregate tables in refresh order.
func Tables() []Table {
	return []Table{
		{Name: "customer_summary", DDL: customerSummaryDDL, Refresh: customerSummaryRefresh},
		{Name: "product_summary", DDL: productSummaryDDL, Refresh: productSummaryRefresh},
		{Name: "daily_sales_summary", DDL: dailySalesDDL, Refresh: dailySalesRefresh},
		{Name: "monthly_sales_summary", DDL: monthlySalesDDL, Refresh: monthlySalesRefresh},
	}
}

const customerSummaryDDL = `
CREATE TABLE IF NOT EXISTS customer_summary (
	customer_id BIGINT,
	customer_name TEXT,
	email TEXT,
	total_orders BIGINT,
	total_spent NUMERIC(14,2),
	avg_order_value NUMERIC(12,2),
	last_purchase_date TIMESTAMP,
	first_purchase_date TIMESTAMP,
	days_since_purchase NUMERIC(12,2)
)`

// customer_name is assembled from the split name columns so downstream
// reports keep a single display name.
const customerSummaryRefresh = `
INSERT INTO customer_summary
SELECT
	c.customer_id,
	c.first_name || ' ' || c.last_name AS customer_name,
	c.email,
	COUNT(DISTINCT o.order_id) AS total_orders,
	SUM(o.total_amount) AS total_spent,
	AVG(o.total_amount) AS avg_order_value,
	MAX(o.order_date) AS last_purchase_date,
	MIN(o.order_date) AS first_purchase_date,
	ROUND(
		(CURRENT_DATE - MAX(o.order_date)::date)::numeric /
		NULLIF(COUNT(DISTINCT o.order_id), 0), 2
	) AS days_since_purchase
FROM customers c
LEFT JOIN orders o ON c.customer_id = o.customer_id
	AND o.order_status = 'Delivered'
GROUP BY c.customer_id, c.first_name, c.last_name, c.email`

const productSummaryDDL = `
CREATE TABLE IF NOT EXISTS product_summary (
	product_id BIGINT,
	product_name TEXT,
	category TEXT,
	price NUMERIC(12,2),
	total_units_sold BIGINT,
	total_orders BIGINT,
	quantity_sold BIGINT,
	total_revenue NUMERIC(14,2),
	avg_price_sold NUMERIC(12,2),
	last_sold_date TIMESTAMP,
	revenue_per_order NUMERIC(12,2)
)`

const productSummaryRefresh = `
INSERT INTO product_summary
SELECT
	p.product_id,
	p.product_name,
	p.category,
	p.price,
	COUNT(o.order_id) AS total_units_sold,
	COUNT(DISTINCT o.order_id) AS total_orders,
	SUM(o.quantity) AS quantity_sold,
	SUM(o.total_amount) AS total_revenue,
	ROUND(SUM(o.total_amount) / NULLIF(SUM(o.quantity), 0), 2) AS avg_price_sold,
	MAX(o.order_date) AS last_sold_date,
	ROUND(SUM(o.total_amount) / NULLIF(COUNT(o.order_id), 0), 2) AS revenue_per_order
FROM products p
LEFT JOIN orders o ON p.product_id = o.product_id
	AND o.order_status = 'Delivered'
GROUP BY p.product_id, p.product_name, p.category, p.price`

const dailySalesDDL = `
CREATE TABLE IF NOT EXISTS daily_sales_summary (
	date DATE,
	total_orders BIGINT,
	unique_customers BIGINT,
	total_revenue NUMERIC(14,2),
	avg_order_value NUMERIC(12,2),
	total_units BIGINT,
	revenue_per_order NUMERIC(12,2)
)`

const dailySalesRefresh = `
INSERT INTO daily_sales_summary
SELECT
	DATE(o.order_date) AS date,
	COUNT(o.order_id) AS total_orders,
	COUNT(DISTINCT o.customer_id) AS unique_customers,
	SUM(o.total_amount) AS total_revenue,
	ROUND(AVG(o.total_amount), 2) AS avg_order_value,
	SUM(o.quantity) AS total_units,
	ROUND(SUM(o.total_amount) / COUNT(o.order_id), 2) AS revenue_per_order
FROM orders o
WHERE o.order_status = 'Delivered'
GROUP BY DATE(o.order_date)
ORDER BY date DESC`

const monthlySalesDDL = `
CREATE TABLE IF NOT EXISTS monthly_sales_summary (
	month DATE,
	total_orders BIGINT,
	unique_customers BIGINT,
	total_revenue NUMERIC(14,2),
	avg_order_value NUMERIC(12,2),
	total_units BIGINT,
	prev_month_revenue NUMERIC(14,2),
	mom_growth_pct NUMERIC(12,2)
)`

const monthlySalesRefresh = `
INSERT INTO monthly_sales_summary
SELECT
	DATE_TRUNC('month', o.order_date)::date AS month,
	COUNT(o.order_id) AS total_orders,
	COUNT(DISTINCT o.customer_id) AS unique_customers,
	SUM(o.total_amount) AS total_revenue,
	ROUND(AVG(o.total_amount), 2) AS avg_order_value,
	SUM(o.quantity) AS total_units,
	LAG(SUM(o.total_amount)) OVER (
		ORDER BY DATE_TRUNC('month', o.order_date)
	) AS prev_month_revenue,
	ROUND(
		(SUM(o.total_amount) - LAG(SUM(o.total_amount)) OVER (
			ORDER BY DATE_TRUNC('month', o.order_date)
		)) / NULLIF(LAG(SUM(o.total_amount)) OVER (
			ORDER BY DATE_TRUNC('month', o.order_date)
		), 0) * 100, 2
	) AS mom_growth_pct
FROM orders o
WHERE o.order_status = 'Delivered'
GROUP BY DATE_TRUNC('month', o.order_date)
ORDER BY month DESC`
