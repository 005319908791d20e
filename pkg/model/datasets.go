// pkg/model/datasets.go
package model

// DefaultDatasets returns the built-in dataset definitions for the
// e-commerce warehouse: customers, products, and orders. Orders load
// after both parents so foreign key checks hold during ingestion.
func DefaultDatasets() []Dataset {
	return []Dataset{
		{
			Name:        "customers",
			File:        "customers.csv",
			Table:       "customers",
			IdentityKey: []string{"customer_id"},
			Schema: Schema{
				{Name: "customer_id", Type: TypeInteger},
				{Name: "first_name", Type: TypeString},
				{Name: "last_name", Type: TypeString},
				{Name: "email", Type: TypeString},
				{Name: "phone", Type: TypeString},
				{Name: "city", Type: TypeString},
				{Name: "state", Type: TypeString},
				{Name: "pincode", Type: TypeString},
				{Name: "registration_date", Type: TypeDate},
				{Name: "age", Type: TypeInteger},
				{Name: "gender", Type: TypeString},
			},
		},
		{
			Name:        "products",
			File:        "products.csv",
			Table:       "products",
			IdentityKey: []string{"product_id"},
			Schema: Schema{
				{Name: "product_id", Type: TypeInteger},
				{Name: "product_name", Type: TypeString},
				{Name: "category", Type: TypeString},
				{Name: "subcategory", Type: TypeString},
				{Name: "brand", Type: TypeString},
				{Name: "price", Type: TypeDecimal},
				{Name: "cost", Type: TypeDecimal},
				{Name: "stock_quantity", Type: TypeInteger},
				{Name: "supplier", Type: TypeString},
			},
		},
		{
			Name:        "orders",
			File:        "orders.csv",
			Table:       "orders",
			IdentityKey: []string{"order_id"},
			DependsOn:   []string{"customers", "products"},
			Schema: Schema{
				{Name: "order_id", Type: TypeInteger},
				{Name: "customer_id", Type: TypeInteger},
				{Name: "product_id", Type: TypeInteger},
				{Name: "quantity", Type: TypeInteger},
				{Name: "unit_price", Type: TypeDecimal},
				{Name: "total_amount", Type: TypeDecimal},
				{Name: "order_date", Type: TypeTimestamp},
				{Name: "payment_method", Type: TypeString},
				{Name: "order_status", Type: TypeString},
			},
		},
	}
}
