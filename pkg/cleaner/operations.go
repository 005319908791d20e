// pkg/cleaner/operations.go
package cleaner

// Operation is one set-based standardization applied to a warehouse
// column. The WHERE clause restricts the update to rows that actually
// need it, so RowsAffected counts dirty rows only.
type Operation struct {
	Name   string
	Table  string
	Column string
	Reason string
	Update string
}

// Operations returns the standardizations applied on every pass, in
// order. All target text columns on the base tables; aggregates are
// rebuilt from the bases afterwards and inherit the cleaned values.
func Operations() []Operation {
	return []Operation{
		{
			Name:   "whitespace_trim",
			Table:  "customers",
			Column: "first_name",
			Reason: "leading_or_trailing_whitespace",
			Update: `UPDATE customers
SET first_name = TRIM(first_name)
WHERE first_name IS NOT NULL AND first_name <> TRIM(first_name)`,
		},
		{
			Name:   "whitespace_trim",
			Table:  "customers",
			Column: "last_name",
			Reason: "leading_or_trailing_whitespace",
			Update: `UPDATE customers
SET last_name = TRIM(last_name)
WHERE last_name IS NOT NULL AND last_name <> TRIM(last_name)`,
		},
		{
			Name:   "lowercase_normalization",
			Table:  "customers",
			Column: "email",
			Reason: "mixed_case_email",
			Update: `UPDATE customers
SET email = LOWER(email)
WHERE email IS NOT NULL AND email <> LOWER(email)`,
		},
		{
			Name:   "whitespace_trim",
			Table:  "products",
			Column: "product_name",
			Reason: "leading_or_trailing_whitespace",
			Update: `UPDATE products
SET product_name = TRIM(product_name)
WHERE product_name IS NOT NULL AND product_name <> TRIM(product_name)`,
		},
		{
			Name:   "whitespace_trim",
			Table:  "products",
			Column: "brand",
			Reason: "leading_or_trailing_whitespace",
			Update: `UPDATE products
SET brand = TRIM(brand)
WHERE brand IS NOT NULL AND brand <> TRIM(brand)`,
		},
	}
}
