// pkg/generator/customers.go
package generator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// city carries an Indian city with its state and a base pincode.
type city struct {
	Name    string
	State   string
	Pincode string
}

var indianCities = []city{
	{"Mumbai", "Maharashtra", "400001"},
	{"Delhi", "Delhi", "110001"},
	{"Bangalore", "Karnataka", "560001"},
	{"Hyderabad", "Telangana", "500001"},
	{"Chennai", "Tamil Nadu", "600001"},
	{"Kolkata", "West Bengal", "700001"},
	{"Pune", "Maharashtra", "411001"},
	{"Ahmedabad", "Gujarat", "380001"},
	{"Jaipur", "Rajasthan", "302001"},
	{"Lucknow", "Uttar Pradesh", "226001"},
}

var emailDomains = []string{"gmail.com", "yahoo.com", "outlook.com"}

var genders = []string{"Male", "Female", "Other"}

var customerHeader = []string{
	"customer_id", "first_name", "last_name", "email", "phone",
	"city", "state", "pincode", "registration_date", "age", "gender",
}

// Customer is one synthetic customer row.
type Customer struct {
	ID               int64
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	City             string
	State            string
	Pincode          string
	RegistrationDate time.Time
	Age              int
	Gender           string
}

// Customers generates the configured number of customers with
// sequential IDs starting at the seed's customer base.
func (g *Generator) Customers() []Customer {
	customers := make([]Customer, 0, g.cfg.Customers)

	for i := 0; i < g.cfg.Customers; i++ {
		first := g.faker.FirstName()
		last := g.faker.LastName()
		place := indianCities[g.rng.Intn(len(indianCities))]

		customers = append(customers, Customer{
			ID:        g.customerBase + int64(i),
			FirstName: first,
			LastName:  last,
			Email: strings.ToLower(fmt.Sprintf("%s.%s%d@%s",
				first, last, 1+g.rng.Intn(999), emailDomains[g.rng.Intn(len(emailDomains))])),
			Phone:            fmt.Sprintf("+91-%d", 6000000000+g.rng.Int63n(4000000000)),
			City:             place.Name,
			State:            place.State,
			Pincode:          place.Pincode,
			RegistrationDate: g.now.AddDate(0, 0, -g.rng.Intn(731)),
			Age:              18 + g.rng.Intn(53),
			Gender:           genders[g.rng.Intn(len(genders))],
		})
	}
	return customers
}

func customerRows(customers []Customer) [][]string {
	rows := make([][]string, len(customers))
	for i, c := range customers {
		rows[i] = []string{
			strconv.FormatInt(c.ID, 10),
			c.FirstName,
			c.LastName,
			c.Email,
			c.Phone,
			c.City,
			c.State,
			c.Pincode,
			c.RegistrationDate.Format("2006-01-02"),
			strconv.Itoa(c.Age),
			c.Gender,
		}
	}
	return rows
}
