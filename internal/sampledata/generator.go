// Package sampledata generates synthetic sales and order index exports in the
// layout of the back office reports, for demos and end-to-end tests.
package sampledata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Header rows of the generated exports
var (
	SalesHeader = []string{"Número", "Id", "Fecha", "Hora", "Monto total", "Descuento", "Estado",
		"Validez", "Tipo de orden", "Métodos de pago", "Detalle", "Mesero", "Cliente", "Mesa"}
	IndexHeader = []string{"Numero", "Tipo", "Mesa", "Estado", "Monto total", "Creado el", "Pagado el", "Anulado"}
)

// MenuItem is one product the generator can sell
type MenuItem struct {
	Name  string
	Price decimal.Decimal
}

// DefaultMenu returns a small café menu
func DefaultMenu() []MenuItem {
	price := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return []MenuItem{
		{"Café Americano", price("8.00")},
		{"Capuccino", price("10.00")},
		{"Té Verde", price("7.00")},
		{"Pan con Chicharrón", price("14.00")},
		{"Croissant", price("6.50")},
		{"Jugo de Naranja", price("9.00")},
		{"Torta de Chocolate", price("12.00")},
		{"Sandwich Mixto", price("11.00")},
	}
}

// RentalItem is the office membership fee the classifier exempts from sales
var RentalItem = MenuItem{"Cuota de membresía por Oficina C&C (mensual)", decimal.RequireFromString("150.00")}

// Generator builds synthetic orders
type Generator struct {
	Orders         int
	StartDate      time.Time
	Days           int
	Seed           int64
	PendingRatio   float64 // share of orders left unpaid
	VoidRatio      float64 // share of orders voided in the index
	IndexMissRatio float64 // share of orders absent from the index
	RentalRatio    float64 // share of orders that only carry the rental fee
	Menu           []MenuItem
	Servers        []string
	Customers      []string
	Tables         []string
}

// NewGenerator returns a generator with the default menu and staff
func NewGenerator(orders int, start time.Time, days int, seed int64) *Generator {
	return &Generator{
		Orders:         orders,
		StartDate:      start,
		Days:           days,
		Seed:           seed,
		PendingRatio:   0.05,
		VoidRatio:      0.02,
		IndexMissRatio: 0.0,
		RentalRatio:    0.02,
		Menu:           DefaultMenu(),
		Servers:        []string{"Ana", "Rosa", "Carlos", "Jorge"},
		Customers:      []string{"Luis", "Marta", "Pedro", "Lucía", "Sofía", "Diego", "Valeria", "Andrés"},
		Tables:         []string{"S1", "S2", "S3", "T1", "T2", "Barra"},
	}
}

// Validate checks the generator settings
func (g *Generator) Validate() error {
	if g.Orders < 1 {
		return fmt.Errorf("order count must be positive, got %d", g.Orders)
	}
	if g.Days < 1 {
		return fmt.Errorf("days must be positive, got %d", g.Days)
	}
	if len(g.Menu) == 0 || len(g.Servers) == 0 {
		return fmt.Errorf("menu and servers cannot be empty")
	}
	for _, r := range []float64{g.PendingRatio, g.VoidRatio, g.IndexMissRatio, g.RentalRatio} {
		if r < 0 || r > 1 {
			return fmt.Errorf("ratios must be in [0, 1], got %v", r)
		}
	}
	return nil
}

// Line is one item of a generated order
type Line struct {
	Quantity int
	Item     MenuItem
}

// Order is one generated ticket
type Order struct {
	Number    int
	CreatedAt time.Time
	PaidAt    time.Time // zero when pending
	OrderType string
	Table     string
	Server    string
	Customer  string
	Payment   string
	Lines     []Line
	Discount  decimal.Decimal
	Pending   bool
	Voided    bool
	InIndex   bool
}

// Total is the order amount after discount
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.Sub(o.Discount)
}

// Detail renders the lines the way the sales export does, e.g. "2x Café 1x Pan"
func (o Order) Detail() string {
	parts := make([]string, len(o.Lines))
	for i, l := range o.Lines {
		parts[i] = fmt.Sprintf("%dx %s", l.Quantity, l.Item.Name)
	}
	return strings.Join(parts, " ")
}

// Generate builds the orders, grouped by day in ascending order
func (g *Generator) Generate() ([]Order, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(g.Seed))

	orders := make([]Order, g.Orders)
	perDay := (g.Orders + g.Days - 1) / g.Days
	for i := range orders {
		day := g.StartDate.AddDate(0, 0, i/perDay)
		// opening hours 08:00 to 21:59
		created := time.Date(day.Year(), day.Month(), day.Day(), 8+rng.Intn(14), rng.Intn(60), 0, 0, time.UTC)

		o := Order{
			Number:    1000 + i,
			CreatedAt: created,
			Server:    g.Servers[rng.Intn(len(g.Servers))],
			Payment:   pick(rng, []string{"Efectivo", "Tarjeta", "Yape", "Plin"}),
			InIndex:   rng.Float64() >= g.IndexMissRatio,
		}
		switch r := rng.Float64(); {
		case r < 0.7 && len(g.Tables) > 0:
			o.OrderType = "Mesa"
			o.Table = g.Tables[rng.Intn(len(g.Tables))]
		case r < 0.9:
			o.OrderType = "Para llevar"
		default:
			o.OrderType = "Delivery"
		}
		if len(g.Customers) > 0 && rng.Float64() < 0.6 {
			o.Customer = g.Customers[rng.Intn(len(g.Customers))]
		}

		if rng.Float64() < g.RentalRatio {
			o.Lines = []Line{{Quantity: 1, Item: RentalItem}}
		} else {
			o.Lines = g.lines(rng)
		}
		if rng.Float64() < 0.1 {
			o.Discount = o.Total().Mul(decimal.NewFromFloat(0.1)).Round(2)
		}

		o.Pending = rng.Float64() < g.PendingRatio
		o.Voided = !o.Pending && rng.Float64() < g.VoidRatio
		if !o.Pending {
			o.PaidAt = created.Add(time.Duration(10+rng.Intn(50)) * time.Minute)
		}
		orders[i] = o
	}
	return orders, nil
}

func (g *Generator) lines(rng *rand.Rand) []Line {
	n := 1 + rng.Intn(3)
	used := make(map[int]bool, n)
	lines := make([]Line, 0, n)
	for len(lines) < n {
		idx := rng.Intn(len(g.Menu))
		if used[idx] {
			if len(used) == len(g.Menu) {
				break
			}
			continue
		}
		used[idx] = true
		lines = append(lines, Line{Quantity: 1 + rng.Intn(2), Item: g.Menu[idx]})
	}
	return lines
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

// SalesRows renders the orders as sales export rows, header first
func SalesRows(orders []Order) [][]string {
	rows := [][]string{SalesHeader}
	for i, o := range orders {
		status := "Pagado"
		if o.Pending {
			status = "Pendiente"
		}
		validity := "Válido"
		if o.Voided {
			validity = "Anulado"
		}
		payment := o.Payment
		if o.Pending {
			payment = ""
		}
		rows = append(rows, []string{
			strconv.Itoa(o.Number),
			strconv.Itoa(i + 1),
			o.CreatedAt.Format("02/01/2006"),
			o.CreatedAt.Format("15:04"),
			o.Total().StringFixed(2),
			o.Discount.StringFixed(2),
			status,
			validity,
			o.OrderType,
			payment,
			o.Detail(),
			o.Server,
			o.Customer,
			o.Table,
		})
	}
	return rows
}

// IndexRows renders the orders present in the index as index export rows
func IndexRows(orders []Order) [][]string {
	rows := [][]string{IndexHeader}
	for _, o := range orders {
		if !o.InIndex {
			continue
		}
		status, paid := "Pagado", ""
		if o.Pending {
			status = "Pendiente"
		} else {
			paid = o.PaidAt.Format("02/01/2006 15:04")
		}
		voided := "No"
		if o.Voided {
			voided = "Sí"
		}
		rows = append(rows, []string{
			strconv.Itoa(o.Number),
			o.OrderType,
			o.Table,
			status,
			o.Total().StringFixed(2),
			o.CreatedAt.Format("02/01/2006 15:04"),
			paid,
			voided,
		})
	}
	return rows
}

// WriteCSV writes rows to w
func WriteCSV(w io.Writer, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes rows to a single sheet workbook
func WriteXLSX(w io.Writer, sheet string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.Write(w)
}
