package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/danupranata/go-marketplace-orders/internal/checkout"
)

// OrderReader is the slice of the checkout store the generator needs.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID int64) (*checkout.Order, error)
}

// Generator renders and stores invoices. Generate is idempotent: a second
// call for the same order returns the stored invoice untouched.
type Generator struct {
	Orders OrderReader
	Store  Store
	Log    *zap.Logger
}

func (g *Generator) Generate(ctx context.Context, orderID int64) (*Invoice, error) {
	if inv, err := g.Store.FindByOrder(ctx, orderID); err == nil {
		return inv, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	order, err := g.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order for invoice: %w", err)
	}

	content, err := render(order)
	if err != nil {
		return nil, fmt.Errorf("render invoice for order %s: %w", order.Code, err)
	}

	inv, err := g.Store.Insert(ctx, &Invoice{
		OrderID: order.ID,
		UserID:  order.UserID,
		Number:  order.InvoiceNumber,
		Content: content,
	})
	if err != nil {
		return nil, err
	}
	if g.Log != nil {
		g.Log.Info("invoice generated", zap.Int64("order_id", order.ID), zap.String("number", inv.Number))
	}
	return inv, nil
}

var invoiceTmpl = template.Must(template.New("invoice").
	Funcs(template.FuncMap{"cents": formatCents}).
	Parse(`<!doctype html>
<html><head><title>Invoice {{.InvoiceNumber}}</title></head>
<body>
<h1>Invoice {{.InvoiceNumber}}</h1>
<p>Order {{.Code}} for user {{.UserID}} ({{.PaymentMethod}})</p>
<table>
<tr><th>Product</th><th>Qty</th><th>Unit price</th><th>Line total</th></tr>
{{range .Lines}}<tr><td>{{.ProductName}}</td><td>{{.Quantity}}</td><td>{{cents .UnitPriceCents}}</td><td>{{cents .LineTotalCents}}</td></tr>
{{end}}</table>
<p>Total: {{cents .TotalCents}}</p>
</body></html>
`))

func render(order *checkout.Order) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, order); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatCents(c int) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}
