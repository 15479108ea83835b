package quotes

import "github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"

type totals struct {
	subtotal   float64
	taxTotal   float64
	grandTotal float64
}

// priceItems computes line totals and tax amounts for the submitted items
// and aggregates them: lineTotal = quantity x unitPrice, taxAmount =
// lineTotal x taxRate, subtotal/taxTotal are sums, grandTotal their sum.
func priceItems(items []ItemInput) ([]quoterepo.Item, totals) {
	out := make([]quoterepo.Item, 0, len(items))
	var t totals
	for _, in := range items {
		taxRate := 0.0
		if in.TaxRate != nil {
			taxRate = *in.TaxRate
		}
		lineTotal := float64(in.Quantity) * in.UnitPrice
		taxAmount := lineTotal * taxRate
		out = append(out, quoterepo.Item{
			SKU:       in.SKU,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			TaxRate:   taxRate,
			LineTotal: lineTotal,
			TaxAmount: taxAmount,
		})
		t.subtotal += lineTotal
		t.taxTotal += taxAmount
	}
	t.grandTotal = t.subtotal + t.taxTotal
	return out, t
}
