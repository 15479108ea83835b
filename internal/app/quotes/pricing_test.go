package quotes

import "testing"

func TestPriceItems(t *testing.T) {
	t.Parallel()

	rate := 0.1
	items, tot := priceItems([]ItemInput{
		{SKU: "A", Name: "a", Quantity: 3, UnitPrice: 10, TaxRate: &rate},
		{SKU: "B", Name: "b", Quantity: 1, UnitPrice: 5},
	})

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].LineTotal != 30 || !closeTo(items[0].TaxAmount, 3) {
		t.Fatalf("item 0: %+v", items[0])
	}
	// An omitted tax rate prices as untaxed.
	if items[1].TaxRate != 0 || items[1].TaxAmount != 0 {
		t.Fatalf("item 1: %+v", items[1])
	}
	if tot.subtotal != 35 || !closeTo(tot.taxTotal, 3) || !closeTo(tot.grandTotal, 38) {
		t.Fatalf("totals: %+v", tot)
	}
}

func TestPriceItems_Empty(t *testing.T) {
	t.Parallel()

	items, tot := priceItems(nil)
	if len(items) != 0 {
		t.Fatalf("expected no items")
	}
	if tot.subtotal != 0 || tot.taxTotal != 0 || tot.grandTotal != 0 {
		t.Fatalf("totals: %+v", tot)
	}
}
