package httpapi

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/sura-tech/quotes-api/internal/app/quotes"
	"github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"
)

const (
	maxDocumentIDLen    = 64
	maxItems            = 200
	maxQuantity         = 100_000
	maxUnitPrice        = 999_999_999
	maxMetadataEntries  = 50
	maxMetadataValueLen = 200
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

type CustomerDTO struct {
	CustomerID string               `json:"customerId"`
	Email      *openapi_types.Email `json:"email,omitempty"`
}

type ItemDTO struct {
	SKU       string   `json:"sku"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice float64  `json:"unitPrice"`
	TaxRate   *float64 `json:"taxRate,omitempty"`
}

type QuoteCreateRequest struct {
	DocumentID string            `json:"documentId"`
	Currency   string            `json:"currency"`
	Customer   CustomerDTO       `json:"customer"`
	Items      []ItemDTO         `json:"items"`
	ExpiresAt  *time.Time        `json:"expiresAt,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// validate returns one message per offending field, keyed by a JSON-path-ish
// field name, empty when the request is well formed.
func (req QuoteCreateRequest) validate() map[string]string {
	fe := map[string]string{}

	if strings.TrimSpace(req.DocumentID) == "" {
		fe["documentId"] = "must not be blank"
	} else if len(req.DocumentID) > maxDocumentIDLen {
		fe["documentId"] = fmt.Sprintf("must be at most %d characters", maxDocumentIDLen)
	}

	if !currencyRe.MatchString(req.Currency) {
		fe["currency"] = "must be a three-letter uppercase currency code"
	}

	if strings.TrimSpace(req.Customer.CustomerID) == "" {
		fe["customer.customerId"] = "must not be blank"
	}

	if len(req.Items) == 0 {
		fe["items"] = "must contain at least one item"
	} else if len(req.Items) > maxItems {
		fe["items"] = fmt.Sprintf("must contain at most %d items", maxItems)
	}
	for i, it := range req.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(it.SKU) == "" {
			fe[prefix+"sku"] = "must not be blank"
		}
		if strings.TrimSpace(it.Name) == "" {
			fe[prefix+"name"] = "must not be blank"
		}
		if it.Quantity < 1 || it.Quantity > maxQuantity {
			fe[prefix+"quantity"] = fmt.Sprintf("must be between 1 and %d", maxQuantity)
		}
		if it.UnitPrice < 0 || it.UnitPrice > maxUnitPrice {
			fe[prefix+"unitPrice"] = fmt.Sprintf("must be between 0 and %d", maxUnitPrice)
		}
		if it.TaxRate != nil && (*it.TaxRate < 0 || *it.TaxRate > 1) {
			fe[prefix+"taxRate"] = "must be between 0 and 1"
		}
	}

	if len(req.Metadata) > maxMetadataEntries {
		fe["metadata"] = fmt.Sprintf("must contain at most %d entries", maxMetadataEntries)
	}
	for k, v := range req.Metadata {
		if k == "" {
			fe["metadata"] = "keys must not be empty"
			continue
		}
		if len(v) > maxMetadataValueLen {
			fe["metadata."+k] = fmt.Sprintf("value must be at most %d characters", maxMetadataValueLen)
		}
	}

	return fe
}

func (req QuoteCreateRequest) toInput() quotes.CreateQuoteInput {
	var email *string
	if req.Customer.Email != nil {
		s := string(*req.Customer.Email)
		email = &s
	}
	items := make([]quotes.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, quotes.ItemInput{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TaxRate:   it.TaxRate,
		})
	}
	return quotes.CreateQuoteInput{
		DocumentID: req.DocumentID,
		Customer:   quotes.CustomerInput{ID: req.Customer.CustomerID, Email: email},
		Currency:   req.Currency,
		Items:      items,
		ExpiresAt:  req.ExpiresAt,
		Metadata:   req.Metadata,
	}
}

type QuoteItemDTO struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	TaxRate   float64 `json:"taxRate"`
	LineTotal float64 `json:"lineTotal"`
	TaxAmount float64 `json:"taxAmount"`
}

type TotalsDTO struct {
	Subtotal   float64 `json:"subtotal"`
	TaxTotal   float64 `json:"taxTotal"`
	GrandTotal float64 `json:"grandTotal"`
}

type QuoteResponse struct {
	QuoteID    string            `json:"quoteId"`
	DocumentID string            `json:"documentId"`
	Status     string            `json:"status"`
	Currency   string            `json:"currency"`
	Customer   CustomerDTO       `json:"customer"`
	Items      []QuoteItemDTO    `json:"items"`
	Totals     TotalsDTO         `json:"totals"`
	ExpiresAt  *time.Time        `json:"expiresAt,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func toQuoteResponse(q quoterepo.Quote) QuoteResponse {
	var email *openapi_types.Email
	if q.CustomerEmail != nil {
		e := openapi_types.Email(*q.CustomerEmail)
		email = &e
	}
	items := make([]QuoteItemDTO, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, QuoteItemDTO{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TaxRate:   it.TaxRate,
			LineTotal: it.LineTotal,
			TaxAmount: it.TaxAmount,
		})
	}
	return QuoteResponse{
		QuoteID:    string(q.ID),
		DocumentID: q.DocumentID,
		Status:     q.Status,
		Currency:   q.Currency,
		Customer:   CustomerDTO{CustomerID: q.CustomerID, Email: email},
		Items:      items,
		Totals:     TotalsDTO{Subtotal: q.Subtotal, TaxTotal: q.TaxTotal, GrandTotal: q.GrandTotal},
		ExpiresAt:  q.ExpiresAt,
		CreatedAt:  q.CreatedAt,
		UpdatedAt:  q.UpdatedAt,
		Metadata:   q.Metadata,
	}
}
