package domain

import "time"

// OrderStatus represents the lifecycle state of a customer order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order exists but payment confirmation is outstanding.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates payment has been confirmed by the provider.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped indicates the parcel has left the atelier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the carrier reported delivery. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled indicates the order was canceled. Terminal.
	OrderStatusCanceled OrderStatus = "canceled"
)

// CustomerSnapshot freezes the customer contact details captured at checkout.
// Orders must stay readable even when the account or product changes later.
type CustomerSnapshot struct {
	Name       string
	Email      string
	Phone      string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
}

// OrderItem is an immutable snapshot of a purchased product.
type OrderItem struct {
	ProductID string
	Title     string
	Slug      string
	UnitPrice int64
	Quantity  int
}

// Order is the aggregate persisted per completed checkout. Monetary fields
// are minor units. Total must always equal Subtotal + ShippingCost + Tax.
type Order struct {
	ID               string
	OrderNumber      string
	UserID           string
	Status           OrderStatus
	Currency         string
	Subtotal         int64
	ShippingCost     int64
	Tax              int64
	Total            int64
	PaymentSessionID string
	PaymentIntentID  string
	Customer         CustomerSnapshot
	Items            []OrderItem
	TrackingNumber   string
	CarrierName      string
	TrackingURL      string
	InternalNotes    string
	CancelReason     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
	ShippedAt        *time.Time
	DeliveredAt      *time.Time
	CanceledAt       *time.Time
}

// ProductIDs returns the product identifiers referenced by the order items.
func (o Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.ProductID != "" {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
