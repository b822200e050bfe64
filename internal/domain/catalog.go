package domain

import "time"

// ProductStatus tracks the sale state of a one-of-a-kind piece.
type ProductStatus string

const (
	// ProductStatusAvailable indicates the piece can be purchased.
	ProductStatusAvailable ProductStatus = "available"
	// ProductStatusReserved indicates the piece is held pending checkout.
	ProductStatusReserved ProductStatus = "reserved"
	// ProductStatusSold indicates the piece has been sold.
	ProductStatusSold ProductStatus = "sold"
	// ProductStatusComingSoon indicates the piece is published but not yet purchasable.
	ProductStatusComingSoon ProductStatus = "coming_soon"
)

// Product carries the catalog fields the fulfillment engine needs. Every
// product is unique stock; quantity is always one.
type Product struct {
	ID                      string
	Title                   string
	Slug                    string
	Price                   int64
	Status                  ProductStatus
	SoldAt                  *time.Time
	ShippingCost            *int64
	ShippingCostIntl        *int64
	RequiresSpecialShipping bool
	ShippingNote            string
	ShippingNoteLocalized   map[string]string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// WishlistItem links a user to a product they want to be told about.
type WishlistItem struct {
	ID           string
	UserID       string
	Email        string
	ProductID    string
	NotifyOnSale bool
	NotifiedSold bool
	CreatedAt    time.Time
}
