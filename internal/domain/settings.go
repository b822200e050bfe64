package domain

// Destination distinguishes the two shipping rate classes the store offers.
type Destination string

const (
	// DestinationDomestic covers shipments inside the home country.
	DestinationDomestic Destination = "domestic"
	// DestinationInternational covers everything else.
	DestinationInternational Destination = "international"
)

// SiteSettings holds the operator-editable storefront configuration.
// Shipping amounts are pointers so an unconfigured field is distinguishable
// from an explicit zero; validation happens in the shipping service.
type SiteSettings struct {
	FreeShippingThreshold     *int64
	DomesticShippingCost      *int64
	InternationalShippingCost *int64
	ShippingNotes             map[string]string
	AdminEmail                string
}
