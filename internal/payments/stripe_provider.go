package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Metadata keys the storefront writes onto checkout sessions at creation time.
const (
	metadataKeyProductIDs  = "product_ids"
	metadataKeyUserID      = "user_id"
	metadataKeyDestination = "destination"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time
	Clients   *stripeClients
}

// StripeProvider implements SessionFetcher using the Stripe API.
type StripeProvider struct {
	api     stripeClients
	account string
	clock   func() time.Time
	logger  StripeLogger
}

// NewStripeProvider constructs a Stripe SessionFetcher using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: sc.CheckoutSessions,
		}
	}

	if clients.sessions == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:     clients,
		account: strings.TrimSpace(cfg.AccountID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// FetchCheckoutSession retrieves the completed session with line items and the
// payment intent expanded, and normalises it into a SessionDetail.
func (p *StripeProvider) FetchCheckoutSession(ctx context.Context, sessionID string) (SessionDetail, error) {
	if p == nil {
		return SessionDetail{}, errors.New("stripe: provider is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionDetail{}, errors.New("stripe: session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("line_items.data.price.product")
	params.AddExpand("payment_intent")
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	session, err := p.api.sessions.Get(sessionID, params)
	if err != nil {
		return SessionDetail{}, fmt.Errorf("stripe: fetch checkout session: %w", err)
	}

	detail := stripeSessionDetail(session)

	p.logger(ctx, "payments.stripe.session.fetched", map[string]any{
		"sessionId":     detail.SessionID,
		"paymentIntent": detail.PaymentIntentID,
		"total":         detail.Total,
		"currency":      detail.Currency,
		"productCount":  len(detail.ProductIDs),
	})

	return detail, nil
}

func stripeSessionDetail(session *stripe.CheckoutSession) SessionDetail {
	if session == nil {
		return SessionDetail{}
	}

	detail := SessionDetail{
		SessionID: session.ID,
		Currency:  strings.ToUpper(string(session.Currency)),
		Subtotal:  session.AmountSubtotal,
		Total:     session.AmountTotal,
	}
	if session.PaymentIntent != nil {
		detail.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.TotalDetails != nil {
		detail.ShippingCost = session.TotalDetails.AmountShipping
		detail.Tax = session.TotalDetails.AmountTax
	}

	if len(session.Metadata) > 0 {
		detail.UserID = strings.TrimSpace(session.Metadata[metadataKeyUserID])
		detail.Destination = strings.TrimSpace(strings.ToLower(session.Metadata[metadataKeyDestination]))
		for _, id := range strings.Split(session.Metadata[metadataKeyProductIDs], ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				detail.ProductIDs = append(detail.ProductIDs, trimmed)
			}
		}
	}

	if session.CustomerDetails != nil {
		detail.Customer.Name = session.CustomerDetails.Name
		detail.Customer.Email = session.CustomerDetails.Email
		detail.Customer.Phone = session.CustomerDetails.Phone
		if addr := session.CustomerDetails.Address; addr != nil {
			detail.Customer.Line1 = addr.Line1
			detail.Customer.Line2 = addr.Line2
			detail.Customer.City = addr.City
			detail.Customer.PostalCode = addr.PostalCode
			detail.Customer.Country = addr.Country
		}
	}
	if session.ShippingDetails != nil && session.ShippingDetails.Address != nil {
		addr := session.ShippingDetails.Address
		if session.ShippingDetails.Name != "" {
			detail.Customer.Name = session.ShippingDetails.Name
		}
		detail.Customer.Line1 = addr.Line1
		detail.Customer.Line2 = addr.Line2
		detail.Customer.City = addr.City
		detail.Customer.PostalCode = addr.PostalCode
		detail.Customer.Country = addr.Country
	}

	if session.LineItems != nil {
		for _, line := range session.LineItems.Data {
			if line == nil {
				continue
			}
			item := SessionLineItem{
				Title:    line.Description,
				Quantity: line.Quantity,
			}
			if line.Price != nil {
				item.UnitPrice = line.Price.UnitAmount
				if line.Price.Product != nil {
					if id := strings.TrimSpace(line.Price.Product.Metadata["product_id"]); id != "" {
						item.ProductID = id
					}
				}
			}
			detail.Items = append(detail.Items, item)
		}
	}

	// When session metadata carries no product list, fall back to the ids
	// recorded on the line item products.
	if len(detail.ProductIDs) == 0 {
		for _, item := range detail.Items {
			if item.ProductID != "" {
				detail.ProductIDs = append(detail.ProductIDs, item.ProductID)
			}
		}
	}

	return detail
}
