package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/maison-curio/api/internal/services"
)

// Mail templates rendered by the mail worker consuming the topic.
const (
	mailTemplateOrderConfirmation = "order_confirmation"
	mailTemplateAdminNewOrder     = "admin_new_order"
	mailTemplateWishlistSold      = "wishlist_sold"
	mailTemplateShipmentNotice    = "shipment_notice"
)

// mailJobMessage is the payload placed on the mail topic. The worker owns
// rendering; the API only names the template and supplies its variables.
type mailJobMessage struct {
	Template  string         `json:"template"`
	Recipient string         `json:"recipient"`
	OrderID   string         `json:"orderId,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

// PubSubMailPublisher implements services.Mailer by enqueueing render-and-send
// jobs on a Pub/Sub topic.
type PubSubMailPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubMailPublisher constructs a Pub/Sub backed mailer.
func NewPubSubMailPublisher(topic *pubsub.Topic) (*PubSubMailPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub mail publisher: topic is required")
	}
	return &PubSubMailPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// SendOrderConfirmation enqueues the customer confirmation email.
func (p *PubSubMailPublisher) SendOrderConfirmation(ctx context.Context, order services.Order) error {
	return p.publish(ctx, mailJobMessage{
		Template:  mailTemplateOrderConfirmation,
		Recipient: order.Customer.Email,
		OrderID:   order.ID,
		Variables: orderVariables(order),
	})
}

// SendAdminNewOrder enqueues the operator alert for a new order.
func (p *PubSubMailPublisher) SendAdminNewOrder(ctx context.Context, order services.Order, adminEmail string) error {
	return p.publish(ctx, mailJobMessage{
		Template:  mailTemplateAdminNewOrder,
		Recipient: adminEmail,
		OrderID:   order.ID,
		Variables: orderVariables(order),
	})
}

// SendWishlistSold enqueues a sold notice for a wishlist subscriber.
func (p *PubSubMailPublisher) SendWishlistSold(ctx context.Context, recipient string, item services.OrderItem) error {
	return p.publish(ctx, mailJobMessage{
		Template:  mailTemplateWishlistSold,
		Recipient: recipient,
		Variables: map[string]any{
			"productId":    item.ProductID,
			"productTitle": item.Title,
			"productSlug":  item.Slug,
		},
	})
}

// SendShipmentNotice enqueues the shipment email with tracking details.
func (p *PubSubMailPublisher) SendShipmentNotice(ctx context.Context, order services.Order) error {
	vars := orderVariables(order)
	vars["trackingNumber"] = order.TrackingNumber
	vars["carrierName"] = order.CarrierName
	vars["trackingUrl"] = order.TrackingURL
	return p.publish(ctx, mailJobMessage{
		Template:  mailTemplateShipmentNotice,
		Recipient: order.Customer.Email,
		OrderID:   order.ID,
		Variables: vars,
	})
}

func (p *PubSubMailPublisher) publish(ctx context.Context, message mailJobMessage) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub mail publisher: not initialised")
	}
	if strings.TrimSpace(message.Recipient) == "" {
		return errors.New("pubsub mail publisher: recipient is required")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "template", message.Template)
	setAttr(attrs, "orderId", message.OrderID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish mail job: %w", err)
	}
	return nil
}

func orderVariables(order services.Order) map[string]any {
	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"title":     item.Title,
			"unitPrice": item.UnitPrice,
			"quantity":  item.Quantity,
		})
	}
	return map[string]any{
		"orderNumber":  order.OrderNumber,
		"customerName": order.Customer.Name,
		"currency":     order.Currency,
		"subtotal":     order.Subtotal,
		"shippingCost": order.ShippingCost,
		"tax":          order.Tax,
		"total":        order.Total,
		"items":        items,
	}
}

// orderEventMessage mirrors services.OrderEvent on the wire.
type orderEventMessage struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	OrderNumber    string         `json:"orderNumber,omitempty"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// PubSubOrderEventPublisher implements services.OrderEventPublisher over a
// Pub/Sub topic for downstream consumers such as analytics.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order event publisher: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues an order domain event on the configured topic.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order event publisher: not initialised")
	}

	data, err := p.marshal(orderEventMessage{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt,
		Metadata:       event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "status", event.CurrentStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var (
	_ services.Mailer              = (*PubSubMailPublisher)(nil)
	_ services.OrderEventPublisher = (*PubSubOrderEventPublisher)(nil)
)
