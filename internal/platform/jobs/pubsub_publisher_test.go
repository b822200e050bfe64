package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/maison-curio/api/internal/domain"
	"github.com/maison-curio/api/internal/services"
)

func newTestTopic(t *testing.T, name string) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() {
		_ = srv.Close()
	})

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	topic, err := client.CreateTopic(ctx, name)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return topic, srv
}

func TestPubSubMailPublisherPublishesShipmentNotice(t *testing.T) {
	ctx := context.Background()
	topic, srv := newTestTopic(t, "mail-jobs")

	publisher, err := NewPubSubMailPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubMailPublisher: %v", err)
	}

	order := services.Order{
		ID:          "ord_1",
		OrderNumber: "MC-20250501-A1B2C3",
		Currency:    "EUR",
		Subtotal:    48000,
		Total:       55000,
		Customer: domain.CustomerSnapshot{
			Name:  "Ada Vermeer",
			Email: "ada@example.com",
		},
		TrackingNumber: "1Z999",
		CarrierName:    "DHL",
	}

	if err := publisher.SendShipmentNotice(ctx, order); err != nil {
		t.Fatalf("SendShipmentNotice: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload mailJobMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Template != mailTemplateShipmentNotice {
		t.Fatalf("unexpected template %q", payload.Template)
	}
	if payload.Recipient != "ada@example.com" {
		t.Fatalf("unexpected recipient %q", payload.Recipient)
	}
	if payload.Variables["trackingNumber"] != "1Z999" {
		t.Fatalf("tracking number missing from variables: %v", payload.Variables)
	}
	if attr := messages[0].Attributes["orderId"]; attr != "ord_1" {
		t.Fatalf("expected orderId attribute, got %q", attr)
	}
}

func TestPubSubMailPublisherRejectsMissingRecipient(t *testing.T) {
	topic, _ := newTestTopic(t, "mail-jobs")

	publisher, err := NewPubSubMailPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubMailPublisher: %v", err)
	}

	if err := publisher.SendOrderConfirmation(context.Background(), services.Order{ID: "ord_1"}); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
}

func TestPubSubOrderEventPublisherPublishesEvent(t *testing.T) {
	ctx := context.Background()
	topic, srv := newTestTopic(t, "order-events")

	publisher, err := NewPubSubOrderEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}

	occurredAt := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	event := services.OrderEvent{
		Type:           "order.status.changed",
		OrderID:        "ord_1",
		OrderNumber:    "MC-20250501-A1B2C3",
		PreviousStatus: "paid",
		CurrentStatus:  "shipped",
		OccurredAt:     occurredAt,
	}

	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload orderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Type != event.Type || payload.CurrentStatus != "shipped" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["status"]; attr != "shipped" {
		t.Fatalf("expected status attribute, got %q", attr)
	}
}
