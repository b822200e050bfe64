package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/maison-curio/api/internal/domain"
	pfirestore "github.com/maison-curio/api/internal/platform/firestore"
	"github.com/maison-curio/api/internal/repositories"
)

const (
	orderCollection        = "orders"
	orderSessionCollection = "orderSessionIndex"
	orderNumberCollection  = "orderNumberIndex"
)

// OrderRepository persists orders together with the uniqueness index
// documents that make creation idempotent on the payment session.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// Insert creates the order document plus its session and order-number index
// documents in a single transaction. tx.Create fails with AlreadyExists when
// either index document exists, which surfaces as a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	if strings.TrimSpace(order.PaymentSessionID) == "" {
		return errors.New("order repository: payment session id is required")
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return errors.New("order repository: order number is required")
	}

	doc := encodeOrderDocument(order)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(client.Collection(orderSessionCollection).Doc(order.PaymentSessionID), indexDocument{OrderID: order.ID}); err != nil {
			return err
		}
		if err := tx.Create(client.Collection(orderNumberCollection).Doc(order.OrderNumber), indexDocument{OrderID: order.ID}); err != nil {
			return err
		}
		return tx.Create(client.Collection(orderCollection).Doc(order.ID), doc)
	})
	if err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update overwrites the order document. The indexed fields never change
// after creation, so no index maintenance is required.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	doc := encodeOrderDocument(order)
	if _, err := client.Collection(orderCollection).Doc(order.ID).Set(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID loads a single order by its document identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	snap, err := client.Collection(orderCollection).Doc(orderID).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	return decodeOrderSnapshot(snap)
}

// FindByPaymentSessionID resolves the session index document and loads the order.
func (r *OrderRepository) FindByPaymentSessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Order{}, errors.New("order repository: payment session id is required")
	}
	return r.findViaIndex(ctx, client, orderSessionCollection, sessionID, "orders.get_by_session")
}

// FindByOrderNumber resolves the order-number index document and loads the order.
func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return domain.Order{}, errors.New("order repository: order number is required")
	}
	return r.findViaIndex(ctx, client, orderNumberCollection, orderNumber, "orders.get_by_number")
}

// FindByPaymentIntentID queries orders on the payment intent reference.
func (r *OrderRepository) FindByPaymentIntentID(ctx context.Context, intentID string) (domain.Order, error) {
	client, err := r.client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return domain.Order{}, errors.New("order repository: payment intent id is required")
	}

	iter := client.Collection(orderCollection).
		Where("paymentIntentId", "==", intentID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Order{}, pfirestore.WrapError("orders.get_by_intent", status.Error(codes.NotFound, "order not found"))
	}
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get_by_intent", err)
	}
	return decodeOrderSnapshot(snap)
}

func (r *OrderRepository) findViaIndex(ctx context.Context, client *firestore.Client, collection, key, op string) (domain.Order, error) {
	snap, err := client.Collection(collection).Doc(key).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError(op, err)
	}
	var index indexDocument
	if err := snap.DataTo(&index); err != nil {
		return domain.Order{}, fmt.Errorf("decode index %s/%s: %w", collection, key, err)
	}
	if strings.TrimSpace(index.OrderID) == "" {
		return domain.Order{}, pfirestore.WrapError(op, status.Error(codes.NotFound, "index document missing order reference"))
	}
	orderSnap, err := client.Collection(orderCollection).Doc(index.OrderID).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError(op, err)
	}
	return decodeOrderSnapshot(orderSnap)
}

func (r *OrderRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order repository not initialised")
	}
	return r.provider.Client(ctx)
}

type indexDocument struct {
	OrderID string `firestore:"orderId"`
}

type orderDocument struct {
	OrderNumber      string              `firestore:"orderNumber"`
	UserID           string              `firestore:"userId,omitempty"`
	Status           string              `firestore:"status"`
	Currency         string              `firestore:"currency"`
	Subtotal         int64               `firestore:"subtotal"`
	ShippingCost     int64               `firestore:"shippingCost"`
	Tax              int64               `firestore:"tax"`
	Total            int64               `firestore:"total"`
	PaymentSessionID string              `firestore:"paymentSessionId"`
	PaymentIntentID  string              `firestore:"paymentIntentId,omitempty"`
	Customer         customerDocument    `firestore:"customer"`
	Items            []orderItemDocument `firestore:"items"`
	TrackingNumber   string              `firestore:"trackingNumber,omitempty"`
	CarrierName      string              `firestore:"carrierName,omitempty"`
	TrackingURL      string              `firestore:"trackingUrl,omitempty"`
	InternalNotes    string              `firestore:"internalNotes,omitempty"`
	CancelReason     *string             `firestore:"cancelReason,omitempty"`
	CreatedAt        time.Time           `firestore:"createdAt"`
	UpdatedAt        time.Time           `firestore:"updatedAt"`
	PaidAt           *time.Time          `firestore:"paidAt,omitempty"`
	ShippedAt        *time.Time          `firestore:"shippedAt,omitempty"`
	DeliveredAt      *time.Time          `firestore:"deliveredAt,omitempty"`
	CanceledAt       *time.Time          `firestore:"canceledAt,omitempty"`
}

type customerDocument struct {
	Name       string `firestore:"name,omitempty"`
	Email      string `firestore:"email,omitempty"`
	Phone      string `firestore:"phone,omitempty"`
	Line1      string `firestore:"line1,omitempty"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Title     string `firestore:"title"`
	Slug      string `firestore:"slug,omitempty"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			Title:     item.Title,
			Slug:      item.Slug,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return orderDocument{
		OrderNumber:      order.OrderNumber,
		UserID:           order.UserID,
		Status:           string(order.Status),
		Currency:         order.Currency,
		Subtotal:         order.Subtotal,
		ShippingCost:     order.ShippingCost,
		Tax:              order.Tax,
		Total:            order.Total,
		PaymentSessionID: order.PaymentSessionID,
		PaymentIntentID:  order.PaymentIntentID,
		Customer: customerDocument{
			Name:       order.Customer.Name,
			Email:      order.Customer.Email,
			Phone:      order.Customer.Phone,
			Line1:      order.Customer.Line1,
			Line2:      order.Customer.Line2,
			City:       order.Customer.City,
			PostalCode: order.Customer.PostalCode,
			Country:    order.Customer.Country,
		},
		Items:          items,
		TrackingNumber: order.TrackingNumber,
		CarrierName:    order.CarrierName,
		TrackingURL:    order.TrackingURL,
		InternalNotes:  order.InternalNotes,
		CancelReason:   order.CancelReason,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
		PaidAt:         order.PaidAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		CanceledAt:     order.CanceledAt,
	}
}

func decodeOrderSnapshot(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Title:     item.Title,
			Slug:      item.Slug,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return domain.Order{
		ID:               snap.Ref.ID,
		OrderNumber:      doc.OrderNumber,
		UserID:           doc.UserID,
		Status:           domain.OrderStatus(doc.Status),
		Currency:         doc.Currency,
		Subtotal:         doc.Subtotal,
		ShippingCost:     doc.ShippingCost,
		Tax:              doc.Tax,
		Total:            doc.Total,
		PaymentSessionID: doc.PaymentSessionID,
		PaymentIntentID:  doc.PaymentIntentID,
		Customer: domain.CustomerSnapshot{
			Name:       doc.Customer.Name,
			Email:      doc.Customer.Email,
			Phone:      doc.Customer.Phone,
			Line1:      doc.Customer.Line1,
			Line2:      doc.Customer.Line2,
			City:       doc.Customer.City,
			PostalCode: doc.Customer.PostalCode,
			Country:    doc.Customer.Country,
		},
		Items:          items,
		TrackingNumber: doc.TrackingNumber,
		CarrierName:    doc.CarrierName,
		TrackingURL:    doc.TrackingURL,
		InternalNotes:  doc.InternalNotes,
		CancelReason:   doc.CancelReason,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		PaidAt:         doc.PaidAt,
		ShippedAt:      doc.ShippedAt,
		DeliveredAt:    doc.DeliveredAt,
		CanceledAt:     doc.CanceledAt,
	}, nil
}

// Ensure interface compliance.
var _ repositories.OrderRepository = (*OrderRepository)(nil)
