package repositories

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"invoicebot/internal/models"
)

const invoicesCollection = "invoices"

type InvoiceRepo struct {
	Client *firestore.Client
}

func NewInvoiceRepo(client *firestore.Client) *InvoiceRepo { return &InvoiceRepo{Client: client} }

// ListInvoices streams the whole invoices collection.
func (r *InvoiceRepo) ListInvoices(ctx context.Context) ([]models.StoredInvoice, error) {
	return r.collect(ctx, r.Client.Collection(invoicesCollection).Documents(ctx))
}

// ListPendingInvoices uses the buyerInfo.status index instead of a full scan.
func (r *InvoiceRepo) ListPendingInvoices(ctx context.Context) ([]models.StoredInvoice, error) {
	q := r.Client.Collection(invoicesCollection).Where("buyerInfo.status", "==", "pending")
	return r.collect(ctx, q.Documents(ctx))
}

func (r *InvoiceRepo) collect(ctx context.Context, iter *firestore.DocumentIterator) ([]models.StoredInvoice, error) {
	defer iter.Stop()
	var out []models.StoredInvoice
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate invoices: %w", err)
		}
		out = append(out, invoiceFromDoc(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}

func (r *InvoiceRepo) GetInvoice(ctx context.Context, id string) (models.StoredInvoice, error) {
	doc, err := r.Client.Collection(invoicesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.StoredInvoice{}, models.ErrNotFound
	}
	if err != nil {
		return models.StoredInvoice{}, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return invoiceFromDoc(doc.Ref.ID, doc.Data()), nil
}

// MarkStatus sets the invoice and buyer status, e.g. after a verified payment callback.
func (r *InvoiceRepo) MarkStatus(ctx context.Context, id, newStatus string) error {
	_, err := r.Client.Collection(invoicesCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: newStatus},
		{Path: "buyerInfo.status", Value: newStatus},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if status.Code(err) == codes.NotFound {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update invoice %s: %w", id, err)
	}
	return nil
}

func invoiceFromDoc(id string, data map[string]any) models.StoredInvoice {
	inv := models.StoredInvoice{
		ID:       id,
		Status:   models.ScalarString(data["status"]),
		Total:    models.ScalarString(data["total"]),
		Currency: models.ScalarString(data["currency"]),
		Fields:   data,
	}
	if buyer, ok := data["buyerInfo"].(map[string]any); ok {
		inv.Buyer = models.BuyerInfo{
			Name:    models.ScalarString(buyer["name"]),
			Contact: models.ScalarString(buyer["contact"]),
			Status:  models.ScalarString(buyer["status"]),
		}
	}
	if inv.Total == "" {
		inv.Total = models.ScalarString(data["amount"])
	}
	return inv
}
