package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"invoicebot/internal/models"
)

const productsCollection = "products"

type ProductRepo struct {
	Client *firestore.Client
}

func NewProductRepo(client *firestore.Client) *ProductRepo { return &ProductRepo{Client: client} }

func (r *ProductRepo) ListProducts(ctx context.Context) ([]models.Product, error) {
	iter := r.Client.Collection(productsCollection).Documents(ctx)
	defer iter.Stop()

	var out []models.Product
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate products: %w", err)
		}
		out = append(out, productFromDoc(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}

func productFromDoc(id string, data map[string]any) models.Product {
	p := models.Product{
		ID:       id,
		Name:     models.ScalarString(data["name"]),
		SKU:      models.ScalarString(data["sku"]),
		Currency: models.ScalarString(data["currency"]),
		Unit:     models.ScalarString(data["unit"]),
		Price:    toFloat(data["price"]),
		Stock:    int64(toFloat(data["stock"])),
	}
	if pid := models.ScalarString(data["productId"]); pid != "" {
		p.ID = pid
	}
	return p
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
