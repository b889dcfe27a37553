package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/product/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultPageSize = 20

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) ProductRepository {
	return &mongoRepository{collection: db.Collection("products")}
}

// ConnectMongoDB opens the catalog database with bounded connect and
// server-selection timeouts.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func (m *mongoRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product

	err := m.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

func (m *mongoRepository) ListProducts(ctx context.Context, q ListQuery) ([]*domain.Product, error) {
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Page < 1 {
		q.Page = 1
	}

	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	return products, nil
}

// DecrementStock applies the conditional decrement: the filter requires
// the addressed size option to still hold at least line.Quantity units,
// and the $inc lands in the same document update. MongoDB serializes
// updates per document, so two callers racing for the last unit cannot
// both match the filter.
func (m *mongoRepository) DecrementStock(ctx context.Context, line domain.StockLine) error {
	filter := bson.M{
		"_id": line.ProductID,
		"variants": bson.M{"$elemMatch": bson.M{
			"variant_id": line.VariantID,
			"sizes": bson.M{"$elemMatch": bson.M{
				"size_id": line.SizeID,
				"stock":   bson.M{"$gte": line.Quantity},
			}},
		}},
	}

	update := bson.M{
		"$inc": bson.M{"variants.$[v].sizes.$[s].stock": -line.Quantity},
		"$set": bson.M{"updated_at": time.Now()},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"v.variant_id": line.VariantID},
			bson.M{"s.size_id": line.SizeID, "s.stock": bson.M{"$gte": line.Quantity}},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if result.ModifiedCount == 0 {
		return m.classifyFailedWrite(ctx, line)
	}
	return nil
}

func (m *mongoRepository) IncrementStock(ctx context.Context, line domain.StockLine) error {
	filter := bson.M{
		"_id": line.ProductID,
		"variants": bson.M{"$elemMatch": bson.M{
			"variant_id": line.VariantID,
			"sizes.size_id": line.SizeID,
		}},
	}

	update := bson.M{
		"$inc": bson.M{"variants.$[v].sizes.$[s].stock": line.Quantity},
		"$set": bson.M{"updated_at": time.Now()},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"v.variant_id": line.VariantID},
			bson.M{"s.size_id": line.SizeID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	if result.ModifiedCount == 0 {
		return m.classifyFailedWrite(ctx, domain.StockLine{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SizeID:    line.SizeID,
		})
	}
	return nil
}

// classifyFailedWrite distinguishes a missing record from a failed stock
// precondition after a conditional update matched nothing.
func (m *mongoRepository) classifyFailedWrite(ctx context.Context, line domain.StockLine) error {
	product, err := m.GetProduct(ctx, line.ProductID)
	if err != nil {
		return err
	}
	variant, ok := product.Variant(line.VariantID)
	if !ok {
		return ErrVariantNotFound
	}
	if _, ok := variant.Size(line.SizeID); !ok {
		return ErrSizeNotFound
	}
	return ErrInsufficientStock
}

func (m *mongoRepository) Close(ctx context.Context) error {
	return m.collection.Database().Client().Disconnect(ctx)
}
