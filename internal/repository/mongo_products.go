package repository

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/domain"
)

// MongoProducts каталог и остатки; варианты хранятся внутри документа товара
type MongoProducts struct{ store *MongoStore }

func NewMongoProducts(store *MongoStore) *MongoProducts { return &MongoProducts{store: store} }

var (
	_ ProductRepository   = (*MongoProducts)(nil)
	_ InventoryRepository = (*MongoProducts)(nil)
)

func (r *MongoProducts) c() *mongo.Collection { return r.store.coll(collProducts) }

func (r *MongoProducts) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	p.CreatedAt = r.store.now()
	p.UpdatedAt = p.CreatedAt
	p.RecomputeInStock()
	if p.Images == nil {
		p.Images = []string{}
	}
	_, err := r.c().InsertOne(ctx, p)
	return mapMongoErr(err)
}

func (r *MongoProducts) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := r.c().FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapMongoErr(err)
	}
	return &p, nil
}

func (r *MongoProducts) Update(ctx context.Context, p *domain.Product) error {
	cur, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = r.store.now()
	p.RecomputeInStock()
	res, err := r.c().ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoProducts) Delete(ctx context.Context, id string) error {
	res, err := r.c().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

var sortKeys = map[SortField]string{
	SortByCreatedAt: "createdAt",
	SortByPrice:     "price",
	SortByName:      "name",
	SortByRating:    "rating.average",
}

func (r *MongoProducts) List(ctx context.Context, f ProductFilter) ([]domain.Product, int64, error) {
	filter := bson.M{}
	if f.ActiveOnly {
		filter["isActive"] = true
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	if f.NameSubstring != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.NameSubstring), Options: "i"}
		filter["$or"] = bson.A{bson.M{"name": rx}, bson.M{"description": rx}}
	}

	key, ok := sortKeys[f.SortBy]
	if !ok {
		key = "createdAt"
	}
	dir := -1
	if f.Ascending {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: key, Value: dir}, {Key: "_id", Value: dir}})
	if f.Page.Limit > 0 {
		opts.SetSkip(f.Page.Skip()).SetLimit(f.Page.Limit)
	}

	total, err := r.c().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.c().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Product, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Reserve условное списание одним UpdateOne: вариант должен иметь stock >= qty
func (r *MongoProducts) Reserve(ctx context.Context, key domain.VariantKey, qty int64) error {
	filter := bson.M{
		"_id": key.ProductID,
		"variants": bson.M{"$elemMatch": bson.M{
			"size":  key.Size,
			"color": key.Color,
			"stock": bson.M{"$gte": qty},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"variants.$.stock": -qty},
		"$set": bson.M{"updatedAt": r.store.now()},
	}
	res, err := r.c().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		p, err := r.GetByID(ctx, key.ProductID)
		if err != nil {
			return err
		}
		return &domain.InsufficientStockError{
			ProductName: p.Name,
			Size:        key.Size,
			Color:       key.Color,
			Available:   p.StockOf(key.Size, key.Color),
		}
	}
	return r.refreshInStock(ctx, key.ProductID)
}

func (r *MongoProducts) Release(ctx context.Context, key domain.VariantKey, qty int64) error {
	filter := bson.M{
		"_id":      key.ProductID,
		"variants": bson.M{"$elemMatch": bson.M{"size": key.Size, "color": key.Color}},
	}
	update := bson.M{
		"$inc": bson.M{"variants.$.stock": qty},
		"$set": bson.M{"updatedAt": r.store.now()},
	}
	res, err := r.c().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return r.refreshInStock(ctx, key.ProductID)
}

// refreshInStock inStock = max(variants.stock) > 0, вычисляется на сервере
func (r *MongoProducts) refreshInStock(ctx context.Context, id string) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "inStock", Value: bson.D{{Key: "$gt", Value: bson.A{
			bson.D{{Key: "$max", Value: "$variants.stock"}}, 0,
		}}}}}}},
	}
	_, err := r.c().UpdateByID(ctx, id, pipeline)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
