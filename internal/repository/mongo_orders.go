package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/domain"
)

// MongoOrders заказы; уникальность orderNumber обеспечивает индекс
type MongoOrders struct{ store *MongoStore }

func NewMongoOrders(store *MongoStore) *MongoOrders { return &MongoOrders{store: store} }

var _ OrderRepository = (*MongoOrders)(nil)

func (r *MongoOrders) c() *mongo.Collection { return r.store.coll(collOrders) }

func (r *MongoOrders) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = NewID()
	}
	o.CreatedAt = r.store.now()
	o.UpdatedAt = o.CreatedAt
	_, err := r.c().InsertOne(ctx, o)
	return mapMongoErr(err)
}

func (r *MongoOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoOrders) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"orderNumber": number})
}

func (r *MongoOrders) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var o domain.Order
	if err := r.c().FindOne(ctx, filter).Decode(&o); err != nil {
		return nil, mapMongoErr(err)
	}
	return &o, nil
}

func (r *MongoOrders) ListByUser(ctx context.Context, userID string, page Page) ([]domain.Order, int64, error) {
	filter := bson.M{"userId": userID}
	total, err := r.c().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "orderNumber", Value: -1}})
	if page.Limit > 0 {
		opts.SetSkip(page.Skip()).SetLimit(page.Limit)
	}
	cur, err := r.c().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Order, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoOrders) TransitionStatus(ctx context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus, note string) (*domain.Order, error) {
	set := bson.M{"status": to, "updatedAt": r.store.now()}
	if note != "" {
		set["statusNote"] = note
	}
	var o domain.Order
	err := r.c().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	if err != nil {
		return nil, r.missReason(ctx, bson.M{"_id": id}, err)
	}
	return &o, nil
}

// ConfirmPending: сравнение и очистка токена одной атомарной операцией
func (r *MongoOrders) ConfirmPending(ctx context.Context, number, token string, now time.Time) (*domain.Order, error) {
	filter := bson.M{
		"orderNumber":       number,
		"status":            domain.OrderStatusPending,
		"confirmationToken": token,
		"$or": bson.A{
			bson.M{"confirmationExpiresAt": bson.M{"$gt": now}},
			bson.M{"confirmationExpiresAt": bson.M{"$exists": false}},
		},
	}
	update := bson.M{
		"$set":   bson.M{"status": domain.OrderStatusConfirmed, "updatedAt": now},
		"$unset": bson.M{"confirmationToken": "", "confirmationExpiresAt": ""},
	}
	var o domain.Order
	err := r.c().FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	if err != nil {
		return nil, r.missReason(ctx, bson.M{"orderNumber": number}, err)
	}
	return &o, nil
}

func (r *MongoOrders) MarkConfirmationSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.c().UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"confirmationEmailSent":   true,
		"confirmationEmailSentAt": at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// missReason различает отсутствие документа и несовпадение условия
func (r *MongoOrders) missReason(ctx context.Context, exists bson.M, err error) error {
	if err != mongo.ErrNoDocuments {
		return err
	}
	n, cerr := r.c().CountDocuments(ctx, exists)
	if cerr != nil {
		return cerr
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStaleState
}
