package repository

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/domain"
)

// MongoCarts корзины, одна на userId (уникальный индекс)
type MongoCarts struct{ store *MongoStore }

func NewMongoCarts(store *MongoStore) *MongoCarts { return &MongoCarts{store: store} }

var _ CartRepository = (*MongoCarts)(nil)

func (r *MongoCarts) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	var c domain.Cart
	err := getOrCreate(ctx, r.store.coll(collCarts), userID, bson.M{
		"_id":       NewID(),
		"userId":    userID,
		"items":     bson.A{},
		"createdAt": r.store.now(),
		"updatedAt": r.store.now(),
	}, &c)
	if err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return &c, nil
}

func (r *MongoCarts) Save(ctx context.Context, c *domain.Cart) error {
	items := c.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	now := r.store.now()
	var saved domain.Cart
	err := r.store.coll(collCarts).FindOneAndUpdate(ctx,
		bson.M{"userId": c.UserID},
		bson.M{
			"$set":         bson.M{"items": items, "updatedAt": now},
			"$setOnInsert": bson.M{"_id": NewID(), "createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&saved)
	if err != nil {
		return mapMongoErr(err)
	}
	c.ID, c.CreatedAt, c.UpdatedAt = saved.ID, saved.CreatedAt, saved.UpdatedAt
	return nil
}

// MongoWishlists избранное, одно на userId
type MongoWishlists struct{ store *MongoStore }

func NewMongoWishlists(store *MongoStore) *MongoWishlists { return &MongoWishlists{store: store} }

var _ WishlistRepository = (*MongoWishlists)(nil)

func (r *MongoWishlists) GetOrCreate(ctx context.Context, userID string) (*domain.Wishlist, error) {
	var w domain.Wishlist
	err := getOrCreate(ctx, r.store.coll(collWishlists), userID, bson.M{
		"_id":       NewID(),
		"userId":    userID,
		"items":     bson.A{},
		"createdAt": r.store.now(),
		"updatedAt": r.store.now(),
	}, &w)
	if err != nil {
		return nil, err
	}
	if w.Items == nil {
		w.Items = []domain.WishlistItem{}
	}
	return &w, nil
}

func (r *MongoWishlists) Save(ctx context.Context, w *domain.Wishlist) error {
	items := w.Items
	if items == nil {
		items = []domain.WishlistItem{}
	}
	now := r.store.now()
	var saved domain.Wishlist
	err := r.store.coll(collWishlists).FindOneAndUpdate(ctx,
		bson.M{"userId": w.UserID},
		bson.M{
			"$set":         bson.M{"items": items, "updatedAt": now},
			"$setOnInsert": bson.M{"_id": NewID(), "createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&saved)
	if err != nil {
		return mapMongoErr(err)
	}
	w.ID, w.CreatedAt, w.UpdatedAt = saved.ID, saved.CreatedAt, saved.UpdatedAt
	return nil
}

// getOrCreate upsert с $setOnInsert; гонка двух upsert даёт duplicate key, тогда просто читаем
func getOrCreate(ctx context.Context, c *mongo.Collection, userID string, doc bson.M, out any) error {
	onInsert := bson.M{}
	for k, v := range doc {
		if k != "userId" {
			onInsert[k] = v
		}
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	for attempt := 0; attempt < 2; attempt++ {
		err := c.FindOneAndUpdate(ctx,
			bson.M{"userId": userID},
			bson.M{"$setOnInsert": onInsert},
			opts,
		).Decode(out)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return err
		}
	}
	return c.FindOne(ctx, bson.M{"userId": userID}).Decode(out)
}

// MongoUsers учётные записи; email хранится в нижнем регистре
type MongoUsers struct{ store *MongoStore }

func NewMongoUsers(store *MongoStore) *MongoUsers { return &MongoUsers{store: store} }

var _ UserRepository = (*MongoUsers)(nil)

func (r *MongoUsers) c() *mongo.Collection { return r.store.coll(collUsers) }

func (r *MongoUsers) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = r.store.now()
	u.UpdatedAt = u.CreatedAt
	_, err := r.c().InsertOne(ctx, u)
	return mapMongoErr(err)
}

func (r *MongoUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *MongoUsers) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	if err := r.c().FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapMongoErr(err)
	}
	return &u, nil
}

func (r *MongoUsers) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = r.store.now()
	res, err := r.c().ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUsers) Delete(ctx context.Context, id string) error {
	res, err := r.c().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	// корзина и избранное удаляются вместе с пользователем
	for _, name := range []string{collCarts, collWishlists} {
		if _, err := r.store.coll(name).DeleteOne(ctx, bson.M{"userId": id}); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
	}
	return nil
}
