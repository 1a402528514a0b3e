package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
	"storefront/internal/service"
)

//go:embed catalog.json
var catalogJSON []byte

// Catalog образцы товаров витрины
func Catalog() ([]domain.Product, error) {
	var list []domain.Product
	dec := json.NewDecoder(bytes.NewReader(catalogJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i := range list {
		list[i].IsActive = true
	}
	return list, nil
}

// Hasher хеширует пароль демо-пользователя
type Hasher interface {
	Hash(secret string) (string, error)
}

// DemoUser подтверждённая учётная запись для ручной проверки
type DemoUser struct {
	Email     string
	Password  string
	FirstName string
}

var DefaultDemoUser = DemoUser{Email: "demo@storefront.local", Password: "demo1234", FirstName: "Demo"}

type Result struct {
	ProductsCreated int
	ProductsSkipped int
	UserCreated     bool
}

// Run загружает каталог и демо-пользователя; повторный запуск пропускает уже существующие записи
func Run(ctx context.Context, products *service.ProductService, users repository.UserRepository, hasher Hasher, demo DemoUser) (Result, error) {
	log := logging.FromContext(ctx)
	var res Result

	catalog, err := Catalog()
	if err != nil {
		return res, err
	}
	for _, p := range catalog {
		if _, err := products.Create(ctx, p); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				// sku already present
				log.Debug("seed_product_skipped", zap.String("name", p.Name), zap.Error(err))
				res.ProductsSkipped++
				continue
			}
			return res, fmt.Errorf("seed product %q: %w", p.Name, err)
		}
		res.ProductsCreated++
	}

	_, err = users.GetByEmail(ctx, demo.Email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		digest, err := hasher.Hash(demo.Password)
		if err != nil {
			return res, err
		}
		u := &domain.User{
			Email:         demo.Email,
			PasswordHash:  digest,
			FirstName:     demo.FirstName,
			AccountStatus: domain.AccountVerified,
		}
		if err := users.Create(ctx, u); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return res, fmt.Errorf("seed demo user: %w", err)
		}
		res.UserCreated = true
	default:
		return res, err
	}

	log.Info("seed_completed",
		zap.Int("products_created", res.ProductsCreated),
		zap.Int("products_skipped", res.ProductsSkipped),
		zap.Bool("demo_user_created", res.UserCreated),
	)
	return res, nil
}
