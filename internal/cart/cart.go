package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const ttl = 24 * time.Hour

// Line is one held cart entry. Quantities live here; pricing happens at
// checkout against the current menu.
type Line struct {
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Qty        decimal.Decimal `json:"qty"`
	Note       string          `json:"note,omitempty"`
}

type Cart struct {
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps in-progress carts in Redis so a cashier can park an order
// and finish it from another device. Carts expire after a day.
type Store struct {
	client *redis.Client
}

func NewStore(addr, password string, db int) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: client}
}

func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func key(businessID, userID uuid.UUID) string {
	return "cart:" + businessID.String() + ":" + userID.String()
}

// Get returns the held cart, or an empty cart if none is held.
func (s *Store) Get(ctx context.Context, businessID, userID uuid.UUID) (Cart, error) {
	val, err := s.client.Get(ctx, key(businessID, userID)).Result()
	if err == redis.Nil {
		return Cart{Lines: []Line{}}, nil
	}
	if err != nil {
		return Cart{}, err
	}

	var c Cart
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// Save replaces the held cart and refreshes its expiry.
func (s *Store) Save(ctx context.Context, businessID, userID uuid.UUID, c Cart) error {
	c.UpdatedAt = time.Now()
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(businessID, userID), payload, ttl).Err()
}

// Clear drops the held cart. Called after a successful checkout.
func (s *Store) Clear(ctx context.Context, businessID, userID uuid.UUID) error {
	return s.client.Del(ctx, key(businessID, userID)).Err()
}
