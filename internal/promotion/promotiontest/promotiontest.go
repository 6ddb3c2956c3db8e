// Package promotiontest provides in-memory fakes of the promotion store and
// payment gateway for tests.
package promotiontest

import (
	"context"
	"sync"

	"isilanlarim/internal/model"
	"isilanlarim/internal/promotion"
)

// Orders is an in-memory promotion.OrderStore.
type Orders struct {
	mu     sync.Mutex
	orders map[string]model.Order
}

// NewOrders returns an empty Orders.
func NewOrders() *Orders { return &Orders{orders: make(map[string]model.Order)} }

func (m *Orders) Create(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = *o
	return nil
}

func (m *Orders) Get(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, promotion.ErrOrderNotFound
	}
	return &o, nil
}

func (m *Orders) Attach(_ context.Context, id, paymentURL, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return promotion.ErrOrderNotFound
	}
	o.PaymentURL, o.ProviderRef = paymentURL, ref
	m.orders[id] = o
	return nil
}

func (m *Orders) Transition(_ context.Context, id string, from, to model.OrderStatus, at int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if to == model.OrderCompleted {
		o.CompletedAt = at
	}
	m.orders[id] = o
	return true, nil
}

// All returns a copy of every stored order.
func (m *Orders) All() []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out
}

// Gateway is a scriptable promotion.Gateway.
type Gateway struct {
	mu       sync.Mutex
	InitErr  error
	State    promotion.GatewayState
	StateErr error
	charges  []promotion.Charge
}

func (g *Gateway) Initiate(_ context.Context, c promotion.Charge) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, c)
	if g.InitErr != nil {
		return "", "", g.InitErr
	}
	return "https://pay.example/" + c.OrderID, "ref-" + c.OrderID, nil
}

func (g *Gateway) Status(context.Context, string) (promotion.GatewayState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.State, g.StateErr
}

// Charges returns the charges sent so far.
func (g *Gateway) Charges() []promotion.Charge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]promotion.Charge(nil), g.charges...)
}
