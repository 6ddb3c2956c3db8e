package model

import "fmt"

// PromotionType is the tier a listing owner pays for.
type PromotionType string

const (
	PromotionPremium   PromotionType = "premium"
	PromotionHighlight PromotionType = "highlight"
	PromotionTop       PromotionType = "top"
)

// Currency of every promotion charge.
const Currency = "TRY"

// Prices in whole lira, by tier and duration in days.
var Prices = map[PromotionType]map[int]int{
	PromotionPremium:   {7: 25, 15: 45, 30: 75},
	PromotionHighlight: {7: 15, 15: 25, 30: 40},
	PromotionTop:       {7: 35, 15: 60, 30: 100},
}

// Price returns the amount for a tier and duration.
func Price(kind PromotionType, days int) (int, error) {
	tier, ok := Prices[kind]
	if !ok {
		return 0, fmt.Errorf("unknown promotion type %q", kind)
	}
	amount, ok := tier[days]
	if !ok {
		return 0, fmt.Errorf("promotion duration must be 7, 15 or 30 days, got %d", days)
	}
	return amount, nil
}

// OrderStatus is the state of a payment attempt.
//
//	pending ──► completed
//	   ├──────► failed
//	   └──────► cancelled
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderCompleted, OrderFailed, OrderCancelled},
}

// IsOrderTransitionAllowed returns true when moving an order from → to is permitted.
func IsOrderTransitionAllowed(from, to OrderStatus) bool {
	return allowed(orderTransitions, from, to)
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	_, open := orderTransitions[s]
	return !open
}

// Order is one promotion payment attempt.
type Order struct {
	ID            string        `json:"id"`
	OrderID       string        `json:"orderId"`
	ListingID     string        `json:"jobId"`
	UserID        string        `json:"userId"`
	PromotionType PromotionType `json:"promotionType"`
	DurationDays  int           `json:"promotionDuration"`
	Amount        int           `json:"amount"`
	Currency      string        `json:"currency"`
	Status        OrderStatus   `json:"status"`
	PaymentURL    string        `json:"paymentUrl,omitempty"`
	ProviderRef   string        `json:"-"`
	CreatedAt     int64         `json:"createdAt"`
	CompletedAt   int64         `json:"completedAt,omitempty"`
}
