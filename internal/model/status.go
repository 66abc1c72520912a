package model

import (
	"errors"
	"strings"
)

type OrderStatus string

const (
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// OrderStatuses lists every recognized status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ParseOrderStatus accepts any casing ("OUT_FOR_DELIVERY", "preparing").
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OrderStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// rank orders the forward chain; cancelled is outside it.
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusConfirmed:
		return 1
	case OrderStatusPreparing:
		return 2
	case OrderStatusOutForDelivery:
		return 3
	case OrderStatusDelivered:
		return 4
	default:
		return 0
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type StatusPolicy string

const (
	// StatusPolicyStrict only moves forward along the chain, or cancels a non-terminal order.
	StatusPolicyStrict StatusPolicy = "strict"
	// StatusPolicyPermissive accepts any recognized status at any time.
	StatusPolicyPermissive StatusPolicy = "permissive"
)

// CheckTransition reports whether from -> to is allowed under the policy.
// Setting the current status again is always allowed.
func (p StatusPolicy) CheckTransition(from, to OrderStatus) error {
	if p == StatusPolicyPermissive || from == to {
		return nil
	}
	if from.IsTerminal() {
		return ErrInvalidTransition
	}
	if to == OrderStatusCancelled {
		return nil
	}
	if to.rank() > from.rank() {
		return nil
	}
	return ErrInvalidTransition
}
