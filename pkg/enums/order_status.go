package enums

import "fmt"

// OrderStatus tracks the lifecycle of a vending order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusRequiresPayment OrderStatus = "requires_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusFailed          OrderStatus = "failed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusRefunded        OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusRequiresPayment,
	OrderStatusPaid,
	OrderStatusFailed,
	OrderStatusCancelled,
	OrderStatusExpired,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible. Paid is not
// terminal: a paid order can still move to refunded.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCancelled, OrderStatusExpired, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
