package models

// Role identifies which side of the marketplace an account is on.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleConsumer Role = "consumer"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleConsumer
}

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusAccepted       OrderStatus = "accepted"
	StatusRejected       OrderStatus = "rejected"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out-for-delivery"
	StatusDelivered      OrderStatus = "delivered"
)

// transitions maps each status to the statuses reachable from it and the
// role allowed to perform the move. Fulfillment is farmer-driven end to end;
// delivered and rejected are terminal.
var transitions = map[OrderStatus]map[OrderStatus]Role{
	StatusPending: {
		StatusAccepted: RoleFarmer,
		StatusRejected: RoleFarmer,
	},
	StatusAccepted: {
		StatusPreparing: RoleFarmer,
	},
	StatusPreparing: {
		StatusOutForDelivery: RoleFarmer,
	},
	StatusOutForDelivery: {
		StatusDelivered: RoleFarmer,
	},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected,
		StatusPreparing, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether actor may move an order from one status to
// another. Unknown statuses, skipped states and wrong actors all fail.
func CanTransition(from, to OrderStatus, actor Role) bool {
	role, ok := transitions[from][to]
	return ok && role == actor
}

// NextStatuses lists the statuses reachable from s, in fulfillment order.
func NextStatuses(s OrderStatus) []OrderStatus {
	order := []OrderStatus{StatusAccepted, StatusRejected, StatusPreparing, StatusOutForDelivery, StatusDelivered}
	var next []OrderStatus
	for _, to := range order {
		if _, ok := transitions[s][to]; ok {
			next = append(next, to)
		}
	}
	return next
}
