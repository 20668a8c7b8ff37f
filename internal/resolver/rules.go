package resolver

import "fmt"

// Entity is a canonical entity type.
type Entity string

const (
	EntityOrder   Entity = "order"
	EntityPayment Entity = "payment"
	EntityRefund  Entity = "refund"
)

// Canonical field names.
const (
	FieldOrderID       = "order_id"
	FieldCustomerID    = "customer_id"
	FieldOrderAmount   = "order_amount"
	FieldOrderStatus   = "order_status"
	FieldCreatedAt     = "created_at"
	FieldPaymentID     = "payment_id"
	FieldPaymentAmount = "payment_amount"
	FieldPaymentStatus = "payment_status"
	FieldPaymentMethod = "payment_method"
	FieldPaymentDate   = "payment_date"
	FieldRefundID      = "refund_id"
	FieldRefundAmount  = "refund_amount"
	FieldRefundReason  = "refund_reason"
	FieldRefundType    = "refund_type"
	FieldRefundDate    = "refund_date"
)

// Rules maps every canonical field of every entity to its fallback chain.
type Rules map[Entity]map[string]Chain

// Chain returns the chain for a field. Unknown fields resolve to an empty chain,
// which always yields the field default.
func (r Rules) Chain(entity Entity, field string) Chain {
	return r[entity][field]
}

// Resolve probes the chain for (entity, field) against payload.
func (r Rules) Resolve(entity Entity, field string, payload map[string]any) (any, bool) {
	v, _, ok := r.Chain(entity, field).Resolve(payload)
	return v, ok
}

// Validate checks that every field the normalizers read has a non-empty chain.
func (r Rules) Validate() error {
	required := map[Entity][]string{
		EntityOrder:   {FieldOrderID, FieldCustomerID, FieldOrderAmount, FieldOrderStatus, FieldCreatedAt},
		EntityPayment: {FieldPaymentID, FieldOrderID, FieldPaymentAmount, FieldPaymentStatus, FieldPaymentMethod, FieldPaymentDate},
		EntityRefund:  {FieldRefundID, FieldOrderID, FieldPaymentID, FieldRefundAmount, FieldRefundReason, FieldRefundType, FieldRefundDate},
	}
	for entity, fields := range required {
		for _, f := range fields {
			if len(r.Chain(entity, f)) == 0 {
				return fmt.Errorf("resolver: %s.%s has no candidate fields", entity, f)
			}
		}
	}
	return nil
}

// Candidates returns the set of payload keys probed by any chain.
func (r Rules) Candidates() map[string]struct{} {
	out := make(map[string]struct{})
	for _, fields := range r {
		for _, chain := range fields {
			for _, name := range chain.Names() {
				out[name] = struct{}{}
			}
		}
	}
	return out
}

// DefaultRules returns the production fallback chains. Probing order is significant.
func DefaultRules() Rules {
	return Rules{
		EntityOrder: {
			FieldOrderID:     Fields("order_id"),
			FieldCustomerID:  Fields("customerId"),
			FieldOrderAmount: Fields("totalAmount"),
			FieldOrderStatus: Fields("state"),
			FieldCreatedAt:   Fields("created_at"),
		},
		EntityPayment: {
			FieldPaymentID:     Fields("transaction_id", "payment_id", "id", "paymentId"),
			FieldOrderID:       Fields("order_id", "orderId"),
			FieldPaymentAmount: Fields("amountPaid", "amount", "payment_amount", "totalAmount"),
			FieldPaymentStatus: Fields("payment_status", "status", "state"),
			FieldPaymentMethod: Fields("channel", "method", "payment_method"),
			FieldPaymentDate:   Fields("paid_at", "payment_date", "created_at"),
		},
		EntityRefund: {
			FieldRefundID:     Fields("refund_id", "id", "transaction_id"),
			FieldOrderID:      Fields("order_id", "orderId"),
			FieldPaymentID:    Fields("payment_id", "paymentId", "transaction_id"),
			FieldRefundAmount: Fields("amountRefunded", "amount", "refund_amount", "totalAmount"),
			FieldRefundReason: Fields("reason", "refund_reason"),
			FieldRefundType:   Fields("type", "refund_type"),
			FieldRefundDate:   Fields("refunded_at", "refund_date", "created_at"),
		},
	}
}
