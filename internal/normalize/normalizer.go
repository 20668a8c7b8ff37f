// Package normalize turns raw vendor events into canonical order, payment and refund rows.
//
// Normalization is lossy: a payload that cannot be read degrades to field
// defaults (zero amount, null identifiers, null timestamps) and is counted in Stats,
// never rejected.
package normalize

import (
	"database/sql"
	"log/slog"
	"sort"

	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/resolver"
	"github.com/V4T54L/commerce-facts/internal/vocabulary"
)

// Stats counts what happened to the records of one normalization pass.
type Stats struct {
	Input            int
	Output           int
	Duplicates       int
	DefaultedAmounts int
	UnparsableDates  int
}

// Normalizer maps raw events onto canonical rows using injected resolution rules and
// status vocabulary.
type Normalizer struct {
	rules  resolver.Rules
	vocab  *vocabulary.Table
	logger *slog.Logger
}

// New creates a Normalizer.
func New(rules resolver.Rules, vocab *vocabulary.Table, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		rules:  rules,
		vocab:  vocab,
		logger: logger.With("component", "normalizer"),
	}
}

// Orders normalizes order events. One row per order_id survives: rows are ordered by
// created_at with nulls first and the last row per id wins, so any dated record beats an
// undated one and input order breaks ties.
func (n *Normalizer) Orders(events []domain.RawEvent) ([]domain.Order, Stats) {
	stats := Stats{Input: len(events)}
	if len(events) == 0 {
		return []domain.Order{}, stats
	}

	rows := make([]domain.Order, 0, len(events))
	for _, ev := range events {
		p := ev.Payload
		amount, defaulted := n.rules.Amount(resolver.EntityOrder, resolver.FieldOrderAmount, p)
		created, unparsable := n.rules.Time(resolver.EntityOrder, resolver.FieldCreatedAt, p)
		if defaulted {
			stats.DefaultedAmounts++
		}
		if unparsable {
			stats.UnparsableDates++
		}
		rows = append(rows, domain.Order{
			OrderID:     n.rules.String(resolver.EntityOrder, resolver.FieldOrderID, p),
			CustomerID:  n.rules.String(resolver.EntityOrder, resolver.FieldCustomerID, p),
			OrderAmount: amount,
			OrderStatus: n.rules.String(resolver.EntityOrder, resolver.FieldOrderStatus, p),
			CreatedAt:   created,
			EventID:     ev.ID,
			Vendor:      vendorOf(ev),
			EventType:   ev.Type,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return nullsFirstBefore(rows[i].CreatedAt, rows[j].CreatedAt)
	})

	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[dedupKey(r.OrderID)] = i
	}
	out := make([]domain.Order, 0, len(last))
	for i, r := range rows {
		if last[dedupKey(r.OrderID)] == i {
			out = append(out, r)
		}
	}

	stats.Output = len(out)
	stats.Duplicates = len(rows) - len(out)
	n.logger.Debug("normalized orders", "input", stats.Input, "output", stats.Output, "duplicates", stats.Duplicates)
	return out, stats
}

// Payments normalizes payment events. The first row per payment_id wins; no recency
// ordering is applied.
func (n *Normalizer) Payments(events []domain.RawEvent) ([]domain.Payment, Stats) {
	stats := Stats{Input: len(events)}
	out := make([]domain.Payment, 0, len(events))
	seen := make(map[string]struct{}, len(events))

	for _, ev := range events {
		p := ev.Payload
		amount, defaulted := n.rules.Amount(resolver.EntityPayment, resolver.FieldPaymentAmount, p)
		date, unparsable := n.rules.Time(resolver.EntityPayment, resolver.FieldPaymentDate, p)
		if defaulted {
			stats.DefaultedAmounts++
		}
		if unparsable {
			stats.UnparsableDates++
		}

		row := domain.Payment{
			PaymentID:     n.rules.String(resolver.EntityPayment, resolver.FieldPaymentID, p),
			OrderID:       n.rules.String(resolver.EntityPayment, resolver.FieldOrderID, p),
			PaymentAmount: amount,
			PaymentStatus: n.paymentStatus(p),
			PaymentMethod: n.rules.String(resolver.EntityPayment, resolver.FieldPaymentMethod, p),
			PaymentDate:   date,
			EventID:       ev.ID,
			Vendor:        vendorOf(ev),
		}

		key := dedupKey(row.PaymentID)
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}

	stats.Output = len(out)
	n.logger.Debug("normalized payments", "input", stats.Input, "output", stats.Output, "duplicates", stats.Duplicates)
	return out, stats
}

// Refunds normalizes refund events. The first row per refund_id wins.
func (n *Normalizer) Refunds(events []domain.RawEvent) ([]domain.Refund, Stats) {
	stats := Stats{Input: len(events)}
	out := make([]domain.Refund, 0, len(events))
	seen := make(map[string]struct{}, len(events))

	for _, ev := range events {
		p := ev.Payload
		amount, defaulted := n.rules.Amount(resolver.EntityRefund, resolver.FieldRefundAmount, p)
		date, unparsable := n.rules.Time(resolver.EntityRefund, resolver.FieldRefundDate, p)
		if defaulted {
			stats.DefaultedAmounts++
		}
		if unparsable {
			stats.UnparsableDates++
		}

		row := domain.Refund{
			RefundID:     n.rules.String(resolver.EntityRefund, resolver.FieldRefundID, p),
			OrderID:      n.rules.String(resolver.EntityRefund, resolver.FieldOrderID, p),
			PaymentID:    n.rules.String(resolver.EntityRefund, resolver.FieldPaymentID, p),
			RefundAmount: amount,
			RefundReason: n.rules.String(resolver.EntityRefund, resolver.FieldRefundReason, p),
			RefundType:   n.rules.String(resolver.EntityRefund, resolver.FieldRefundType, p),
			RefundDate:   date,
			EventID:      ev.ID,
			Vendor:       vendorOf(ev),
		}

		key := dedupKey(row.RefundID)
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}

	stats.Output = len(out)
	n.logger.Debug("normalized refunds", "input", stats.Input, "output", stats.Output, "duplicates", stats.Duplicates)
	return out, stats
}

func (n *Normalizer) paymentStatus(p map[string]any) sql.NullString {
	s := n.rules.String(resolver.EntityPayment, resolver.FieldPaymentStatus, p)
	if !s.Valid {
		return s
	}
	return sql.NullString{String: n.vocab.PaymentStatus(s.String), Valid: true}
}

func vendorOf(ev domain.RawEvent) string {
	if ev.Vendor == "" {
		return domain.UnknownVendor
	}
	return ev.Vendor
}

// dedupKey makes null identifiers collide with each other but never with a real id.
func dedupKey(id sql.NullString) string {
	if !id.Valid {
		return "\x00"
	}
	return "=" + id.String
}

func nullsFirstBefore(a, b sql.NullTime) bool {
	if !a.Valid {
		return b.Valid
	}
	if !b.Valid {
		return false
	}
	return a.Time.Before(b.Time)
}
