// Command event-gen writes a synthetic live-event partition for exercising the live
// loader: orders, payments and refunds under varying field names, plus a share of
// malformed and id-less lines.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/commerce-facts/internal/adapter/source"
	"github.com/V4T54L/commerce-facts/internal/domain"
)

type options struct {
	orders    int
	vendors   int
	badRatio  float64
	seed      uint64
	day       time.Time
	newEvents func() string
}

type counts struct {
	Events    int
	Malformed int
	MissingID int
}

func main() {
	dir := flag.String("dir", "data/live_events", "live events root directory")
	date := flag.String("date", time.Now().UTC().Format("2006-01-02"), "partition date (YYYY-MM-DD)")
	orders := flag.Int("orders", 100, "number of orders to generate")
	vendors := flag.Int("vendors", 3, "number of distinct vendors")
	bad := flag.Float64("bad", 0.02, "share of malformed or id-less lines")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	day, err := time.Parse("2006-01-02", *date)
	if err != nil {
		log.Fatalf("invalid -date %q: %v", *date, err)
	}

	path := source.LiveEventsPath(*dir, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Fatalf("failed to create partition dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	c, err := generate(f, options{
		orders: *orders, vendors: *vendors, badRatio: *bad, seed: *seed, day: day,
		newEvents: uuid.NewString,
	})
	if err != nil {
		log.Fatalf("failed to generate events: %v", err)
	}
	fmt.Printf("wrote %s: %d events, %d malformed, %d without event_id\n", path, c.Events, c.Malformed, c.MissingID)
}

// generate writes NDJSON lines to w. Every order gets one payment attempt; successful
// attempts are confirmed and some are refunded.
func generate(w io.Writer, opts options) (counts, error) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	if opts.newEvents == nil {
		opts.newEvents = uuid.NewString
	}
	if opts.vendors <= 0 {
		opts.vendors = 1
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	var c counts
	emit := func(t domain.EventType, at time.Time, vendor string, payload map[string]any) error {
		if rng.Float64() < opts.badRatio {
			if rng.IntN(2) == 0 {
				c.Malformed++
				_, err := bw.WriteString("{\"event_id\": \"truncated\n")
				return err
			}
			c.MissingID++
			return enc.Encode(map[string]any{"event_type": t, "payload": payload})
		}
		c.Events++
		return enc.Encode(map[string]any{
			"event_id":   opts.newEvents(),
			"event_type": t,
			"event_time": at.Format(time.RFC3339),
			"vendor":     vendor,
			"payload":    payload,
		})
	}

	for i := 0; i < opts.orders; i++ {
		vendor := fmt.Sprintf("vendor_%d", rng.IntN(opts.vendors)+1)
		created := opts.day.Add(time.Duration(rng.IntN(86400)) * time.Second)
		orderID := fmt.Sprintf("ORD-%s-%05d", opts.day.Format("20060102"), i)
		amount := float64(rng.IntN(50000)+100) / 100

		order := map[string]any{
			"order_id":    orderID,
			"customerId":  fmt.Sprintf("CUST-%04d", rng.IntN(500)),
			"totalAmount": amount,
			"state":       "created",
			"created_at":  created.Format(time.RFC3339),
		}
		if err := emit(domain.EventOrderCreated, created, vendor, order); err != nil {
			return c, err
		}

		paid := created.Add(time.Duration(rng.IntN(7200)) * time.Second)
		paymentID := "PAY-" + orderID
		success := rng.Float64() < 0.85
		status := "FAILED"
		if success {
			status = "SUCCESS"
		}
		payment := map[string]any{"order_id": orderID, "status": status, "paid_at": paid.Format(time.RFC3339)}
		// Vendors disagree on field names; alternate between the known spellings.
		if rng.IntN(2) == 0 {
			payment["payment_id"], payment["amount"], payment["method"] = paymentID, amount, "card"
		} else {
			payment["transaction_id"], payment["amountPaid"], payment["channel"] = paymentID, amount, "wallet"
		}
		if err := emit(domain.EventPaymentAttempt, paid, vendor, payment); err != nil {
			return c, err
		}
		if !success {
			continue
		}
		if err := emit(domain.EventPaymentConfirmed, paid, vendor, payment); err != nil {
			return c, err
		}

		if rng.Float64() < 0.1 {
			refunded := paid.Add(time.Duration(rng.IntN(3600)) * time.Second)
			refund := map[string]any{"refund_id": "REF-" + orderID, "order_id": orderID, "payment_id": paymentID, "refund_amount": amount / 2, "reason": "customer_request", "created_at": refunded.Format(time.RFC3339)}
			if err := emit(domain.EventRefundCreated, refunded, vendor, refund); err != nil {
				return c, err
			}
		}
	}
	return c, bw.Flush()
}
