// Package notifications delivers outbound payment webhooks.
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oniongate/satstore/internal/core/domain"
)

// PaymentConfirmed is the payload posted when an order's payment settles.
type PaymentConfirmed struct {
	Event       string    `json:"event"`
	OrderNumber string    `json:"order_number"`
	AmountSats  int64     `json:"amount_sats"`
	TxRef       string    `json:"tx_ref"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

var client = &http.Client{Timeout: 5 * time.Second}

// ConfirmationHook builds the notifier the order manager fires on each
// pending -> confirmed transition.
func ConfirmationHook(url string, log *slog.Logger) func(*domain.Order) {
	return func(ord *domain.Order) {
		payload := PaymentConfirmed{
			Event:       "payment.confirmed",
			OrderNumber: ord.Number.String(),
			AmountSats:  ord.AmountSats,
			TxRef:       ord.TxRef,
			ConfirmedAt: ord.UpdatedAt,
		}
		if err := SendWebhook(url, payload); err != nil {
			log.Error("webhook delivery failed", "error", err, "order_number", ord.Number)
			return
		}
		log.Info("webhook delivered", "order_number", ord.Number)
	}
}

// SendWebhook posts the payload as JSON. The request is bounded by a short
// timeout so a slow receiver cannot stall the worker.
func SendWebhook(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "satstore-webhook/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook receiver returned status %d", resp.StatusCode)
}
