// Package donation runs a single submission through its stages: consume the
// form nonce, validate the amount, charge the processor, persist a receipt.
// Each submission ends in exactly one terminal state.
package donation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/piratepartyau/donate/pkg/model"
	"github.com/piratepartyau/donate/pkg/payment"
)

// State is the terminal outcome of one submission
type State string

const (
	// StateCompleted means the charge went through and a receipt is available
	StateCompleted State = "completed"
	// StateExpired means the nonce was missing, already used or timed out
	StateExpired State = "expired"
	// StateInvalidInput means the amount did not parse as a positive decimal
	StateInvalidInput State = "invalid_input"
	// StateRejected means the processor declined the card
	StateRejected State = "rejected"
	// StateProcessingError means the processor call failed or answered in an
	// unexpected shape; requires manual follow-up
	StateProcessingError State = "processing_error"
)

// Result is what the caller renders. Amount is the human readable value,
// e.g. "12.50", derived from the processor's response by exact decimal
// division.
type Result struct {
	State       State
	ChargeToken string
	Amount      string
	DeclineCode string
}

type nonceStore interface {
	Consume(ctx context.Context, id string) (bool, error)
}

type charger interface {
	Charge(ctx context.Context, request *payment.ChargeRequest) payment.Outcome
}

type receiptStore interface {
	SaveReceipt(ctx context.Context, receipt *model.Receipt) error
}

type Service struct {
	nonces        nonceStore
	charger       charger
	receipts      receiptStore
	currency      string
	description   string
	chargeTimeout time.Duration
}

func NewService(nonces nonceStore, charger charger, receipts receiptStore, cfg payment.Config) *Service {
	currency := cfg.Currency
	if currency == "" {
		currency = payment.DefaultCurrency
	}

	description := cfg.Description
	if description == "" {
		description = payment.DefaultDescription
	}

	timeout := cfg.Timeout.Duration
	if timeout == 0 {
		timeout = payment.DefaultTimeout
	}

	return &Service{
		nonces:        nonces,
		charger:       charger,
		receipts:      receipts,
		currency:      currency,
		description:   description,
		chargeTimeout: timeout,
	}
}

// Submit runs the submission to a terminal state. Stages run strictly in
// order and the first failure short-circuits; no stage after a failed one
// executes.
func (s *Service) Submit(ctx context.Context, d *model.Donation) *Result {
	// The nonce is consumed before any chargeable work, even if later
	// validation fails. A replayed form must never reach the processor.
	ok, err := s.nonces.Consume(ctx, d.NonceID)
	if err != nil {
		log.WithError(err).Error("failed to consume nonce")
		return &Result{State: StateExpired}
	}

	if !ok {
		log.WithField("nonce", d.NonceID).Info("submission with expired or replayed nonce")
		return &Result{State: StateExpired}
	}

	cents, err := toCents(d.RawAmount)
	if err != nil || cents <= 0 {
		log.WithField("amount", d.RawAmount).Error("invalid amount")
		return &Result{State: StateInvalidInput}
	}

	// Detached from the inbound request context: once a charge is issued it
	// runs to completion, a client disconnect must not cancel it and a
	// failed call is never retried (the processor side-effect may already
	// have happened).
	chargeCtx, cancel := context.WithTimeout(context.Background(), s.chargeTimeout)
	defer cancel()

	outcome := s.charger.Charge(chargeCtx, &payment.ChargeRequest{
		Email:       d.Email,
		IPAddress:   d.ClientIP,
		Description: s.description,
		AmountCents: cents,
		Currency:    s.currency,
		CardToken:   d.CardToken,
	})

	switch v := outcome.(type) {
	case payment.Succeeded:
		return s.persist(ctx, d, v)

	case payment.Declined:
		log.WithFields(log.Fields{
			"code":  v.Code,
			"email": d.Email,
		}).Warn("charge declined")
		return &Result{State: StateRejected, DeclineCode: v.Code}

	case payment.Malformed:
		log.WithFields(log.Fields{
			"status": v.Status,
			"body":   string(v.RawBody),
			"email":  d.Email,
			"amount": cents,
		}).Error("unexpected processor response")
		return &Result{State: StateProcessingError}

	case payment.TransportFailure:
		log.WithError(v.Err).WithFields(log.Fields{
			"email":  d.Email,
			"amount": cents,
		}).Error("charge call failed")
		return &Result{State: StateProcessingError}

	default:
		log.Errorf("unknown charge outcome %T", outcome)
		return &Result{State: StateProcessingError}
	}
}

func (s *Service) persist(ctx context.Context, d *model.Donation, charge payment.Succeeded) *Result {
	receipt := &model.Receipt{
		ID:          charge.ChargeToken,
		Email:       d.Email,
		AmountCents: charge.AmountCents,
		Currency:    s.currency,
		Description: s.description,
		Comment:     d.Comment,
		ClientIP:    d.ClientIP,
		Raw:         charge.Raw,
		CreatedAt:   time.Now().UTC(),
	}

	amount := formatCents(charge.AmountCents)

	if err := s.receipts.SaveReceipt(ctx, receipt); err != nil {
		// The charge already happened, the user still gets the success page.
		// Log everything needed for out-of-band reconciliation.
		log.WithError(err).WithFields(log.Fields{
			"charge": charge.ChargeToken,
			"email":  d.Email,
			"amount": charge.AmountCents,
			"raw":    string(charge.Raw),
		}).Error("failed to save receipt")
	}

	log.WithFields(log.Fields{
		"charge":  charge.ChargeToken,
		"comment": d.Comment,
	}).Infof("successful payment of $%s", amount)

	return &Result{
		State:       StateCompleted,
		ChargeToken: charge.ChargeToken,
		Amount:      amount,
	}
}

// toCents converts a raw decimal amount in whole currency units to minor
// units, truncating toward zero. "12.345" becomes 1234, never 1235.
func toCents(raw string) (int64, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}

	return amount.Mul(decimal.New(100, 0)).IntPart(), nil
}

// formatCents renders minor units back to a display amount, "1250" -> "12.50"
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
