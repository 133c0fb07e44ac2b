// Package payment talks to the Pin Payments charges API. Every call is
// classified into exactly one Outcome variant so callers never have to guess
// which failure path fired.
package payment

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultCurrency    = "AUD"
	DefaultDescription = "Pirate Party Donation"
	DefaultTimeout     = 30 * time.Second

	chargesPath = "/1/charges"
)

// Config is the processor connection configuration
type Config struct {
	// Endpoint is the API hostname, e.g. test-api.pin.net.au
	Endpoint string `toml:"api_endpoint"`
	// SecretKey authenticates charge calls (basic auth username)
	SecretKey string `toml:"secret_key"`
	// PublishableKey is embedded into the donation form for card tokenization
	PublishableKey string `toml:"publishable_key"`
	// Currency is an ISO 4217 code charges are made in
	Currency string `toml:"currency"`
	// Description is attached to every charge
	Description string `toml:"description"`
	// Timeout bounds a single charge call
	Timeout Duration `toml:"timeout"`
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// ChargeRequest is one charge submission
type ChargeRequest struct {
	Email       string
	IPAddress   string
	Description string
	AmountCents int64
	Currency    string
	CardToken   string
}

// Outcome is the classified result of a charge call. It is one of
// Succeeded, Declined, Malformed or TransportFailure.
type Outcome interface {
	isOutcome()
}

// Succeeded means the processor accepted the charge.
type Succeeded struct {
	ChargeToken string
	AmountCents int64
	Raw         json.RawMessage // the processor's response object, verbatim
}

// Declined means the processor refused the card.
type Declined struct {
	Code string
}

// Malformed means the processor answered, but not in a shape we recognize.
// The raw body is kept for manual reconciliation.
type Malformed struct {
	Status  int
	RawBody []byte
}

// TransportFailure means the call itself failed (dial, TLS, timeout). The
// charge may or may not have gone through on the processor side.
type TransportFailure struct {
	Err error
}

func (Succeeded) isOutcome()        {}
func (Declined) isOutcome()         {}
func (Malformed) isOutcome()        {}
func (TransportFailure) isOutcome() {}

type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout.Duration
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	baseURL := strings.TrimSuffix(cfg.Endpoint, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	return &Client{
		baseURL:   baseURL,
		secretKey: cfg.SecretKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type chargeEnvelope struct {
	Response *chargeResponse `json:"response"`
	Error    string          `json:"error"`
}

type chargeResponse struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

// Charge submits one charge and classifies the result. The ctx deadline
// should be detached from the inbound request: once the call is on the wire
// it must be allowed to finish, a client disconnect is not a reason to
// leave the processor in an unknown state.
func (c *Client) Charge(ctx context.Context, request *ChargeRequest) Outcome {
	form := url.Values{}
	form.Set("email", request.Email)
	form.Set("ip_address", request.IPAddress)
	form.Set("description", request.Description)
	form.Set("amount", strconv.FormatInt(request.AmountCents, 10))
	form.Set("currency", request.Currency)
	form.Set("card_token", request.CardToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chargesPath, strings.NewReader(form.Encode()))
	if err != nil {
		return TransportFailure{Err: err}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.client.Do(req)
	if err != nil {
		return TransportFailure{Err: err}
	}

	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return TransportFailure{Err: err}
	}

	log.WithFields(log.Fields{
		"status": resp.StatusCode,
		"email":  request.Email,
	}).Debug("charge call completed")

	return classify(resp.StatusCode, body)
}

func classify(status int, body []byte) Outcome {
	envelope := chargeEnvelope{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Malformed{Status: status, RawBody: body}
	}

	switch {
	case status == http.StatusUnprocessableEntity && envelope.Error != "":
		// Card declined, e.g. "invalid_resource"
		return Declined{Code: envelope.Error}

	case status >= 200 && status < 300 && envelope.Response != nil && envelope.Response.Token != "":
		raw := extractResponse(body)
		return Succeeded{
			ChargeToken: envelope.Response.Token,
			AmountCents: envelope.Response.Amount,
			Raw:         raw,
		}

	default:
		// The processor spoke, but not in a shape we recognize
		return Malformed{Status: status, RawBody: body}
	}
}

// extractResponse pulls the raw "response" object out of the envelope so the
// full processor payload can be persisted with the receipt.
func extractResponse(body []byte) json.RawMessage {
	var envelope struct {
		Response json.RawMessage `json:"response"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	return envelope.Response
}
