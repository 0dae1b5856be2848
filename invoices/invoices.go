// Package invoices is a small command set exercising declared parameters
// end to end: invoices are created, listed and deleted in a storage
// backend, one record per label.
package invoices

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ggoodman/rpcparam/internal/jsonrpc"
	"github.com/ggoodman/rpcparam/param"
	"github.com/ggoodman/rpcparam/rpcserver"
	"github.com/ggoodman/rpcparam/storage"
)

// Namespace is the storage namespace holding invoice records.
const Namespace = "invoices"

// DefaultExpiry applies when invoice is called without expiry.
const DefaultExpiry = 7 * 24 * time.Hour

// Error codes reported by the invoice commands.
const (
	ErrorCodeLabelExists      jsonrpc.ErrorCode = 900
	ErrorCodeNotFound         jsonrpc.ErrorCode = 905
	ErrorCodeStatusUnexpected jsonrpc.ErrorCode = 906
)

// Invoice statuses.
const (
	StatusUnpaid  = "unpaid"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

// Invoice is one stored invoice.
type Invoice struct {
	Label       string     `json:"label"`
	AmountMsat  param.Msat `json:"amount_msat"`
	Description string     `json:"description"`
	PaymentHash string     `json:"payment_hash"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

// statusAt reports the effective status at now. Unpaid invoices past their
// expiry are expired.
func (inv *Invoice) statusAt(now time.Time) string {
	if inv.Status == StatusUnpaid && !now.Before(inv.ExpiresAt) {
		return StatusExpired
	}
	return inv.Status
}

// Service implements the invoice commands on top of a store.
type Service struct {
	store storage.Storage
	log   *slog.Logger
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Service persisting to store.
func New(store storage.Storage, opts ...Option) *Service {
	s := &Service{store: store, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Commands returns the command set for registration with a server.
func (s *Service) Commands() []rpcserver.Command {
	return []rpcserver.Command{
		{
			Name:        "invoice",
			Category:    "payment",
			Description: "Create an invoice for {amount} with {label} and optional {description}, expiring after {expiry}.",
			Handler:     s.handleInvoice,
		},
		{
			Name:        "listinvoices",
			Category:    "payment",
			Description: "Show invoice {label} (or all, if no {label}).",
			Handler:     s.handleList,
		},
		{
			Name:        "delinvoice",
			Category:    "payment",
			Description: "Delete invoice {label}, optionally only when it has {status}.",
			Handler:     s.handleDelete,
		},
		{
			Name:        "decodeamount",
			Category:    "utility",
			Description: "Normalize {amount} to millisatoshi.",
			Handler:     s.handleDecodeAmount,
		},
	}
}

// InvoiceResult is returned by the invoice command.
type InvoiceResult struct {
	Label       string    `json:"label"`
	PaymentHash string    `json:"payment_hash"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Service) handleInvoice(ctx context.Context, call *rpcserver.Call) (any, error) {
	var (
		amount      param.Msat
		label       string
		description string
		expiry      time.Duration
	)
	err := param.Parse(call,
		param.Required("amount", param.Amount, &amount),
		param.Required("label", param.Label, &label),
		param.OptionalDefault("description", param.String, &description, ""),
		param.OptionalDefault("expiry", param.Duration, &expiry, DefaultExpiry),
	)
	if err != nil {
		return nil, err
	}
	if expiry <= 0 {
		return nil, param.Errorf("expiry", "'expiry' should be positive, not '%s'", expiry)
	}

	hash, err := newPaymentHash()
	if err != nil {
		return nil, fmt.Errorf("generate payment hash: %w", err)
	}
	now := s.now().UTC()
	inv := Invoice{
		Label:       label,
		AmountMsat:  amount,
		Description: description,
		PaymentHash: hash,
		Status:      StatusUnpaid,
		CreatedAt:   now,
		ExpiresAt:   now.Add(expiry),
	}
	data, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("encode invoice: %w", err)
	}

	err = s.store.Set(ctx, label, data, storage.WithNamespace(Namespace), storage.IfNotExists())
	if errors.Is(err, storage.ErrExists) {
		return nil, &jsonrpc.Error{Code: ErrorCodeLabelExists, Message: "Duplicate label '" + label + "'"}
	}
	if err != nil {
		return nil, fmt.Errorf("store invoice: %w", err)
	}

	s.log.InfoContext(ctx, "invoices.create", slog.String("label", label), slog.String("amount", amount.String()))
	return InvoiceResult{Label: label, PaymentHash: hash, ExpiresAt: inv.ExpiresAt}, nil
}

// ListResult is returned by listinvoices.
type ListResult struct {
	Invoices []Invoice `json:"invoices"`
}

func (s *Service) handleList(ctx context.Context, call *rpcserver.Call) (any, error) {
	var label *string
	if err := param.Parse(call, param.Optional("label", param.Label, &label)); err != nil {
		return nil, err
	}

	var labels []string
	if label != nil {
		labels = []string{*label}
	} else {
		var err error
		labels, err = s.store.List(ctx, storage.WithNamespace(Namespace))
		if err != nil {
			return nil, fmt.Errorf("list invoices: %w", err)
		}
	}

	now := s.now()
	res := ListResult{Invoices: make([]Invoice, 0, len(labels))}
	for _, l := range labels {
		inv, err := s.load(ctx, l)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			continue
		}
		inv.Status = inv.statusAt(now)
		res.Invoices = append(res.Invoices, *inv)
	}
	return res, nil
}

func (s *Service) handleDelete(ctx context.Context, call *rpcserver.Call) (any, error) {
	var (
		label  string
		status *string
	)
	err := param.Parse(call,
		param.Required("label", param.Label, &label),
		param.Optional("status", param.Enum(StatusPaid, StatusUnpaid, StatusExpired), &status),
	)
	if err != nil {
		return nil, err
	}

	inv, err := s.load(ctx, label)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &jsonrpc.Error{Code: ErrorCodeNotFound, Message: "Unknown invoice"}
	}
	inv.Status = inv.statusAt(s.now())
	if status != nil && *status != inv.Status {
		return nil, &jsonrpc.Error{
			Code:    ErrorCodeStatusUnexpected,
			Message: fmt.Sprintf("Invoice status is %s not %s", inv.Status, *status),
		}
	}

	if err := s.store.Delete(ctx, storage.WithNamespace(Namespace), storage.WithKey(label)); err != nil {
		return nil, fmt.Errorf("delete invoice: %w", err)
	}
	s.log.InfoContext(ctx, "invoices.delete", slog.String("label", label))
	return inv, nil
}

// AmountResult is returned by decodeamount.
type AmountResult struct {
	AmountMsat param.Msat `json:"amount_msat"`
	Formatted  string     `json:"formatted"`
}

func (s *Service) handleDecodeAmount(ctx context.Context, call *rpcserver.Call) (any, error) {
	var amount param.Msat
	if err := param.Parse(call, param.Required("amount", param.Amount, &amount)); err != nil {
		return nil, err
	}
	return AmountResult{AmountMsat: amount, Formatted: amount.String()}, nil
}

func (s *Service) load(ctx context.Context, label string) (*Invoice, error) {
	item, err := s.store.Get(ctx, label, storage.WithNamespace(Namespace))
	if err != nil {
		return nil, fmt.Errorf("load invoice %q: %w", label, err)
	}
	if item == nil {
		return nil, nil
	}
	var inv Invoice
	if err := json.Unmarshal(item.Data, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice %q: %w", label, err)
	}
	return &inv, nil
}

func newPaymentHash() (string, error) {
	var preimage [32]byte
	if _, err := rand.Read(preimage[:]); err != nil {
		return "", err
	}
	sum := sha256.Sum256(preimage[:])
	return hex.EncodeToString(sum[:]), nil
}
