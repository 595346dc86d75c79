package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sokocraft/escrow-service/internal/domain/payment"
)

// Gateway result codes the reconciler distinguishes
const (
	resultCodeSuccess       = 0
	resultCodeRefunded      = 1
	resultCodeUserCancelled = 1032
)

// The gateway stamps transaction dates in East Africa Time
var gatewayTimezone = time.FixedZone("EAT", 3*60*60)

const transactionDateLayout = "20060102150405"

// CallbackResult is the structured outcome of one parsed gateway notification
type CallbackResult struct {
	OutboundRef       string
	ResultCode        int
	ResultDescription string
	Success           bool
	Amount            int64 // Minor units; only set on success
	ReceiptRef        string
	PayerPhone        string
	PaidAt            time.Time
}

// stkCallbackEnvelope mirrors the gateway's notification body:
// {Body:{stkCallback:{CheckoutRequestID, ResultCode, ResultDesc,
// CallbackMetadata:{Item:[{Name,Value}...]}}}}
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []metadataItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type metadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// CallbackApplier is the slice of the escrow service the reconciler drives
type CallbackApplier interface {
	ApplyCallback(ctx context.Context, result CallbackResult) error
}

// Reconciler parses inbound gateway notifications, archives them, and applies
// idempotent state transitions. Nothing it returns may escape the webhook
// boundary as a non-200: the external protocol requires an acknowledgement
// regardless of internal outcome, or the gateway retries indefinitely.
type Reconciler struct {
	applier CallbackApplier
	archive CallbackArchive
	logger  *slog.Logger
}

// NewReconciler creates a callback reconciler
func NewReconciler(logger *slog.Logger, applier CallbackApplier, archive CallbackArchive) *Reconciler {
	return &Reconciler{
		applier: applier,
		archive: archive,
		logger:  logger,
	}
}

// Process handles one raw notification. The returned error is an absorbed
// diagnostic for the caller to log; the webhook must acknowledge regardless.
func (r *Reconciler) Process(ctx context.Context, raw []byte) error {
	if r.archive != nil {
		if err := r.archive.Archive(ctx, time.Now().UTC(), raw); err != nil {
			r.logger.Warn("Failed to archive gateway notification", "error", err)
		}
	}

	result, err := parseCallback(raw)
	if err != nil {
		r.logger.Error("Discarding malformed gateway notification", "error", err)
		return err
	}

	if err := r.applier.ApplyCallback(ctx, *result); err != nil {
		if errors.Is(err, payment.ErrEntryNotFound{}) {
			// Unknown reference: nothing to reconcile against, acknowledged anyway
			r.logger.Warn("Gateway notification does not match any ledger entry",
				"outbound_ref", result.OutboundRef,
				"result_code", result.ResultCode,
			)
			return err
		}
		r.logger.Error("Failed to apply gateway notification",
			"outbound_ref", result.OutboundRef,
			"error", err,
		)
		return err
	}

	return nil
}

// parseCallback extracts a structured result from the notification envelope.
// All failures map to ValidationError so the boundary can absorb them.
func parseCallback(raw []byte) (*CallbackResult, error) {
	var envelope stkCallbackEnvelope
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return nil, ValidationError{Reason: "undecodable body: " + err.Error()}
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, ValidationError{Reason: "missing CheckoutRequestID"}
	}

	result := &CallbackResult{
		OutboundRef:       cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDescription: cb.ResultDesc,
		Success:           cb.ResultCode == resultCodeSuccess,
	}
	if !result.Success {
		return result, nil
	}

	items := make(map[string]json.RawMessage, len(cb.CallbackMetadata.Item))
	for _, item := range cb.CallbackMetadata.Item {
		items[item.Name] = item.Value
	}

	amountStr, err := stringItem(items, "Amount")
	if err != nil {
		return nil, err
	}
	amount, err := payment.ParseAmount(amountStr)
	if err != nil {
		return nil, ValidationError{Reason: "unparseable Amount: " + amountStr}
	}
	result.Amount = amount

	result.ReceiptRef, err = stringItem(items, "MpesaReceiptNumber")
	if err != nil {
		return nil, err
	}

	phone, err := stringItem(items, "PhoneNumber")
	if err != nil {
		return nil, err
	}
	result.PayerPhone, err = payment.NormalizePhone(phone)
	if err != nil {
		return nil, ValidationError{Reason: "unnormalizable PhoneNumber: " + phone}
	}

	dateStr, err := stringItem(items, "TransactionDate")
	if err != nil {
		return nil, err
	}
	paidAt, err := time.ParseInLocation(transactionDateLayout, dateStr, gatewayTimezone)
	if err != nil {
		return nil, ValidationError{Reason: "unparseable TransactionDate: " + dateStr}
	}
	result.PaidAt = paidAt.UTC()

	return result, nil
}

// stringItem reads a metadata value that may arrive as a JSON string or number
func stringItem(items map[string]json.RawMessage, name string) (string, error) {
	raw, ok := items[name]
	if !ok {
		return "", ValidationError{Reason: "success callback missing " + name}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", ValidationError{Reason: "unreadable metadata item " + name}
}

// classifyFailure maps a non-zero result code onto a closing state. Code 1 is
// a buyer-side reversal; an explicit user cancellation is kept distinct from
// other failures in the diagnostic.
func classifyFailure(result CallbackResult) (payment.State, string) {
	switch result.ResultCode {
	case resultCodeRefunded:
		return payment.StateRefunded, result.ResultDescription
	case resultCodeUserCancelled:
		return payment.StateFailed, fmt.Sprintf("cancelled by user: %s", result.ResultDescription)
	default:
		return payment.StateFailed, fmt.Sprintf("gateway failure (code %d): %s", result.ResultCode, result.ResultDescription)
	}
}
