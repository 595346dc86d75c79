package handler

// InitiatePaymentRequest represents a request to start collecting an order's payment
type InitiatePaymentRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description,omitempty"`
}

// RefundRequest represents a request to refund a held payment
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PaymentResponse represents a payment ledger entry in API responses
type PaymentResponse struct {
	ID                string `json:"id"`
	OrderRef          string `json:"order_ref"`
	Amount            string `json:"amount"`
	BuyerPhone        string `json:"buyer_phone"`
	ArtisanPhone      string `json:"artisan_phone"`
	OutboundRef       string `json:"outbound_ref"`
	GatewayReceiptRef string `json:"gateway_receipt_ref,omitempty"`
	State             string `json:"state"`
	ResultDescription string `json:"result_description,omitempty"`
	RefundReason      string `json:"refund_reason,omitempty"`
	InitiatedAt       string `json:"initiated_at"`
	HeldAt            string `json:"held_at,omitempty"`
	ReleasedAt        string `json:"released_at,omitempty"`
	RefundedAt        string `json:"refunded_at,omitempty"`
}
