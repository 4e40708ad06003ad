package txip

// HelloPayload opens control-plane negotiation (spec.md §4.4).
type HelloPayload struct {
	SupportedVersions []string `json:"supported_versions"`
	SupportedChainIDs []uint64 `json:"supported_chain_ids"`
	Features          []string `json:"features,omitempty"`
}

// WelcomePayload answers a HELLO with the negotiated parameters.
type WelcomePayload struct {
	SessionID             string   `json:"session_id"`
	ProtocolVersion       string   `json:"protocol_version"`
	ChainIDs              []uint64 `json:"chain_ids"`
	HeartbeatIntervalSecs uint64   `json:"heartbeat_interval_secs"`
}

// HeartbeatPayload has no fields; its presence is the signal.
type HeartbeatPayload struct{}

// ClosePayload carries the reason a session is being torn down.
type ClosePayload struct {
	Reason CloseReason `json:"reason"`
}

// ControlPayload is the CONTROL message-type variant. Exactly one of
// Hello, Welcome, Heartbeat, Close is populated, matching ControlType.
type ControlPayload struct {
	ControlType ControlType       `json:"control_type"`
	Hello       *HelloPayload     `json:"hello,omitempty"`
	Welcome     *WelcomePayload   `json:"welcome,omitempty"`
	Heartbeat   *HeartbeatPayload `json:"heartbeat,omitempty"`
	Close       *ClosePayload     `json:"close,omitempty"`
}

// EconomicEnvelope bounds the fees and validity window a QUERY or
// OFFER is willing to accept (spec.md §4.3).
type EconomicEnvelope struct {
	MaxFeesBps uint32  `json:"max_fees_bps"`
	Expiry     *string `json:"expiry,omitempty"`
}

// QueryMessage is the buyer agent's request for a cross-chain escrow
// counterparty (spec.md §4.3's QUERY phase).
type QueryMessage struct {
	QueryID               string           `json:"id"`
	From                  string           `json:"from"`
	To                    string           `json:"to"`
	Asset                 string           `json:"asset"`
	Amount                uint64           `json:"amount"`
	EscrowFrom402         bool             `json:"escrow_from_402"`
	EscrowContractFrom402 *string          `json:"escrow_contract_from_402,omitempty"`
	ZkProfile             ZkProfile        `json:"zk_profile"`
	Economics             EconomicEnvelope `json:"economics"`
}

// OfferMessage is a seller agent's (or TBC's) response to a QUERY.
type OfferMessage struct {
	OfferID            string           `json:"id"`
	QueryID            string           `json:"query_id"`
	Asset              string           `json:"asset"`
	Amount             uint64           `json:"amount"`
	CoreproverContract *string          `json:"coreprover_contract,omitempty"`
	SessionID          *string          `json:"session_id,omitempty"`
	ZkRequired         bool             `json:"zk_required"`
	Economics          EconomicEnvelope `json:"economics"`
}

// SettleMessage reports (or requests) the outcome of a negotiated
// escrow, identified by the query or offer id it settles.
type SettleMessage struct {
	SettleID        string       `json:"id"`
	QueryOrOfferID  string       `json:"query_or_offer_id"`
	Success         bool         `json:"success"`
	Source          SettleSource `json:"source"`
	Layer8Tx        *string      `json:"layer8_tx,omitempty"`
	SessionID       *string      `json:"session_id,omitempty"`
}

// ErrorMessage is a TGP-phase error response, correlated to the
// message that failed when known.
type ErrorMessage struct {
	ErrorID       string    `json:"id"`
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
}

// TgpPayload is the TGP message-type variant. Exactly one field is
// populated, matching the envelope's tgp_phase.
type TgpPayload struct {
	Query  *QueryMessage  `json:"query,omitempty"`
	Offer  *OfferMessage  `json:"offer,omitempty"`
	Settle *SettleMessage `json:"settle,omitempty"`
}
