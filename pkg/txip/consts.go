// Copyright 2025 Certen Protocol
//
// Package txip implements the Transaction eXchange Interop Protocol:
// the control-plane envelope, the four TGP message phases, and their
// structural and semantic validation (spec.md §4.3, §6).
package txip

// ProtocolVersion is the only txip_version this engine accepts. An
// envelope carrying any other value is rejected at validation time
// (spec.md §4.3). A HELLO's supported_versions list is not checked
// against it here; the session registry negotiates that list against
// its own configured versions.
const ProtocolVersion = "0.2"

// Direction identifies who an envelope travels between.
type Direction string

const (
	DirectionClientToTbc Direction = "CLIENT_TO_TBC"
	DirectionTbcToClient Direction = "TBC_TO_CLIENT"
	DirectionTbcToTbc    Direction = "TBC_TO_TBC"
)

// Role identifies the sender of an envelope.
type Role string

const (
	RoleBuyerAgent  Role = "BUYER_AGENT"
	RoleSellerAgent Role = "SELLER_AGENT"
	RoleTbc         Role = "TBC"
	RoleWatcher     Role = "WATCHER"
)

// MessageType discriminates the envelope's payload variant.
type MessageType string

const (
	MessageTypeControl MessageType = "CONTROL"
	MessageTypeTgp      MessageType = "TGP"
	MessageTypeError    MessageType = "ERROR"
)

// TgpPhase discriminates a TGP payload's shape.
type TgpPhase string

const (
	TgpPhaseQuery  TgpPhase = "QUERY"
	TgpPhaseOffer  TgpPhase = "OFFER"
	TgpPhaseSettle TgpPhase = "SETTLE"
	TgpPhaseEvent  TgpPhase = "EVENT"
	TgpPhaseNone   TgpPhase = "NONE"
)

// ZkProfile is a QUERY's requested zero-knowledge proof requirement.
type ZkProfile string

const (
	ZkProfileNone     ZkProfile = "NONE"
	ZkProfileOptional ZkProfile = "OPTIONAL"
	ZkProfileRequired ZkProfile = "REQUIRED"
)

// SettleSource identifies who reported a SETTLE outcome. It is
// serialized kebab-case on the wire (spec.md §6).
type SettleSource string

const (
	SettleSourceBuyerNotify       SettleSource = "buyer-notify"
	SettleSourceControllerWatcher SettleSource = "controller-watcher"
	SettleSourceCoreproverIndexer SettleSource = "coreprover-indexer"
)

// ControlType discriminates a CONTROL payload's shape.
type ControlType string

const (
	ControlTypeHello     ControlType = "HELLO"
	ControlTypeWelcome   ControlType = "WELCOME"
	ControlTypeHeartbeat ControlType = "HEARTBEAT"
	ControlTypeClose     ControlType = "CLOSE"
)

// CloseReason is carried on a CLOSE control message, serialized
// snake_case (spec.md §6).
type CloseReason string

const (
	CloseReasonIdleTimeout    CloseReason = "idle_timeout"
	CloseReasonClientShutdown CloseReason = "client_shutdown"
	CloseReasonProtocolError  CloseReason = "protocol_error"
	CloseReasonOther          CloseReason = "other"
)

// ErrorCode is the machine-readable code on an ERROR message.
type ErrorCode string

const (
	ErrorCodeInvalidQuery        ErrorCode = "INVALID_QUERY"
	ErrorCodeUnsupportedAsset    ErrorCode = "UNSUPPORTED_ASSET"
	ErrorCodePolicyViolation     ErrorCode = "POLICY_VIOLATION"
	ErrorCodeContractBlacklisted ErrorCode = "CONTRACT_BLACKLISTED"
	ErrorCodeInsufficientFunds   ErrorCode = "INSUFFICIENT_FUNDS"
	ErrorCodeTimeout             ErrorCode = "TIMEOUT"
	ErrorCodeSettlementFailed    ErrorCode = "SETTLEMENT_FAILED"
	ErrorCodeInvalidState        ErrorCode = "INVALID_STATE"
)
