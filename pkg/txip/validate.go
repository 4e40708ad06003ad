// Package txip's Message Validator: structural and semantic checks an
// envelope must pass before its payload is acted on (spec.md §4.3,
// §6). Validate never mutates env; it only classifies it as
// acceptable or not.
package txip

import (
	"fmt"

	"github.com/txbridge/engine/pkg/clock"
)

const maxFeesBps = 10000

// Validate runs every structural and semantic check spec.md §4.3
// requires of an envelope, dispatching to the payload-specific checks
// once the header is well-formed.
func Validate(env Envelope) error {
	if env.TxipVersion != ProtocolVersion {
		return fmt.Errorf("%w: got %q, want %q", ErrUnsupportedVersion, env.TxipVersion, ProtocolVersion)
	}
	if env.MsgID == "" {
		return fmt.Errorf("%w: msg_id", ErrMissingField)
	}
	if env.SessionID == "" {
		return fmt.Errorf("%w: session_id", ErrMissingField)
	}

	switch env.MessageType {
	case MessageTypeControl:
		payload, err := env.DecodeControlPayload()
		if err != nil {
			return err
		}
		return validateControl(payload)
	case MessageTypeTgp:
		payload, err := env.DecodeTgpPayload()
		if err != nil {
			return err
		}
		return validateTgp(env.TgpPhase, payload)
	case MessageTypeError:
		payload, err := env.DecodeErrorPayload()
		if err != nil {
			return err
		}
		return validateErrorMessage(payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, env.MessageType)
	}
}

func validateControl(p ControlPayload) error {
	switch p.ControlType {
	case ControlTypeHello:
		if p.Hello == nil {
			return fmt.Errorf("%w: hello", ErrMissingField)
		}
		if len(p.Hello.SupportedVersions) == 0 {
			return fmt.Errorf("%w: supported_versions", ErrMissingField)
		}
		return nil
	case ControlTypeWelcome:
		if p.Welcome == nil {
			return fmt.Errorf("%w: welcome", ErrMissingField)
		}
		if p.Welcome.SessionID == "" {
			return fmt.Errorf("%w: welcome.session_id", ErrMissingField)
		}
		if p.Welcome.ProtocolVersion == "" {
			return fmt.Errorf("%w: welcome.protocol_version", ErrMissingField)
		}
		return nil
	case ControlTypeHeartbeat:
		if p.Heartbeat == nil {
			return fmt.Errorf("%w: heartbeat", ErrMissingField)
		}
		return nil
	case ControlTypeClose:
		if p.Close == nil {
			return fmt.Errorf("%w: close", ErrMissingField)
		}
		switch p.Close.Reason {
		case CloseReasonIdleTimeout, CloseReasonClientShutdown, CloseReasonProtocolError, CloseReasonOther:
			return nil
		default:
			return fmt.Errorf("txip: unknown close reason %q", p.Close.Reason)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownControlType, p.ControlType)
	}
}

func validateTgp(phase TgpPhase, p TgpPayload) error {
	switch phase {
	case TgpPhaseQuery:
		if p.Query == nil {
			return fmt.Errorf("%w: query", ErrMissingField)
		}
		return validateQuery(*p.Query)
	case TgpPhaseOffer:
		if p.Offer == nil {
			return fmt.Errorf("%w: offer", ErrMissingField)
		}
		return validateOffer(*p.Offer)
	case TgpPhaseSettle:
		if p.Settle == nil {
			return fmt.Errorf("%w: settle", ErrMissingField)
		}
		return validateSettle(*p.Settle)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTgpPhase, phase)
	}
}

func validateQuery(q QueryMessage) error {
	if q.QueryID == "" {
		return fmt.Errorf("%w: id", ErrMissingField)
	}
	if !IsValidAddress(q.From) {
		return fmt.Errorf("%w: from %q", ErrInvalidAddress, q.From)
	}
	if !IsValidAddress(q.To) {
		return fmt.Errorf("%w: to %q", ErrInvalidAddress, q.To)
	}
	if q.Asset == "" {
		return fmt.Errorf("%w: asset", ErrMissingField)
	}
	if q.Amount == 0 {
		return ErrInvalidAmount
	}
	switch q.ZkProfile {
	case ZkProfileNone, ZkProfileOptional, ZkProfileRequired:
	default:
		return fmt.Errorf("txip: unknown zk_profile %q", q.ZkProfile)
	}
	return validateEconomics(q.Economics)
}

func validateOffer(o OfferMessage) error {
	if o.OfferID == "" {
		return fmt.Errorf("%w: id", ErrMissingField)
	}
	if o.QueryID == "" {
		return fmt.Errorf("%w: query_id", ErrMissingField)
	}
	if o.Asset == "" {
		return fmt.Errorf("%w: asset", ErrMissingField)
	}
	if o.Amount == 0 {
		return ErrInvalidAmount
	}
	return validateEconomics(o.Economics)
}

func validateSettle(s SettleMessage) error {
	if s.SettleID == "" {
		return fmt.Errorf("%w: id", ErrMissingField)
	}
	if s.QueryOrOfferID == "" {
		return fmt.Errorf("%w: query_or_offer_id", ErrMissingField)
	}
	switch s.Source {
	case SettleSourceBuyerNotify, SettleSourceControllerWatcher, SettleSourceCoreproverIndexer:
	default:
		return fmt.Errorf("txip: unknown settle source %q", s.Source)
	}
	if s.Layer8Tx != nil && !IsValidTxHash(*s.Layer8Tx) {
		return fmt.Errorf("%w: layer8_tx %q", ErrInvalidTxHash, *s.Layer8Tx)
	}
	return nil
}

func validateErrorMessage(e ErrorMessage) error {
	if e.ErrorID == "" {
		return fmt.Errorf("%w: id", ErrMissingField)
	}
	if e.Message == "" {
		return fmt.Errorf("%w: message", ErrMissingField)
	}
	switch e.Code {
	case ErrorCodeInvalidQuery, ErrorCodeUnsupportedAsset, ErrorCodePolicyViolation,
		ErrorCodeContractBlacklisted, ErrorCodeInsufficientFunds, ErrorCodeTimeout,
		ErrorCodeSettlementFailed, ErrorCodeInvalidState:
		return nil
	default:
		return fmt.Errorf("txip: unknown error code %q", e.Code)
	}
}

func validateEconomics(e EconomicEnvelope) error {
	if e.MaxFeesBps > maxFeesBps {
		return fmt.Errorf("%w: %d", ErrFeesOutOfRange, e.MaxFeesBps)
	}
	if e.Expiry != nil {
		if err := clock.ValidateISO(*e.Expiry); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidExpiry, err)
		}
	}
	return nil
}
