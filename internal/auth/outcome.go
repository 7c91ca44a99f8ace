package auth

// Reason tags a verification failure.
type Reason string

const (
	ReasonExpired          Reason = "expired"
	ReasonBadSignature     Reason = "bad_signature"
	ReasonMalformed        Reason = "malformed"
	ReasonIdentityMismatch Reason = "identity_mismatch"
	ReasonIdentityNotFound Reason = "identity_not_found"
	ReasonIdentityDisabled Reason = "identity_disabled"
	ReasonMissingHeader    Reason = "missing_header"
	ReasonInternal         Reason = "internal_error"
)

// Outcome is the result of validating a token. Exactly one of Principal (when
// Valid) or Reason (when not) is meaningful.
type Outcome struct {
	Valid     bool
	Reason    Reason
	Principal *Principal
}

// Accept builds a valid outcome carrying the verified principal.
func Accept(p *Principal) Outcome {
	return Outcome{Valid: true, Principal: p}
}

// Deny builds an invalid outcome for the given reason.
func Deny(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// ReasonForDecodeError maps a TokenManager parse failure onto a rejection reason.
func ReasonForDecodeError(err error) Reason {
	switch err {
	case ErrTokenExpired:
		return ReasonExpired
	case ErrSignatureInvalid:
		return ReasonBadSignature
	default:
		return ReasonMalformed
	}
}
