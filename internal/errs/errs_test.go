package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageIncludesWrappedCause(t *testing.T) {
	cause := errors.New("connection reset")
	e := New(KindExchangeAPI, "bitbank", cause)
	assert.Equal(t, "bitbank: exchange_api: connection reset", e.Error())
}

func TestError_MessageOmitsCauseWhenNil(t *testing.T) {
	e := New(KindRiskRejection, "risk", nil)
	assert.Equal(t, "risk: risk_rejection", e.Error())
}

func TestError_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	e := New(KindModelLoad, "ensemble", cause)
	assert.Equal(t, cause, errors.Unwrap(e))
}

func TestErrors_IsMatchesByKindOnly(t *testing.T) {
	wrapped := New(KindExchangeRateLimit, "bitbank", errors.New("429"))
	sentinel := &Error{Kind: KindExchangeRateLimit}
	assert.True(t, errors.Is(wrapped, sentinel))
}

func TestErrors_IsRejectsDifferentKind(t *testing.T) {
	wrapped := New(KindExchangeRateLimit, "bitbank", errors.New("429"))
	sentinel := &Error{Kind: KindExchangeAuth}
	assert.False(t, errors.Is(wrapped, sentinel))
}

func TestErrors_AsExtractsTypedError(t *testing.T) {
	var target *Error
	err := error(New(KindAtomicEntryFailure, "execution", errors.New("rollback")))
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, KindAtomicEntryFailure, target.Kind)
}
