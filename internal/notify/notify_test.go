package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlert_NoWebhookNeverPanics(t *testing.T) {
	n := NewNotifier("")
	assert.NotPanics(t, func() {
		n.Alert(context.Background(), SeverityCritical, "execution", "atomic_entry_failure", "rollback required")
	})
}

func TestAlert_WarningSeverityNeverPanics(t *testing.T) {
	n := NewNotifier("")
	assert.NotPanics(t, func() {
		n.Alert(context.Background(), SeverityWarning, "risk", "drawdown_paused", "daily limit breached")
	})
}

func TestAlert_DisallowedWebhookURLSkipsPostWithoutPanicking(t *testing.T) {
	// a loopback webhook URL fails security.ValidateURL and Alert must
	// degrade to log-only rather than attempting the POST or erroring.
	n := NewNotifier("http://127.0.0.1:9/webhook")
	assert.NotPanics(t, func() {
		n.Alert(context.Background(), SeverityCritical, "execution", "atomic_entry_failure", "rollback required")
	})
}
