package admission

import (
	"context"

	"github.com/synnergy-labs/monero-gateway/internal/ids"
)

// PidSource is the narrow slice of PaymentStore that prewarming needs,
// kept separate from the storage package so admission does not import it
// directly.
type PidSource interface {
	StreamPaymentIds(ctx context.Context, fn func(ids.PaymentId) error) error
}

// Prewarm populates l from every PID persisted in src. It is called once
// at boot, after storage migrations, so the first redeem after a restart
// never misses a legitimate PID.
func Prewarm(ctx context.Context, l *Layer, src PidSource) error {
	return src.StreamPaymentIds(ctx, func(pid ids.PaymentId) error {
		l.Insert(pid)
		return nil
	})
}
