package retry

import (
	"context"
	"time"

	"github.com/dogmatiq/linger"
)

// Sleep blocks until the retry that follows the given number of consecutive
// failures is due under p. It returns ctx.Err() if ctx is canceled first.
func Sleep(ctx context.Context, p Policy, failures uint, cause error) error {
	due := p.NextRetry(time.Now(), failures, cause)
	return linger.Sleep(ctx, time.Until(due))
}
