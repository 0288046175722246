package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/medbot/rounds/core/monitoring"
)

// Publish sends frame on the group topic, retrying with exponential backoff.
// The final failure is reported to monitoring and returned so the caller can
// fall back to local delivery.
func (b *Backbone) Publish(ctx context.Context, group string, frame []byte) error {
	topic := b.Topic(group)
	var publishErr error
retry:
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		token := b.cli.Publish(topic, b.qos, false, frame)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			b.logger.Debugf("published %d bytes on %s", len(frame), topic)
			return nil
		}
		b.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt == b.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			publishErr = ctx.Err()
			break retry
		case <-time.After(b.backoff * time.Duration(1<<attempt)):
		}
	}
	err := fmt.Errorf("publish %s: %w", topic, publishErr)
	monitoring.CaptureException(err, map[string]string{"module": "mqtt", "group": group})
	return err
}
