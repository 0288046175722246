package fanout

import "context"

// Backbone carries frames between processes. Every frame published by one
// process is delivered to the subscribers of all of them, the publisher
// included.
type Backbone interface {
	Publish(ctx context.Context, group string, frame []byte) error
	Subscribe(ctx context.Context, deliver func(group string, frame []byte)) error
	Close() error
}
