// Package notify delivers one-time codes to users out of band. The core
// treats delivery as fire-and-forget but observes its failure.
package notify

import "context"

// Notifier delivers a code to a recipient. Implementations must not log the
// code.
type Notifier interface {
	Send(ctx context.Context, toEmail, subject, code string) error
}
