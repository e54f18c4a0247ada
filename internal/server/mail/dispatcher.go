package mail

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/logging"
)

// DefaultTimeout bounds a single delivery when no positive timeout is given.
const DefaultTimeout = 10 * time.Second

// Dispatcher sends composed messages in the background. A failed delivery
// is logged and otherwise ignored.
type Dispatcher struct {
	sender   Sender
	composer *Composer
	timeout  time.Duration
	log      logging.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(sender Sender, composer *Composer, timeout time.Duration, log logging.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		sender:   sender,
		composer: composer,
		timeout:  timeout,
		log:      log.With("module", "mail"),
	}
}

// SendVerification queues the verification email and returns immediately.
func (d *Dispatcher) SendVerification(to, name, token string) {
	d.dispatch(d.composer.Verification(to, name, token))
}

// SendPasswordReset queues the password-reset email and returns immediately.
func (d *Dispatcher) SendPasswordReset(to, name, token string) {
	d.dispatch(d.composer.PasswordReset(to, name, token))
}

func (d *Dispatcher) dispatch(msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			d.log.Error(ctx, "mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
			return
		}
		d.log.Debug(ctx, "mail delivered", "to", msg.To, "subject", msg.Subject)
	}()
}

// Wait blocks until every queued message has been attempted.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
