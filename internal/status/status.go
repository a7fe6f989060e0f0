package status

import (
	"errors"
	"fmt"
)

var (
	ErrTicketNotFound  = errors.New("ticket: ticket not found")
	ErrDuplicateTicket = errors.New("ticket: ticket already exists for payment")
	ErrAlreadyScanned  = errors.New("ticket: already scanned")
	ErrUserNotFound    = errors.New("user: user not found")
	ErrDuplicateUser   = errors.New("user: user already exists for payment")

	ErrInvalidRequest = errors.New("payment: invalid request")

	ErrWebhookUnsigned   = errors.New("webhook: missing signature or secret")
	ErrInvalidSignature  = errors.New("webhook: invalid signature")
	ErrInvalidPayload    = errors.New("webhook: invalid payload")
	ErrMissingPaymentObj = errors.New("webhook: event has no payment intent")

	ErrMailerNotConfigured = errors.New("email: smtp credentials missing")
	ErrTicketFileMissing   = errors.New("email: ticket file missing")
	ErrInvalidRecipient    = errors.New("email: invalid recipient address")
)

// DeliveryError is returned once every email attempt has failed.
type DeliveryError struct {
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("email: delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
