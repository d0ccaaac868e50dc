package billing

import (
	"context"
	"errors"
)

// ErrCardDeclined marks a payment failure the user can act on, as opposed to
// a provider/configuration error.
var ErrCardDeclined = errors.New("payment method declined")

// Subscription is the provider-side result of a subscribe call. CustomerID
// is returned so the caller can persist a newly created customer.
type Subscription struct {
	ID         string
	Status     string
	CustomerID string
}

// Provider is the payment collaborator. The concrete implementation talks to
// Stripe; handlers only see this interface.
type Provider interface {
	// Subscribe attaches paymentMethodID to the customer (creating one for
	// email when customerID is empty) and starts the subscription.
	Subscribe(ctx context.Context, email, customerID, paymentMethodID string) (*Subscription, error)
	// Cancel tears down an existing subscription.
	Cancel(ctx context.Context, subscriptionID string) error
}

// Disabled is the Provider used when no payment credentials are configured.
type Disabled struct{}

func (Disabled) Subscribe(context.Context, string, string, string) (*Subscription, error) {
	return nil, errors.New("payments are not configured")
}

func (Disabled) Cancel(context.Context, string) error {
	return errors.New("payments are not configured")
}
