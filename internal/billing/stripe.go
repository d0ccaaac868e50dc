package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProvider implements Provider on the Stripe API.
type StripeProvider struct {
	api     *client.API
	priceID string
	log     *logrus.Logger
}

func NewStripeProvider(secretKey, priceID string, log *logrus.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, priceID: priceID, log: log}
}

func (s *StripeProvider) Subscribe(ctx context.Context, email, customerID, paymentMethodID string) (*Subscription, error) {
	// Reject a misconfigured price before touching the customer.
	if _, err := s.api.Prices.Get(s.priceID, &stripe.PriceParams{Params: stripe.Params{Context: ctx}}); err != nil {
		return nil, fmt.Errorf("invalid price configuration: %w", err)
	}

	if customerID == "" {
		cust, err := s.api.Customers.New(&stripe.CustomerParams{
			Params: stripe.Params{Context: ctx},
			Email:  stripe.String(email),
		})
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		customerID = cust.ID
	}

	if _, err := s.api.PaymentMethods.Attach(paymentMethodID, &stripe.PaymentMethodAttachParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	}); err != nil {
		return nil, s.wrapCardError("attach payment method", err)
	}

	if _, err := s.api.Customers.Update(customerID, &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}); err != nil {
		return nil, fmt.Errorf("set default payment method: %w", err)
	}

	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Items:    []*stripe.SubscriptionItemsParams{{Price: stripe.String(s.priceID)}},
	}
	params.AddExpand("latest_invoice.payment_intent")
	sub, err := s.api.Subscriptions.New(params)
	if err != nil {
		return nil, s.wrapCardError("create subscription", err)
	}

	return &Subscription{ID: sub.ID, Status: string(sub.Status), CustomerID: customerID}, nil
}

func (s *StripeProvider) Cancel(ctx context.Context, subscriptionID string) error {
	_, err := s.api.Subscriptions.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	return err
}

func (s *StripeProvider) wrapCardError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		s.log.Warnf("%s: card declined: %v", op, stripeErr.Msg)
		return fmt.Errorf("%w: %s", ErrCardDeclined, stripeErr.Msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}
