package payment

import (
	"strings"

	"av-rental/internal/model"
)

// Stripe event types we act on.
const (
	StripeCheckoutCompleted     = "checkout.session.completed"
	StripeAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	StripeAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	StripeCheckoutExpired       = "checkout.session.expired"
	StripeIntentPaymentFailed   = "payment_intent.payment_failed"
	StripeIntentCanceled        = "payment_intent.canceled"
)

// Worldline status codes we act on.
const (
	worldlineCodeCancelledByCustomer = 1
	worldlineCodeRejected            = 2
	worldlineCodeCancelled           = 6
	worldlineCodeCaptured            = 9
)

// MapStripeEvent maps a Stripe webhook event type. checkout.session.completed
// only counts as paid once the money is in; delayed methods report later
// through the async events.
func MapStripeEvent(eventType, paymentStatus string) (model.OrderStatus, bool) {
	switch eventType {
	case StripeCheckoutCompleted:
		if paymentStatus == "paid" || paymentStatus == "no_payment_required" {
			return model.OrderStatusPaid, true
		}
	case StripeAsyncPaymentSucceeded:
		return model.OrderStatusPaid, true
	case StripeAsyncPaymentFailed, StripeIntentPaymentFailed:
		return model.OrderStatusRefused, true
	case StripeCheckoutExpired, StripeIntentCanceled:
		return model.OrderStatusCanceled, true
	}
	return "", false
}

// MapStripeSession maps a polled checkout session.
func MapStripeSession(status, paymentStatus string) (model.OrderStatus, bool) {
	switch {
	case paymentStatus == "paid" || paymentStatus == "no_payment_required":
		return model.OrderStatusPaid, true
	case status == "expired":
		return model.OrderStatusCanceled, true
	}
	return "", false
}

// MapWorldline maps a Worldline payment. A non-zero status code wins over the
// status name.
func MapWorldline(status string, statusCode int) (model.OrderStatus, bool) {
	switch statusCode {
	case worldlineCodeCaptured:
		return model.OrderStatusPaid, true
	case worldlineCodeRejected:
		return model.OrderStatusRefused, true
	case worldlineCodeCancelledByCustomer, worldlineCodeCancelled:
		return model.OrderStatusCanceled, true
	}

	switch strings.ToUpper(status) {
	case "CAPTURED":
		return model.OrderStatusPaid, true
	case "REJECTED", "REJECTED_CAPTURE":
		return model.OrderStatusRefused, true
	case "CANCELLED":
		return model.OrderStatusCanceled, true
	}
	return "", false
}

// MapMock maps the fake provider's status names.
func MapMock(status string) (model.OrderStatus, bool) {
	s := model.OrderStatus(strings.ToLower(status))
	if s.IsTerminal() {
		return s, true
	}
	return "", false
}
