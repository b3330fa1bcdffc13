package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/i18n"
	"github.com/HerbHall/netcanvas/internal/remote"
)

// Reporter turns the outcome of a user gesture into feedback: a
// notification, or a login redirect when the session expired.
type Reporter struct {
	Notifier  Notifier
	Navigator auth.Navigator
	Printer   *message.Printer
	Logger    *zap.Logger
}

// Fail reports err. Expiry navigates to login, cancellation is silent and
// anything else shows the server's message, or the localized fallbackKey
// when there is none.
func (r Reporter) Fail(err error, fallbackKey string) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if auth.HandleExpiry(err, r.Navigator) {
		return
	}
	p := r.printer()
	msg := remote.Message(err, p.Sprintf(fallbackKey))
	if errors.Is(err, remote.ErrNetworkUnavailable) {
		msg = p.Sprintf(i18n.NetworkUnavailable)
	}
	if r.Logger != nil {
		r.Logger.Warn(fallbackKey, zap.Error(err))
	}
	if r.Notifier != nil {
		r.Notifier.Error(msg)
	}
}

// Success shows the localized message key formatted with args.
func (r Reporter) Success(key string, args ...any) {
	if r.Notifier != nil {
		r.Notifier.Success(r.printer().Sprintf(key, args...))
	}
}

// Sprintf formats a localized message.
func (r Reporter) Sprintf(key string, args ...any) string {
	return r.printer().Sprintf(key, args...)
}

func (r Reporter) printer() *message.Printer {
	if r.Printer == nil {
		return i18n.Printer("en")
	}
	return r.Printer
}
