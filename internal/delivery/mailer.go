package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stormsignal/strike-alert/internal/model"
)

// Mailer sends one alert to one user. Implementations should wrap
// retryable failures with resilience.NewTransientError so the worker
// leaves the notification pending.
type Mailer interface {
	Send(ctx context.Context, userID, subject, body string) error
}

// LogMailer is a stand-in for a real mail provider: it logs the alert
// instead of sending it. Useful for local runs and tests.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer creates a LogMailer using the global logger.
func NewLogMailer() *LogMailer {
	return &LogMailer{log: zap.L()}
}

func (m *LogMailer) Send(ctx context.Context, userID, subject, body string) error {
	m.log.Info("sending alert email",
		zap.String("user_id", userID),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// AlertSubject is the subject line for strike alerts.
const AlertSubject = "Lightning Strike Alert!"

// RenderAlertBody builds the alert message for one notification.
// Distances read to one decimal, coordinates to four.
func RenderAlertBody(n model.Notification, strike model.Strike, loc model.Location) string {
	return fmt.Sprintf(`Lightning Strike Alert!

A lightning strike was detected %.1f miles from your location in %s, %s (%s).

Strike Details:
- Time: %s
- Location: %.4f, %.4f
- Intensity: %g
- Distance from you: %.1f miles

Stay safe!`,
		n.DistanceMiles,
		loc.City, loc.State, loc.ZipCode,
		strike.Timestamp.Format("Jan 2, 2006 3:04:05 PM MST"),
		strike.Latitude, strike.Longitude,
		strike.Intensity,
		n.DistanceMiles,
	)
}
