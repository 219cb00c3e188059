// Package notification sends a message through shoutrrr services whenever a
// measurement is saved.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/observability/metrics"
)

const (
	componentName  = "notification"
	defaultTimeout = 10 * time.Second
)

type target struct {
	service string
	sender  *router.ServiceRouter
}

// Notifier delivers messages to every configured service URL.
type Notifier struct {
	targets []target
	unit    string
	metrics *metrics.NotificationMetrics
	log     logger.Logger
}

// New builds a sender per URL. Invalid URLs fail here rather than on the
// first save. m may be nil.
func New(urls []string, unit string, timeout time.Duration, m *metrics.NotificationMetrics, lg logger.Logger) (*Notifier, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	n := &Notifier{unit: unit, metrics: m, log: lg.Module(componentName)}
	for i, raw := range urls {
		service := ServiceName(raw)
		sender, err := shoutrrr.CreateSender(raw)
		if err != nil {
			return nil, errors.Newf("notification url %d (%s): %s", i, service, scrubURLs(err.Error(), urls)).
				Component(componentName).
				Category(errors.CategoryConfiguration).
				Context("service", service).
				Build()
		}
		sender.Timeout = timeout
		sender.SetLogger(log.New(io.Discard, "", 0))
		n.targets = append(n.targets, target{service: service, sender: sender})
	}
	return n, nil
}

// ServiceName returns the scheme of a shoutrrr URL, such as "telegram".
func ServiceName(raw string) string {
	scheme, _, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return "unknown"
	}
	return strings.ToLower(scheme)
}

// scrubURLs removes configured URLs, which carry tokens, from msg.
func scrubURLs(msg string, urls []string) string {
	for _, u := range urls {
		if u != "" {
			msg = strings.ReplaceAll(msg, u, "[url]")
		}
	}
	return msg
}

// Send delivers title and body to every target and joins their errors.
func (n *Notifier) Send(_ context.Context, title, body string) error {
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	var errs []error
	for _, t := range n.targets {
		started := time.Now()
		var firstErr error
		for _, e := range t.sender.Send(body, &params) {
			if e != nil {
				firstErr = e
				break
			}
		}
		if n.metrics != nil {
			n.metrics.RecordDelivery(t.service, started, firstErr)
		}
		if firstErr != nil {
			errs = append(errs, errors.New(firstErr).
				Component(componentName).
				Category(errors.CategoryNotification).
				Context("service", t.service).
				Build())
		}
	}
	return errors.Join(errs...)
}

// FormatRecord renders the title and body announcing rec.
func FormatRecord(rec measure.Record, unit string) (title, body string) {
	title = fmt.Sprintf("Product %d measured", rec.Product)
	body = fmt.Sprintf("Width %s %s, height %s %s", measure.FormatValue(rec.Width), unit, measure.FormatValue(rec.Height), unit)
	if len(rec.Distances) > 0 {
		body += fmt.Sprintf("\nDistances (%s): %s", unit, measure.JoinDistances(rec.Distances))
	}
	return title, body
}

// OnSave announces rec and logs failures; saves never fail because of
// notifications.
func (n *Notifier) OnSave(ctx context.Context, rec measure.Record) {
	title, body := FormatRecord(rec, n.unit)
	if err := n.Send(ctx, title, body); err != nil {
		n.log.Warn("notification failed", logger.Int("product", rec.Product), logger.Error(err))
	}
}
