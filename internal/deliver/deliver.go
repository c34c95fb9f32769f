// Package deliver sends a digest by email or prints it to the console.
package deliver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/TobiSchelling/IntelDigest/internal/database"
	"github.com/TobiSchelling/IntelDigest/internal/digest"
)

// Payload is a ready-to-send digest email.
type Payload struct {
	Subject string
	Text    string
	HTML    string
	To      []string
}

// BuildPayload assembles the email for a digest. date is YYYY-MM-DD.
func BuildPayload(text, html string, period database.Period, recipients []string, date string) Payload {
	to := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	return Payload{
		Subject: fmt.Sprintf("%s · %s", digest.Title(period), database.FormatDateDisplay(date)),
		Text:    text,
		HTML:    html,
		To:      to,
	}
}

// Sender transmits a payload.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// Deliverer routes a payload to its recipients or to the console.
type Deliverer struct {
	sender  Sender
	console io.Writer
}

// NewDeliverer creates a deliverer. sender may be nil when no mail transport
// is configured; sends then fail and fall back to the console.
func NewDeliverer(sender Sender, console io.Writer) *Deliverer {
	return &Deliverer{sender: sender, console: console}
}

// Deliver sends p and returns the digest's terminal status. Without
// recipients the digest is printed. A failed send is also printed so the
// content is never lost.
func (d *Deliverer) Deliver(ctx context.Context, p Payload) database.SentStatus {
	if len(p.To) == 0 {
		slog.Warn("no recipients configured, printing digest")
		d.print(p)
		return database.StatusPrinted
	}

	err := errNoSender
	if d.sender != nil {
		err = d.sender.Send(ctx, p)
	}
	if err != nil {
		slog.Error("digest delivery failed, printing digest", "recipients", len(p.To), "err", err)
		d.print(p)
		return database.StatusFailed
	}

	slog.Info("digest sent", "to", strings.Join(p.To, ", "))
	return database.StatusSent
}

var errNoSender = fmt.Errorf("no mail transport configured")

func (d *Deliverer) print(p Payload) {
	if d.console == nil {
		return
	}
	fmt.Fprintf(d.console, "\n%s\n", p.Text)
}
