package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/kbukum/voicememo/entitlement"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/prompt"
)

// Notifier delivers a short message to the user.
type Notifier interface {
	Notify(title, message string) error
}

// Desktop sends notifications through the OS notification center.
type Desktop struct {
	Icon string
}

// Notify implements Notifier.
func (d Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, d.Icon)
}

// Writer prints notifications, one per line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Notifier printing to w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Notify implements Notifier.
func (n *Writer) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.w, "[%s] %s\n", title, message)
	return err
}

// Fallback tries Primary and uses Secondary when it fails, e.g. on a
// headless machine without a notification daemon.
type Fallback struct {
	Primary   Notifier
	Secondary Notifier
}

// Notify implements Notifier.
func (f Fallback) Notify(title, message string) error {
	if err := f.Primary.Notify(title, message); err == nil {
		return nil
	}
	return f.Secondary.Notify(title, message)
}

// UpsellMessage returns the copy for kind.
func UpsellMessage(k prompt.Kind) (title, message string) {
	switch k {
	case prompt.KindSpeaker:
		return "Who said what?", "Upgrade to Speaker to label every voice in your multi-person recordings."
	case prompt.KindPro:
		return "Sound like a studio", "Pro adds audio enhancement, AI noise reduction and summaries."
	default:
		return "Keep it forever", "Lifetime unlocks advanced speaker detection with no renewals."
	}
}

// Upseller evaluates prompts at a trigger point and shows the ones that fire.
type Upseller struct {
	Engine   *prompt.Engine
	Notifier Notifier
	Log      *logger.Logger
}

// Check evaluates every prompt kind for tier and usage. Each kind that fires
// is marked shown and delivered. Delivery failures are logged; only counter
// persistence errors are returned.
func (u *Upseller) Check(ctx context.Context, tier entitlement.Tier, usage prompt.Usage) ([]prompt.Kind, error) {
	log := u.Log
	if log == nil {
		log = logger.WithComponent("notify")
	}
	var shown []prompt.Kind
	for _, k := range prompt.Kinds() {
		show, err := u.Engine.Evaluate(ctx, k, tier, usage)
		if err != nil {
			return shown, err
		}
		if !show {
			continue
		}
		shown = append(shown, k)
		title, msg := UpsellMessage(k)
		if err := u.Notifier.Notify(title, msg); err != nil {
			log.Warn("upsell notification failed", logger.Fields(logger.FieldKind, string(k), logger.FieldError, err.Error()))
		}
	}
	return shown, nil
}

// Warnings adapts n to the pre-roll warning handler.
func Warnings(n Notifier, log *logger.Logger) func(*errors.AppError) {
	return func(w *errors.AppError) {
		if err := n.Notify("Pre-roll unavailable", w.Message); err != nil && log != nil {
			log.Warn("warning notification failed", logger.ErrorFields("notify", err))
		}
	}
}
