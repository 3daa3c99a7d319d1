// Package broadcast implements the one-at-a-time fan-out of a message to
// every known user, with live progress edits and cooperative cancellation.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"lecturebot/internal/storage"
)

var (
	// ErrBusy is returned by Start while a run is already in flight.
	ErrBusy = errors.New("a broadcast is already in progress")
	// ErrIdle is returned by Cancel when there is nothing to cancel.
	ErrIdle = errors.New("no active broadcast")
)

// Sender is the slice of the Telegram API the runner needs.
// *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Forward(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// UserLister enumerates broadcast recipients.
type UserLister interface {
	ListUsers(ctx context.Context) ([]storage.User, error)
}

// Mode selects between re-sending content and forwarding the original.
type Mode int

const (
	ModeBroadcast Mode = iota
	ModeForward
)

func (m Mode) String() string {
	if m == ModeForward {
		return "forward"
	}
	return "broadcast"
}

func (m Mode) gerund() string {
	if m == ModeForward {
		return "Forwarding"
	}
	return "Broadcasting"
}

func (m Mode) title() string {
	if m == ModeForward {
		return "Forward"
	}
	return "Broadcast"
}

// Payload is the tagged content of one run: either a reference to an existing
// message (Source) or, for plain broadcasts started with literal arguments,
// synthesized text.
type Payload struct {
	Mode Mode
	// Source is the replied-to message. Required for ModeForward; nil means
	// a literal-text broadcast.
	Source *tele.Message
	// Text carries the literal payload when Source is nil.
	Text     string
	Entities tele.Entities
}

type Config struct {
	// SendInterval bounds the outbound rate; one delivery per interval.
	SendInterval time.Duration
	// ProgressEvery is how many attempts pass between progress edits.
	ProgressEvery int
}

// Runner executes at most one broadcast run process-wide. Handlers start and
// cancel runs; the run itself lives on its own goroutine and observes the
// cancel flag only between deliveries, never mid-send.
type Runner struct {
	sender Sender
	users  UserLister
	log    zerolog.Logger

	interval      time.Duration
	progressEvery int

	mu        sync.Mutex
	active    bool
	cancelled bool
	success   int
	failed    int
	done      chan struct{}
}

func New(cfg Config, sender Sender, users UserLister, log zerolog.Logger) *Runner {
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = 100 * time.Millisecond
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10
	}
	return &Runner{
		sender:        sender,
		users:         users,
		log:           log,
		interval:      cfg.SendInterval,
		progressEvery: cfg.ProgressEvery,
	}
}

// Snapshot is a point-in-time view of the run state.
type Snapshot struct {
	Active  bool
	Success int
	Failed  int
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Active: r.active, Success: r.success, Failed: r.failed}
}

func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start begins a run in the background. progress is the message that gets
// edited in place with counters; it may be nil, in which case progress
// reporting is skipped. Returns ErrBusy while another run is in flight —
// the live run and its counters are untouched.
func (r *Runner) Start(ctx context.Context, p Payload, progress *tele.Message) error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return ErrBusy
	}
	r.active = true
	r.cancelled = false
	r.success, r.failed = 0, 0
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.run(ctx, p, progress, done)
	return nil
}

// Cancel sets the cooperative cancel flag and waits up to wait for the run to
// acknowledge. A nil return does not guarantee the run has stopped: on
// timeout we log a warning and give up waiting without killing the goroutine.
// That race is accepted; the run will still observe the flag before its next
// delivery.
func (r *Runner) Cancel(wait time.Duration) error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return ErrIdle
	}
	r.cancelled = true
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
	case <-time.After(wait):
		r.log.Warn().Msg("broadcast did not acknowledge cancellation in time")
	}
	return nil
}

func (r *Runner) run(ctx context.Context, p Payload, progress *tele.Message, done chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("broadcast run panicked")
		}
		// Idle again on every exit path.
		r.mu.Lock()
		r.active = false
		r.cancelled = false
		r.mu.Unlock()
		close(done)
	}()

	users, err := r.users.ListUsers(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("broadcast aborted: listing users failed")
		r.editProgress(progress, fmt.Sprintf("⚠️ An error occurred during %s.", p.Mode))
		return
	}
	total := len(users)
	limiter := rate.NewLimiter(rate.Every(r.interval), 1)

	r.log.Info().Str("mode", p.Mode.String()).Int("total", total).Msg("broadcast started")

	for _, u := range users {
		if r.isCancelled() {
			success, failed := r.counts()
			r.editProgress(progress, fmt.Sprintf(
				"❌ %s cancelled!\n📢 Sent to: %d users\n✅ Success: %d\n❌ Failed: %d",
				p.Mode.title(), success+failed, success, failed))
			r.log.Info().Int("success", success).Int("failed", failed).Msg("broadcast cancelled")
			return
		}

		if err := r.deliver(u.ID, p); err != nil {
			r.mu.Lock()
			r.failed++
			r.mu.Unlock()
			r.log.Error().Err(err).Int64("user", u.ID).Msg("delivery failed")
		} else {
			r.mu.Lock()
			r.success++
			r.mu.Unlock()
		}

		success, failed := r.counts()
		if (success+failed)%r.progressEvery == 0 {
			r.editProgress(progress, fmt.Sprintf(
				"📢 %s to %d users...\n✅ Success: %d\n❌ Failed: %d\n\n⏸️ Use /cancel to stop the %s",
				p.Mode.gerund(), total, success, failed, p.Mode))
		}

		// Pace outbound sends; this is also the yield point that keeps the
		// dispatcher responsive while a run is in flight.
		if err := limiter.Wait(ctx); err != nil {
			r.log.Warn().Err(err).Msg("broadcast stopped: context done")
			return
		}
	}

	success, failed := r.counts()
	r.editProgress(progress, fmt.Sprintf(
		"🎉 %s completed!\n📢 Sent to: %d users\n✅ Success: %d\n❌ Failed: %d",
		p.Mode.title(), total, success, failed))
	r.log.Info().Int("success", success).Int("failed", failed).Int("total", total).Msg("broadcast completed")
}

// deliver sends the payload to one user. Forward mode relays the source
// as-is; broadcast mode re-sends by content kind in a fixed priority order,
// falling back to a forward when nothing matches.
func (r *Runner) deliver(userID int64, p Payload) error {
	to := tele.ChatID(userID)
	protected := &tele.SendOptions{Protected: true}

	if p.Mode == ModeForward {
		_, err := r.sender.Forward(to, p.Source, protected)
		return err
	}

	if p.Source == nil {
		_, err := r.sender.Send(to, p.Text, &tele.SendOptions{
			Protected:             true,
			DisableWebPagePreview: true,
			Entities:              p.Entities,
		})
		return err
	}

	m := p.Source
	caption := &tele.SendOptions{Protected: true, Entities: m.CaptionEntities}
	switch {
	case m.Text != "":
		_, err := r.sender.Send(to, m.Text, &tele.SendOptions{
			Protected:             true,
			DisableWebPagePreview: true,
			Entities:              m.Entities,
		})
		return err
	case m.Photo != nil:
		photo := *m.Photo
		photo.Caption = m.Caption
		_, err := r.sender.Send(to, &photo, caption)
		return err
	case m.Video != nil:
		video := *m.Video
		video.Caption = m.Caption
		_, err := r.sender.Send(to, &video, caption)
		return err
	case m.Document != nil:
		doc := *m.Document
		doc.Caption = m.Caption
		_, err := r.sender.Send(to, &doc, caption)
		return err
	case m.Audio != nil:
		audio := *m.Audio
		audio.Caption = m.Caption
		_, err := r.sender.Send(to, &audio, caption)
		return err
	case m.Voice != nil:
		voice := *m.Voice
		voice.Caption = m.Caption
		_, err := r.sender.Send(to, &voice, caption)
		return err
	case m.Sticker != nil:
		sticker := *m.Sticker
		_, err := r.sender.Send(to, &sticker, protected)
		return err
	default:
		_, err := r.sender.Forward(to, m, protected)
		return err
	}
}

func (r *Runner) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *Runner) counts() (success, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success, r.failed
}

func (r *Runner) editProgress(progress *tele.Message, text string) {
	if progress == nil {
		return
	}
	if _, err := r.sender.Edit(progress, text); err != nil {
		r.log.Debug().Err(err).Msg("progress edit failed")
	}
}
