// Package alert plays the chime and shows desktop notifications for newly
// arrived order events. Alerts run off the UI goroutine and never report
// errors to the caller.
package alert

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/wb-go/wbf/zlog"

	"github.com/nhle/orderbell/internal/model"
)

// Permission is the outcome of desktop notification negotiation.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
	PermissionUnsupported
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	case PermissionUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// Notifier is the platform backend.
type Notifier interface {
	Notify(title, message string) error
	Beep() error
}

// Desktop is the beeep-backed Notifier.
type Desktop struct{}

func (Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

func (Desktop) Beep() error {
	return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}

// Supported reports whether this machine can show desktop notifications.
func Supported() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux", "freebsd", "netbsd", "openbsd":
		return os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" ||
			os.Getenv("DISPLAY") != "" ||
			os.Getenv("WAYLAND_DISPLAY") != ""
	}
	return false
}

// Options configures a Dispatcher.
type Options struct {
	// Preference is the stored desktop setting (model.DesktopAsk, ...).
	Preference string
	Chime      bool
	QueueSize  int

	Notifier  Notifier
	Supported func() bool

	// Prompt asks the user whether to enable desktop notifications. It is
	// called at most once, and only while Preference is model.DesktopAsk.
	Prompt func() (bool, error)

	// Save persists the answer to Prompt.
	Save func(preference string) error
}

// Dispatcher serialises alerts onto one worker goroutine.
type Dispatcher struct {
	opts Options

	once sync.Once
	mu   sync.RWMutex
	perm Permission

	queue chan model.OrderEvent
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once

	// touched only by the worker
	shown map[string]struct{}
}

const defaultQueueSize = 32

// New starts a Dispatcher. Call Negotiate before the first Dispatch to
// enable desktop notifications; until then only the chime plays.
func New(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Notifier == nil {
		opts.Notifier = Desktop{}
	}
	if opts.Supported == nil {
		opts.Supported = Supported
	}
	beeep.AppName = "orderbell"

	d := &Dispatcher{
		opts:  opts,
		queue: make(chan model.OrderEvent, opts.QueueSize),
		done:  make(chan struct{}),
		shown: make(map[string]struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Negotiate settles desktop permission once and caches the result. Later
// calls return the cached value without prompting.
func (d *Dispatcher) Negotiate() Permission {
	d.once.Do(func() {
		p := d.negotiate()
		d.mu.Lock()
		d.perm = p
		d.mu.Unlock()
		zlog.Logger.Info().Str("permission", p.String()).Msg("desktop notifications negotiated")
	})
	return d.Permission()
}

func (d *Dispatcher) negotiate() Permission {
	if !d.opts.Supported() {
		return PermissionUnsupported
	}

	switch d.opts.Preference {
	case model.DesktopGranted:
		return PermissionGranted
	case model.DesktopDenied:
		return PermissionDenied
	}

	if d.opts.Prompt == nil {
		return PermissionDenied
	}
	ok, err := d.opts.Prompt()
	if err != nil {
		// leave the preference undecided so the next start asks again
		zlog.Logger.Warn().Err(err).Msg("desktop notification prompt failed")
		return PermissionDenied
	}

	pref, perm := model.DesktopDenied, PermissionDenied
	if ok {
		pref, perm = model.DesktopGranted, PermissionGranted
	}
	if d.opts.Save != nil {
		if err := d.opts.Save(pref); err != nil {
			zlog.Logger.Warn().Err(err).Msg("failed to save desktop notification preference")
		}
	}
	return perm
}

// Permission returns the negotiated permission, or PermissionUnknown before
// Negotiate has run.
func (d *Dispatcher) Permission() Permission {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.perm
}

// Dispatch queues the alerts for ev without blocking. It reports false when
// the alert was dropped because the queue is full or the dispatcher closed.
func (d *Dispatcher) Dispatch(ev model.OrderEvent) bool {
	select {
	case <-d.done:
		return false
	default:
	}

	select {
	case d.queue <- ev:
		return true
	default:
		zlog.Logger.Warn().Int64("order", ev.OrderNumber).Msg("alert queue full, dropping")
		return false
	}
}

// Close stops the worker and waits for it. Queued alerts are discarded.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case ev := <-d.queue:
			d.handle(ev)
		}
	}
}

func (d *Dispatcher) handle(ev model.OrderEvent) {
	if d.opts.Chime {
		if err := d.opts.Notifier.Beep(); err != nil {
			zlog.Logger.Warn().Err(err).Msg("chime failed")
		}
	}

	if d.Permission() != PermissionGranted {
		return
	}

	tag := Tag(ev)
	if _, seen := d.shown[tag]; seen {
		return
	}
	d.shown[tag] = struct{}{}

	title, body := Content(ev)
	if err := d.opts.Notifier.Notify(title, body); err != nil {
		zlog.Logger.Warn().Err(err).Str("tag", tag).Msg("desktop notification failed")
	}
}

// Tag identifies the notification for an order so repeats coalesce.
func Tag(ev model.OrderEvent) string {
	return fmt.Sprintf("order-%d", ev.OrderID)
}

// Content renders the notification title and body.
func Content(ev model.OrderEvent) (string, string) {
	title := fmt.Sprintf("Order #%d", ev.OrderNumber)
	if ev.Priority == model.PriorityHigh {
		title += " · priority"
	}

	body := ev.Message
	if body == "" {
		body = fmt.Sprintf("New order from %s", ev.CustomerName)
	}
	noun := "items"
	if ev.ItemCount == 1 {
		noun = "item"
	}
	return title, fmt.Sprintf("%s\n%s · %d %s", body, ev.Total, ev.ItemCount, noun)
}
