package alert

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/orderbell/internal/model"
)

type fakeNotifier struct {
	mu       sync.Mutex
	beeps    int
	notified []string
	err      error

	// when set, Beep blocks until released
	hold    chan struct{}
	started chan struct{}
}

func (f *fakeNotifier) Notify(title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, title)
	return f.err
}

func (f *fakeNotifier) Beep() error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beeps++
	return f.err
}

func (f *fakeNotifier) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beeps, len(f.notified)
}

func always(v bool) func() bool { return func() bool { return v } }

func event(orderID int64) model.OrderEvent {
	return model.OrderEvent{
		ID: "e", OrderID: orderID, OrderNumber: model.OrderNumberBase + orderID,
		CustomerName: "Ada", Total: "9.99", ItemCount: 1,
	}
}

func TestNegotiate(t *testing.T) {
	promptErr := errors.New("no tty")
	tests := []struct {
		name      string
		pref      string
		supported bool
		answer    bool
		err       error
		want      Permission
		saved     string
	}{
		{"unsupported platform", model.DesktopGranted, false, false, nil, PermissionUnsupported, ""},
		{"stored grant", model.DesktopGranted, true, false, nil, PermissionGranted, ""},
		{"stored denial", model.DesktopDenied, true, true, nil, PermissionDenied, ""},
		{"ask and allow", model.DesktopAsk, true, true, nil, PermissionGranted, model.DesktopGranted},
		{"ask and refuse", model.DesktopAsk, true, false, nil, PermissionDenied, model.DesktopDenied},
		{"prompt fails", model.DesktopAsk, true, true, promptErr, PermissionDenied, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompts := 0
			var saved string
			d := New(Options{
				Preference: tt.pref,
				Notifier:   &fakeNotifier{},
				Supported:  always(tt.supported),
				Prompt: func() (bool, error) {
					prompts++
					return tt.answer, tt.err
				},
				Save: func(p string) error {
					saved = p
					return nil
				},
			})
			defer d.Close()

			assert.Equal(t, PermissionUnknown, d.Permission())
			assert.Equal(t, tt.want, d.Negotiate())
			assert.Equal(t, tt.want, d.Negotiate())
			assert.Equal(t, tt.saved, saved)
			assert.LessOrEqual(t, prompts, 1)
		})
	}
}

func TestNegotiate_AskWithoutPrompt(t *testing.T) {
	d := New(Options{Preference: model.DesktopAsk, Notifier: &fakeNotifier{}, Supported: always(true)})
	defer d.Close()
	assert.Equal(t, PermissionDenied, d.Negotiate())
}

func TestDispatch_ChimeAndNotify(t *testing.T) {
	n := &fakeNotifier{}
	d := New(Options{Preference: model.DesktopGranted, Chime: true, Notifier: n, Supported: always(true)})
	defer d.Close()
	d.Negotiate()

	require.True(t, d.Dispatch(event(1)))
	require.True(t, d.Dispatch(event(2)))

	assert.Eventually(t, func() bool {
		beeps, notes := n.counts()
		return beeps == 2 && notes == 2
	}, time.Second, 5*time.Millisecond)
}

func TestDispatch_CoalescesSameOrder(t *testing.T) {
	n := &fakeNotifier{}
	d := New(Options{Preference: model.DesktopGranted, Chime: true, Notifier: n, Supported: always(true)})
	defer d.Close()
	d.Negotiate()

	d.Dispatch(event(1))
	d.Dispatch(event(1))
	d.Dispatch(event(2))

	assert.Eventually(t, func() bool {
		beeps, _ := n.counts()
		return beeps == 3
	}, time.Second, 5*time.Millisecond)
	_, notes := n.counts()
	assert.Equal(t, 2, notes)
}

func TestDispatch_DeniedStillChimes(t *testing.T) {
	n := &fakeNotifier{}
	d := New(Options{Preference: model.DesktopDenied, Chime: true, Notifier: n, Supported: always(true)})
	defer d.Close()
	d.Negotiate()

	d.Dispatch(event(1))
	assert.Eventually(t, func() bool {
		beeps, _ := n.counts()
		return beeps == 1
	}, time.Second, 5*time.Millisecond)
	_, notes := n.counts()
	assert.Zero(t, notes)
}

func TestDispatch_MutedChime(t *testing.T) {
	n := &fakeNotifier{}
	d := New(Options{Preference: model.DesktopGranted, Chime: false, Notifier: n, Supported: always(true)})
	defer d.Close()
	d.Negotiate()

	d.Dispatch(event(1))
	assert.Eventually(t, func() bool {
		_, notes := n.counts()
		return notes == 1
	}, time.Second, 5*time.Millisecond)
	beeps, _ := n.counts()
	assert.Zero(t, beeps)
}

func TestDispatch_FailuresAreSwallowed(t *testing.T) {
	n := &fakeNotifier{err: errors.New("dbus gone")}
	d := New(Options{Preference: model.DesktopGranted, Chime: true, Notifier: n, Supported: always(true)})
	defer d.Close()
	d.Negotiate()

	d.Dispatch(event(1))
	d.Dispatch(event(2))
	assert.Eventually(t, func() bool {
		beeps, notes := n.counts()
		return beeps == 2 && notes == 2
	}, time.Second, 5*time.Millisecond)
}

func TestDispatch_FullQueueDrops(t *testing.T) {
	n := &fakeNotifier{hold: make(chan struct{}), started: make(chan struct{}, 4)}
	d := New(Options{Chime: true, QueueSize: 1, Notifier: n, Supported: always(true)})

	require.True(t, d.Dispatch(event(1)))
	<-n.started // worker is now blocked in Beep

	assert.True(t, d.Dispatch(event(2)))
	assert.False(t, d.Dispatch(event(3)))

	close(n.hold)
	assert.Eventually(t, func() bool {
		beeps, _ := n.counts()
		return beeps == 2
	}, time.Second, 5*time.Millisecond)

	d.Close()
	assert.False(t, d.Dispatch(event(4)))
	d.Close()
}

func TestContent(t *testing.T) {
	ev := event(5)
	ev.Message = "New order #10005 from Ada"
	ev.Priority = model.PriorityHigh

	title, body := Content(ev)
	assert.Equal(t, "Order #10005 · priority", title)
	assert.Equal(t, "New order #10005 from Ada\n9.99 · 1 item", body)

	ev.Message = ""
	ev.ItemCount = 3
	ev.Priority = model.PriorityNormal
	title, body = Content(ev)
	assert.Equal(t, "Order #10005", title)
	assert.Equal(t, "New order from Ada\n9.99 · 3 items", body)

	assert.Equal(t, "order-5", Tag(ev))
}
