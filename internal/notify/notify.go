package notify

import (
	"fmt"
	"log"
	"os/exec"
)

// Notifier surfaces session lifecycle events to the user.
type Notifier interface {
	Notify(summary, body string)
}

// Desktop sends notifications through notify-send. Failures are logged and
// swallowed; notifications are best-effort.
type Desktop struct {
	Enabled bool
}

func NewDesktop(enabled bool) *Desktop {
	return &Desktop{Enabled: enabled}
}

func (d *Desktop) Notify(summary, body string) {
	if !d.Enabled {
		return
	}
	if _, err := exec.LookPath("notify-send"); err != nil {
		return
	}
	cmd := exec.Command("notify-send", "--app-name=liameet", summary, body)
	if err := cmd.Run(); err != nil {
		log.Printf("notify: notify-send failed: %v", err)
	}
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(summary, body string) {}

func SessionStarted(n Notifier, title string) {
	if n == nil {
		return
	}
	n.Notify("Meeting session started", title)
}

func SessionEnded(n Notifier, segments int) {
	if n == nil {
		return
	}
	n.Notify("Meeting session ended", fmt.Sprintf("%d transcript segments saved", segments))
}

func SessionError(n Notifier, err error) {
	if n == nil {
		return
	}
	n.Notify("Meeting session error", err.Error())
}
