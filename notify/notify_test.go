package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func newTestNotifier(settings Settings, sender Sender) (*Notifier, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return NewNotifier(settings, sender, logger), hook
}

func hasLogContaining(hook *test.Hook, substr string) bool {
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestAlert_NoFailsNeverSends(t *testing.T) {
	sender := &fakeSender{}
	// Fully configured and enabled: failure presence alone gates sending.
	n, hook := newTestNotifier(Settings{Enabled: true, Recipients: []string{"ops@example.com"}, FromAddr: "job@example.com"}, sender)

	if sent := n.Alert(0, "run-1"); sent {
		t.Fatalf("expected no send for zero fails")
	}
	if sender.called {
		t.Errorf("sender must not be invoked")
	}
	if !hasLogContaining(hook, "no failed updates to report") {
		t.Errorf("expected nothing-to-report log line")
	}
}

func TestAlert_NoRecipientsLogsAndSkips(t *testing.T) {
	sender := &fakeSender{}
	n, hook := newTestNotifier(Settings{Enabled: true, FromAddr: "job@example.com"}, sender)

	if sent := n.Alert(3, "run-1"); sent {
		t.Fatalf("expected no send without recipients")
	}
	if sender.called {
		t.Errorf("sender must not be invoked")
	}
	if !hasLogContaining(hook, "no email recipients found") {
		t.Errorf("expected no-recipients log line")
	}
}

func TestAlert_DisabledSkipsRegardlessOfRecipients(t *testing.T) {
	sender := &fakeSender{}
	n, _ := newTestNotifier(Settings{Enabled: false, Recipients: []string{"ops@example.com"}, FromAddr: "job@example.com"}, sender)

	if sent := n.Alert(3, "run-1"); sent {
		t.Fatalf("expected no send when disabled")
	}
	if sender.called {
		t.Errorf("sender must not be invoked when disabled")
	}
}

func TestAlert_RendersAndSends(t *testing.T) {
	sender := &fakeSender{}
	n, _ := newTestNotifier(Settings{Enabled: true, Recipients: []string{"ops@example.com", "audit@example.com"}, FromAddr: "job@example.com"}, sender)

	if sent := n.Alert(2, "run-42"); !sent {
		t.Fatalf("expected send")
	}
	if !sender.called {
		t.Fatalf("expected sender invocation")
	}

	msg := sender.msg
	if msg.Subject != "Statement Delivery Method Update Alert" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if len(msg.To) != 2 || msg.From != "job@example.com" {
		t.Errorf("unexpected addressing %+v", msg)
	}
	if !strings.Contains(msg.HTMLBody, "run-42") || !strings.Contains(msg.HTMLBody, "Failed updates: 2") {
		t.Errorf("unexpected body %q", msg.HTMLBody)
	}
}

func TestAlert_TransportFailureAbsorbed(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	n, hook := newTestNotifier(Settings{Enabled: true, Recipients: []string{"ops@example.com"}, FromAddr: "job@example.com"}, sender)

	if sent := n.Alert(1, "run-1"); sent {
		t.Fatalf("transport failure must report not sent")
	}
	if !hasLogContaining(hook, "treating as not sent") {
		t.Errorf("expected absorbed-failure log line")
	}

	found := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			found = true
		}
	}
	if !found {
		t.Errorf("expected error-level log entry for transport failure")
	}
}

type fakeSender struct {
	called bool
	msg    Message
	err    error
}

func (f *fakeSender) Send(msg Message) error {
	f.called = true
	f.msg = msg
	return f.err
}
