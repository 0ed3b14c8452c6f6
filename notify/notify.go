package notify

import (
	"bytes"
	"html/template"

	"github.com/sirupsen/logrus"
)

const subject = "Statement Delivery Method Update Alert"

var bodyTemplate = template.Must(template.New("alert").Parse(`<html>
<body>
<p>One or more statement delivery method updates failed during run {{.RunID}}.</p>
<p>Failed updates: {{.FailCount}}. See the job log and report file for details.</p>
</body>
</html>
`))

// Message is the rendered notification handed to a Sender.
type Message struct {
	From     string
	To       []string
	Subject  string
	HTMLBody string
}

// Sender delivers a rendered message. Implementations report failure with a
// reason; they never panic past the notifier.
type Sender interface {
	Send(msg Message) error
}

// Settings holds the alerting configuration for a run.
type Settings struct {
	Enabled    bool
	Recipients []string
	FromAddr   string
}

// Notifier decides, from failure presence and configuration, whether to
// render and send the alert email. By the time it runs the job has already
// committed or rolled back and written its report, so every failure here is
// absorbed: logged, counted as "not sent", never propagated.
type Notifier struct {
	settings Settings
	sender   Sender
	log      logrus.FieldLogger
}

func NewNotifier(settings Settings, sender Sender, log logrus.FieldLogger) *Notifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Notifier{settings: settings, sender: sender, log: log}
}

// Alert applies the decision table in order and reports whether a message
// was actually sent.
func (n *Notifier) Alert(failCount int, runID string) bool {
	if failCount == 0 {
		n.log.Info("no failed updates to report; no notification email sent")
		return false
	}
	if !n.settings.Enabled {
		n.log.Info("notification sending disabled; no email sent")
		return false
	}
	if len(n.settings.Recipients) == 0 {
		n.log.Warn("notification sending enabled but no email recipients found")
		return false
	}

	body, err := renderBody(failCount, runID)
	if err != nil {
		n.log.WithError(err).Error("render notification body; treating as not sent")
		return false
	}

	msg := Message{
		From:     n.settings.FromAddr,
		To:       n.settings.Recipients,
		Subject:  subject,
		HTMLBody: body,
	}
	if err := n.sender.Send(msg); err != nil {
		n.log.WithError(err).Error("send notification email; treating as not sent")
		return false
	}

	n.log.WithField("recipients", len(msg.To)).Info("notification email sent")
	return true
}

func renderBody(failCount int, runID string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		FailCount int
		RunID     string
	}{FailCount: failCount, RunID: runID}
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
