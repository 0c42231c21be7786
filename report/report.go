package report

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s3gate/s3gate/errors"
)

// Context carries the facts an alert email reports about a failed batch.
type Context struct {
	// Name identifies the batch, usually the workflow or job name.
	Name string

	// Namespace is the environment the batch ran in.
	Namespace string

	// Status is the failure status reported by the runner.
	Status string

	// Timestamp is when the failure was observed.
	Timestamp time.Time

	// Host is a UI or cluster host linked from the alert for triage.
	Host string
}

const subjectLine = "[s3gate] Transfer failure: %s"

var bodyTemplate = template.Must(template.New("alert").Parse(
	`A transfer batch failed and may need attention.

Name:      {{.Name}}
Namespace: {{.Namespace}}
Status:    {{.Status}}
Time:      {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}
{{- if .Host}}

Logs: https://{{.Host}}/workflows/{{.Namespace}}/{{.Name}}
{{- end}}
`))

// Sender composes and delivers alert emails over plain SMTP.
type Sender struct {
	from   string
	to     []string
	server string
	log    *logrus.Logger

	// send is swapped out in tests.
	send func(addr, from string, to []string, msg []byte) error
}

// NewSender creates a sender. Recipients is a comma-separated address
// list; server is host:port of the SMTP relay.
func NewSender(from, recipients, server string, log *logrus.Logger) (*Sender, error) {
	if from == "" || recipients == "" || server == "" {
		return nil, errors.NewError("report", errors.ErrMisconfigured).
			WithMessage("alerts_from, alerts_to and alerts_smtp_server must all be set")
	}

	var to []string
	for _, addr := range strings.Split(recipients, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil, errors.NewError("report", errors.ErrMisconfigured).
			WithMessage("alerts_to holds no addresses")
	}

	return &Sender{
		from:   from,
		to:     to,
		server: server,
		log:    log,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}, nil
}

// Send renders and delivers one alert email for the given context.
func (s *Sender) Send(rctx Context) error {
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, rctx); err != nil {
		return fmt.Errorf("rendering alert body: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&msg, "Subject: "+subjectLine+"\r\n", rctx.Name)
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	s.log.WithFields(logrus.Fields{
		"to":   s.to,
		"name": rctx.Name,
	}).Info("Sending alert email")

	if err := s.send(s.server, s.from, s.to, msg.Bytes()); err != nil {
		return fmt.Errorf("sending alert email: %w", err)
	}
	return nil
}
