package notification

import (
	"bytes"
	"fmt"
	"text/template"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[EventType]messageTemplate{
	EventOrderCreated: mustTemplate(
		"Service order {{.code}} registered",
		"Service order {{.code}} was registered for vehicle {{.vehicle}} with a final value of {{.total}}.",
	),
	EventInvoiceCreated: mustTemplate(
		"Invoice {{.number}} issued",
		"Invoice {{.number}} ({{.type}}) covering {{.period_start}} to {{.period_end}} was issued. Amount due: {{.amount_due}}, due on {{.due_at}}.",
	),
	EventAdvanceRequested: mustTemplate(
		"Advance request {{.advance_id}} received",
		"An advance of {{.requested}} was requested. Fee {{.fee}} ({{.fee_pct}}%), net {{.net}}.",
	),
	EventAdvanceApproved: mustTemplate(
		"Advance request {{.advance_id}} approved",
		"Your advance request of {{.requested}} was approved. Net amount {{.net}} will be paid shortly.",
	),
	EventAdvanceRejected: mustTemplate(
		"Advance request {{.advance_id}} rejected",
		"Your advance request of {{.requested}} was rejected. Reason: {{.reason}}.",
	),
	EventAdvancePaid: mustTemplate(
		"Advance {{.advance_id}} paid",
		"The advance of {{.requested}} was paid. Net amount transferred: {{.net}}.",
	),
	EventAdvanceCancelled: mustTemplate(
		"Advance request {{.advance_id}} cancelled",
		"The advance request of {{.requested}} was cancelled.",
	),
}

func mustTemplate(subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New("subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New("body").Option("missingkey=zero").Parse(body)),
	}
}

// Render returns the subject and plain text body for evt.
func Render(evt Event) (string, string, error) {
	tmpl, ok := templates[evt.Type]
	if !ok {
		return "", "", fmt.Errorf("no template for event %q", evt.Type)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, evt.Data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, evt.Data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject.String(), body.String(), nil
}
