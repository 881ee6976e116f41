package notify

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"html/template"
	"regexp"
	"strings"
	"time"
)

// Message kinds
const (
	KindConsumption = "consumption"
	KindReminder    = "reminder"
	KindDigest      = "digest"
	KindFailure     = "failure"
)

// ConsumptionAlert carries the data for an operations consumption alert
type ConsumptionAlert struct {
	ClientName string
	TaxID      string
	PlanName   string
	Consumed   int
	Limit      int
	Percent    float64
	ExpiryDate *time.Time
	Critical   bool
}

// BuildConsumptionAlert builds the operations email for a client nearing
// or past its invoice limit
func BuildConsumptionAlert(a ConsumptionAlert, to []string) Message {
	severity := "ALERTA"
	if a.Critical {
		severity = "ALERTA CRÍTICA"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s de consumo de facturas\n\n", severity)
	fmt.Fprintf(&body, "Cliente: %s\n", a.ClientName)
	if a.TaxID != "" {
		fmt.Fprintf(&body, "RUC: %s\n", a.TaxID)
	}
	fmt.Fprintf(&body, "Plan: %s\n", a.PlanName)
	fmt.Fprintf(&body, "Facturas emitidas: %d de %d (%.1f%%)\n", a.Consumed, a.Limit, a.Percent)
	if a.ExpiryDate != nil {
		fmt.Fprintf(&body, "Vencimiento de la suscripción: %s\n", a.ExpiryDate.Format("02/01/2006"))
	}
	body.WriteString("\n")
	if a.Critical {
		body.WriteString("El cliente está por agotar su plan. Contactar de inmediato para gestionar la renovación o ampliación.\n")
	} else {
		body.WriteString("El cliente se acerca al límite de su plan. Considerar contactarlo para ofrecer una ampliación.\n")
	}

	return Message{
		Kind:      KindConsumption,
		To:        to,
		Subject:   fmt.Sprintf("%s: %s al %.1f%% de su plan", severity, a.ClientName, a.Percent),
		PlainBody: body.String(),
	}
}

// ReminderData carries the data for a client expiry reminder
type ReminderData struct {
	ClientName     string
	PlanName       string
	ExpiryDate     time.Time
	UnsubscribeURL string
}

var reminderTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <p>Estimado cliente <strong>{{.ClientName}}</strong>,</p>
  <p>Le recordamos que su suscripción al plan <strong>{{.PlanName}}</strong>
  vence el <strong>{{.ExpiryDate.Format "02/01/2006"}}</strong>, dentro de 15 días.</p>
  <p>Para evitar la interrupción del servicio de facturación electrónica,
  por favor comuníquese con nosotros para gestionar su renovación.</p>
  <p>Atentamente,<br>Sistema Andromeda</p>
  <hr>
  <p style="font-size: 11px; color: #888;">
    Si no desea recibir estos recordatorios puede
    <a href="{{.UnsubscribeURL}}">darse de baja aquí</a>.
  </p>
</body>
</html>`))

// BuildExpiryReminder builds the renewal reminder sent to a client 15
// days before its subscription expires
func BuildExpiryReminder(d ReminderData, to string) (Message, error) {
	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, d); err != nil {
		return Message{}, fmt.Errorf("failed to render reminder: %w", err)
	}

	html := buf.String()
	return Message{
		Kind:      KindReminder,
		To:        []string{to},
		Subject:   fmt.Sprintf("Recordatorio: su suscripción vence el %s", d.ExpiryDate.Format("02/01/2006")),
		HTMLBody:  html,
		PlainBody: StripTags(html),
	}, nil
}

// DigestEntry is one per-client failure reported in the run digest
type DigestEntry struct {
	ClientID   int64
	ClientName string
	Detail     string
}

// BuildErrorDigest builds the operations summary of per-client failures
// from one monitoring run
func BuildErrorDigest(runDate time.Time, entries []DigestEntry, to []string) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "El monitoreo del %s terminó con %d errores de cliente.\n\n",
		runDate.Format("02/01/2006"), len(entries))
	for _, e := range entries {
		fmt.Fprintf(&body, "- [%d] %s: %s\n", e.ClientID, e.ClientName, e.Detail)
	}
	body.WriteString("\nLos demás clientes fueron procesados con normalidad.\n")

	return Message{
		Kind:      KindDigest,
		To:        to,
		Subject:   fmt.Sprintf("Monitoreo %s: %d errores de cliente", runDate.Format("02/01/2006"), len(entries)),
		PlainBody: body.String(),
	}
}

// BuildRunFailure builds the operations email for a run that aborted
// before processing any client
func BuildRunFailure(runDate time.Time, stage string, cause error, to []string) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "El monitoreo del %s falló antes de procesar clientes.\n\n", runDate.Format("02/01/2006"))
	fmt.Fprintf(&body, "Etapa: %s\n", stage)
	fmt.Fprintf(&body, "Error: %v\n\n", cause)
	body.WriteString("Ningún cliente fue procesado en esta corrida. Revisar el log del día y la base de datos.\n")

	return Message{
		Kind:      KindFailure,
		To:        to,
		Subject:   fmt.Sprintf("FALLO del monitoreo %s", runDate.Format("02/01/2006")),
		PlainBody: body.String(),
	}
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	blankPattern = regexp.MustCompile(`\n{3,}`)
)

// StripTags produces a plain-text rendition of an HTML body for mail
// clients that cannot display HTML
func StripTags(html string) string {
	text := strings.ReplaceAll(html, "<br>", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = stdhtml.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
