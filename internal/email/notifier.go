// Package email avisa al operador por SMTP cuando un tenant queda
// provisionado con warnings o el reconcile detecta orphans.
package email

import (
	"fmt"
	"strings"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
)

type Config struct {
	Host string
	Port int
	From string
	User string
	Pass string
	To   string
}

// Notifier envía avisos operativos. Un *Notifier nil es un no-op, así el
// wiring no necesita ramas cuando notify está deshabilitado.
type Notifier struct {
	cfg Config
}

func NewNotifier(cfg Config) *Notifier {
	if cfg.Host == "" || cfg.To == "" {
		return nil
	}
	return &Notifier{cfg: cfg}
}

// ProvisionWarnings avisa de un tenant provisioned_with_warnings.
// Best-effort: un fallo de SMTP se loguea y nada más.
func (n *Notifier) ProvisionWarnings(domain, database string, warnings []string) {
	if n == nil {
		return
	}
	subject := fmt.Sprintf("[mesadine] tenant %s provisioned with warnings", domain)
	body := fmt.Sprintf(
		"Tenant %s (database %s) was provisioned but needs repair:\n\n- %s\n",
		domain, database, strings.Join(warnings, "\n- "),
	)
	n.send(subject, body)
}

// OrphansDetected avisa del resultado de un sweep con inconsistencias.
func (n *Notifier) OrphansDetected(orphanDatabases, orphanRecords []string) {
	if n == nil || (len(orphanDatabases) == 0 && len(orphanRecords) == 0) {
		return
	}
	subject := "[mesadine] tenant reconcile found orphans"
	body := fmt.Sprintf(
		"Databases without registry row:\n- %s\n\nRegistry rows without database:\n- %s\n",
		strings.Join(orphanDatabases, "\n- "),
		strings.Join(orphanRecords, "\n- "),
	)
	n.send(subject, body)
}

func (n *Notifier) send(subject, body string) {
	m := mail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := mail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.User, n.cfg.Pass)
	if err := d.DialAndSend(m); err != nil {
		logger.Named("email").Error("notify_send_failed",
			logger.String("subject", subject),
			logger.Err(err),
		)
	}
}
