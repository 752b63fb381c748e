package pos

import (
	log "github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/coordinator"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
)

// dialogNotifier keeps coordinator dialogs on the line so the till can show them.
type dialogNotifier struct{}

func (dialogNotifier) Error(line coordinator.PaymentLine, message string) {
	notify(line, models.NoticeLevelError, message)
}

func (dialogNotifier) Info(line coordinator.PaymentLine, message string) {
	notify(line, models.NoticeLevelInfo, message)
}

func notify(line coordinator.PaymentLine, level, message string) {
	fields := log.Fields{"notice": level}
	if l, ok := line.(*Line); ok {
		fields["payment_id"] = l.ID()
		l.addNotice(level, message)
	}
	log.WithFields(fields).Info(message)
}

// Notifier returns the notifier coordinators of a Service should use.
func Notifier() coordinator.Notifier {
	return dialogNotifier{}
}
