package api

import (
	"errors"
	"net/http"

	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/extsource"
	"github.com/menatics/andromeda/pkg/httputil"
	"github.com/menatics/andromeda/pkg/monitor"
)

// syncResponse is the payload of a successful ad-hoc sync
type syncResponse struct {
	Status       string `json:"status"`
	ClientName   string `json:"client_name"`
	InvoiceCount int    `json:"invoice_count"`
}

// handleSync polls one client's external database and overwrites its
// stored counter, synchronously
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	result, err := s.syncer.SyncClient(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, clients.ErrNotFound):
			httputil.WriteNotFound(w, "client not found")
		case errors.Is(err, monitor.ErrNotEligible):
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, extsource.ErrUnavailable):
			httputil.WriteServiceUnavailable(w, "client invoicing database unavailable")
		default:
			s.logger.WithError(err).WithField("client_id", id).Error("ad-hoc sync failed")
			httputil.WriteInternalError(w)
		}
		return
	}

	httputil.WriteOK(w, syncResponse{
		Status:       "ok",
		ClientName:   result.ClientName,
		InvoiceCount: result.InvoiceCount,
	})
}

// handleUnsubscribe flips a client's email preference off. Public link,
// no auth, idempotent: repeating the request succeeds.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.repo.SetEmailOptIn(r.Context(), id, false); err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			httputil.WriteNotFound(w, "client not found")
			return
		}
		s.logger.WithError(err).WithField("client_id", id).Error("unsubscribe failed")
		httputil.WriteInternalError(w)
		return
	}

	s.logger.WithField("client_id", id).Info("client unsubscribed from email reminders")
	httputil.WriteOK(w, map[string]string{
		"status":  "ok",
		"message": "Se ha cancelado el envío de recordatorios por correo.",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "healthy"})
}
