package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/recordsync/internal/logging"
	"github.com/stacklok/recordsync/internal/sync/coordinator"
	"github.com/stacklok/recordsync/internal/sync/state"
	"github.com/stacklok/recordsync/internal/versions"
)

// maxNotificationSize bounds the notification body
const maxNotificationSize = 64 * 1024

// Notification is the body of a change notification
type Notification struct {
	SubscriptionID string `json:"subscriptionId"`
	RecordType     string `json:"recordType"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	trigger       Trigger
	statusSvc     state.RecordTypeStateService
	subscriptions map[string]string
}

func (*handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

func (*handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

func (h *handlers) notification(w http.ResponseWriter, r *http.Request) {
	var n Notification
	dec := json.NewDecoder(io.LimitReader(r.Body, maxNotificationSize))
	if err := dec.Decode(&n); err != nil {
		writeErrorResponse(w, "invalid notification body", http.StatusBadRequest)
		return
	}

	recordType := n.RecordType
	if recordType == "" {
		recordType = h.subscriptions[n.SubscriptionID]
	}
	if recordType == "" {
		writeErrorResponse(w, "notification names no record type", http.StatusBadRequest)
		return
	}

	if err := h.trigger.Trigger(recordType); err != nil {
		if errors.Is(err, coordinator.ErrUnknownRecordType) {
			writeErrorResponse(w, err.Error(), http.StatusNotFound)
			return
		}
		logging.FromContext(r.Context()).Error("Failed to trigger sync", "record_type", recordType, "error", err)
		writeErrorResponse(w, "failed to trigger sync", http.StatusInternalServerError)
		return
	}

	logging.FromContext(r.Context()).Debug("Change notification accepted",
		"record_type", recordType,
		"subscription_id", n.SubscriptionID)
	writeJSONResponse(w, map[string]string{"status": "accepted", "recordType": recordType}, http.StatusAccepted)
}

func (h *handlers) listStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.statusSvc.ListSyncStatuses(r.Context())
	if err != nil {
		writeErrorResponse(w, "failed to list sync status", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, statuses, http.StatusOK)
}

func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	recordType := chi.URLParam(r, "recordType")
	syncStatus, err := h.statusSvc.GetSyncStatus(r.Context(), recordType)
	if err != nil {
		if errors.Is(err, state.ErrUnknownRecordType) {
			writeErrorResponse(w, err.Error(), http.StatusNotFound)
			return
		}
		writeErrorResponse(w, "failed to get sync status", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, syncStatus, http.StatusOK)
}

// writeJSONResponse writes a JSON response with the given data
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}
