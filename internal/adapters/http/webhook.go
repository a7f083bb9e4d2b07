package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	triggerFileUploaded = "FILE.UPLOADED"
	sourceTypeFile      = "file"
)

// boxWebhookEvent holds only the fields the intake pipeline consumes.
type boxWebhookEvent struct {
	Trigger string `json:"trigger"`
	Source  struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"source"`
}

// boxWebhook acknowledges every well-formed event with 202. Only uploads of
// files are enqueued; the response reports what happened.
func (rt *Router) boxWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	var event boxWebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	trigger := strings.ToUpper(strings.TrimSpace(event.Trigger))
	if trigger != triggerFileUploaded || !strings.EqualFold(event.Source.Type, sourceTypeFile) {
		rt.recordWebhook(trigger, "ignored")
		rt.logger.Info("webhook_ignored",
			"request_id", requestIDFromContext(r.Context()),
			"trigger", event.Trigger,
			"source_type", event.Source.Type,
			"source_id", event.Source.ID,
		)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}

	task, err := rt.intake.Submit(r.Context(), event.Source.ID)
	if err != nil {
		rt.recordWebhook(trigger, "failed")
		rt.writeError(w, r, err)
		return
	}
	rt.recordWebhook(trigger, "enqueued")
	rt.recordSubmission("webhook")
	rt.logger.Info("webhook_enqueued",
		"request_id", requestIDFromContext(r.Context()),
		"file_id", task.FileID,
		"file_name", event.Source.Name,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "file_id": task.FileID})
}

func (rt *Router) recordWebhook(trigger, disposition string) {
	if trigger != triggerFileUploaded {
		trigger = "other"
	}
	if rt.metrics != nil {
		rt.metrics.RecordWebhookEvent(trigger, disposition)
	}
}
