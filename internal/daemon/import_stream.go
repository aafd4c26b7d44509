package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cadence/internal/api"
	"cadence/internal/importer"
	"cadence/internal/logging"
)

// handleImport starts a job and relays its events as server-sent events
// until the terminal event. A client that goes away stops the relay but not
// the job; use the cancel endpoint for that.
func (s *apiServer) handleImport(w http.ResponseWriter, r *http.Request) {
	var req api.ImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	job, err := s.service().StartImport(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.log().Debug("write deadline not adjustable", logging.Error(err))
	}
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Job-ID", job.ID())
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	logger := s.log().With(
		logging.String(logging.FieldJobID, job.ID()),
		logging.String(logging.FieldOwner, job.Owner()),
	)
	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				logger.Debug("import stream closed")
				return
			}
			if err := writeEvent(w, ev); err != nil {
				job.Discard()
				logger.Warn("import stream write failed; job continues",
					logging.String(logging.FieldEventType, "import_stream_write_failed"),
					logging.String(logging.FieldErrorHint, "poll /api/import/jobs for the outcome"),
					logging.Error(err),
				)
				return
			}
			if err := rc.Flush(); err != nil {
				job.Discard()
				return
			}
		case <-r.Context().Done():
			job.Discard()
			logger.Info("import stream client disconnected; job continues")
			return
		}
	}
}

func writeEvent(w io.Writer, ev importer.Event) error {
	payload, err := json.Marshal(api.FromImportEvent(ev))
	if err != nil {
		return fmt.Errorf("encode import event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
