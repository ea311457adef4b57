package worker

// email_worker.go
// Consumes QueueEmail: delivers close-out reports by SMTP. Sends run through a
// circuit breaker so a dead mail server fast-fails instead of stalling the pool.

import (
	"context"
	"encoding/json"
	"fmt"

	"tillpos/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFPath string `json:"pdf_path"`
}

type EmailWorker struct {
	mailer *infra.Mailer
	cb     *infra.CircuitBreaker
}

func NewEmailWorker(mailer *infra.Mailer, cb *infra.CircuitBreaker) *EmailWorker {
	return &EmailWorker{mailer: mailer, cb: cb}
}

func (w *EmailWorker) Process(_ context.Context, payload json.RawMessage) error {
	var job EmailJobPayload
	if err := json.Unmarshal(payload, &job); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if job.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	err := w.cb.Execute(func() error {
		return w.mailer.SendReport(job.ToEmail, job.Subject, job.Body, job.PDFPath)
	})
	if err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", job.ToEmail, err)
	}
	log.Info().Str("to", job.ToEmail).Msg("email_worker: report sent")
	return nil
}
