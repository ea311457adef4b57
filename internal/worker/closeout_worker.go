package worker

// closeout_worker.go
// Consumes QueueCloseout: renders the close-out report as a PDF and hands the
// file to the email queue addressed to the branch supervisor.

import (
	"context"
	"encoding/json"
	"fmt"

	"tillpos/internal/dto"
	"tillpos/internal/infra"

	"github.com/rs/zerolog/log"
)

type CloseoutWorker struct {
	storagePath     string
	supervisorEmail string
	dispatcher      *Dispatcher
}

func NewCloseoutWorker(storagePath, supervisorEmail string, dispatcher *Dispatcher) *CloseoutWorker {
	return &CloseoutWorker{storagePath: storagePath, supervisorEmail: supervisorEmail, dispatcher: dispatcher}
}

func (w *CloseoutWorker) Process(ctx context.Context, payload json.RawMessage) error {
	var report dto.CloseReportResponse
	if err := json.Unmarshal(payload, &report); err != nil {
		// A malformed payload will never parse on retry; drop it loudly.
		log.Error().Err(err).Msg("closeout_worker: invalid payload")
		return nil
	}

	pdfPath, err := infra.GenerateCloseoutPDF(&report, w.storagePath)
	if err != nil {
		return fmt.Errorf("closeout_worker: render pdf: %w", err)
	}
	log.Info().
		Str("register_id", report.RegisterID).
		Str("session_id", report.SessionID).
		Str("pdf", pdfPath).
		Msg("closeout_worker: report rendered")

	if w.supervisorEmail == "" {
		log.Warn().Msg("closeout_worker: no supervisor email configured, skipping notification")
		return nil
	}

	subject := fmt.Sprintf("Close-out report — register %s", report.RegisterID)
	body := fmt.Sprintf(
		"Session %s closed.\nExpected: %s\nRecorded: %s\nVariance: %s (%s)",
		report.SessionID,
		report.ExpectedBalance.StringFixed(2),
		report.RecordedBalance.StringFixed(2),
		report.Variance.Amount.StringFixed(2),
		report.Variance.Classification,
	)
	return w.dispatcher.EnqueueEmail(ctx, EmailJobPayload{
		ToEmail: w.supervisorEmail,
		Subject: subject,
		Body:    body,
		PDFPath: pdfPath,
	})
}
