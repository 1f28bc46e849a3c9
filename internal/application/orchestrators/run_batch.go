package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"certmill/internal/adapters/deck"
	emailAdapter "certmill/internal/adapters/email"
	"certmill/internal/adapters/render"
	deliveryStore "certmill/internal/adapters/storage/deliverylog"
	"certmill/internal/domain/certificate"
	deliveryDomain "certmill/internal/domain/deliverylog"
	"certmill/internal/domain/roster"
)

// DefaultOutputDir is where rendered certificates land when no output
// directory is configured.
const DefaultOutputDir = "output"

// RunBatchInput carries everything one batch run needs. The interactive
// layer that collects these values is a caller of this orchestrator, not
// part of the pipeline.
// PRE: TemplatePath points to a .pptx file; EventName is non-empty; Rows come from LoadRoster.
// POST: Every row is processed exactly once, in roster order.
// INVARIANT: A row's failure never aborts the batch; at most one email per row per run.
type RunBatchInput struct {
	TemplatePath string
	Rows         []roster.Row
	EventName    string
	EmailColumn  string // defaults to EMAIL
	OutputDir    string // defaults to DefaultOutputDir
	RowTimeout   time.Duration
	Resume       bool // skip dispatch to recipients the delivery log already marks sent for this event
}

// RunBatchDeps holds external dependencies for the batch orchestrator.
type RunBatchDeps struct {
	Renderer    render.Renderer
	Sender      emailAdapter.Sender
	DeliveryLog deliveryStore.Store // optional; nil disables the audit trail and Resume
	GenerateID  func() string
	Now         func() time.Time
	OnProgress  func(done, total int, rowName string) // optional per-row progress callback
}

// ExecuteRunBatch drives the whole certificate pipeline: fill the template
// per row, render the filled deck to images, and email the first image to
// the row's recipient. Rows run strictly one at a time in roster order —
// the render session is stateful and must not see concurrent calls.
// PRE: deps.Renderer and deps.Sender are set; input validates
// POST: Returns a BatchResult with totals, always, even if every row failed;
//
//	only a template parse failure or cancellation aborts the run early.
//
// INVARIANT: Counters only increase; processed == number of rows visited.
func ExecuteRunBatch(ctx context.Context, input RunBatchInput, deps RunBatchDeps) (certificate.BatchResult, error) {
	if input.EventName == "" {
		return certificate.BatchResult{}, certificate.ErrEmptyEventName
	}
	if len(input.Rows) == 0 {
		return certificate.BatchResult{}, errors.New("roster has no rows")
	}
	emailColumn := input.EmailColumn
	if emailColumn == "" {
		emailColumn = roster.DefaultEmailColumn
	}
	outputDir := input.OutputDir
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}

	// No valid template means no row can proceed: abort the whole batch.
	template, err := deck.Open(input.TemplatePath)
	if err != nil {
		return certificate.BatchResult{}, err
	}

	result := certificate.BatchResult{
		BatchID:   deps.GenerateID(),
		EventName: input.EventName,
		Total:     len(input.Rows),
		StartedAt: deps.Now(),
	}

	scratch, err := os.MkdirTemp("", "certmill-batch-*")
	if err != nil {
		return result, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	var alreadySent map[string]bool
	if input.Resume && deps.DeliveryLog != nil {
		alreadySent, err = deps.DeliveryLog.SentRecipients(ctx, input.EventName)
		if err != nil {
			return result, fmt.Errorf("load delivery log: %w", err)
		}
	}

	eventDir := filepath.Join(outputDir, roster.PathSafe(input.EventName))
	attachmentName := roster.PathSafe(input.EventName) + ".png"

	for _, row := range input.Rows {
		// Cooperative cancellation is checked between rows only; a row in
		// flight finishes or times out via its own context.
		if ctx.Err() != nil {
			result.FinishedAt = deps.Now()
			slog.Warn("batch_cancelled", "batch_id", result.BatchID, "processed", result.Processed, "total", result.Total)
			return result, ctx.Err()
		}

		rr := processRow(ctx, row, rowEnv{
			template:       template,
			scratch:        scratch,
			eventDir:       eventDir,
			eventName:      input.EventName,
			emailColumn:    emailColumn,
			attachmentName: attachmentName,
			timeout:        input.RowTimeout,
			alreadySent:    alreadySent,
		}, deps)

		result.Record(rr)
		recordDelivery(ctx, &result, rr, deps)

		slog.Info("batch_row_done",
			"batch_id", result.BatchID,
			"row", row.Index,
			"name", row.Name,
			"status", rr.Status,
			"reason", rr.FailureReason,
		)
		if deps.OnProgress != nil {
			deps.OnProgress(result.Processed, result.Total, row.Name)
		}
	}

	result.FinishedAt = deps.Now()
	slog.Info("batch_done",
		"batch_id", result.BatchID,
		"event", input.EventName,
		"total", result.Total,
		"sent", result.Sent,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// rowEnv bundles the per-batch constants a single row run needs.
type rowEnv struct {
	template       *deck.Deck
	scratch        string
	eventDir       string
	eventName      string
	emailColumn    string
	attachmentName string
	timeout        time.Duration
	alreadySent    map[string]bool
}

// processRow takes one roster row through fill, render, and dispatch.
// All failures are captured in the returned RowResult; nothing escapes.
func processRow(ctx context.Context, row roster.Row, env rowEnv, deps RunBatchDeps) certificate.RowResult {
	rr := certificate.RowResult{Index: row.Index, Name: row.Name, Status: certificate.StatusPending}

	rowCtx := ctx
	if env.timeout > 0 {
		var cancel context.CancelFunc
		rowCtx, cancel = context.WithTimeout(ctx, env.timeout)
		defer cancel()
	}

	filled := env.template.Fill(row.Values)
	filledPath := filepath.Join(env.scratch, row.PathName()+".pptx")
	if err := filled.Save(filledPath); err != nil {
		rr.MarkFailed(err)
		return rr
	}
	rr.MarkFilled()

	personDir := filepath.Join(env.eventDir, row.PathName())
	images, err := deps.Renderer.Render(rowCtx, filledPath, personDir)
	if err != nil {
		slog.Error("render_failed", "row", row.Index, "name", row.Name, "err", err)
		rr.MarkFailed(err)
		return rr
	}
	if len(images) == 0 {
		// A certificate email with no certificate is a defect, not a
		// degraded send. Treat an empty render as a row failure.
		err := fmt.Errorf("%w: renderer produced no images", render.ErrRender)
		slog.Error("render_failed", "row", row.Index, "name", row.Name, "err", err)
		rr.MarkFailed(err)
		return rr
	}
	rr.MarkRendered(images)

	recipient := row.Value(env.emailColumn)
	rr.Recipient = recipient
	if recipient == "" {
		rr.MarkDispatchSkipped()
		return rr
	}
	if env.alreadySent[recipient] {
		slog.Info("dispatch_resume_skip", "row", row.Index, "recipient", recipient)
		rr.MarkDispatchSkipped()
		return rr
	}

	body, err := emailAdapter.BuildCertificateBody(row.Name, env.eventName, env.attachmentName)
	if err != nil {
		rr.MarkFailed(err)
		return rr
	}

	sent, err := deps.Sender.Send(rowCtx, emailAdapter.SendRequest{
		To:             recipient,
		Subject:        env.eventName + " Certificate",
		Text:           body.Text,
		HTML:           body.HTML,
		InlinePNG:      images[0],
		AttachmentName: env.attachmentName,
	})
	if err != nil {
		slog.Error("dispatch_failed", "row", row.Index, "recipient", recipient, "err", err)
		rr.MarkFailed(err)
		return rr
	}
	rr.MarkDispatched(sent.MessageID)
	return rr
}

// recordDelivery writes the row's dispatch outcome to the delivery log.
// Log failures are reported but never fail the row: the log is an audit
// trail, not part of the pipeline contract.
func recordDelivery(ctx context.Context, result *certificate.BatchResult, rr certificate.RowResult, deps RunBatchDeps) {
	if deps.DeliveryLog == nil {
		return
	}

	entry := deliveryDomain.Entry{
		ID:        deps.GenerateID(),
		BatchID:   result.BatchID,
		EventName: result.EventName,
		RowIndex:  rr.Index,
		RowName:   rr.Name,
		Recipient: rr.Recipient,
		CreatedAt: deps.Now(),
	}
	switch rr.Status {
	case certificate.StatusDispatched:
		entry.MarkSent(rr.MessageID)
	case certificate.StatusDispatchSkipped:
		reason := "no recipient address"
		if rr.Recipient != "" {
			reason = "already sent in a previous run"
		}
		entry.MarkSkipped(reason)
	default:
		entry.MarkFailed(errors.New(rr.FailureReason))
	}

	if err := entry.Validate(); err != nil {
		slog.Warn("delivery_log_invalid", "row", rr.Index, "err", err)
		return
	}
	if err := deps.DeliveryLog.Save(ctx, entry); err != nil {
		slog.Warn("delivery_log_save_failed", "row", rr.Index, "err", err)
	}
}
