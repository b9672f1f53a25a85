// internal/engine/scheduler/engine.go
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/common/observability"
	"notification-engine/internal/engine/audit"
	"notification-engine/internal/engine/dispatch"
	"notification-engine/internal/engine/retry"
	"notification-engine/internal/engine/store"
	"notification-engine/internal/engine/template"
	"notification-engine/internal/models"
)

// Engine orchestrates the full submission path: template resolution, the
// preference gate, recipient resolution, record creation and immediate or
// deferred dispatch. Sweeps consume deferred sends and due retries.
type Engine struct {
	config      *Config
	templates   TemplateSource
	preferences PreferenceSource
	gate        PreferenceGate
	recipients  RecipientSource
	dispatchers *dispatch.Set
	store       store.Store
	retry       *retry.Policy
	audit       *audit.Recorder
	obs         *observability.Observability
	logger      logger.Logger
	now         func() time.Time
}

type Deps struct {
	Templates   TemplateSource
	Preferences PreferenceSource
	Gate        PreferenceGate
	Recipients  RecipientSource
	Dispatchers *dispatch.Set
	Store       store.Store
	Retry       *retry.Policy
	Audit       *audit.Recorder
	Obs         *observability.Observability
	Logger      logger.Logger
}

func NewEngine(deps Deps, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Retry == nil {
		deps.Retry = retry.NewPolicy()
	}
	if deps.Audit == nil {
		deps.Audit = audit.Disabled()
	}
	return &Engine{
		config:      config,
		templates:   deps.Templates,
		preferences: deps.Preferences,
		gate:        deps.Gate,
		recipients:  deps.Recipients,
		dispatchers: deps.Dispatchers,
		store:       deps.Store,
		retry:       deps.Retry,
		audit:       deps.Audit,
		obs:         deps.Obs,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// Submit takes one notification request end to end. Validation, template
// lookup and recipient failures return an error and persist nothing. A
// preference denial returns accepted=false with a reason and a nil error.
// Post-dispatch failures are absorbed into the record and retried; the
// caller still gets accepted=true.
func (e *Engine) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if err := e.validate(req); err != nil {
		channel := ""
		if req != nil {
			channel = string(req.Channel)
		}
		metrics.SubmissionsTotal.WithLabelValues(channel, "rejected").Inc()
		return nil, err
	}

	tpl, err := e.templates.Resolve(ctx, req.TemplateName, req.Category, req.Channel)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(req.Channel), "rejected").Inc()
		return nil, err
	}
	if tpl.Channel != req.Channel {
		metrics.SubmissionsTotal.WithLabelValues(string(req.Channel), "rejected").Inc()
		return nil, errors.NewValidationError(
			"template " + tpl.Name + " targets channel " + string(tpl.Channel) + ", not " + string(req.Channel))
	}

	prefs, err := e.preferences.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if ok, reason := e.gate.CanReceive(prefs, req.Channel, req.Category); !ok {
		e.logger.Info("submission denied by preferences", map[string]interface{}{
			"userId":   req.UserID,
			"channel":  req.Channel,
			"category": req.Category,
			"reason":   reason,
		})
		metrics.SubmissionsTotal.WithLabelValues(string(req.Channel), "denied").Inc()
		e.audit.Submission(ctx, req.UserID, req.Channel, req.Category, "denied",
			map[string]interface{}{"reason": reason})
		return &SubmitResult{Accepted: false, Reason: "preferences forbid delivery"}, nil
	}

	recipient, err := e.recipients.Resolve(ctx, req.UserID, req.Channel, prefs)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(req.Channel), "rejected").Inc()
		return nil, err
	}

	record := e.buildRecord(req, tpl, prefs, recipient)
	if err := e.store.Create(ctx, record); err != nil {
		return nil, err
	}
	e.templates.RecordUsage(ctx, tpl.ID)

	metrics.SubmissionsTotal.WithLabelValues(string(req.Channel), "accepted").Inc()
	e.audit.Submission(ctx, req.UserID, req.Channel, req.Category, "accepted",
		map[string]interface{}{"notificationId": record.ID})

	if record.Scheduling.ScheduledFor != nil && record.Scheduling.ScheduledFor.After(e.now()) {
		return &SubmitResult{
			Accepted:       true,
			NotificationID: record.ID,
			Scheduled:      true,
			ScheduledFor:   record.Scheduling.ScheduledFor,
		}, nil
	}

	e.dispatchRecord(ctx, record)
	return &SubmitResult{Accepted: true, NotificationID: record.ID}, nil
}

// SubmitBulk processes the requests with per-item error isolation. Results
// are order-preserving; one item's rejection never aborts the rest. With
// BulkWorkers > 1 the items fan out over a bounded pool.
func (e *Engine) SubmitBulk(ctx context.Context, reqs []*SubmitRequest) []BulkItemResult {
	results := make([]BulkItemResult, len(reqs))

	workers := e.config.BulkWorkers
	if workers <= 1 || len(reqs) <= 1 {
		for i, req := range reqs {
			result, err := e.Submit(ctx, req)
			results[i] = BulkItemResult{Result: result, Err: err}
		}
		return results
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				result, err := e.Submit(ctx, reqs[i])
				results[i] = BulkItemResult{Result: result, Err: err}
			}
		}()
	}
	for i := range reqs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

// ProcessDueWork runs one due-sweep and one retry-sweep. An external
// scheduler triggers this periodically.
func (e *Engine) ProcessDueWork(ctx context.Context, now time.Time) {
	e.RunDueSweep(ctx, now)
	e.RunRetrySweep(ctx, now)
}

// RunDueSweep claims and dispatches scheduled records whose time has come.
func (e *Engine) RunDueSweep(ctx context.Context, now time.Time) {
	records, err := e.store.ClaimDue(ctx, now, e.config.SweepBatchSize, e.config.ClaimLease)
	if err != nil {
		e.logger.Error("due sweep claim failed", map[string]interface{}{"error": err.Error()})
		return
	}

	metrics.SweepBatchSize.WithLabelValues("due").Observe(float64(len(records)))
	e.obs.RecordSweep(ctx, "due")

	for _, record := range records {
		e.dispatchRecord(ctx, record)
	}
}

// RunRetrySweep claims and redispatches failed records whose backoff has
// elapsed.
func (e *Engine) RunRetrySweep(ctx context.Context, now time.Time) {
	records, err := e.store.ClaimRetries(ctx, now, e.config.SweepBatchSize, e.config.ClaimLease)
	if err != nil {
		e.logger.Error("retry sweep claim failed", map[string]interface{}{"error": err.Error()})
		return
	}

	metrics.SweepBatchSize.WithLabelValues("retry").Observe(float64(len(records)))
	e.obs.RecordSweep(ctx, "retry")

	for _, record := range records {
		e.dispatchRecord(ctx, record)
	}
}

// Get returns one record by id.
func (e *Engine) Get(ctx context.Context, id string) (*models.NotificationRecord, error) {
	return e.store.Get(ctx, id)
}

// ListForUser returns a user's notifications, newest first. This is the
// in-app channel's read path.
func (e *Engine) ListForUser(ctx context.Context, userID string, limit int) ([]*models.NotificationRecord, error) {
	return e.store.ListByUser(ctx, userID, limit)
}

// MarkOpened applies an explicit open, idempotently bumping the counter
// and timestamps.
func (e *Engine) MarkOpened(ctx context.Context, id string) error {
	record, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return errors.NewValidationError("notification not found: " + id)
	}
	if !record.Status.CanTransition(models.StatusOpened) {
		return errors.NewValidationError(
			"cannot mark " + string(record.Status) + " notification as opened")
	}

	now := e.now().UTC()
	record.Status = models.StatusOpened
	record.Tracking.Opens++
	if record.Tracking.FirstOpenedAt == nil {
		record.Tracking.FirstOpenedAt = &now
	}
	record.Tracking.LastOpenedAt = &now
	record.UpdatedAt = now

	return e.store.Update(ctx, record)
}

// MarkClicked records a click on a link in the notification.
func (e *Engine) MarkClicked(ctx context.Context, id, url string) error {
	record, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return errors.NewValidationError("notification not found: " + id)
	}
	if !record.Status.CanTransition(models.StatusClicked) {
		return errors.NewValidationError(
			"cannot mark " + string(record.Status) + " notification as clicked")
	}

	now := e.now().UTC()
	record.Status = models.StatusClicked
	record.Tracking.Clicks++
	record.Tracking.Links = append(record.Tracking.Links, models.ClickedLink{URL: url, ClickedAt: now})
	record.UpdatedAt = now

	return e.store.Update(ctx, record)
}

// dispatchRecord runs one bounded dispatch attempt and commits the
// bookkeeping only after the attempt concludes, so a cancelled in-flight
// send never leaves half-written attempt state.
func (e *Engine) dispatchRecord(ctx context.Context, record *models.NotificationRecord) {
	dispatcher, err := e.dispatchers.ForChannel(record.Channel)
	if err != nil {
		e.logger.Error("no dispatcher for channel", map[string]interface{}{
			"notificationId": record.ID,
			"channel":        record.Channel,
		})
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.config.DispatchTimeout)
	start := e.now()
	result, sendErr := dispatcher.Send(attemptCtx, record)
	cancel()

	elapsed := e.now().Sub(start)
	e.obs.RecordDeliveryDuration(ctx, elapsed, string(record.Channel))
	metrics.DispatchDuration.WithLabelValues(string(record.Channel), record.Delivery.Provider).
		Observe(elapsed.Seconds())

	if sendErr != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			sendErr = errors.NewTransportTimeoutError(string(record.Channel))
		}
		e.retry.RecordFailure(record, sendErr)
		metrics.DispatchAttemptsTotal.WithLabelValues(
			string(record.Channel), record.Delivery.Provider, "failed").Inc()
		e.obs.RecordDelivery(ctx, string(record.Channel), "failed")
		e.audit.Dispatch(ctx, record, "failed")

		e.logger.Warn("dispatch attempt failed", map[string]interface{}{
			"notificationId": record.ID,
			"channel":        record.Channel,
			"attempts":       record.Delivery.Attempts,
			"terminal":       record.IsTerminal(),
			"error":          sendErr.Error(),
		})
	} else {
		e.retry.RecordSuccess(record, result.Provider, result.ProviderMessageID)
		metrics.DispatchAttemptsTotal.WithLabelValues(
			string(record.Channel), result.Provider, "sent").Inc()
		e.obs.RecordDelivery(ctx, string(record.Channel), "sent")
		e.audit.Dispatch(ctx, record, "sent")
	}

	if err := e.store.Update(ctx, record); err != nil {
		e.logger.Error("failed to persist dispatch outcome", map[string]interface{}{
			"notificationId": record.ID,
			"error":          err.Error(),
		})
	}
}

func (e *Engine) validate(req *SubmitRequest) error {
	if req == nil {
		return errors.NewValidationError("request cannot be nil")
	}
	if req.UserID == "" {
		return errors.NewValidationError("userId is required")
	}
	if !req.Channel.IsValid() {
		return errors.NewValidationError("unknown channel: " + string(req.Channel))
	}
	if !req.Category.IsValid() {
		return errors.NewValidationError("unknown category: " + string(req.Category))
	}
	if req.Priority != "" && !req.Priority.IsValid() {
		return errors.NewValidationError("unknown priority: " + string(req.Priority))
	}
	return nil
}

func (e *Engine) buildRecord(req *SubmitRequest, tpl *models.NotificationTemplate, prefs *models.UserPreferences, recipient *models.Recipient) *models.NotificationRecord {
	now := e.now().UTC()

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	return &models.NotificationRecord{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Channel:      req.Channel,
		Category:     req.Category,
		Content:      template.Render(tpl, req.Variables),
		Settings:     tpl.Settings,
		Recipient:    *recipient,
		Related:      req.Related,
		Status:       models.StatusPending,
		Delivery: models.Delivery{
			MaxAttempts: e.config.MaxAttempts,
		},
		Scheduling: models.Scheduling{
			ScheduledFor: req.ScheduledFor,
			Timezone:     prefs.Timing.Timezone,
		},
		Priority:  priority,
		Variables: req.Variables,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
