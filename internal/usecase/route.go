package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/hubble/internal/adapter/metrics"
	"github.com/user/hubble/internal/domain"
	"github.com/user/hubble/internal/pkg/ratelimit"
)

// backendAction is one best-effort backend verb in a dispatch entry.
type backendAction struct {
	verb string
	run  func(ctx context.Context, sink domain.EventSink, ev domain.Event) error
}

// alertRule renders an operator alert for an event type.
type alertRule struct {
	severity domain.Severity
	title    func(ev domain.Event) string
	message  func(ev domain.Event) string
}

type routeRule struct {
	actions []backendAction
	alert   *alertRule
}

// RouterOutcome summarizes what the router did with one event.
type RouterOutcome struct {
	ActionsRun    int
	ActionsFailed int
	AlertSent     bool
	// AlertDropped is "" when no alert was attempted or the alert went out;
	// otherwise "stale", "rate_limited", or "send_error".
	AlertDropped string
}

// Router decides, per event type, which backend verbs run and whether an
// alert goes out. Backend actions execute in listed order and are
// independently best-effort: a failed call is logged and does not block the
// actions or alert behind it.
type Router struct {
	sink     domain.EventSink
	notifier domain.Notifier
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	metrics  *metrics.PipelineMetrics

	// publishThreshold is the age cutoff (minutes) below which an event is
	// alert-eligible; older events are assumed to be backlog replay.
	publishThreshold int

	rules map[domain.EventType]routeRule
}

// NewRouter creates a Router with the static dispatch table.
func NewRouter(sink domain.EventSink, notifier domain.Notifier, limiter *ratelimit.Limiter, publishThreshold int, m *metrics.PipelineMetrics, logger *slog.Logger) *Router {
	return &Router{
		sink:             sink,
		notifier:         notifier,
		limiter:          limiter,
		logger:           logger,
		metrics:          m,
		publishThreshold: publishThreshold,
		rules:            buildRules(),
	}
}

func action(verb string, run func(ctx context.Context, sink domain.EventSink, ev domain.Event) error) backendAction {
	return backendAction{verb: verb, run: run}
}

var (
	insertEvent     = action("insert_event", func(ctx context.Context, s domain.EventSink, ev domain.Event) error { return s.InsertEvent(ctx, ev) })
	insertFarm      = action("insert_farm", func(ctx context.Context, s domain.EventSink, ev domain.Event) error { return s.InsertFarm(ctx, ev) })
	updateFarm      = action("update_farm", func(ctx context.Context, s domain.EventSink, ev domain.Event) error { return s.UpdateFarm(ctx, ev) })
	updateFarmer    = action("update_farmer", func(ctx context.Context, s domain.EventSink, ev domain.Event) error { return s.UpdateFarmer(ctx, ev) })
	insertPlot      = action("insert_plot", func(ctx context.Context, s domain.EventSink, ev domain.Event) error { return s.InsertPlot(ctx, ev) })
	insertReward    = action("insert_reward", func(ctx context.Context, s domain.EventSink, ev domain.Event) error { return s.InsertReward(ctx, ev) })
	insertConsensus = action("insert_consensus", func(ctx context.Context, s domain.EventSink, ev domain.Event) error { return s.InsertConsensus(ctx, ev) })
	insertClaim     = action("insert_claim", func(ctx context.Context, s domain.EventSink, ev domain.Event) error { return s.InsertClaim(ctx, ev) })
)

func buildRules() map[domain.EventType]routeRule {
	return map[domain.EventType]routeRule{
		domain.EventPlottingSector: {
			actions: []backendAction{insertEvent, insertPlot},
		},
		domain.EventReplottingSector: {
			actions: []backendAction{insertEvent, insertPlot},
		},
		domain.EventPieceCacheSync: {
			actions: []backendAction{insertEvent, updateFarmer},
		},
		domain.EventSynchronizingPieceCache: {
			actions: []backendAction{insertEvent, updateFarmer},
			alert: &alertRule{
				severity: domain.SeverityInfo,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: piece cache sync started", ev.SubjectName) },
				message:  func(ev domain.Event) string { return "The farmer began synchronizing its piece cache." },
			},
		},
		domain.EventFinishedPieceCacheSync: {
			actions: []backendAction{insertEvent, updateFarmer},
			alert: &alertRule{
				severity: domain.SeveritySuccess,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: piece cache sync finished", ev.SubjectName) },
				message:  func(ev domain.Event) string { return "Piece cache synchronization is complete." },
			},
		},
		domain.EventPlottingPaused: {
			actions: []backendAction{insertEvent, updateFarmer},
			alert: &alertRule{
				severity: domain.SeverityWarning,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: plotting paused", ev.SubjectName) },
				message:  func(ev domain.Event) string { return "The farmer paused plotting." },
			},
		},
		domain.EventPlottingResumed: {
			actions: []backendAction{insertEvent, updateFarmer},
			alert: &alertRule{
				severity: domain.SeverityInfo,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: plotting resumed", ev.SubjectName) },
				message:  func(ev domain.Event) string { return "The farmer resumed plotting." },
			},
		},
		domain.EventReward: {
			actions: []backendAction{insertEvent, insertReward},
			alert: &alertRule{
				severity: domain.SeveritySuccess,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: reward won 🎉", ev.SubjectName) },
				message: func(ev domain.Event) string {
					return fmt.Sprintf("Farm %v signed reward hash %v.", ev.Payload["farm_index"], ev.Payload["hash"])
				},
			},
		},
		domain.EventFailedToSendSolution: {
			actions: []backendAction{insertEvent, insertReward},
			alert: &alertRule{
				severity: domain.SeverityWarning,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: failed to send solution", ev.SubjectName) },
				message: func(ev domain.Event) string {
					return fmt.Sprintf("Farm %v failed to send a solution in time.", ev.Payload["farm_index"])
				},
			},
		},
		domain.EventNewFarmIdentified: {
			actions: []backendAction{insertEvent, insertFarm},
			alert: &alertRule{
				severity: domain.SeverityInfo,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: new farm identified", ev.SubjectName) },
				message: func(ev domain.Event) string {
					return fmt.Sprintf("Single disk farm %v came online.", ev.Payload["farm_index"])
				},
			},
		},
		domain.EventStartingWorkers: {
			actions: []backendAction{insertEvent, updateFarmer},
			alert: &alertRule{
				severity: domain.SeverityWarning,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: farmer restarted", ev.SubjectName) },
				message: func(ev domain.Event) string {
					return fmt.Sprintf("The farmer started %v workers.", ev.Payload["workers"])
				},
			},
		},
		domain.EventFarmID: {
			actions: []backendAction{insertEvent, updateFarm},
		},
		domain.EventFarmPublicKey: {
			actions: []backendAction{insertEvent, updateFarm},
		},
		domain.EventFarmAllocatedSpace: {
			actions: []backendAction{insertEvent, updateFarm},
		},
		domain.EventFarmDirectory: {
			actions: []backendAction{insertEvent, updateFarm},
		},
		domain.EventPlottingComplete: {
			actions: []backendAction{insertEvent, updateFarm},
			alert: &alertRule{
				severity: domain.SeveritySuccess,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: plotting complete", ev.SubjectName) },
				message: func(ev domain.Event) string {
					return fmt.Sprintf("Farm %v finished plotting.", ev.Payload["farm_index"])
				},
			},
		},
		domain.EventReplottingComplete: {
			actions: []backendAction{insertEvent, updateFarm},
			alert: &alertRule{
				severity: domain.SeveritySuccess,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: replotting complete", ev.SubjectName) },
				message: func(ev domain.Event) string {
					return fmt.Sprintf("Farm %v finished replotting.", ev.Payload["farm_index"])
				},
			},
		},
		domain.EventIdleNode: {
			actions: []backendAction{insertEvent, insertConsensus},
		},
		domain.EventClaimedVote: {
			actions: []backendAction{insertEvent, insertClaim},
		},
		domain.EventClaimedBlock: {
			actions: []backendAction{insertEvent, insertClaim},
			alert: &alertRule{
				severity: domain.SeveritySuccess,
				title:    func(ev domain.Event) string { return fmt.Sprintf("%s: block claimed", ev.SubjectName) },
				message: func(ev domain.Event) string {
					return fmt.Sprintf("Claimed a block at slot %v.", ev.Payload["slot"])
				},
			},
		},
	}
}

// Route executes the dispatch entry for the event's type. Unknown and
// Unparsed events are logged for pattern-table extension and take no backend
// action; only an ERROR-level line can still alert.
func (r *Router) Route(ctx context.Context, ev domain.Event) RouterOutcome {
	var out RouterOutcome

	if !ev.Type.Classified() {
		r.logger.Info("unrecognized log event",
			"event_type", ev.Type,
			"subject", ev.SubjectName,
			"log", ev.Payload["log"],
		)
		// An unrecognized line at ERROR level is still operator-worthy; it
		// takes the error-alert path without any backend action.
		if ev.Level == "ERROR" {
			out.AlertSent, out.AlertDropped = r.dispatchAlert(ctx, ev, errorLineAlert)
		}
		return out
	}

	rule, ok := r.rules[ev.Type]
	if !ok {
		r.logger.Warn("no dispatch entry for event type", "event_type", ev.Type)
		return out
	}

	for _, a := range rule.actions {
		out.ActionsRun++
		if err := a.run(ctx, r.sink, ev); err != nil {
			out.ActionsFailed++
			r.metrics.BackendErrorsTotal.WithLabelValues(a.verb).Inc()
			r.logger.Error("backend action failed",
				"verb", a.verb,
				"event_type", ev.Type,
				"event_id", ev.ID,
				"error", err,
			)
		}
	}

	if rule.alert != nil {
		out.AlertSent, out.AlertDropped = r.dispatchAlert(ctx, ev, rule.alert)
	}

	// An ERROR line always takes the error-alert path, independent of the
	// type-based rule and subject to the same age and rate gating.
	if ev.Level == "ERROR" {
		sent, dropped := r.dispatchAlert(ctx, ev, errorLineAlert)
		out.AlertSent = out.AlertSent || sent
		if out.AlertDropped == "" {
			out.AlertDropped = dropped
		}
	}

	return out
}

// errorLineAlert renders the level-triggered alert shared by classified and
// unrecognized ERROR lines.
var errorLineAlert = &alertRule{
	severity: domain.SeverityError,
	title:    func(ev domain.Event) string { return fmt.Sprintf("%s: error logged", ev.SubjectName) },
	message: func(ev domain.Event) string {
		return fmt.Sprintf("The monitored process logged an error during a %q event.", ev.Type)
	},
}

// dispatchAlert applies the age gate and rate limiter, then sends. The
// limiter records only after a successful send, so neither a stale event nor
// a failed delivery consumes window capacity.
func (r *Router) dispatchAlert(ctx context.Context, ev domain.Event, rule *alertRule) (sent bool, dropped string) {
	if ev.AgeMinutes >= r.publishThreshold {
		r.metrics.AlertsTotal.WithLabelValues("stale").Inc()
		r.logger.Debug("alert suppressed: event too old",
			"event_type", ev.Type,
			"age_minutes", ev.AgeMinutes,
			"publish_threshold", r.publishThreshold,
		)
		return false, "stale"
	}

	if !r.limiter.Allow() {
		r.metrics.AlertsTotal.WithLabelValues("rate_limited").Inc()
		r.logger.Warn("alert suppressed: rate limit reached",
			"event_type", ev.Type,
			"event_id", ev.ID,
		)
		return false, "rate_limited"
	}

	if err := r.notifier.Send(ctx, rule.title(ev), rule.message(ev), rule.severity); err != nil {
		r.metrics.AlertsTotal.WithLabelValues("send_error").Inc()
		r.logger.Error("alert delivery failed", "event_type", ev.Type, "error", err)
		return false, "send_error"
	}

	r.limiter.Record()
	r.metrics.AlertsTotal.WithLabelValues("sent").Inc()
	return true, ""
}
