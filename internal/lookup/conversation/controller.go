// Package conversation drives one operator turn: directory lookup, scope resolution,
// the session state machine and query execution.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "asset-lookup-bot/internal/common/errors"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/common/metrics"
	"asset-lookup-bot/internal/common/observability"
	"asset-lookup-bot/internal/lookup/query"
	"asset-lookup-bot/internal/lookup/scope"
	"asset-lookup-bot/internal/lookup/session"
	"asset-lookup-bot/internal/models"
)

type Dependencies struct {
	Directory     Directory
	Datasets      Datasets
	Resolver      *scope.Resolver
	Engine        *query.Engine
	Sessions      *session.Store
	Alerter       Alerter // optional
	Observability *observability.Observability
	Logger        logger.Logger
}

type Controller struct {
	config       *Config
	deps         *Dependencies
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewController(config *Config, deps *Dependencies) *Controller {
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	log := deps.Logger.WithFields(map[string]interface{}{"component": "conversation"})
	return &Controller{
		config:       config,
		deps:         deps,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

// Handle processes one inbound message and returns the reply. The operator's session is
// written only when the turn succeeds; a failed turn leaves it exactly as it was.
func (c *Controller) Handle(ctx context.Context, msg Inbound) Reply {
	start := time.Now()
	turnID := uuid.New().String()

	ctx, span := c.deps.Observability.Tracer().Start(ctx, "conversation.turn",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.Int64("operator.id", msg.OperatorID),
		))
	defer span.End()

	if c.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.FetchTimeout)
		defer cancel()
	}

	fields := map[string]interface{}{
		"turnId":     turnID,
		"operatorId": msg.OperatorID,
	}

	prev := c.deps.Sessions.Get(msg.OperatorID)
	fields["step"] = prev.Step.String()

	reply, next, err := c.turn(ctx, msg.OperatorID, strings.TrimSpace(msg.Text), prev)
	if err != nil {
		reply = c.fail(ctx, msg, err, fields)
	} else {
		c.deps.Sessions.Put(msg.OperatorID, next)
		fields["nextStep"] = next.Step.String()
	}

	elapsed := time.Since(start)
	outcome := string(reply.Outcome)
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	c.deps.Observability.RecordTurn(ctx, outcome, elapsed)
	span.SetAttributes(attribute.String("turn.outcome", outcome))

	fields["outcome"] = outcome
	fields["durationMs"] = elapsed.Milliseconds()
	c.logger.Info("turn handled", fields)
	return reply
}

// turn computes the reply and the next state without touching the store.
func (c *Controller) turn(ctx context.Context, operatorID int64, text string, prev session.State) (Reply, session.State, error) {
	record, err := c.deps.Directory.Lookup(ctx, operatorID)
	if err != nil {
		return Reply{}, prev, err
	}
	tier := c.deps.Resolver.Resolve(record)
	tokens := c.config.Tokens

	if text == tokens.Start || prev.Step == session.StepInitial {
		reply, next := c.enter(record, tier, true)
		return reply, next, nil
	}

	// Tier B/C operators are pinned to their branch; a permission change since the last
	// turn sends them back through entry.
	if branch, fixed := c.deps.Resolver.FixedBranch(record); fixed && prev.SelectedBranch != branch {
		reply, next := c.enter(record, tier, false)
		return reply, next, nil
	}

	switch prev.Step {
	case session.StepAwaitingBranch:
		if c.isReset(text) {
			reply, next := c.enter(record, tier, false)
			return reply, next, nil
		}
		if c.deps.Datasets.Known(text) {
			reply, next := c.selectBranch(text)
			return reply, next, nil
		}
		return Reply{
			Text:    unknownBranchText(text),
			Options: c.deps.Datasets.Branches(),
			Outcome: OutcomeMenu,
		}, prev, nil

	case session.StepAwaitingQuery:
		if c.isReset(text) {
			reply, next := c.enter(record, tier, false)
			return reply, next, nil
		}
		if tier == scope.TierGlobal && text != prev.SelectedBranch && c.deps.Datasets.Known(text) {
			reply, next := c.selectBranch(text)
			return reply, next, nil
		}
		return c.runQuery(ctx, record, tier, prev.SelectedBranch, text)

	case session.StepAmbiguousSelection:
		if text == tokens.Back {
			return Reply{
				Text:    queryPrompt(record),
				Options: c.queryOptions(tier),
				Outcome: OutcomeMenu,
			}, session.AwaitingQuery(prev.SelectedBranch), nil
		}
		if c.isReset(text) {
			reply, next := c.enter(record, tier, false)
			return reply, next, nil
		}
		if prev.PendingAmbiguity != nil {
			if group, ok := c.deps.Engine.Select(text, prev.PendingAmbiguity.Candidates); ok {
				return c.resultReply(group, record, tier), session.AwaitingQuery(prev.SelectedBranch), nil
			}
		}
		return c.runQuery(ctx, record, tier, prev.SelectedBranch, text)
	}

	reply, next := c.enter(record, tier, false)
	return reply, next, nil
}

// enter runs the entry transition for the operator's tier.
func (c *Controller) enter(record models.PermissionRecord, tier scope.Tier, greet bool) (Reply, session.State) {
	var prefix string
	if greet {
		prefix = greeting(record) + "\n\n"
	}

	if tier == scope.TierGlobal {
		return Reply{
			Text:    prefix + chooseBranchText(),
			Options: c.deps.Datasets.Branches(),
			Outcome: OutcomeMenu,
		}, session.AwaitingBranch()
	}

	return Reply{
		Text:    prefix + queryPrompt(record),
		Options: c.queryOptions(tier),
		Outcome: OutcomeMenu,
	}, session.AwaitingQuery(record.BranchScope)
}

func (c *Controller) selectBranch(branch string) (Reply, session.State) {
	return Reply{
		Text:    branchSelectedText(branch),
		Options: c.queryOptions(scope.TierGlobal),
		Outcome: OutcomeMenu,
	}, session.AwaitingQuery(branch)
}

// runQuery filters the branch dataset to the operator's scope before matching. For Tier C
// an empty filtered match is checked against the unfiltered rows to tell a scope gap from
// a data gap.
func (c *Controller) runQuery(ctx context.Context, record models.PermissionRecord, tier scope.Tier, branch, input string) (Reply, session.State, error) {
	rows, err := c.deps.Datasets.Fetch(ctx, branch)
	if err != nil {
		return Reply{}, session.State{}, err
	}

	visible := c.deps.Resolver.Filter(record, rows)
	result := c.deps.Engine.Match(input, visible)
	next := session.AwaitingQuery(branch)

	switch {
	case result.Empty():
		if tier == scope.TierRegion && !c.deps.Engine.Match(input, rows).Empty() {
			violation := apperrors.NewScopeViolationError(input, record.RegionScope)
			c.logger.Warn("query outside region scope", map[string]interface{}{
				"operatorId": record.OperatorID,
				"branch":     branch,
				"error":      violation,
			})
			return Reply{
				Text:    scopeViolationText(input, record),
				Options: c.queryOptions(tier),
				Outcome: OutcomeScopeViolation,
			}, next, nil
		}
		return Reply{
			Text:    noMatchText(record),
			Options: c.queryOptions(tier),
			Outcome: OutcomeNoMatch,
		}, next, nil

	case result.Ambiguous():
		pending := &session.Ambiguity{Query: input, Candidates: result.Groups}
		return Reply{
			Text:       ambiguousText(input, result),
			Options:    result.Names(),
			Navigation: []string{c.config.Tokens.Back},
			Outcome:    OutcomeAmbiguous,
		}, session.AmbiguousSelection(branch, pending), nil

	default:
		return c.resultReply(result.Groups[0], record, tier), next, nil
	}
}

func (c *Controller) resultReply(group query.Group, record models.PermissionRecord, tier scope.Tier) Reply {
	return Reply{
		Text:    resultText(group, record),
		Options: c.queryOptions(tier),
		Outcome: OutcomeResult,
		Rows:    group.Rows,
	}
}

// fail turns an error into a reply. Unauthorized operators lose any session entry and
// are reported to the alerter; other failures leave the session untouched.
func (c *Controller) fail(ctx context.Context, msg Inbound, err error, fields map[string]interface{}) Reply {
	stdErr := c.errorHandler.Handle(err, fields)

	if stdErr.Code == apperrors.ErrCodeUnauthorized {
		c.deps.Sessions.Delete(msg.OperatorID)
		if c.deps.Alerter != nil {
			if alertErr := c.deps.Alerter.ReportUnauthorized(ctx, msg.OperatorID, msg.Text); alertErr != nil {
				c.logger.Warn("unauthorized alert failed", map[string]interface{}{
					"operatorId": msg.OperatorID,
					"error":      alertErr,
				})
			}
		}
		return Reply{Text: unauthorizedText(msg.OperatorID), Outcome: OutcomeUnauthorized}
	}

	return Reply{Text: errorText(stdErr), Outcome: outcomeFor(stdErr.Code)}
}

func (c *Controller) isReset(text string) bool {
	t := c.config.Tokens
	return text == t.BranchMenu || text == t.Search || text == t.Back
}

func (c *Controller) queryOptions(tier scope.Tier) []string {
	if tier == scope.TierGlobal {
		return []string{c.config.Tokens.BranchMenu}
	}
	return []string{c.config.Tokens.Search}
}
