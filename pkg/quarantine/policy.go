// Package quarantine implements NodeQuarantinePolicy (C6): it counts recent
// systemic task failures for a node and pauses the node once the count
// reaches a live-tuned threshold.
package quarantine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/scalecore/scheduler/pkg/events"
	"github.com/scalecore/scheduler/pkg/log"
	"github.com/scalecore/scheduler/pkg/model"
)

// PauseReason is the fixed message persisted on a quarantined node.
const PauseReason = "System Failure Rate Too High"

// Settings is the live-tunable policy configuration, read from the store
// rather than hardcoded (spec §9 supplement 3): node_error_period and
// max_node_errors may change between evaluations.
type Settings interface {
	// NodeErrorPeriod returns the lookback window; a value ≤ 0 disables
	// the policy entirely.
	NodeErrorPeriod() time.Duration
	MaxNodeErrors() int
}

// NodeStore is the slice of the durable node roster the policy needs: a
// failure count query and a pause write.
type NodeStore interface {
	CountRecentSystemFailures(ctx context.Context, nodeID string, since time.Time) (int, error)
	PauseNode(ctx context.Context, nodeID, reason string) error
	GetNode(ctx context.Context, nodeID string) (*model.Node, error)
}

// Policy evaluates whether a SYSTEM-category failure should quarantine its
// node.
type Policy struct {
	settings Settings
	store    NodeStore
	logger   zerolog.Logger
	now      func() time.Time
	broker   *events.Broker
}

// New builds a Policy over the given settings accessor and node store.
// broker may be nil; events are only published when one is supplied.
func New(settings Settings, store NodeStore, broker *events.Broker) *Policy {
	return &Policy{
		settings: settings,
		store:    store,
		logger:   log.WithComponent("quarantine"),
		now:      time.Now,
		broker:   broker,
	}
}

// Evaluate is invoked on any SYSTEM-category failure whose execution has
// exhausted its attempt budget. It refuses to act when the execution has no
// node reference (system maintenance tasks can run node-less), when the
// node is already paused, or when the policy is disabled
// (node_error_period ≤ 0). Otherwise it counts distinct recently-failed
// jobs on the node and pauses it once the count reaches the threshold.
func (p *Policy) Evaluate(ctx context.Context, row *model.JobExecution, classified *model.Error) error {
	if classified == nil || classified.Category != model.CategorySystem {
		return nil
	}
	if row.NumExes < row.MaxTries {
		return nil
	}
	if row.NodeID == "" {
		return nil
	}

	period := p.settings.NodeErrorPeriod()
	if period <= 0 {
		return nil
	}

	node, err := p.store.GetNode(ctx, row.NodeID)
	if err != nil {
		return err
	}
	if node == nil || node.IsPaused {
		return nil
	}

	since := p.now().Add(-period)
	count, err := p.store.CountRecentSystemFailures(ctx, row.NodeID, since)
	if err != nil {
		return err
	}

	if count < p.settings.MaxNodeErrors() {
		return nil
	}

	p.logger.Warn().
		Str("node_id", row.NodeID).
		Int("recent_system_failures", count).
		Msg("quarantining node for excessive systemic failure rate")

	if err := p.store.PauseNode(ctx, row.NodeID, PauseReason); err != nil {
		return err
	}

	if p.broker != nil {
		p.broker.Publish(&events.Event{
			Type:    events.EventNodeQuarantined,
			NodeID:  row.NodeID,
			Message: PauseReason,
		})
	}
	return nil
}
