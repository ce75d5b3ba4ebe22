package crawl

import (
	"context"
	"errors"
	"log/slog"
)

// Decision is the outcome of activating a next control.
type Decision int

const (
	DecisionNavigated     Decision = iota // A navigation event loaded a new page.
	DecisionSoftNavigated                 // No navigation, but the content changed in place.
	DecisionStalled                       // The activation had no visible effect.
)

func (d Decision) String() string {
	switch d {
	case DecisionNavigated:
		return "navigated"
	case DecisionSoftNavigated:
		return "soft_navigated"
	}
	return "stalled"
}

type advanceState int

const (
	stateAwaitingNavigation advanceState = iota
	stateSettling
	stateDecided
)

// advance activates ctrl and decides whether a new page is showing. It moves
// through AwaitingNavigation, Settling and Decided; the only error it
// returns is ctx's.
func (c *Crawler) advance(ctx context.Context, log *slog.Logger, ctrl Control, before string) (Decision, error) {
	state := stateAwaitingNavigation
	var decision Decision

	for state != stateDecided {
		switch state {
		case stateAwaitingNavigation:
			navigated, err := c.src.Activate(ctx, ctrl)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return DecisionStalled, ctxErr
			}
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				log.Warn("next control activation failed", "control", ctrl.Label, "error", err)
			}
			if navigated && err == nil {
				decision, state = DecisionNavigated, stateDecided
				continue
			}
			state = stateSettling

		case stateSettling:
			if s, ok := c.src.(Settler); ok {
				if err := s.WaitSettled(ctx); err != nil {
					log.Debug("settle wait ended", "error", err)
				}
			}
			if err := sleep(ctx, c.cfg.SettleDelay); err != nil {
				return DecisionStalled, err
			}
			after, err := c.src.Fingerprint(ctx)
			switch {
			case err != nil:
				log.Warn("fingerprint after activation failed", "error", err)
				decision = DecisionStalled
			case after == before:
				decision = DecisionStalled
			default:
				decision = DecisionSoftNavigated
			}
			state = stateDecided
		}
	}

	log.Debug("advanced", "control", ctrl.Label, "decision", decision.String())
	return decision, nil
}
