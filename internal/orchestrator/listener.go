package orchestrator

import "trialrec/internal/experiment"

// Listener receives trial lifecycle notifications. Calls are made on the
// goroutine that drove the transition, after the orchestrator has released
// its lock, so a listener may call back into the orchestrator.
type Listener interface {
	TrialBegan(t *experiment.Trial)
	TrialEnded(t *experiment.Trial)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnBegin func(t *experiment.Trial)
	OnEnd   func(t *experiment.Trial)
}

func (l ListenerFuncs) TrialBegan(t *experiment.Trial) {
	if l.OnBegin != nil {
		l.OnBegin(t)
	}
}

func (l ListenerFuncs) TrialEnded(t *experiment.Trial) {
	if l.OnEnd != nil {
		l.OnEnd(t)
	}
}

type nopListener struct{}

func (nopListener) TrialBegan(*experiment.Trial) {}
func (nopListener) TrialEnded(*experiment.Trial) {}
