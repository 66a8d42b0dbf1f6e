package lab

import "github.com/medilab/lims/internal/platform/apperr"

// transitions lists, per status, the statuses it may move to.
type transitions map[string][]string

func (t transitions) allows(from, to string) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (t transitions) check(from, to string) error {
	if !t.allows(from, to) {
		return apperr.Transition(from, to)
	}
	return nil
}

func (t transitions) known(status string) bool {
	if _, ok := t[status]; ok {
		return true
	}
	for _, tos := range t {
		for _, s := range tos {
			if s == status {
				return true
			}
		}
	}
	return false
}

var sampleFlow = transitions{
	SamplePending:   {SampleCollected, SampleRejected},
	SampleCollected: {SampleProcessed, SampleRejected},
}

var orderFlow = transitions{
	OrderPending:    {OrderInProgress, OrderCancelled},
	OrderInProgress: {OrderCompleted, OrderCancelled},
}

// resultFlow is the approval workflow. Approved and Rejected are terminal.
var resultFlow = transitions{
	ResultDraft:           {ResultPendingApproval},
	ResultReturned:        {ResultPendingApproval, ResultDraft},
	ResultPendingApproval: {ResultApproved, ResultRejected, ResultReturned},
}

// Workflow actions, as recorded in the activity log.
const (
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionReturn  = "return"
)

// CanTransitionResult reports whether the approval workflow permits from -> to.
func CanTransitionResult(from, to string) bool { return resultFlow.allows(from, to) }

func CanTransitionSample(from, to string) bool { return sampleFlow.allows(from, to) }

func CanTransitionOrder(from, to string) bool { return orderFlow.allows(from, to) }

// editable reports whether a result value may still be changed.
func editable(status string) bool {
	return status == ResultDraft || status == ResultReturned
}
