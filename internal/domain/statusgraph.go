package domain

// TransitionRule carries the edge-specific constraints of one allowed transition.
type TransitionRule struct {
	// AutomaticOnly edges are reachable only through the expiration sweep,
	// never through a manual command.
	AutomaticOnly bool
	// ReactivationOnly edges are reachable only through the Reactivate command.
	ReactivationOnly bool
	// RequiresArchivalReason mandates a non-empty archival reason.
	RequiresArchivalReason bool
	// RequiresWalkthrough mandates an existing scheduled walkthrough meeting.
	RequiresWalkthrough bool
}

var statusGraph = map[RequestStatus]map[RequestStatus]TransitionRule{
	StatusNew: {
		StatusPendingWalkthrough: {},
		StatusArchived:           {RequiresArchivalReason: true},
		StatusExpired:            {AutomaticOnly: true},
	},
	StatusPendingWalkthrough: {
		StatusMoveToQuoting: {RequiresWalkthrough: true},
		StatusArchived:      {RequiresArchivalReason: true},
		StatusExpired:       {AutomaticOnly: true},
	},
	StatusMoveToQuoting: {
		StatusArchived: {RequiresArchivalReason: true},
		StatusExpired:  {AutomaticOnly: true},
	},
	StatusExpired: {
		StatusNew: {ReactivationOnly: true},
	},
	StatusArchived: {
		StatusNew: {ReactivationOnly: true},
	},
}

// Rule returns the transition rule for the edge from -> to and whether the
// edge exists in the status graph.
func Rule(from, to RequestStatus) (TransitionRule, bool) {
	targets, ok := statusGraph[from]
	if !ok {
		return TransitionRule{}, false
	}
	rule, ok := targets[to]
	return rule, ok
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to RequestStatus) bool {
	_, ok := Rule(from, to)
	return ok
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s RequestStatus) bool {
	switch s {
	case StatusNew, StatusPendingWalkthrough, StatusMoveToQuoting, StatusExpired, StatusArchived:
		return true
	}
	return false
}
