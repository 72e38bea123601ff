package battle

// ReporterSet is the static allow-list of accounts permitted to assert
// battle outcomes. It is supplied by configuration at node start; an empty
// set means no outcome can ever be reported (fail closed). The check is kept
// behind this minimal type so the authorization mechanism can later be
// swapped for a decentralized oracle without touching the state machine.
type ReporterSet map[string]struct{}

// NewReporterSet builds a ReporterSet from pubkey hexes.
func NewReporterSet(addrs []string) ReporterSet {
	rs := make(ReporterSet, len(addrs))
	for _, a := range addrs {
		if a != "" {
			rs[a] = struct{}{}
		}
	}
	return rs
}

// IsAuthorized reports whether account may call the outcome reporter.
func (rs ReporterSet) IsAuthorized(account string) bool {
	_, ok := rs[account]
	return ok
}
