package proxy

import "errors"

var ErrPortOutOfRange = errors.New("port is outside the reserved range")

// PortRange defines the host ports reserved for project instances.
type PortRange struct {
	Start int // Inclusive, e.g., 30000
	End   int // Inclusive, e.g., 39999
}

// DefaultPortRange returns the default port range.
func DefaultPortRange() PortRange {
	return PortRange{Start: 30000, End: 39999}
}

// PortFor maps a project to its host port: Start + projectID.
// Pure function - no registry, no state. Distinct project ids always get
// distinct ports; ids beyond the range size land outside it (see Contains).
func (r PortRange) PortFor(projectID int64) int {
	return r.Start + int(projectID)
}

// Contains checks if a port is within the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.Start && port <= r.End
}

// Allocate returns PortFor(projectID), or ErrPortOutOfRange when the project
// id exceeds the reserved range.
func (r PortRange) Allocate(projectID int64) (int, error) {
	port := r.PortFor(projectID)
	if projectID < 0 || !r.Contains(port) {
		return 0, ErrPortOutOfRange
	}
	return port, nil
}
