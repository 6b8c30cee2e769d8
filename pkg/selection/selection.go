// Package selection implements the cluster/school focus state machine.
//
// A [Controller] moves between three states:
//
//	None --SelectCluster(c)--> Cluster(c) --SelectSchool(s)--> School(c, s)
//
// Selecting the active item again steps back to its parent state, and
// selecting a different cluster drops any school before switching. There is
// no terminal state; [Controller.Reset] returns to None.
package selection

import (
	"sync"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

// Level identifies the depth of the current selection.
type Level int

const (
	None Level = iota
	Cluster
	School
)

func (l Level) String() string {
	switch l {
	case Cluster:
		return "cluster"
	case School:
		return "school"
	default:
		return "none"
	}
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText decodes a level name.
func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none", "":
		*l = None
	case "cluster":
		*l = Cluster
	case "school":
		*l = School
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid selection level %q", b)
	}
	return nil
}

// State is a snapshot of the selection.
type State struct {
	Level   Level  `json:"level"`
	Cluster string `json:"cluster,omitempty"`
	School  string `json:"school,omitempty"`
}

// Membership maps school IDs to their cluster ID.
type Membership map[string]string

// Controller owns one selection. It is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	clusters map[string]bool
	members  Membership
	state    State
}

// New returns a controller in the None state for the given clusters and
// school membership. Clusters referenced only by membership are known too.
func New(clusters []string, members Membership) *Controller {
	c := &Controller{
		clusters: make(map[string]bool, len(clusters)),
		members:  make(Membership, len(members)),
	}
	for _, id := range clusters {
		c.clusters[id] = true
	}
	for school, cluster := range members {
		c.members[school] = cluster
		if cluster != "" {
			c.clusters[cluster] = true
		}
	}
	return c
}

// State returns the current selection.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Restore replaces the current selection after validating it against the
// known clusters and membership.
func (c *Controller) Restore(s State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch s.Level {
	case None:
		c.state = State{}
		return nil
	case Cluster:
		if !c.clusters[s.Cluster] {
			return errors.New(errors.ErrCodeClusterNotFound, "unknown cluster %q", s.Cluster)
		}
		c.state = State{Level: Cluster, Cluster: s.Cluster}
		return nil
	case School:
		if !c.clusters[s.Cluster] {
			return errors.New(errors.ErrCodeClusterNotFound, "unknown cluster %q", s.Cluster)
		}
		if c.members[s.School] != s.Cluster {
			return errors.New(errors.ErrCodeSchoolNotFound, "school %q is not in cluster %q", s.School, s.Cluster)
		}
		c.state = s
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "invalid selection level %d", s.Level)
}

// SelectCluster applies a cluster click and returns the new state.
func (c *Controller) SelectCluster(id string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.clusters[id] {
		return c.state, errors.New(errors.ErrCodeClusterNotFound, "unknown cluster %q", id)
	}

	switch {
	case c.state.Level == None:
		c.state = State{Level: Cluster, Cluster: id}
	case c.state.Cluster != id:
		c.state = State{Level: Cluster, Cluster: id}
	case c.state.Level == School:
		c.state = State{Level: Cluster, Cluster: id}
	default:
		c.state = State{}
	}
	return c.state, nil
}

// SelectSchool applies a school click. The school must belong to the active
// cluster.
func (c *Controller) SelectSchool(id string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cluster, ok := c.members[id]
	if !ok {
		return c.state, errors.New(errors.ErrCodeSchoolNotFound, "unknown school %q", id)
	}
	if c.state.Level == None {
		return c.state, errors.New(errors.ErrCodeNoSelection, "select a cluster before school %q", id)
	}
	if cluster != c.state.Cluster {
		return c.state, errors.New(errors.ErrCodeSchoolNotFound,
			"school %q is not in cluster %q", id, c.state.Cluster)
	}

	if c.state.Level == School && c.state.School == id {
		c.state = State{Level: Cluster, Cluster: cluster}
	} else {
		c.state = State{Level: School, Cluster: cluster, School: id}
	}
	return c.state, nil
}

// Reset returns to None.
func (c *Controller) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
	return c.state
}

// Schools returns the IDs of schools in cluster, in no particular order.
func (c *Controller) Schools(cluster string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for school, cl := range c.members {
		if cl == cluster {
			ids = append(ids, school)
		}
	}
	return ids
}
