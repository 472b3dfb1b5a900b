package trtc

// The outcome of resolving a free-text station name. One of Resolved,
// Suggested or NotFound.
type Resolution interface {
	isResolution()
}

// The name matched one or more station IDs, sorted.
type Resolved struct {
	IDs []string
}

// The name resembles a known station, but not closely enough to
// route on without confirmation.
type Suggested struct {
	Name  string  `json:"suggestion"`
	Query string  `json:"original_query"`
	Score float64 `json:"score"`
}

type NotFound struct {
	Query string
}

func (Resolved) isResolution()  {}
func (Suggested) isResolution() {}
func (NotFound) isResolution()  {}

// The outcome of planning a route: a *RouteResult, or a Suggested name
// needing confirmation before a route can be planned.
type Plan interface {
	isPlan()
}

func (*RouteResult) isPlan() {}
func (Suggested) isPlan()    {}
