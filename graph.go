package trtc

import (
	"container/heap"
	"sort"

	"metropet.dev/trtc/model"
)

const (
	DefaultRideWeight     = 3.0
	DefaultTransferWeight = 5.0

	UnknownLineColor = "未知顏色"
)

// Display name and colour of a metro line.
type LineInfo struct {
	Name  string
	Color string
}

// TRTC lines by line code.
var DefaultLines = map[string]LineInfo{
	"BL": {Name: "板南線", Color: "藍線"},
	"BR": {Name: "文湖線", Color: "棕線"},
	"R":  {Name: "淡水信義線", Color: "紅線"},
	"G":  {Name: "松山新店線", Color: "綠線"},
	"O":  {Name: "中和新蘆線", Color: "橘線"},
	"Y":  {Name: "環狀線", Color: "黃線"},
}

type EdgeType string

const (
	EdgeRide     EdgeType = "ride"
	EdgeTransfer EdgeType = "transfer"
)

// A directed half of an undirected connection. Line is set for ride
// edges only.
type Edge struct {
	To     string
	Weight float64
	Type   EdgeType
	Line   string
}

type GraphOptions struct {
	// Weight of every ride between adjacent stations.
	RideWeight float64

	// Weight of transfers without a published transfer time.
	TransferWeight float64

	// Line code to line name and colour. Unknown codes are named
	// after the code itself.
	Lines map[string]LineInfo
}

// An undirected, weighted multigraph of station IDs. Immutable once
// built, and safe for concurrent use.
type Graph struct {
	nodes     map[string]bool
	edges     map[string][]Edge
	lines     map[string]*model.Line
	lineNames []string

	// line -> terminus -> station -> ride hops
	distances map[string]map[string]map[string]int
}

// Builds the graph. Every station on a route becomes a node, linked to
// its neighbours by ride edges. Transfers between known nodes add
// transfer edges, keeping the cheapest when a pair is listed twice.
func BuildGraph(routes []model.Route, transfers []model.Transfer, opts GraphOptions) *Graph {
	if opts.RideWeight <= 0 {
		opts.RideWeight = DefaultRideWeight
	}
	if opts.TransferWeight <= 0 {
		opts.TransferWeight = DefaultTransferWeight
	}
	if opts.Lines == nil {
		opts.Lines = DefaultLines
	}

	g := &Graph{
		nodes:     map[string]bool{},
		edges:     map[string][]Edge{},
		lines:     map[string]*model.Line{},
		distances: map[string]map[string]map[string]int{},
	}

	for _, r := range routes {
		info, found := opts.Lines[r.LineCode]
		if !found {
			info = LineInfo{Name: r.LineCode, Color: UnknownLineColor}
		}

		ids := []string{}
		for _, s := range r.Stations {
			if s.ID == "" {
				continue
			}
			g.nodes[s.ID] = true
			ids = append(ids, s.ID)
		}
		if len(ids) == 0 {
			continue
		}

		for i := 0; i+1 < len(ids); i++ {
			g.addRide(ids[i], ids[i+1], info.Name, opts.RideWeight)
		}

		if _, seen := g.lines[info.Name]; !seen {
			g.lines[info.Name] = &model.Line{
				Code:     r.LineCode,
				Name:     info.Name,
				Color:    info.Color,
				Stations: ids,
				Termini:  [2]string{ids[0], ids[len(ids)-1]},
			}
			g.lineNames = append(g.lineNames, info.Name)
		}
	}

	for _, t := range transfers {
		if !g.nodes[t.FromStationID] || !g.nodes[t.ToStationID] {
			continue
		}
		if t.FromStationID == t.ToStationID {
			continue
		}
		weight := t.Cost
		if weight <= 0 {
			weight = opts.TransferWeight
		}
		g.addTransfer(t.FromStationID, t.ToStationID, weight)
	}

	sort.Strings(g.lineNames)
	for _, name := range g.lineNames {
		l := g.lines[name]
		g.distances[name] = map[string]map[string]int{}
		for _, t := range l.Termini {
			g.distances[name][t] = g.lineBFS(name, t)
		}
	}

	return g
}

func (g *Graph) addRide(u, v, line string, weight float64) {
	if u == v {
		return
	}
	for _, e := range g.edges[u] {
		if e.To == v && e.Type == EdgeRide && e.Line == line {
			return
		}
	}
	g.edges[u] = append(g.edges[u], Edge{To: v, Weight: weight, Type: EdgeRide, Line: line})
	g.edges[v] = append(g.edges[v], Edge{To: u, Weight: weight, Type: EdgeRide, Line: line})
}

func (g *Graph) addTransfer(u, v string, weight float64) {
	updated := false
	for _, pair := range [][2]string{{u, v}, {v, u}} {
		for i, e := range g.edges[pair[0]] {
			if e.To == pair[1] && e.Type == EdgeTransfer {
				if weight < e.Weight {
					g.edges[pair[0]][i].Weight = weight
				}
				updated = true
			}
		}
	}
	if updated {
		return
	}
	g.edges[u] = append(g.edges[u], Edge{To: v, Weight: weight, Type: EdgeTransfer})
	g.edges[v] = append(g.edges[v], Edge{To: u, Weight: weight, Type: EdgeTransfer})
}

// Hop counts from a station to every station reachable over ride
// edges of one line.
func (g *Graph) lineBFS(line, from string) map[string]int {
	dist := map[string]int{from: 0}
	queue := []string{from}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range g.edges[u] {
			if e.Type != EdgeRide || e.Line != line {
				continue
			}
			if _, seen := dist[e.To]; seen {
				continue
			}
			dist[e.To] = dist[u] + 1
			queue = append(queue, e.To)
		}
	}
	return dist
}

// True if the graph has at least one node.
func (g *Graph) Ready() bool {
	return len(g.nodes) > 0
}

func (g *Graph) HasNode(id string) bool {
	return g.nodes[id]
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Edges leaving a node.
func (g *Graph) Edges(id string) []Edge {
	return append([]Edge{}, g.edges[id]...)
}

// The cheapest edge from u to v. Ride edges win ties.
func (g *Graph) Edge(u, v string) (Edge, bool) {
	best := Edge{}
	found := false
	for _, e := range g.edges[u] {
		if e.To != v {
			continue
		}
		if !found ||
			e.Weight < best.Weight ||
			(e.Weight == best.Weight && e.Type == EdgeRide && best.Type != EdgeRide) {
			best = e
			found = true
		}
	}
	return best, found
}

func (g *Graph) Line(name string) (*model.Line, bool) {
	l, found := g.lines[name]
	return l, found
}

// All lines, ordered by name.
func (g *Graph) Lines() []*model.Line {
	lines := make([]*model.Line, 0, len(g.lineNames))
	for _, name := range g.lineNames {
		lines = append(lines, g.lines[name])
	}
	return lines
}

// Number of ride hops along a line between two stations. False if
// either isn't reachable on the line.
func (g *Graph) LineDistance(line, from, to string) (int, bool) {
	byTerminus, found := g.distances[line]
	if !found {
		return 0, false
	}

	dist, found := byTerminus[to]
	if !found {
		dist = g.lineBFS(line, to)
	}

	d, found := dist[from]
	return d, found
}

type queueItem struct {
	id   string
	dist float64
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].id < pq[j].id
}
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(queueItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	item := old[len(old)-1]
	*pq = old[:len(old)-1]
	return item
}

// Dijkstra's shortest path. Returns the path, including both ends, and
// its total weight. False if no path exists.
func (g *Graph) ShortestPath(from, to string) ([]string, float64, bool) {
	if !g.nodes[from] || !g.nodes[to] {
		return nil, 0, false
	}
	if from == to {
		return []string{from}, 0, true
	}

	dist := map[string]float64{from: 0}
	prev := map[string]string{}
	done := map[string]bool{}

	pq := &priorityQueue{{id: from, dist: 0}}
	for pq.Len() > 0 {
		item := heap.Pop(pq).(queueItem)
		if done[item.id] {
			continue
		}
		done[item.id] = true
		if item.id == to {
			break
		}

		for _, e := range g.edges[item.id] {
			if done[e.To] {
				continue
			}
			alt := item.dist + e.Weight
			if d, seen := dist[e.To]; !seen || alt < d {
				dist[e.To] = alt
				prev[e.To] = item.id
				heap.Push(pq, queueItem{id: e.To, dist: alt})
			}
		}
	}

	if !done[to] {
		return nil, 0, false
	}

	path := []string{to}
	for at := to; at != from; {
		at = prev[at]
		path = append(path, at)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, dist[to], true
}
