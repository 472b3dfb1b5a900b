package trtc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/normalize"
	"metropet.dev/trtc/storage"
)

type NetworkOptions struct {
	Graph GraphOptions

	HighThreshold  float64
	LowThreshold   float64
	FuzzyCacheSize int

	// Used when the dataset has no aliases of its own. Nil selects
	// DefaultAliases.
	Aliases map[string]string

	// A saved name index to use instead of building one.
	Index map[string][]string

	Normalizer   *normalize.Normalizer
	Recommender  Recommender
	LostAndFound LostItemSource

	// Defaults to time.Now.
	TimeNow func() time.Time
}

const (
	DefaultLostItemDays  = 7
	DefaultLostItemLimit = 20
)

// Lists items handed in at lost property offices.
type LostItemSource interface {
	LostItems(ctx context.Context) ([]model.LostItem, error)
}

// A loaded dataset: the station directory, the graph and a router over
// them, plus station information read from storage.
type Network struct {
	Metadata  *storage.DatasetMetadata
	Reader    storage.DatasetReader
	Directory *Directory
	Graph     *Graph
	Router    *Router

	LostAndFound LostItemSource
	TimeNow      func() time.Time

	normalizer *normalize.Normalizer
}

func NewNetwork(reader storage.DatasetReader, metadata *storage.DatasetMetadata, opts NetworkOptions) (*Network, error) {
	routes, err := reader.Routes()
	if err != nil {
		return nil, fmt.Errorf("%w: reading routes: %v", ErrDataLoad, err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: dataset has no routes", ErrDataLoad)
	}

	transfers, err := reader.Transfers()
	if err != nil {
		return nil, fmt.Errorf("%w: reading transfers: %v", ErrDataLoad, err)
	}

	aliases, err := reader.Aliases()
	if err != nil {
		return nil, fmt.Errorf("%w: reading aliases: %v", ErrDataLoad, err)
	}

	high, low := opts.HighThreshold, opts.LowThreshold
	if high == 0 && low == 0 {
		high, low = DefaultHighThreshold, DefaultLowThreshold
	}

	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(nil, nil)
	}

	dirOpts := []DirectoryOption{
		WithThresholds(high, low),
		WithDefaultFuzzyMatcher(opts.FuzzyCacheSize),
		WithNormalizer(normalizer),
	}
	if len(aliases) == 0 {
		aliases = opts.Aliases
		if aliases == nil {
			aliases = DefaultAliases
		}
		dirOpts = append(dirOpts, WithLenientAliases())
	}
	if opts.Index != nil {
		dirOpts = append(dirOpts, WithIndex(opts.Index))
	}

	directory, err := BuildDirectory(routes, aliases, dirOpts...)
	if err != nil {
		return nil, fmt.Errorf("building directory: %w", err)
	}

	graph := BuildGraph(routes, transfers, opts.Graph)
	if !graph.Ready() {
		return nil, fmt.Errorf("%w: empty graph", ErrDataLoad)
	}

	externalIDs, err := reader.ExternalIDs()
	if err != nil {
		return nil, fmt.Errorf("%w: reading external ids: %v", ErrDataLoad, err)
	}

	router := NewRouter(directory, graph)
	router.Recommender = opts.Recommender
	router.ExternalIDs = externalIDs

	timeNow := opts.TimeNow
	if timeNow == nil {
		timeNow = time.Now
	}

	return &Network{
		Metadata:     metadata,
		Reader:       reader,
		Directory:    directory,
		Graph:        graph,
		Router:       router,
		LostAndFound: opts.LostAndFound,
		TimeNow:      timeNow,
		normalizer:   normalizer,
	}, nil
}

// Ticket prices between two stations. For stations with several IDs,
// the cheapest adult fare over all ID pairs is returned. Nil if no
// fare is published.
func (n *Network) Fare(origin, destination string) (*model.Fare, error) {
	originIDs, err := n.Directory.Lookup(SideStart, origin)
	if err != nil {
		return nil, err
	}
	destinationIDs, err := n.Directory.Lookup(SideEnd, destination)
	if err != nil {
		return nil, err
	}

	var best *model.Fare
	for _, o := range originIDs {
		for _, d := range destinationIDs {
			if o == d {
				continue
			}
			fare, err := n.Reader.Fare(o, d)
			if err != nil {
				return nil, fmt.Errorf("reading fare: %w", err)
			}
			if fare != nil && (best == nil || fare.Adult < best.Adult) {
				best = fare
			}
		}
	}

	return best, nil
}

// Exits of every ID of the named station.
func (n *Network) Exits(name string) ([]model.Exit, error) {
	ids, err := n.Directory.Lookup("", name)
	if err != nil {
		return nil, err
	}

	exits := []model.Exit{}
	seen := map[string]bool{}
	for _, id := range ids {
		ex, err := n.Reader.Exits(id)
		if err != nil {
			return nil, fmt.Errorf("reading exits: %w", err)
		}
		// Transfer stations list shared exits once per line.
		for _, e := range ex {
			key := e.ExitID + "\x00" + e.Description
			if seen[key] {
				continue
			}
			seen[key] = true
			exits = append(exits, e)
		}
	}

	return exits, nil
}

func (n *Network) Facilities(name string) ([]model.Facility, error) {
	ids, err := n.Directory.Lookup("", name)
	if err != nil {
		return nil, err
	}

	facilities := []model.Facility{}
	seen := map[string]bool{}
	for _, id := range ids {
		fs, err := n.Reader.Facilities(id)
		if err != nil {
			return nil, fmt.Errorf("reading facilities: %w", err)
		}
		for _, f := range fs {
			if seen[f.Description] {
				continue
			}
			seen[f.Description] = true
			facilities = append(facilities, f)
		}
	}

	return facilities, nil
}

// First and last trains from the named station, ordered by line and
// destination.
func (n *Network) FirstLastTrains(name string) ([]model.FirstLastTrain, error) {
	ids, err := n.Directory.Lookup("", name)
	if err != nil {
		return nil, err
	}

	trains := []model.FirstLastTrain{}
	for _, id := range ids {
		ts, err := n.Reader.FirstLastTrains(id)
		if err != nil {
			return nil, fmt.Errorf("reading first/last trains: %w", err)
		}
		trains = append(trains, ts...)
	}

	sort.SliceStable(trains, func(i, j int) bool {
		if trains[i].LineID != trains[j].LineID {
			return trains[i].LineID < trains[j].LineID
		}
		return trains[i].DestinationStationID < trains[j].DestinationStationID
	})

	return trains, nil
}

// Official names of the line ends reachable from the named station.
func (n *Network) TerminalStations(name string) ([]string, error) {
	ids, err := n.Directory.Lookup("", name)
	if err != nil {
		return nil, err
	}

	terminals := []string{}
	for _, key := range n.Directory.TerminalStationsForIDs(ids) {
		terminals = append(terminals, n.Directory.DisplayName(key))
	}
	return terminals, nil
}

// Lost items found in the last days days, newest first, at most
// DefaultLostItemLimit of them. A non-empty station must resolve
// exactly and matches items whose place mentions it. A non-empty item
// matches names containing it, ignoring case. Days <= 0 selects
// DefaultLostItemDays.
func (n *Network) LostItems(ctx context.Context, station, item string, days int) ([]model.LostItem, error) {
	if n.LostAndFound == nil {
		return nil, ErrNoLostAndFound
	}
	if days <= 0 {
		days = DefaultLostItemDays
	}

	var stationKeys []string
	if station != "" {
		ids, err := n.Directory.Lookup("", station)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		for _, id := range ids {
			key := n.normalizer.Normalize(n.Directory.OfficialName(id))
			if key != "" && !seen[key] {
				seen[key] = true
				stationKeys = append(stationKeys, key)
			}
		}
	}
	item = strings.ToLower(strings.TrimSpace(item))

	all, err := n.LostAndFound.LostItems(ctx)
	if err != nil {
		return nil, err
	}

	now := n.TimeNow()
	cutoff := time.Date(now.Year(), now.Month(), now.Day()-days, 0, 0, 0, 0, time.UTC)

	items := []model.LostItem{}
	for _, it := range all {
		if it.Date.Before(cutoff) {
			continue
		}
		if item != "" && !strings.Contains(strings.ToLower(it.Name), item) {
			continue
		}
		if len(stationKeys) > 0 && !placeMatches(n.normalizer.Normalize(it.Place), stationKeys) {
			continue
		}
		items = append(items, it)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	if len(items) > DefaultLostItemLimit {
		items = items[:DefaultLostItemLimit]
	}

	return items, nil
}

func placeMatches(place string, keys []string) bool {
	for _, key := range keys {
		if strings.Contains(place, key) {
			return true
		}
	}
	return false
}
