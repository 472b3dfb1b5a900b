package storage

import (
	"fmt"
	"sort"
	"sync"

	"metropet.dev/trtc/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	Datasets map[string]*MemoryStorageDataset
	Metadata map[string]*DatasetMetadata

	mutex sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Datasets: map[string]*MemoryStorageDataset{},
		Metadata: map[string]*DatasetMetadata{},
	}
}

func (s *MemoryStorage) ListDatasets(filter ListDatasetsFilter) ([]*DatasetMetadata, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	datasets := []*DatasetMetadata{}
	for _, metadata := range s.Metadata {
		if filter.Hash != "" && metadata.Hash != filter.Hash {
			continue
		}
		if filter.Source != "" && metadata.Source != filter.Source {
			continue
		}
		datasets = append(datasets, metadata)
	}
	sort.Slice(datasets, func(i, j int) bool {
		return datasets[i].RetrievedAt.After(datasets[j].RetrievedAt)
	})
	return datasets, nil
}

func (s *MemoryStorage) WriteDatasetMetadata(metadata *DatasetMetadata) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Metadata[metadata.Hash] = metadata
	return nil
}

func (s *MemoryStorage) GetReader(hash string) (DatasetReader, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	d, ok := s.Datasets[hash]
	if !ok {
		return nil, fmt.Errorf("dataset %s not found", hash)
	}
	return d, nil
}

func (s *MemoryStorage) GetWriter(hash string) (DatasetWriter, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	d := &MemoryStorageDataset{
		routes:          map[string]model.Route{},
		fares:           map[[2]string]model.Fare{},
		exits:           map[string][]model.Exit{},
		facilities:      map[string][]model.Facility{},
		firstLastTrains: map[string][]model.FirstLastTrain{},
		externalIDs:     map[string]string{},
		aliases:         map[string]string{},
	}

	s.Datasets[hash] = d

	return d, nil
}

type MemoryStorageDataset struct {
	routes          map[string]model.Route
	transfers       []model.Transfer
	fares           map[[2]string]model.Fare
	exits           map[string][]model.Exit
	facilities      map[string][]model.Facility
	firstLastTrains map[string][]model.FirstLastTrain
	externalIDs     map[string]string
	aliases         map[string]string
}

func (d *MemoryStorageDataset) WriteRoute(route model.Route) error {
	stations := make([]model.Station, len(route.Stations))
	copy(stations, route.Stations)
	route.Stations = stations
	d.routes[route.ID] = route
	return nil
}

func (d *MemoryStorageDataset) WriteTransfer(transfer model.Transfer) error {
	d.transfers = append(d.transfers, transfer)
	return nil
}

func (d *MemoryStorageDataset) BeginFares() error {
	return nil
}

func (d *MemoryStorageDataset) WriteFare(fare model.Fare) error {
	d.fares[[2]string{fare.OriginStationID, fare.DestinationStationID}] = fare
	return nil
}

func (d *MemoryStorageDataset) EndFares() error {
	return nil
}

func (d *MemoryStorageDataset) WriteExit(exit model.Exit) error {
	d.exits[exit.StationID] = append(d.exits[exit.StationID], exit)
	return nil
}

func (d *MemoryStorageDataset) WriteFacility(facility model.Facility) error {
	d.facilities[facility.StationID] = append(d.facilities[facility.StationID], facility)
	return nil
}

func (d *MemoryStorageDataset) WriteFirstLastTrain(flt model.FirstLastTrain) error {
	d.firstLastTrains[flt.StationID] = append(d.firstLastTrains[flt.StationID], flt)
	return nil
}

func (d *MemoryStorageDataset) WriteExternalID(id model.ExternalID) error {
	d.externalIDs[id.StationID] = id.ExternalID
	return nil
}

func (d *MemoryStorageDataset) WriteAlias(alias model.Alias) error {
	d.aliases[alias.Alias] = alias.Official
	return nil
}

func (d *MemoryStorageDataset) Close() error {
	return nil
}

func (d *MemoryStorageDataset) Routes() ([]model.Route, error) {
	routes := make([]model.Route, 0, len(d.routes))
	for _, route := range d.routes {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].ID < routes[j].ID
	})
	return routes, nil
}

func (d *MemoryStorageDataset) Transfers() ([]model.Transfer, error) {
	transfers := make([]model.Transfer, len(d.transfers))
	copy(transfers, d.transfers)
	return transfers, nil
}

func (d *MemoryStorageDataset) Fare(originID string, destinationID string) (*model.Fare, error) {
	fare, found := d.fares[[2]string{originID, destinationID}]
	if !found {
		return nil, nil
	}
	return &fare, nil
}

func (d *MemoryStorageDataset) Exits(stationID string) ([]model.Exit, error) {
	exits := append([]model.Exit{}, d.exits[stationID]...)
	sort.SliceStable(exits, func(i, j int) bool {
		return exits[i].ExitID < exits[j].ExitID
	})
	return exits, nil
}

func (d *MemoryStorageDataset) Facilities(stationID string) ([]model.Facility, error) {
	return append([]model.Facility{}, d.facilities[stationID]...), nil
}

func (d *MemoryStorageDataset) FirstLastTrains(stationID string) ([]model.FirstLastTrain, error) {
	trains := append([]model.FirstLastTrain{}, d.firstLastTrains[stationID]...)
	sort.SliceStable(trains, func(i, j int) bool {
		if trains[i].LineID != trains[j].LineID {
			return trains[i].LineID < trains[j].LineID
		}
		return trains[i].DestinationStationID < trains[j].DestinationStationID
	})
	return trains, nil
}

func (d *MemoryStorageDataset) ExternalIDs() (map[string]string, error) {
	ids := make(map[string]string, len(d.externalIDs))
	for k, v := range d.externalIDs {
		ids[k] = v
	}
	return ids, nil
}

func (d *MemoryStorageDataset) Aliases() (map[string]string, error) {
	aliases := make(map[string]string, len(d.aliases))
	for k, v := range d.aliases {
		aliases[k] = v
	}
	return aliases, nil
}
