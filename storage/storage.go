package storage

import (
	"time"

	"metropet.dev/trtc/model"
)

type Storage interface {
	// Retrieves all dataset metadata records matching the given
	// filter, most recently retrieved first.
	ListDatasets(filter ListDatasetsFilter) ([]*DatasetMetadata, error)

	// Writes a DatasetMetadata record. If a record with the same
	// hash exists, it is updated.
	WriteDatasetMetadata(metadata *DatasetMetadata) error

	// Gets a reader for the dataset with the given hash.
	GetReader(hash string) (DatasetReader, error)

	// Gets a writer for the dataset with the given hash. Any
	// records previously written for the hash are discarded.
	GetWriter(hash string) (DatasetWriter, error)
}

type ListDatasetsFilter struct {
	// If set, only include datasets with the given hash.
	Hash string

	// If set, only include datasets from the given source.
	Source string
}

// Metadata for a parsed snapshot of metro network data. The parsed
// data can be accessed via DatasetReader.
type DatasetMetadata struct {
	Hash        string
	Source      string
	RetrievedAt time.Time
	Routes      int
	Stations    int
	Transfers   int
	Fares       int
}

// Writes records for a single dataset.
//
// ODFare tends to be large, so BeginFares() and EndFares() are called
// before and after all calls to WriteFare(), allowing
// transactions/batching.
type DatasetWriter interface {
	WriteRoute(route model.Route) error
	WriteTransfer(transfer model.Transfer) error
	BeginFares() error
	WriteFare(fare model.Fare) error
	EndFares() error
	WriteExit(exit model.Exit) error
	WriteFacility(facility model.Facility) error
	WriteFirstLastTrain(flt model.FirstLastTrain) error
	WriteExternalID(id model.ExternalID) error
	WriteAlias(alias model.Alias) error
	Close() error
}

type DatasetReader interface {
	// All routes, ordered by route ID, stations in travel order.
	Routes() ([]model.Route, error)

	Transfers() ([]model.Transfer, error)

	// The fare between two station IDs, or nil if there is none.
	Fare(originID string, destinationID string) (*model.Fare, error)

	Exits(stationID string) ([]model.Exit, error)
	Facilities(stationID string) ([]model.Facility, error)
	FirstLastTrains(stationID string) ([]model.FirstLastTrain, error)

	// Map from station ID to external ID.
	ExternalIDs() (map[string]string, error)

	// Map from alias to official station name.
	Aliases() (map[string]string, error)
}
