package storage

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"metropet.dev/trtc/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	metadataDB *sql.DB
	datasets   map[string]*sql.DB
	mutex      sync.Mutex
}

type SQLiteDatasetWriter struct {
	db              *sql.DB
	fareInsertQuery *sql.Stmt
	fareInsertTx    *sql.Tx
}

type SQLiteDatasetReader struct {
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/trtc.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS dataset (
    hash TEXT NOT NULL,
    source TEXT NOT NULL,
    retrieved_at TIMESTAMP NOT NULL,
    routes INTEGER NOT NULL,
    stations INTEGER NOT NULL,
    transfers INTEGER NOT NULL,
    fares INTEGER NOT NULL,
PRIMARY KEY (hash)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating dataset table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		metadataDB: db,
		datasets:   map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) ListDatasets(filter ListDatasetsFilter) ([]*DatasetMetadata, error) {
	query := `
SELECT
    hash,
    source,
    retrieved_at,
    routes,
    stations,
    transfers,
    fares
FROM dataset`

	conditions := []string{}
	params := []interface{}{}
	if filter.Hash != "" {
		conditions = append(conditions, "hash = ?")
		params = append(params, filter.Hash)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		params = append(params, filter.Source)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.metadataDB.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*DatasetMetadata
	for rows.Next() {
		var d DatasetMetadata
		err := rows.Scan(
			&d.Hash,
			&d.Source,
			&d.RetrievedAt,
			&d.Routes,
			&d.Stations,
			&d.Transfers,
			&d.Fares,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		d.RetrievedAt = d.RetrievedAt.UTC()
		datasets = append(datasets, &d)
	}

	return datasets, nil
}

func (s *SQLiteStorage) WriteDatasetMetadata(d *DatasetMetadata) error {
	_, err := s.metadataDB.Exec(`
INSERT INTO dataset (hash, source, retrieved_at, routes, stations, transfers, fares)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (hash) DO UPDATE SET
    source = excluded.source,
    retrieved_at = excluded.retrieved_at,
    routes = excluded.routes,
    stations = excluded.stations,
    transfers = excluded.transfers,
    fares = excluded.fares
`,
		d.Hash,
		d.Source,
		d.RetrievedAt.UTC(),
		d.Routes,
		d.Stations,
		d.Transfers,
		d.Fares,
	)
	if err != nil {
		return fmt.Errorf("writing dataset metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetReader(hash string) (DatasetReader, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	db, found := s.datasets[hash]
	if found {
		return &SQLiteDatasetReader{
			db: db,
		}, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("dataset %s does not exist", hash)
	}

	sourceName := s.Directory + "/" + hash + ".db"
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("dataset %s does not exist at %s", hash, sourceName)
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s.datasets[hash] = db

	return &SQLiteDatasetReader{
		db: db,
	}, nil
}

func (s *SQLiteStorage) GetWriter(hash string) (DatasetWriter, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if old, found := s.datasets[hash]; found {
		old.Close()
		delete(s.datasets, hash)
	}

	sourceName := ":memory:"
	if s.OnDisk {
		sourceName = s.Directory + "/" + hash + ".db"
		// delete file if it exists
		if _, err := os.Stat(sourceName); err == nil {
			err := os.Remove(sourceName)
			if err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	for name, query := range map[string]string{
		"routes": `
CREATE TABLE routes (
    id TEXT PRIMARY KEY,
    line_code TEXT NOT NULL
);`,
		"route_stations": `
CREATE TABLE route_stations (
    route_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    station_id TEXT NOT NULL,
    name TEXT NOT NULL,
    english_name TEXT,
    PRIMARY KEY (route_id, seq)
);
CREATE INDEX route_stations_station_id ON route_stations (station_id);
`,
		"transfers": `
CREATE TABLE transfers (
    from_station_id TEXT NOT NULL,
    from_line_id TEXT,
    to_station_id TEXT NOT NULL,
    to_line_id TEXT,
    cost REAL NOT NULL
);`,
		"fares": `
CREATE TABLE fares (
    origin_station_id TEXT NOT NULL,
    destination_station_id TEXT NOT NULL,
    adult INTEGER NOT NULL,
    child INTEGER NOT NULL,
    PRIMARY KEY (origin_station_id, destination_station_id)
);`,
		"exits": `
CREATE TABLE exits (
    station_id TEXT NOT NULL,
    exit_id TEXT NOT NULL,
    description TEXT
);
CREATE INDEX exits_station_id ON exits (station_id);
`,
		"facilities": `
CREATE TABLE facilities (
    station_id TEXT NOT NULL,
    description TEXT NOT NULL
);
CREATE INDEX facilities_station_id ON facilities (station_id);
`,
		"first_last_trains": `
CREATE TABLE first_last_trains (
    station_id TEXT NOT NULL,
    line_id TEXT NOT NULL,
    trip_headsign TEXT,
    destination_station_id TEXT NOT NULL,
    destination_station_name TEXT,
    first_train_time TEXT NOT NULL,
    last_train_time TEXT NOT NULL,
    service_days TEXT
);
CREATE INDEX first_last_trains_station_id ON first_last_trains (station_id);
`,
		"external_ids": `
CREATE TABLE external_ids (
    station_id TEXT PRIMARY KEY,
    external_id TEXT NOT NULL
);`,
		"aliases": `
CREATE TABLE aliases (
    alias TEXT PRIMARY KEY,
    official TEXT NOT NULL
);`,
	} {
		_, err = db.Exec(query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %s", name, err)
		}
	}

	s.datasets[hash] = db

	return &SQLiteDatasetWriter{
		db: db,
	}, nil
}

func (w *SQLiteDatasetWriter) WriteRoute(route model.Route) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning route transaction: %w", err)
	}

	_, err = tx.Exec(`
INSERT INTO routes (id, line_code)
VALUES (?, ?)`,
		route.ID,
		route.LineCode,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting route: %w", err)
	}

	for i, station := range route.Stations {
		_, err = tx.Exec(`
INSERT INTO route_stations (route_id, seq, station_id, name, english_name)
VALUES (?, ?, ?, ?, ?)`,
			route.ID,
			i,
			station.ID,
			station.Name,
			station.EnglishName,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting route station: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing route: %w", err)
	}
	return nil
}

func (w *SQLiteDatasetWriter) WriteTransfer(t model.Transfer) error {
	_, err := w.db.Exec(`
INSERT INTO transfers (from_station_id, from_line_id, to_station_id, to_line_id, cost)
VALUES (?, ?, ?, ?, ?)`,
		t.FromStationID,
		t.FromLineID,
		t.ToStationID,
		t.ToLineID,
		t.Cost,
	)
	if err != nil {
		return fmt.Errorf("inserting transfer: %w", err)
	}
	return nil
}

func (w *SQLiteDatasetWriter) BeginFares() error {
	// transaction with prepared statement.
	var err error
	w.fareInsertTx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fare insert transaction: %w", err)
	}

	w.fareInsertQuery, err = w.fareInsertTx.Prepare(`
INSERT OR REPLACE INTO fares (origin_station_id, destination_station_id, adult, child)
VALUES (?, ?, ?, ?)`)
	if err != nil {
		w.fareInsertTx.Rollback()
		w.fareInsertTx = nil
		return fmt.Errorf("preparing fare insert: %w", err)
	}

	return nil
}

func (w *SQLiteDatasetWriter) WriteFare(fare model.Fare) error {
	if w.fareInsertQuery == nil {
		return fmt.Errorf("inserting fare: BeginFares not called")
	}

	_, err := w.fareInsertQuery.Exec(
		fare.OriginStationID,
		fare.DestinationStationID,
		fare.Adult,
		fare.Child,
	)
	if err != nil {
		w.fareInsertQuery.Close()
		w.fareInsertTx.Rollback()
		w.fareInsertTx = nil
		w.fareInsertQuery = nil
		return fmt.Errorf("inserting fare: %w", err)
	}

	return nil
}

func (w *SQLiteDatasetWriter) EndFares() error {
	if w.fareInsertTx == nil {
		return nil
	}

	// commit transaction and clean up
	w.fareInsertQuery.Close()
	err := w.fareInsertTx.Commit()
	if err != nil {
		return fmt.Errorf("committing fare insert transaction: %w", err)
	}
	w.fareInsertTx = nil
	w.fareInsertQuery = nil

	return nil
}

func (w *SQLiteDatasetWriter) WriteExit(exit model.Exit) error {
	_, err := w.db.Exec(`
INSERT INTO exits (station_id, exit_id, description)
VALUES (?, ?, ?)`,
		exit.StationID,
		exit.ExitID,
		exit.Description,
	)
	if err != nil {
		return fmt.Errorf("inserting exit: %w", err)
	}
	return nil
}

func (w *SQLiteDatasetWriter) WriteFacility(facility model.Facility) error {
	_, err := w.db.Exec(`
INSERT INTO facilities (station_id, description)
VALUES (?, ?)`,
		facility.StationID,
		facility.Description,
	)
	if err != nil {
		return fmt.Errorf("inserting facility: %w", err)
	}
	return nil
}

func (w *SQLiteDatasetWriter) WriteFirstLastTrain(flt model.FirstLastTrain) error {
	_, err := w.db.Exec(`
INSERT INTO first_last_trains (
    station_id,
    line_id,
    trip_headsign,
    destination_station_id,
    destination_station_name,
    first_train_time,
    last_train_time,
    service_days
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		flt.StationID,
		flt.LineID,
		flt.TripHeadSign,
		flt.DestinationStationID,
		flt.DestinationStationName,
		flt.FirstTrainTime,
		flt.LastTrainTime,
		flt.ServiceDays,
	)
	if err != nil {
		return fmt.Errorf("inserting first/last train: %w", err)
	}
	return nil
}

func (w *SQLiteDatasetWriter) WriteExternalID(id model.ExternalID) error {
	_, err := w.db.Exec(`
INSERT OR REPLACE INTO external_ids (station_id, external_id)
VALUES (?, ?)`,
		id.StationID,
		id.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("inserting external id: %w", err)
	}
	return nil
}

func (w *SQLiteDatasetWriter) WriteAlias(alias model.Alias) error {
	_, err := w.db.Exec(`
INSERT OR REPLACE INTO aliases (alias, official)
VALUES (?, ?)`,
		alias.Alias,
		alias.Official,
	)
	if err != nil {
		return fmt.Errorf("inserting alias: %w", err)
	}
	return nil
}

func (w *SQLiteDatasetWriter) Close() error {
	if err := w.EndFares(); err != nil {
		return err
	}

	_, err := w.db.Exec(`ANALYZE;`)
	if err != nil {
		w.db.Close()
		return fmt.Errorf("analyzing database: %s", err)
	}

	return nil
}

func (r *SQLiteDatasetReader) Routes() ([]model.Route, error) {
	rows, err := r.db.Query(`
SELECT routes.id, routes.line_code, rs.station_id, rs.name, rs.english_name
FROM routes
INNER JOIN route_stations rs ON rs.route_id = routes.id
ORDER BY routes.id, rs.seq`)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := []model.Route{}
	for rows.Next() {
		var routeID, lineCode string
		var station model.Station
		var englishName sql.NullString
		err := rows.Scan(
			&routeID,
			&lineCode,
			&station.ID,
			&station.Name,
			&englishName,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		station.EnglishName = englishName.String

		if len(routes) == 0 || routes[len(routes)-1].ID != routeID {
			routes = append(routes, model.Route{ID: routeID, LineCode: lineCode})
		}
		last := &routes[len(routes)-1]
		last.Stations = append(last.Stations, station)
	}

	return routes, nil
}

func (r *SQLiteDatasetReader) Transfers() ([]model.Transfer, error) {
	rows, err := r.db.Query(`
SELECT from_station_id, from_line_id, to_station_id, to_line_id, cost
FROM transfers
ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying transfers: %w", err)
	}
	defer rows.Close()

	transfers := []model.Transfer{}
	for rows.Next() {
		var t model.Transfer
		var fromLine, toLine sql.NullString
		err := rows.Scan(&t.FromStationID, &fromLine, &t.ToStationID, &toLine, &t.Cost)
		if err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		t.FromLineID = fromLine.String
		t.ToLineID = toLine.String
		transfers = append(transfers, t)
	}

	return transfers, nil
}

func (r *SQLiteDatasetReader) Fare(originID string, destinationID string) (*model.Fare, error) {
	fare := &model.Fare{}
	err := r.db.QueryRow(`
SELECT origin_station_id, destination_station_id, adult, child
FROM fares
WHERE origin_station_id = ? AND destination_station_id = ?`,
		originID, destinationID,
	).Scan(
		&fare.OriginStationID,
		&fare.DestinationStationID,
		&fare.Adult,
		&fare.Child,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying fare: %w", err)
	}
	return fare, nil
}

func (r *SQLiteDatasetReader) Exits(stationID string) ([]model.Exit, error) {
	rows, err := r.db.Query(`
SELECT station_id, exit_id, description
FROM exits
WHERE station_id = ?
ORDER BY exit_id, rowid`, stationID)
	if err != nil {
		return nil, fmt.Errorf("querying exits: %w", err)
	}
	defer rows.Close()

	exits := []model.Exit{}
	for rows.Next() {
		var e model.Exit
		var desc sql.NullString
		err := rows.Scan(&e.StationID, &e.ExitID, &desc)
		if err != nil {
			return nil, fmt.Errorf("scanning exit: %w", err)
		}
		e.Description = desc.String
		exits = append(exits, e)
	}

	return exits, nil
}

func (r *SQLiteDatasetReader) Facilities(stationID string) ([]model.Facility, error) {
	rows, err := r.db.Query(`
SELECT station_id, description
FROM facilities
WHERE station_id = ?
ORDER BY rowid`, stationID)
	if err != nil {
		return nil, fmt.Errorf("querying facilities: %w", err)
	}
	defer rows.Close()

	facilities := []model.Facility{}
	for rows.Next() {
		var f model.Facility
		err := rows.Scan(&f.StationID, &f.Description)
		if err != nil {
			return nil, fmt.Errorf("scanning facility: %w", err)
		}
		facilities = append(facilities, f)
	}

	return facilities, nil
}

func (r *SQLiteDatasetReader) FirstLastTrains(stationID string) ([]model.FirstLastTrain, error) {
	rows, err := r.db.Query(`
SELECT
    station_id,
    line_id,
    trip_headsign,
    destination_station_id,
    destination_station_name,
    first_train_time,
    last_train_time,
    service_days
FROM first_last_trains
WHERE station_id = ?
ORDER BY line_id, destination_station_id, rowid`, stationID)
	if err != nil {
		return nil, fmt.Errorf("querying first/last trains: %w", err)
	}
	defer rows.Close()

	trains := []model.FirstLastTrain{}
	for rows.Next() {
		var t model.FirstLastTrain
		var headsign, destName, serviceDays sql.NullString
		err := rows.Scan(
			&t.StationID,
			&t.LineID,
			&headsign,
			&t.DestinationStationID,
			&destName,
			&t.FirstTrainTime,
			&t.LastTrainTime,
			&serviceDays,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning first/last train: %w", err)
		}
		t.TripHeadSign = headsign.String
		t.DestinationStationName = destName.String
		t.ServiceDays = serviceDays.String
		trains = append(trains, t)
	}

	return trains, nil
}

func (r *SQLiteDatasetReader) ExternalIDs() (map[string]string, error) {
	return queryStringMap(r.db, `SELECT station_id, external_id FROM external_ids`)
}

func (r *SQLiteDatasetReader) Aliases() (map[string]string, error) {
	return queryStringMap(r.db, `SELECT alias, official FROM aliases`)
}
