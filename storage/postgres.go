package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"metropet.dev/trtc/model"
)

const (
	PSQLFareBatchSize = 5000
)

type PSQLStorage struct {
	db *sql.DB
}

type PSQLDatasetWriter struct {
	id      string
	db      *sql.DB
	fareBuf []model.Fare
}

type PSQLDatasetReader struct {
	id string
	db *sql.DB
}

var psqlTables = []string{
	"routes",
	"route_stations",
	"transfers",
	"fares",
	"exits",
	"facilities",
	"first_last_trains",
	"external_ids",
	"aliases",
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		drop := "DROP TABLE IF EXISTS dataset;\n"
		for _, table := range psqlTables {
			drop += "DROP TABLE IF EXISTS " + table + ";\n"
		}
		_, err = db.Exec(drop)
		if err != nil {
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS dataset (
    hash TEXT NOT NULL,
    source TEXT NOT NULL,
    retrieved_at TIMESTAMPTZ NOT NULL,
    routes INTEGER NOT NULL,
    stations INTEGER NOT NULL,
    transfers INTEGER NOT NULL,
    fares INTEGER NOT NULL,
    PRIMARY KEY (hash)
);

CREATE TABLE IF NOT EXISTS routes (
    hash TEXT NOT NULL,
    id TEXT NOT NULL,
    line_code TEXT NOT NULL,
    PRIMARY KEY (hash, id)
);

CREATE TABLE IF NOT EXISTS route_stations (
    hash TEXT NOT NULL,
    route_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    station_id TEXT NOT NULL,
    name TEXT NOT NULL,
    english_name TEXT,
    PRIMARY KEY (hash, route_id, seq)
);

CREATE TABLE IF NOT EXISTS transfers (
    hash TEXT NOT NULL,
    seq BIGSERIAL,
    from_station_id TEXT NOT NULL,
    from_line_id TEXT,
    to_station_id TEXT NOT NULL,
    to_line_id TEXT,
    cost DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS fares (
    hash TEXT NOT NULL,
    origin_station_id TEXT NOT NULL,
    destination_station_id TEXT NOT NULL,
    adult INTEGER NOT NULL,
    child INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS fares_od ON fares (hash, origin_station_id, destination_station_id);

CREATE TABLE IF NOT EXISTS exits (
    hash TEXT NOT NULL,
    seq BIGSERIAL,
    station_id TEXT NOT NULL,
    exit_id TEXT NOT NULL,
    description TEXT
);
CREATE INDEX IF NOT EXISTS exits_station_id ON exits (hash, station_id);

CREATE TABLE IF NOT EXISTS facilities (
    hash TEXT NOT NULL,
    seq BIGSERIAL,
    station_id TEXT NOT NULL,
    description TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS facilities_station_id ON facilities (hash, station_id);

CREATE TABLE IF NOT EXISTS first_last_trains (
    hash TEXT NOT NULL,
    seq BIGSERIAL,
    station_id TEXT NOT NULL,
    line_id TEXT NOT NULL,
    trip_headsign TEXT,
    destination_station_id TEXT NOT NULL,
    destination_station_name TEXT,
    first_train_time TEXT NOT NULL,
    last_train_time TEXT NOT NULL,
    service_days TEXT
);
CREATE INDEX IF NOT EXISTS first_last_trains_station_id ON first_last_trains (hash, station_id);

CREATE TABLE IF NOT EXISTS external_ids (
    hash TEXT NOT NULL,
    station_id TEXT NOT NULL,
    external_id TEXT NOT NULL,
    PRIMARY KEY (hash, station_id)
);

CREATE TABLE IF NOT EXISTS aliases (
    hash TEXT NOT NULL,
    alias TEXT NOT NULL,
    official TEXT NOT NULL,
    PRIMARY KEY (hash, alias)
);`)
	if err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListDatasets(filter ListDatasetsFilter) ([]*DatasetMetadata, error) {
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
	paramCount := 1

	if filter.Hash != "" {
		conditions = append(conditions, fmt.Sprintf("hash = $%d", paramCount))
		params = append(params, filter.Hash)
		paramCount++
	}
	if filter.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", paramCount))
		params = append(params, filter.Source)
		paramCount++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.db.Query(query, params...)
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

func (s *PSQLStorage) WriteDatasetMetadata(d *DatasetMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO dataset (hash, source, retrieved_at, routes, stations, transfers, fares)
VALUES ($1, $2, $3, $4, $5, $6, $7)
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

func (s *PSQLStorage) GetReader(hash string) (DatasetReader, error) {
	return &PSQLDatasetReader{
		id: hash,
		db: s.db,
	}, nil
}

func (s *PSQLStorage) GetWriter(hash string) (DatasetWriter, error) {
	// In case dataset already exists, delete all records
	for _, table := range psqlTables {
		_, err := s.db.Exec(`DELETE FROM `+table+` WHERE hash = $1`, hash)
		if err != nil {
			return nil, fmt.Errorf("deleting %s records: %s", table, err)
		}
	}

	return &PSQLDatasetWriter{
		id: hash,
		db: s.db,
	}, nil
}

func (w *PSQLDatasetWriter) WriteRoute(route model.Route) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning route transaction: %w", err)
	}

	_, err = tx.Exec(`
INSERT INTO routes (hash, id, line_code)
VALUES ($1, $2, $3)`,
		w.id,
		route.ID,
		route.LineCode,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting route: %w", err)
	}

	for i, station := range route.Stations {
		_, err = tx.Exec(`
INSERT INTO route_stations (hash, route_id, seq, station_id, name, english_name)
VALUES ($1, $2, $3, $4, $5, $6)`,
			w.id,
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

func (w *PSQLDatasetWriter) WriteTransfer(t model.Transfer) error {
	_, err := w.db.Exec(`
INSERT INTO transfers (hash, from_station_id, from_line_id, to_station_id, to_line_id, cost)
VALUES ($1, $2, $3, $4, $5, $6)`,
		w.id,
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

func (w *PSQLDatasetWriter) BeginFares() error {
	return nil
}

func (w *PSQLDatasetWriter) WriteFare(fare model.Fare) error {
	w.fareBuf = append(w.fareBuf, fare)
	if len(w.fareBuf) >= PSQLFareBatchSize {
		return w.flushFares()
	}
	return nil
}

func (w *PSQLDatasetWriter) EndFares() error {
	if len(w.fareBuf) > 0 {
		return w.flushFares()
	}
	return nil
}

func (w *PSQLDatasetWriter) flushFares() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.Prepare(pq.CopyIn(
		"fares",
		"hash",
		"origin_station_id",
		"destination_station_id",
		"adult",
		"child",
	))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing statement: %w", err)
	}

	for _, fare := range w.fareBuf {
		_, err = stmt.Exec(
			w.id,
			fare.OriginStationID,
			fare.DestinationStationID,
			fare.Adult,
			fare.Child,
		)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("copying fare: %w", err)
		}
	}

	if _, err = stmt.Exec(); err != nil {
		stmt.Close()
		tx.Rollback()
		return fmt.Errorf("flushing fares: %w", err)
	}
	if err = stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("closing statement: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing fares: %w", err)
	}

	w.fareBuf = w.fareBuf[:0]
	return nil
}

func (w *PSQLDatasetWriter) WriteExit(exit model.Exit) error {
	_, err := w.db.Exec(`
INSERT INTO exits (hash, station_id, exit_id, description)
VALUES ($1, $2, $3, $4)`,
		w.id,
		exit.StationID,
		exit.ExitID,
		exit.Description,
	)
	if err != nil {
		return fmt.Errorf("inserting exit: %w", err)
	}
	return nil
}

func (w *PSQLDatasetWriter) WriteFacility(facility model.Facility) error {
	_, err := w.db.Exec(`
INSERT INTO facilities (hash, station_id, description)
VALUES ($1, $2, $3)`,
		w.id,
		facility.StationID,
		facility.Description,
	)
	if err != nil {
		return fmt.Errorf("inserting facility: %w", err)
	}
	return nil
}

func (w *PSQLDatasetWriter) WriteFirstLastTrain(flt model.FirstLastTrain) error {
	_, err := w.db.Exec(`
INSERT INTO first_last_trains (
    hash,
    station_id,
    line_id,
    trip_headsign,
    destination_station_id,
    destination_station_name,
    first_train_time,
    last_train_time,
    service_days
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.id,
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

func (w *PSQLDatasetWriter) WriteExternalID(id model.ExternalID) error {
	_, err := w.db.Exec(`
INSERT INTO external_ids (hash, station_id, external_id)
VALUES ($1, $2, $3)
ON CONFLICT (hash, station_id) DO UPDATE SET external_id = excluded.external_id`,
		w.id,
		id.StationID,
		id.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("inserting external id: %w", err)
	}
	return nil
}

func (w *PSQLDatasetWriter) WriteAlias(alias model.Alias) error {
	_, err := w.db.Exec(`
INSERT INTO aliases (hash, alias, official)
VALUES ($1, $2, $3)
ON CONFLICT (hash, alias) DO UPDATE SET official = excluded.official`,
		w.id,
		alias.Alias,
		alias.Official,
	)
	if err != nil {
		return fmt.Errorf("inserting alias: %w", err)
	}
	return nil
}

func (w *PSQLDatasetWriter) Close() error {
	return w.EndFares()
}

func (r *PSQLDatasetReader) Routes() ([]model.Route, error) {
	rows, err := r.db.Query(`
SELECT routes.id, routes.line_code, rs.station_id, rs.name, rs.english_name
FROM routes
INNER JOIN route_stations rs ON rs.hash = routes.hash AND rs.route_id = routes.id
WHERE routes.hash = $1
ORDER BY routes.id, rs.seq`, r.id)
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

func (r *PSQLDatasetReader) Transfers() ([]model.Transfer, error) {
	rows, err := r.db.Query(`
SELECT from_station_id, from_line_id, to_station_id, to_line_id, cost
FROM transfers
WHERE hash = $1
ORDER BY seq`, r.id)
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

func (r *PSQLDatasetReader) Fare(originID string, destinationID string) (*model.Fare, error) {
	fare := &model.Fare{}
	err := r.db.QueryRow(`
SELECT origin_station_id, destination_station_id, adult, child
FROM fares
WHERE hash = $1 AND origin_station_id = $2 AND destination_station_id = $3
LIMIT 1`,
		r.id, originID, destinationID,
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

func (r *PSQLDatasetReader) Exits(stationID string) ([]model.Exit, error) {
	rows, err := r.db.Query(`
SELECT station_id, exit_id, description
FROM exits
WHERE hash = $1 AND station_id = $2
ORDER BY exit_id, seq`, r.id, stationID)
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

func (r *PSQLDatasetReader) Facilities(stationID string) ([]model.Facility, error) {
	rows, err := r.db.Query(`
SELECT station_id, description
FROM facilities
WHERE hash = $1 AND station_id = $2
ORDER BY seq`, r.id, stationID)
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

func (r *PSQLDatasetReader) FirstLastTrains(stationID string) ([]model.FirstLastTrain, error) {
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
WHERE hash = $1 AND station_id = $2
ORDER BY line_id, destination_station_id, seq`, r.id, stationID)
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

func (r *PSQLDatasetReader) ExternalIDs() (map[string]string, error) {
	return queryStringMap(r.db, `SELECT station_id, external_id FROM external_ids WHERE hash = $1`, r.id)
}

func (r *PSQLDatasetReader) Aliases() (map[string]string, error) {
	return queryStringMap(r.db, `SELECT alias, official FROM aliases WHERE hash = $1`, r.id)
}
