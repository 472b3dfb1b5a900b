package parse

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"metropet.dev/trtc/storage"
)

// Files making up a dataset. Only StationOfRouteFile is required.
const (
	StationOfRouteFile  = "StationOfRoute.json"
	LineTransferFile    = "LineTransfer.json"
	ODFareFile          = "ODFare.json"
	StationExitFile     = "StationExit.json"
	StationFacilityFile = "StationFacility.json"
	FirstLastFile       = "first_last_timetable.csv"
	AliasesFile         = "aliases.csv"
	SIDMapFile          = "stations_sid_map.json"
)

var DatasetFiles = []string{
	StationOfRouteFile,
	LineTransferFile,
	ODFareFile,
	StationExitFile,
	StationFacilityFile,
	FirstLastFile,
	AliasesFile,
	SIDMapFile,
}

// Parses a dataset into writer. The writer is closed on success.
//
// Records referencing stations absent from StationOfRoute are
// skipped, except transfers, which the graph filters on its own.
func ParseDataset(writer storage.DatasetWriter, files map[string][]byte) (*storage.DatasetMetadata, error) {
	if files[StationOfRouteFile] == nil {
		return nil, fmt.Errorf("missing %s", StationOfRouteFile)
	}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	open := func(name string) io.Reader {
		return bom.NewReader(bytes.NewReader(files[name]))
	}

	// Parse routes. Extract the set of station IDs and names.
	stations, routeCount, err := ParseStationOfRoute(writer, open(StationOfRouteFile))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", StationOfRouteFile, err)
	}

	transferCount := 0
	if files[LineTransferFile] != nil {
		transferCount, err = ParseLineTransfer(writer, open(LineTransferFile))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", LineTransferFile, err)
		}
	}

	fareCount := 0
	if files[ODFareFile] != nil {
		err = writer.BeginFares()
		if err != nil {
			return nil, fmt.Errorf("beginning fares: %w", err)
		}
		fareCount, err = ParseODFare(writer, open(ODFareFile), stations)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ODFareFile, err)
		}
		err = writer.EndFares()
		if err != nil {
			return nil, fmt.Errorf("ending fares: %w", err)
		}
	}

	if files[StationExitFile] != nil {
		err = ParseStationExit(writer, open(StationExitFile), stations)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", StationExitFile, err)
		}
	}

	if files[StationFacilityFile] != nil {
		err = ParseStationFacility(writer, open(StationFacilityFile), stations)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", StationFacilityFile, err)
		}
	}

	if files[FirstLastFile] != nil {
		err = ParseFirstLastTimetable(writer, open(FirstLastFile), stations)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", FirstLastFile, err)
		}
	}

	if files[AliasesFile] != nil {
		err = ParseAliases(writer, open(AliasesFile))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", AliasesFile, err)
		}
	}

	if files[SIDMapFile] != nil {
		err = ParseSIDMap(writer, open(SIDMapFile), stations)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", SIDMapFile, err)
		}
	}

	// All files parsed: close the writer.
	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("closing dataset writer: %w", err)
	}

	// And return a (partial) metadata holding some key
	// information about the dataset.
	return &storage.DatasetMetadata{
		Routes:    routeCount,
		Stations:  len(stations),
		Transfers: transferCount,
		Fares:     fareCount,
	}, nil
}

// Reads all dataset files present in a directory, which must include
// StationOfRouteFile.
func ReadDir(dir string) (map[string][]byte, error) {
	files, err := ReadFiles(dir)
	if err != nil {
		return nil, err
	}

	if files[StationOfRouteFile] == nil {
		return nil, fmt.Errorf("missing %s in %s", StationOfRouteFile, dir)
	}

	return files, nil
}

// Reads whichever dataset files are present in a directory.
func ReadFiles(dir string) (map[string][]byte, error) {
	files := map[string][]byte{}
	for _, name := range DatasetFiles {
		buf, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		files[name] = buf
	}

	return files, nil
}
