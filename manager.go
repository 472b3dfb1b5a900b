package trtc

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"metropet.dev/trtc/normalize"
	"metropet.dev/trtc/parse"
	"metropet.dev/trtc/storage"
)

const (
	DefaultRefreshInterval = 24 * time.Hour
	DefaultRefreshTimeout  = 10 * time.Minute
)

// Somewhere to fetch dataset files from, keyed by the file names
// parse.ParseDataset expects.
type Source interface {
	Name() string
	FetchDataset(ctx context.Context) (map[string][]byte, error)
}

// Reads dataset files from a local directory.
type DirSource string

func (d DirSource) Name() string {
	return "dir:" + string(d)
}

func (d DirSource) FetchDataset(ctx context.Context) (map[string][]byte, error) {
	info, err := os.Stat(string(d))
	if err != nil {
		return nil, fmt.Errorf("reading data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", string(d))
	}
	return parse.ReadFiles(string(d))
}

// Manager keeps datasets in storage up to date and holds the Network
// built from the most recent one.
type Manager struct {
	// Fetched in order on refresh. Files from later sources replace
	// files of the same name from earlier ones.
	Sources []Source

	// Refresh is a no-op while the latest dataset is younger than
	// this. Zero always refreshes.
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration

	// If set, name indexes are cached here, one file per dataset.
	IndexCacheDir string

	Options NetworkOptions
	TimeNow func() time.Time

	storage storage.Storage
	network atomic.Pointer[Network]
}

// Creates a new Manager of network data, on top of the given storage.
func NewManager(s storage.Storage, sources ...Source) *Manager {
	return &Manager{
		Sources:         sources,
		RefreshInterval: DefaultRefreshInterval,
		RefreshTimeout:  DefaultRefreshTimeout,
		TimeNow:         time.Now,
		storage:         s,
	}
}

// Fetches all sources and parses the result into storage, unless a
// dataset with identical content is already stored. Returns the
// metadata of the current dataset.
func (m *Manager) Refresh(ctx context.Context) (*storage.DatasetMetadata, error) {
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	latest, err := m.latest()
	if err != nil && !errors.Is(err, ErrNoDataset) {
		return nil, err
	}
	if latest != nil && m.RefreshInterval > 0 &&
		latest.RetrievedAt.Add(m.RefreshInterval).After(m.TimeNow()) {
		return latest, nil
	}

	if m.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.RefreshTimeout)
		defer cancel()
	}

	files := map[string][]byte{}
	names := []string{}
	errs := []error{}
	for _, src := range m.Sources {
		fetched, err := src.FetchDataset(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetching from %s: %w", src.Name(), err))
			continue
		}
		for name, buf := range fetched {
			files[name] = buf
		}
		names = append(names, src.Name())
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	hash := datasetHash(files)
	source := strings.Join(names, "+")

	// The data may already exist in storage.
	existing, err := m.storage.ListDatasets(storage.ListDatasetsFilter{Hash: hash})
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	if len(existing) > 0 {
		metadata := existing[0]
		metadata.RetrievedAt = m.TimeNow().UTC()
		err = m.storage.WriteDatasetMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("writing metadata: %w", err)
		}
		log.Printf("dataset %s unchanged", shortHash(hash))
		return metadata, nil
	}

	// Hash doesn't exist in storage. Parse the dataset.
	writer, err := m.storage.GetWriter(hash)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}

	metadata, err := parse.ParseDataset(writer, files)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("parsing: %w", err),
			writer.Close(),
		)
	}

	metadata.Hash = hash
	metadata.Source = source
	metadata.RetrievedAt = m.TimeNow().UTC()

	err = m.storage.WriteDatasetMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	log.Printf(
		"dataset %s from %s: %d routes, %d stations, %d transfers, %d fares",
		shortHash(hash), source, metadata.Routes, metadata.Stations, metadata.Transfers, metadata.Fares,
	)

	return metadata, nil
}

// Builds a Network from the most recently retrieved dataset and makes
// it current. The previous Network, if any, stays valid for readers
// still holding it.
func (m *Manager) Load(ctx context.Context) (*Network, error) {
	metadata, err := m.latest()
	if err != nil {
		return nil, err
	}

	reader, err := m.storage.GetReader(metadata.Hash)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	opts := m.Options
	cachePath := ""
	cached := false
	if m.IndexCacheDir != "" {
		cachePath = m.indexCachePath(metadata.Hash)
		index, err := ReadIndexFile(cachePath)
		if err == nil {
			opts.Index = index
			cached = true
		} else if !os.IsNotExist(err) {
			log.Printf("ignoring index cache %s: %v", cachePath, err)
		}
	}

	network, err := NewNetwork(reader, metadata, opts)
	if err != nil {
		return nil, fmt.Errorf("loading dataset %s: %w", shortHash(metadata.Hash), err)
	}

	if cachePath != "" && !cached {
		err = network.Directory.WriteIndexFile(cachePath)
		if err != nil {
			log.Printf("writing index cache: %v", err)
		}
	}

	m.network.Store(network)
	log.Printf(
		"loaded dataset %s: %d stations, %d lines",
		shortHash(metadata.Hash), network.Graph.NodeCount(), len(network.Graph.Lines()),
	)

	return network, nil
}

// The current Network, or ErrNoDataset if nothing is loaded.
func (m *Manager) Network() (*Network, error) {
	network := m.network.Load()
	if network == nil {
		return nil, ErrNoDataset
	}
	return network, nil
}

// Lists stored datasets, most recently retrieved first.
func (m *Manager) Datasets() ([]*storage.DatasetMetadata, error) {
	datasets, err := m.storage.ListDatasets(storage.ListDatasetsFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	sort.SliceStable(datasets, func(i, j int) bool {
		return datasets[i].RetrievedAt.After(datasets[j].RetrievedAt)
	})
	return datasets, nil
}

func (m *Manager) latest() (*storage.DatasetMetadata, error) {
	datasets, err := m.Datasets()
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, ErrNoDataset
	}
	return datasets[0], nil
}

// Index files depend on the dataset and on how names were normalized.
func (m *Manager) indexCachePath(hash string) string {
	n := m.Options.Normalizer
	if n == nil {
		n = normalize.New(nil, nil)
	}
	return filepath.Join(
		m.IndexCacheDir,
		fmt.Sprintf("index-%s-%s.json", shortHash(hash), n.Fingerprint()),
	)
}

// Content hash of a dataset: sha256 over file names and contents,
// in name order.
func datasetHash(files map[string][]byte) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	var size [8]byte
	for _, name := range names {
		binary.BigEndian.PutUint64(size[:], uint64(len(name)))
		h.Write(size[:])
		h.Write([]byte(name))
		binary.BigEndian.PutUint64(size[:], uint64(len(files[name])))
		h.Write(size[:])
		h.Write(files[name])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
