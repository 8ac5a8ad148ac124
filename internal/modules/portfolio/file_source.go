package portfolio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// snapshotFile is the on-disk shape written by the position sync process.
type snapshotFile struct {
	Positions      []Position `json:"positions"`
	PortfolioValue float64    `json:"portfolio_value"`
}

// FileSource reads position snapshots from a JSON file maintained by an
// external position-sync process. It is the default adapter between the
// portfolio subsystem and the risk engine; any other source only needs to
// satisfy the engine's PositionSource interface.
type FileSource struct {
	path string
	log  zerolog.Logger
}

// NewFileSource creates a file-backed position source.
func NewFileSource(path string, log zerolog.Logger) *FileSource {
	return &FileSource{
		path: path,
		log:  log.With().Str("component", "position_source").Logger(),
	}
}

// Positions returns the current position snapshot. A missing file is an
// empty portfolio, not an error.
func (s *FileSource) Positions() ([]Position, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	return snap.Positions, nil
}

// PortfolioValue returns the snapshot's total portfolio value.
func (s *FileSource) PortfolioValue() (float64, error) {
	snap, err := s.read()
	if err != nil {
		return 0, err
	}
	return snap.PortfolioValue, nil
}

func (s *FileSource) read() (*snapshotFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &snapshotFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read position snapshot: %w", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse position snapshot: %w", err)
	}
	return &snap, nil
}
