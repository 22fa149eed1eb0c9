// Package modelstore persists algorithm weight vectors and hyperparameters
// as binary model files, one subdirectory per sanitized game id.
//
// File layout, all little-endian:
//
//	header:  int32 algorithm type, int32 weight count
//	payload: weight count x float32
//	trailer: float32 learning rate, float32 discount factor, float32 exploration rate
package modelstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gamepilot/gamepilot/internal/rl"
)

var (
	// ErrNotFound means no model file exists for the requested key.
	ErrNotFound = errors.New("model not found")
	// ErrTypeMismatch means the file was saved by a different algorithm type.
	ErrTypeMismatch = errors.New("algorithm type mismatch")
	// ErrCorrupt means the file is truncated or otherwise unreadable.
	ErrCorrupt = errors.New("model file corrupt")
)

// Store manages model files under a root directory.
type Store struct {
	root         string
	stagedDelete bool
	log          zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithStagedDelete makes DeleteAll rename the game directory aside before
// removing it, so a crash mid-delete leaves no half-deleted live directory.
func WithStagedDelete() Option {
	return func(s *Store) { s.stagedDelete = true }
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model root: %w", err)
	}
	s := &Store{
		root: dir,
		log:  log.With().Str("component", "modelstore").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// sanitizeGameID replaces every character outside [A-Za-z0-9.-] with '_'.
func sanitizeGameID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *Store) gameDir(gameID string) string {
	return filepath.Join(s.root, sanitizeGameID(gameID))
}

func (s *Store) modelPath(gameID string, typ rl.Type) string {
	return filepath.Join(s.gameDir(gameID), fmt.Sprintf("model_%d.dat", int32(typ)))
}

// Save writes the algorithm's weights and hyperparameters, truncating any
// previous file for the same (game, type) key.
func (s *Store) Save(gameID string, algo rl.Algorithm) error {
	if err := os.MkdirAll(s.gameDir(gameID), 0o755); err != nil {
		return fmt.Errorf("create game dir: %w", err)
	}
	path := s.modelPath(gameID, algo.Type())
	if err := WriteFile(path, algo); err != nil {
		return err
	}
	s.log.Debug().
		Str("game_id", gameID).
		Str("algorithm", algo.Type().String()).
		Str("path", path).
		Msg("saved model")
	return nil
}

// Load restores weights and hyperparameters into algo. It fails closed —
// on type mismatch, truncation, or dimension mismatch the algorithm's
// in-memory weights are left untouched.
func (s *Store) Load(gameID string, algo rl.Algorithm) error {
	path := s.modelPath(gameID, algo.Type())
	if err := ReadFile(path, algo); err != nil {
		return err
	}
	s.log.Debug().
		Str("game_id", gameID).
		Str("algorithm", algo.Type().String()).
		Msg("loaded model")
	return nil
}

// Exists reports whether a model file is present for the key.
func (s *Store) Exists(gameID string, typ rl.Type) bool {
	_, err := os.Stat(s.modelPath(gameID, typ))
	return err == nil
}

// Delete removes a single model file.
func (s *Store) Delete(gameID string, typ rl.Type) error {
	err := os.Remove(s.modelPath(gameID, typ))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// DeleteAll removes every model for a game. With staged deletion the
// directory is renamed aside first; otherwise files are removed in place
// and a crash can leave a partial directory.
func (s *Store) DeleteAll(gameID string) error {
	dir := s.gameDir(gameID)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if s.stagedDelete {
		staging := dir + ".deleting"
		if err := os.RemoveAll(staging); err != nil {
			return fmt.Errorf("clear staging dir: %w", err)
		}
		if err := os.Rename(dir, staging); err != nil {
			return fmt.Errorf("stage delete: %w", err)
		}
		dir = staging
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete models for %s: %w", gameID, err)
	}
	s.log.Info().Str("game_id", gameID).Msg("deleted all models")
	return nil
}

// ListGames returns the sanitized ids of every game with a model directory.
func (s *Store) ListGames() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read model root: %w", err)
	}
	var games []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasSuffix(e.Name(), ".deleting") {
			games = append(games, e.Name())
		}
	}
	return games, nil
}

// ListModels returns the algorithm types persisted for a game.
func (s *Store) ListModels(gameID string) ([]rl.Type, error) {
	entries, err := os.ReadDir(s.gameDir(gameID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read game dir: %w", err)
	}
	var typs []rl.Type
	for _, e := range entries {
		var t int32
		if _, err := fmt.Sscanf(e.Name(), "model_%d.dat", &t); err == nil {
			typs = append(typs, rl.Type(t))
		}
	}
	return typs, nil
}

// WriteFile serializes algo to path in the binary model format.
func WriteFile(path string, algo rl.Algorithm) error {
	weights := algo.Weights()
	if weights == nil {
		return errors.New("algorithm has no weights to save")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer f.Close()

	header := []int32{int32(algo.Type()), int32(len(weights))}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, weights); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	trailer := []float32{algo.LearningRate(), algo.DiscountFactor(), algo.ExplorationRate()}
	if err := binary.Write(f, binary.LittleEndian, trailer); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return f.Sync()
}

// ReadFile deserializes path into algo, validating the declared algorithm
// type and the weight vector length before mutating anything.
func ReadFile(path string, algo rl.Algorithm) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	var header [2]int32
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if rl.Type(header[0]) != algo.Type() {
		return fmt.Errorf("%w: file has type %s, expected %s",
			ErrTypeMismatch, rl.Type(header[0]), algo.Type())
	}
	count := header[1]
	if count < 0 || count > 1<<26 {
		return fmt.Errorf("%w: implausible weight count %d", ErrCorrupt, count)
	}

	weights := make([]float32, count)
	if err := binary.Read(f, binary.LittleEndian, &weights); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated payload", ErrCorrupt)
		}
		return fmt.Errorf("read weights: %w", err)
	}
	var trailer [3]float32
	if err := binary.Read(f, binary.LittleEndian, &trailer); err != nil {
		return fmt.Errorf("%w: truncated trailer", ErrCorrupt)
	}

	if err := algo.SetWeights(weights); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	algo.SetLearningRate(trailer[0])
	algo.SetDiscountFactor(trailer[1])
	algo.SetExplorationRate(trailer[2])
	return nil
}
