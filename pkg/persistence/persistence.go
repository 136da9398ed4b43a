package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/betdesk/gotrader/pkg/logger"
)

// Service hands out key-scoped stores.
type Service interface {
	NewStore(prefix, id string) Store
}

// Store persists one JSON document under one key.
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
	Delete() error
}

// ErrNotExists is returned by Load when nothing was saved under the key.
var ErrNotExists = fmt.Errorf("persistence data not exists")

// JSONFileService keeps each store as a JSON file under baseDir.
type JSONFileService struct {
	baseDir string
}

func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{baseDir: baseDir}
}

func (s *JSONFileService) NewStore(prefix, id string) Store {
	return &jsonFileStore{
		service: s,
		key:     fmt.Sprintf("%s:%s", prefix, id),
	}
}

type jsonFileStore struct {
	service *JSONFileService
	key     string
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *jsonFileStore) filePath() string {
	safe := keySanitizer.ReplaceAllString(s.key, "_")
	return filepath.Join(s.service.baseDir, safe+".json")
}

func (s *jsonFileStore) Save(data interface{}) error {
	logger.Debugf("[persistence] save key=%s", s.key)
	if err := os.MkdirAll(s.service.baseDir, 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so a crash never leaves a torn file.
	path := s.filePath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *jsonFileStore) Load(data interface{}) error {
	logger.Debugf("[persistence] load key=%s", s.key)
	b, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return err
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}

func (s *jsonFileStore) Delete() error {
	logger.Debugf("[persistence] delete key=%s", s.key)
	err := os.Remove(s.filePath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
