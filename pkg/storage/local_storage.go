package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"go.uber.org/zap"
)

const (
	localParamsFileName     = "local_params.json"
	localParamsTempFileName = "local_params.json.tmp"
)

// LocalStorage keeps local parameters in a JSON file inside a config folder.
type LocalStorage struct {
	logger    *zap.Logger
	localPath string
	folder    *configdir.Config
	params    map[string]string
	mutex     *sync.RWMutex
}

func NewLocalStorage(localPath string, logger *zap.Logger) *LocalStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStorage{
		logger:    logger.Named("storage"),
		localPath: localPath,
		params:    make(map[string]string),
		mutex:     &sync.RWMutex{},
	}
}

func (s *LocalStorage) Initialize() error {
	if s.localPath == "" {
		return errors.New("local storage path is empty")
	}

	configDirs := configdir.New("", "")
	configDirs.LocalPath = s.localPath
	folders := configDirs.QueryFolders(configdir.Local)
	if len(folders) == 0 {
		return errors.New("failed to find storage folder")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.folder = folders[0]
	err := s.readParams()

	s.logger.Info("storage initialized",
		zap.String("path", s.folder.Path),
		zap.Int("params", len(s.params)),
		zap.Error(err),
	)

	return err
}

func (s *LocalStorage) readParams() error {
	if !s.folder.Exists(localParamsFileName) {
		s.logger.Info("no local params found")
		return nil
	}

	data, err := s.folder.ReadFile(localParamsFileName)
	if err != nil {
		return errors.Wrap(err, "failed to read local params")
	}

	params := make(map[string]string)
	err = json.Unmarshal(data, &params)
	if err != nil {
		// Losing the enabled-features record silently would let features
		// be advertised as disabled after restart.
		return errors.Wrap(err, "failed to parse local params")
	}

	s.params = params
	return nil
}

func (s *LocalStorage) saveParams() error {
	data, err := json.Marshal(s.params)
	if err != nil {
		return errors.Wrap(err, "failed to marshal local params")
	}

	err = s.writeTempFile(data)
	if err != nil {
		return errors.Wrap(err, "failed to save local params")
	}

	// Rename replaces the file in one step, a crash leaves either version.
	err = os.Rename(
		filepath.Join(s.folder.Path, localParamsTempFileName),
		filepath.Join(s.folder.Path, localParamsFileName),
	)
	if err != nil {
		return errors.Wrap(err, "failed to replace local params")
	}

	return nil
}

func (s *LocalStorage) writeTempFile(data []byte) error {
	file, err := s.folder.Create(localParamsTempFileName)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err == nil {
		err = file.Sync()
	}
	closeErr := file.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func (s *LocalStorage) LocalParam(_ context.Context, key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.folder == nil {
		return "", false, ErrNotInitialized
	}

	value, ok := s.params[key]
	return value, ok, nil
}

func (s *LocalStorage) SetLocalParam(_ context.Context, key string, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.folder == nil {
		return ErrNotInitialized
	}

	previous, existed := s.params[key]
	s.params[key] = value

	err := s.saveParams()
	if err != nil {
		if existed {
			s.params[key] = previous
		} else {
			delete(s.params, key)
		}
		return err
	}

	return nil
}

func (s *LocalStorage) Close() error {
	return nil
}
