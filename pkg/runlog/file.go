package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentstation/stocksync/pkg/constants"
	"github.com/agentstation/stocksync/pkg/errors"
)

const (
	filePrefix = "sync_"
	fileSuffix = ".json"
)

// FileName is the artifact name derived from the run timestamp.
func (l *Log) FileName() string {
	return filePrefix + l.Timestamp.Format(constants.RunLogTimeLayout) + fileSuffix
}

// Save writes the log to dir and returns the file path.
func (l *Log) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return "", errors.WrapIO("create", dir, err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", errors.WrapParse("json", l.FileName(), err)
	}
	path := filepath.Join(dir, l.FileName())
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return "", errors.WrapIO("write", path, err)
	}
	return path, nil
}

// Load reads a saved log.
func Load(path string) (*Log, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user supplied on purpose
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("run log", path)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	l := &Log{now: time.Now, current: -1}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return l, nil
}

// Latest returns the path of the newest run log in dir.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return "", errors.WrapIO("list", dir, err)
	}
	if len(matches) == 0 {
		return "", errors.NewNotFoundError("run log", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
