package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// ReportFileStore keeps fetched report attachments on disk under their
// content hash, so the same export mailed twice lands in one file.
type ReportFileStore struct {
	dir string
}

func NewReportFileStore(dir string) *ReportFileStore {
	return &ReportFileStore{dir: dir}
}

func (s *ReportFileStore) Save(fileName string, content []byte) (path, hash string, err error) {
	sum := sha256.Sum256(content)
	hash = hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", "", err
	}

	path = filepath.Join(s.dir, hash+strings.ToLower(filepath.Ext(fileName)))
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return "", "", err
		}
	}
	return path, hash, nil
}
