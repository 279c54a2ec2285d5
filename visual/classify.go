package visual

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"themeqa/model"
)

// HashFile returns the hex SHA-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Classify compares a freshly captured image with its baseline by content
// hash. The returned hash is that of the latest image.
func Classify(latestPath, baselinePath string) (model.VisualStatus, string, error) {
	latest, err := HashFile(latestPath)
	if err != nil {
		return "", "", err
	}

	baseline, err := HashFile(baselinePath)
	if errors.Is(err, os.ErrNotExist) {
		return model.VisualNew, latest, nil
	}
	if err != nil {
		return "", "", err
	}

	if latest == baseline {
		return model.VisualUnchanged, latest, nil
	}
	return model.VisualChanged, latest, nil
}
