package media

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Uploader pushes a locally staged file to the media host
type Uploader interface {
	// Upload the file at localPath and return its hosted URL
	// The staged file is consumed: removed on success
	Upload(ctx context.Context, localPath string) (string, error)
}

// StageFile writes an incoming multipart file to a temp location
// so the uploader can consume it as an ordinary local path
func StageFile(file multipart.File, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "mediatube-*"+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("error while staging upload. Err: %w", err)
	}
	defer tmp.Close() // nolint:errcheck

	_, err = io.Copy(tmp, file)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("error while staging upload. Err: %w", err)
	}

	return tmp.Name(), nil
}
