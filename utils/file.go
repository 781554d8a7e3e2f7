package utils

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalImageStore saves prize images under a directory served by the app
// itself. It stands in for R2 on single-instance deployments.
type LocalImageStore struct {
	dir       string
	urlPrefix string
}

func NewLocalImageStore(dir, urlPrefix string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalImageStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// UploadFile saves the file at key inside the upload directory and returns
// the URL it is served from.
func (s *LocalImageStore) UploadFile(_ context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	rel := filepath.Clean("/" + key)[1:]
	if rel == "" {
		return "", errors.Errorf("invalid key %q", key)
	}
	if err := SaveFile(fileHeader, filepath.Join(s.dir, rel)); err != nil {
		return "", errors.Wrap(err, "failed to save file")
	}
	return s.urlPrefix + "/" + filepath.ToSlash(rel), nil
}

// SaveFile saves the uploaded file to the given destination path
func SaveFile(fileHeader *multipart.FileHeader, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, file)
	return err
}
