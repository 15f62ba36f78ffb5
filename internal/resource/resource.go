// Package resource implements the upload-file handler: a straightforward
// base64-decode-and-write helper.
package resource

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type UploadRequest struct {
	Filename        string `json:"filename"`
	Content         string `json:"content"`
	StorageLocation string `json:"storage_location"`
}

type UploadResult struct {
	Filename  string
	Path      string
	Size      int64
	Timestamp time.Time
}

// Save decodes req.Content and writes it under
// <storage_location>/.untethered/resources/<filename>. On a name
// collision the second upload becomes <stem>-<YYYYMMDDhhmmss>.<ext>.
func Save(req UploadRequest) (*UploadResult, error) {
	if req.Filename == "" || req.Content == "" || req.StorageLocation == "" {
		return nil, fmt.Errorf("missing required field")
	}

	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}

	dir := filepath.Join(req.StorageLocation, ".untethered", "resources")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating resource directory: %w", err)
	}

	filename := req.Filename
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(filename)
		stem := strings.TrimSuffix(filename, ext)
		filename = fmt.Sprintf("%s-%s%s", stem, time.Now().Format("20060102150405"), ext)
		path = filepath.Join(dir, filename)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing resource: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &UploadResult{Filename: filename, Path: path, Size: info.Size(), Timestamp: time.Now()}, nil
}

// List returns the filenames present under the resource directory for a
// given storage location.
func List(storageLocation string) ([]string, error) {
	dir := filepath.Join(storageLocation, ".untethered", "resources")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func Delete(storageLocation, filename string) error {
	path := filepath.Join(storageLocation, ".untethered", "resources", filename)
	return os.Remove(path)
}
