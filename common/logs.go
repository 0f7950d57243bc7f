package common

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ClearLogs truncates the active log file and removes every rotated backup.
func (l *AppLogger) ClearLogs() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logDir == "" {
		return nil
	}

	var errs []error
	if l.logFile != nil {
		if err := l.logFile.Truncate(0); err != nil {
			errs = append(errs, WrapError(err, "truncate active log"))
		}
	}
	for _, path := range rotatedBackups(l.logDir) {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExportLogs writes every log file into a zip archive at path. Entries are
// placed under a top-level directory named stem.
func (l *AppLogger) ExportLogs(path, stem string) error {
	l.mu.Lock()
	dir := l.logDir
	l.mu.Unlock()
	if dir == "" {
		return fmt.Errorf("file logging is not enabled")
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return WrapError(err, "create log archive")
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	entries, err := os.ReadDir(dir)
	if err != nil {
		zw.Close()
		return WrapError(err, "read log directory")
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		if err := addToZip(zw, filepath.Join(dir, entry.Name()), stem+"/"+entry.Name()); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return WrapError(err, "finish log archive")
	}
	return out.Close()
}

func addToZip(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
