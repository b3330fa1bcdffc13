// Package backup archives the client's local state (the SQLite state
// database and, optionally, the config file) into a tar.gz and restores it.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// StateName is the archive entry of the state database.
const StateName = "state.db"

// ErrUnsafeEntry is returned for archive entries that escape the target
// directory.
var ErrUnsafeEntry = errors.New("backup: unsafe archive entry")

// Backup writes the state database at dbPath, and configPath when it
// exists, to w. The WAL is checkpointed first so the copied file is
// self-contained.
func Backup(ctx context.Context, dbPath, configPath string, w io.Writer) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("state database: %w", err)
	}
	if err := checkpoint(ctx, dbPath); err != nil {
		return fmt.Errorf("checkpoint state database: %w", err)
	}

	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	if err := addFile(tw, dbPath, StateName); err != nil {
		return fmt.Errorf("archive state database: %w", err)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := addFile(tw, configPath, filepath.Base(configPath)); err != nil {
				return fmt.Errorf("archive config: %w", err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

// Restore unpacks an archive written by Backup into dir and returns the
// paths it wrote.
func Restore(r io.Reader, dir string) ([]string, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var written []string
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Clean(hdr.Name)
		if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
			return written, fmt.Errorf("%w: %q", ErrUnsafeEntry, hdr.Name)
		}
		target := filepath.Join(dir, name)
		if err := writeFile(target, tr); err != nil {
			return written, fmt.Errorf("restore %s: %w", name, err)
		}
		written = append(written, target)
	}
	if len(written) == 0 {
		return nil, errors.New("archive is empty")
	}
	return written, nil
}

func checkpoint(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
