// Package file persists encoded outputs next to their destination through a
// temp file that is renamed into place.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/internal/codec"
)

// ResizedSuffix is appended to the source name for default output paths.
const ResizedSuffix = "_resized"

// SaveTemp writes data to a uuid-named file in dir and returns its path.
func SaveTemp(dir string, data []byte, extension string) (string, error) {
	path := filepath.Join(dir, "."+uuid.NewString()+extension+".tmp")

	log.Debug().Int("bytes", len(data)).Str("path", path).Msg("creating temp file")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("error creating temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		RemoveTemp(path)
		return "", fmt.Errorf("error writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		RemoveTemp(path)
		return "", fmt.Errorf("error syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		RemoveTemp(path)
		return "", fmt.Errorf("error closing temp file: %w", err)
	}

	return path, nil
}

// RemoveTemp deletes a temp file. Failures are logged, never returned.
func RemoveTemp(path string) {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("could not clean up temp file")
		return
	}
	log.Debug().Str("path", path).Msg("cleaned up temp file")
}

// WriteAtomic replaces path with data. Readers see either the old file or
// the complete new one.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	tmp, err := SaveTemp(dir, data, filepath.Ext(path))
	if err != nil {
		return err
	}
	defer RemoveTemp(tmp)

	if err := replace(tmp, path); err != nil {
		return fmt.Errorf("error moving output into place: %w", err)
	}

	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("wrote output")
	return nil
}

func replace(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

// ResizedName returns "<base>_resized<ext>" for a source file name, where
// ext follows format when the source extension does not already match it.
func ResizedName(name string, format codec.Format) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	if format != codec.FormatUnknown && codec.ParseFormat(ext) != format {
		ext = format.Extension()
	}
	return base + ResizedSuffix + ext
}

// ResizedPath is ResizedName applied to the file part of path.
func ResizedPath(path string, format codec.Format) string {
	return filepath.Join(filepath.Dir(path), ResizedName(filepath.Base(path), format))
}

// MatchExtension returns path with its extension replaced by format's when
// the two disagree. Paths already carrying a matching extension, in any
// spelling, are returned unchanged.
func MatchExtension(path string, format codec.Format) string {
	ext := filepath.Ext(path)
	if format == codec.FormatUnknown || codec.ParseFormat(ext) == format {
		return path
	}
	return strings.TrimSuffix(path, ext) + format.Extension()
}
