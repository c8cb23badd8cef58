package executor

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/logger"
	"github.com/oshokin/fleet-updater/internal/service/common"
	"github.com/oshokin/fleet-updater/internal/version"
)

const (
	opDownload = "download archive"
	opExtract  = "extract archive"

	defaultExtractedFileMode os.FileMode = 0o644
)

var (
	errBadHTTPStatus = errors.New("unexpected http status")
	errUnsafePath    = errors.New("archive entry escapes target directory")
)

// replaceFromArchive downloads the release archive and unpacks it over dir.
// The temporary archive is removed whatever happens.
func (e *Executor) replaceFromArchive(ctx context.Context, entry *fleet.Entry, dir string, release fleet.Release) error {
	archivePath, err := e.download(ctx, e.archiveURL(entry, release))
	if archivePath != "" {
		defer func() {
			if removeErr := os.Remove(archivePath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				logger.Warnf(ctx, "Failed to remove temporary archive %s: %v", archivePath, removeErr)
			}
		}()
	}

	if err != nil {
		return err
	}

	logger.Infof(ctx, "Extracting %s into %s", release.Tag, dir)

	if err = ExtractFlat(archivePath, dir); err != nil {
		return fleet.Wrap(fleet.KindSync, opExtract, err)
	}

	return nil
}

// download stores the body of url in a temporary file and returns its path.
// The path is returned even on failure once the file exists, so the caller can remove it.
func (e *Executor) download(ctx context.Context, url string) (string, error) {
	logger.Infof(ctx, "Downloading %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fleet.Wrap(fleet.KindTransport, opDownload, err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fleet.Wrap(fleet.KindTransport, opDownload, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fleet.Wrap(fleet.KindSync, opDownload, fmt.Errorf("%s, %s: %w", url, resp.Status, errBadHTTPStatus))
	}

	file, err := os.CreateTemp(e.tempDir, "fleet-updater-*.zip")
	if err != nil {
		return "", fleet.Wrap(fleet.KindSync, opDownload, err)
	}

	path := file.Name()

	if _, err = io.Copy(file, resp.Body); err != nil {
		_ = file.Close()

		return path, fleet.Wrap(fleet.KindTransport, opDownload, err)
	}

	if err = file.Close(); err != nil {
		return path, fleet.Wrap(fleet.KindSync, opDownload, err)
	}

	return path, nil
}

// ExtractFlat unpacks the zip archive at archivePath into target, dropping the
// directory prefix shared by all entries. Release archives wrap everything in a
// "<repo>-<sha>/" directory; after flattening its contents land directly in target.
// Existing files are overwritten one by one, files absent from the archive are kept.
func ExtractFlat(archivePath, target string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		names = append(names, file.Name)
	}

	prefix := sharedDirectory(names)

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || strings.HasSuffix(file.Name, "/") {
			continue
		}

		relative := strings.TrimPrefix(file.Name, prefix)
		if relative == "" {
			continue
		}

		destination, err := safeJoin(target, relative)
		if err != nil {
			return err
		}

		if err = extractFile(file, destination); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(file *zip.File, destination string) error {
	source, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}

	defer func() {
		_ = source.Close()
	}()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = defaultExtractedFileMode
	}

	if err = common.ReplaceFile(destination, source, mode); err != nil {
		return fmt.Errorf("write %s: %w", file.Name, err)
	}

	return nil
}

// sharedDirectory returns the longest common prefix of names cut back to the
// last "/", or an empty string when the names share no directory.
func sharedDirectory(names []string) string {
	if len(names) == 0 {
		return ""
	}

	prefix := names[0]

	for _, name := range names[1:] {
		for !strings.HasPrefix(name, prefix) {
			prefix = prefix[:len(prefix)-1]
		}

		if prefix == "" {
			return ""
		}
	}

	index := strings.LastIndex(prefix, "/")
	if index < 0 {
		return ""
	}

	return prefix[:index+1]
}

// safeJoin resolves a slash separated archive name below target.
func safeJoin(target, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%s: %w", name, errUnsafePath)
	}

	destination := filepath.Join(target, filepath.FromSlash(name))

	relative, err := filepath.Rel(target, destination)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	if relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", name, errUnsafePath)
	}

	return destination, nil
}
