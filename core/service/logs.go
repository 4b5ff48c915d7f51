package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"nfcunha/deckhand/core/models"
)

// FormatLogs drops blank lines and separates each line's leading timestamp token from
// the message by exactly one space.
func FormatLogs(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		end := strings.IndexFunc(line, unicode.IsSpace)
		if end < 0 {
			out = append(out, line)
			continue
		}
		out = append(out, line[:end]+" "+strings.TrimLeftFunc(line[end:], unicode.IsSpace))
	}

	return strings.Join(out, "\n")
}

// CreateLogArchive writes a ZIP archive holding the formatted bulk logs of a container.
func (s *ContainerService) CreateLogArchive(ctx context.Context, containerID string, writer io.Writer) error {
	detail, err := s.runtime.InspectContainer(ctx, containerID)
	if err != nil {
		return err
	}

	logs, err := s.GetLogs(ctx, containerID)
	if err != nil {
		return err
	}

	zipWriter := zip.NewWriter(writer)

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("%s_%s.log", detail.Name, timestamp)

	fileWriter, err := zipWriter.Create(filename)
	if err != nil {
		zipWriter.Close()
		return fmt.Errorf("failed to create zip entry: %w", err)
	}

	if _, err := io.WriteString(fileWriter, logs); err != nil {
		zipWriter.Close()
		return fmt.Errorf("failed to write logs to zip: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip archive: %w", err)
	}

	s.logger.WithField("container_id", containerID).Debugf("Created log archive for %s (%d bytes)", detail.Name, len(logs))
	return nil
}
