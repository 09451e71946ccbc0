package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"arenaworks.dev/internal/persistence/snapshot"
)

type DailyArchiveMeta struct {
	Day       string `json:"day"`
	Snapshot  string `json:"snapshot"`
	TakenAt   string `json:"taken_at"`
	Arenas    int    `json:"arenas"`
	Groups    int    `json:"groups"`
	CreatedAt string `json:"created_at"`
}

// ArchiveDaily copies a records snapshot into `dataDir/archives/<YYYY-MM-DD>/`
// the first time it is called on a given UTC day. It returns the archived path
// and archived=true when a copy was made.
func ArchiveDaily(dataDir, snapshotPath string, h snapshot.Header, now time.Time) (archivedPath string, archived bool, err error) {
	day := now.UTC().Format("2006-01-02")
	archiveDir := filepath.Join(dataDir, "archives", day)
	metaPath := filepath.Join(archiveDir, "meta.json")
	if _, err := os.Stat(metaPath); err == nil {
		return "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := DailyArchiveMeta{
		Day:       day,
		Snapshot:  filepath.Base(dst),
		TakenAt:   h.TakenAt,
		Arenas:    h.Arenas,
		Groups:    h.Groups,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return "", false, fmt.Errorf("write meta: %w", err)
	}
	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
