package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Fingerprint hashes the path, size and modification time of every file
// under root that the watcher would react to.
func (w *Watcher) Fingerprint() (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, ok := w.relative(p)
		if !ok {
			return nil
		}
		if w.ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(h, "%s\x00%d\x00%d\n", rel, info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (w *Watcher) currentFingerprint() string {
	fp, err := w.Fingerprint()
	if err != nil {
		w.logger.Warn("cannot fingerprint source tree", logfields.Error(err))
		return ""
	}
	return fp
}

func (w *Watcher) setFingerprint(fp string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fingerprint = fp
}

// pollOnce requests a rebuild when the tree fingerprint moved since the
// previous poll.
func (w *Watcher) pollOnce() {
	fp := w.currentFingerprint()
	if fp == "" {
		return
	}
	w.mu.Lock()
	changed := fp != w.fingerprint
	w.fingerprint = fp
	w.mu.Unlock()
	if changed {
		w.Request(TriggerPoll)
	}
}
