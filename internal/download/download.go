package download

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"mailmind/pkg/types"
)

// progressReports caps how many times onProgress fires over one transfer.
const progressReports = 200

// Download fetches the model behind id into the models directory, resuming
// from a partial sidecar when one exists, and verifies the result against
// the catalog checksum. onProgress receives values in [0,1]; nil is fine.
//
// Failures are not retried here: the caller re-invokes Download and the
// sidecar makes the retry resume instead of restart.
func (m *Manager) Download(ctx context.Context, id string, onProgress func(float64)) error {
	info, ok := m.lookup(id)
	if !ok {
		return ErrModelNotFound(id)
	}

	// One in-flight download per id.
	m.mu.Lock()
	if _, active := m.cancels[id]; active {
		m.mu.Unlock()
		return ErrDownloadFailed("already downloading")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancels[id] = cancel
	m.mu.Unlock()
	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.cancels, id)
		m.mu.Unlock()
	}()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return ErrDownloadFailed(err.Error())
	}

	final := m.finalPath(info)
	partial := final + PartialSuffix

	// Short-circuit: a file already at the destination is re-verified, not
	// re-fetched. Only a failed verification (which deletes the file) falls
	// through to a fresh download.
	if _, err := os.Stat(final); err == nil {
		if info.SHA256 == "" {
			m.log.Warn().Str("model", info.ID).Msg("no checksum configured; accepting existing file unverified")
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateDownloaded, Progress: 1.0})
			report(onProgress, 1.0)
			return nil
		}
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateVerifying, Progress: 1.0})
		if err := VerifyIntegrity(final, info.SHA256); err == nil {
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateDownloaded, Progress: 1.0})
			report(onProgress, 1.0)
			return nil
		} else if !IsIntegrityCheckFailed(err) {
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
			return err
		}
		m.log.Warn().Str("model", info.ID).Msg("existing file failed verification; re-downloading")
	}

	var offset int64
	if st, err := os.Stat(partial); err == nil && st.Size() > 0 {
		offset = st.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
		return ErrDownloadFailed(err.Error())
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	m.setStatus(info.ID, types.DownloadStatus{State: types.StateDownloading, Progress: m.initialProgress(info, offset)})
	m.pub.Publish(Event{Name: "download_start", ModelID: info.ID, Fields: map[string]any{"offset": offset}})

	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateNotDownloaded})
			return ErrDownloadCancelled()
		}
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
		m.pub.Publish(Event{Name: "download_failed", ModelID: info.ID, Fields: map[string]any{"error": err.Error()}})
		return ErrDownloadFailed(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		err := ErrDownloadStatus(resp.StatusCode)
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
		m.pub.Publish(Event{Name: "download_failed", ModelID: info.ID, Fields: map[string]any{"status": resp.StatusCode}})
		return err
	}

	// The status code is the single authoritative resume signal: 200 to a
	// Range request means the server is sending the whole file, so stale
	// partial bytes must be discarded or they would prefix the fresh body.
	if offset > 0 && resp.StatusCode != http.StatusPartialContent {
		m.log.Info().Str("model", info.ID).Msg("server ignored range request; restarting from zero")
		if err := os.Remove(partial); err != nil && !os.IsNotExist(err) {
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
			return ErrDownloadFailed(err.Error())
		}
		offset = 0
	}

	total := resp.ContentLength
	if total > 0 {
		total += offset
	} else {
		total = info.SizeBytes
	}

	out, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
		return ErrDownloadFailed(err.Error())
	}
	if offset > 0 {
		if _, err := out.Seek(0, io.SeekEnd); err != nil {
			out.Close()
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
			return ErrDownloadFailed(err.Error())
		}
	}

	downloaded := offset
	step := total / progressReports
	if step < 1 {
		step = 1
	}
	lastReport := downloaded

	w := bufio.NewWriterSize(out, m.chunk)
	buf := make([]byte, m.chunk)
	for {
		if ctx.Err() != nil {
			// Cooperative checkpoint: flush what we have so the sidecar is
			// resumable, never promote it to the final path.
			_ = w.Flush()
			out.Close()
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateNotDownloaded})
			m.pub.Publish(Event{Name: "download_cancelled", ModelID: info.ID, Fields: map[string]any{"bytes": downloaded}})
			return ErrDownloadCancelled()
		}
		nr, rerr := resp.Body.Read(buf)
		if nr > 0 {
			if _, werr := w.Write(buf[:nr]); werr != nil {
				out.Close()
				m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: werr.Error()})
				return ErrDownloadFailed(werr.Error())
			}
			downloaded += int64(nr)
			bytesDownloaded.Add(float64(nr))
			if downloaded-lastReport >= step && total > 0 {
				lastReport = downloaded
				p := float64(downloaded) / float64(total)
				m.setStatus(info.ID, types.DownloadStatus{State: types.StateDownloading, Progress: p})
				report(onProgress, p)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = w.Flush()
			out.Close()
			if ctx.Err() != nil {
				m.setStatus(info.ID, types.DownloadStatus{State: types.StateNotDownloaded})
				m.pub.Publish(Event{Name: "download_cancelled", ModelID: info.ID, Fields: map[string]any{"bytes": downloaded}})
				return ErrDownloadCancelled()
			}
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: rerr.Error()})
			m.pub.Publish(Event{Name: "download_failed", ModelID: info.ID, Fields: map[string]any{"error": rerr.Error()}})
			return ErrDownloadFailed(rerr.Error())
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
		return ErrDownloadFailed(err.Error())
	}
	if err := out.Close(); err != nil {
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
		return ErrDownloadFailed(err.Error())
	}
	if err := os.Rename(partial, final); err != nil {
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
		return ErrDownloadFailed(err.Error())
	}

	if info.SHA256 == "" {
		// Deployment warning, never silent: an unverifiable catalog entry
		// should not exist.
		m.log.Warn().Str("model", info.ID).Msg("no checksum configured; skipping verification")
	} else {
		m.setStatus(info.ID, types.DownloadStatus{State: types.StateVerifying, Progress: 1.0})
		if err := VerifyIntegrity(final, info.SHA256); err != nil {
			m.setStatus(info.ID, types.DownloadStatus{State: types.StateFailed, Message: err.Error()})
			m.pub.Publish(Event{Name: "verify_failed", ModelID: info.ID, Fields: map[string]any{"error": err.Error()}})
			downloadsTotal.WithLabelValues("verify_failed").Inc()
			return err
		}
	}

	m.setStatus(info.ID, types.DownloadStatus{State: types.StateDownloaded, Progress: 1.0})
	report(onProgress, 1.0)
	m.pub.Publish(Event{Name: "download_done", ModelID: info.ID, Fields: map[string]any{"bytes": downloaded}})
	downloadsTotal.WithLabelValues("ok").Inc()
	m.log.Info().Str("model", info.ID).Int64("bytes", downloaded).Msg("download complete")
	return nil
}

func (m *Manager) initialProgress(info types.ModelInfo, offset int64) float64 {
	if offset <= 0 || info.SizeBytes <= 0 {
		return 0
	}
	return float64(offset) / float64(info.SizeBytes)
}

func report(onProgress func(float64), p float64) {
	if onProgress != nil {
		onProgress(p)
	}
}
