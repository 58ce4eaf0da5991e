package portal

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/browser"
)

type downloadEvent struct {
	guid     string
	filename string
	begin    bool
	state    browser.DownloadProgressState
}

type completedDownload struct {
	guid     string
	filename string
}

// drain discards events left over from earlier downloads.
func drain(events <-chan downloadEvent) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

// awaitDownload waits for the first download that begins after a click to
// complete or be canceled.
func awaitDownload(ctx context.Context, events <-chan downloadEvent, row int, timeout time.Duration) (completedDownload, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var current completedDownload
	for {
		select {
		case <-ctx.Done():
			return completedDownload{}, &DownloadError{Row: row, Reason: "cancelled", Cause: ctx.Err()}
		case <-timer.C:
			return completedDownload{}, &DownloadError{Row: row, Reason: fmt.Sprintf("no download completed within %s", timeout)}
		case ev := <-events:
			if ev.begin {
				if current.guid == "" {
					current = completedDownload{guid: ev.guid, filename: ev.filename}
				}
				continue
			}
			if ev.guid != current.guid {
				continue
			}
			if ev.state == browser.DownloadProgressStateCanceled {
				return completedDownload{}, &DownloadError{Row: row, Reason: "canceled by browser"}
			}
			return current, nil
		}
	}
}

// safeFilename strips any directory part a server-suggested name may carry.
func safeFilename(name, guid string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == "" {
		return guid + ".pdf"
	}
	return base
}
