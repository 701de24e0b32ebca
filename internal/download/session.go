package download

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/downpour-dl/downpour/internal/util/ratelimiter"
)

// TransferSession drives the byte transfer of a single download run.
// One session corresponds to one start/resume invocation; the registry
// drops its handle as soon as the session publishes a non-Running
// state. Pause is cooperative: Stop signals the transfer loop, which
// honors the signal at the next chunk boundary so the partial file is
// never left mid-write.
type TransferSession struct {
	meta         Metadata
	offset       int64 // bytes already on disk when the run begins
	client       *http.Client
	userAgent    string
	bufSize      int
	limiter      *ratelimiter.Limiter
	publishEvery time.Duration
	rate         *RateTracker
	logger       *zap.Logger

	// publish delivers state updates to the registry entry. The final
	// publish of a run always carries a non-Running state.
	publish func(State)

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Stop signals the transfer loop to flush and pause after the current
// chunk. Safe to call multiple times and after the run has ended.
func (s *TransferSession) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once the session has published its final state.
func (s *TransferSession) Done() <-chan struct{} {
	return s.done
}

// run executes the transfer and publishes the terminal state. It is
// launched on its own goroutine by the registry.
func (s *TransferSession) run() {
	defer close(s.done)

	final := s.transfer()
	switch final.Kind {
	case KindComplete:
		s.logger.Info("download complete",
			zap.String("id", s.meta.ID.String()),
			zap.String("url", s.meta.URL))
	case KindPaused:
		s.logger.Info("download paused",
			zap.String("id", s.meta.ID.String()),
			zap.Int64("bytes_downloaded", final.BytesDownloaded))
	case KindError:
		s.logger.Error("download failed",
			zap.String("id", s.meta.ID.String()),
			zap.String("url", s.meta.URL),
			zap.String("cause", final.Err))
	}
	s.publish(final)
}

func (s *TransferSession) transfer() State {
	// A resume offset must agree with the partial file on disk; an
	// externally truncated or grown file cannot be silently resumed.
	if s.offset > 0 {
		if onDisk := fileSize(s.meta.FilePath); onDisk != s.offset {
			return Errored(s.offset, fmt.Errorf(
				"%w: partial file is %d bytes on disk, expected %d", ErrIO, onDisk, s.offset))
		}
	}

	req, err := http.NewRequest(http.MethodGet, s.meta.URL, nil)
	if err != nil {
		return Errored(s.offset, fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", s.offset))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Errored(s.offset, fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()

	switch {
	case s.offset == 0 && resp.StatusCode == http.StatusOK:
	case s.offset > 0 && resp.StatusCode == http.StatusPartialContent:
	default:
		return Errored(s.offset, fmt.Errorf(
			"%w: server answered %d to a request at offset %d",
			ErrRangeNotSatisfiable, resp.StatusCode, s.offset))
	}

	flags := os.O_CREATE | os.O_WRONLY
	if s.offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(s.meta.FilePath, flags, 0o644)
	if err != nil {
		return Errored(s.offset, fmt.Errorf("%w: %v", ErrIO, err))
	}
	defer file.Close()

	// Cap reads at the known content length so bytesDownloaded can
	// never exceed it, even against a misbehaving server.
	body := io.Reader(resp.Body)
	if s.meta.ContentLength > 0 {
		body = io.LimitReader(body, s.meta.ContentLength-s.offset)
	}

	downloaded := s.offset
	buf := make([]byte, s.bufSize)
	var lastPublish time.Time

	for {
		select {
		case <-s.stop:
			if err := file.Sync(); err != nil {
				return Errored(downloaded, fmt.Errorf("%w: %v", ErrIO, err))
			}
			return Paused(downloaded)
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return Errored(downloaded, fmt.Errorf("%w: %v", ErrIO, werr))
			}
			downloaded += int64(n)
			bps := s.rate.Sample(time.Now(), downloaded)
			if time.Since(lastPublish) >= s.publishEvery {
				s.publish(Running(downloaded, bps))
				lastPublish = time.Now()
			}
			// Throttling must stay pause-responsive, so the wait races
			// against the stop signal.
			if wait := s.limiter.Reserve(n); wait > 0 {
				select {
				case <-s.stop:
					if err := file.Sync(); err != nil {
						return Errored(downloaded, fmt.Errorf("%w: %v", ErrIO, err))
					}
					return Paused(downloaded)
				case <-time.After(wait):
				}
			}
		}
		if readErr != nil {
			// Both flavors of EOF count as end-of-stream; the byte
			// count decides between Complete and incomplete transfer.
			if readErr == io.EOF || errors.Is(readErr, io.ErrUnexpectedEOF) {
				break
			}
			return Errored(downloaded, fmt.Errorf("%w: %v", ErrNetwork, readErr))
		}
	}

	if err := file.Sync(); err != nil {
		return Errored(downloaded, fmt.Errorf("%w: %v", ErrIO, err))
	}
	if s.meta.ContentLength > 0 && downloaded < s.meta.ContentLength {
		return Errored(downloaded, fmt.Errorf(
			"%w: stream ended after %d of %d bytes",
			ErrIncompleteTransfer, downloaded, s.meta.ContentLength))
	}
	return Complete()
}
