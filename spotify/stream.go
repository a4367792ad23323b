package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ozora-ogino/spotify-dlx/downloader"
)

// StreamClient fetches raw encoded audio from the local stream gateway,
// the external process that speaks the service's private protocol. It
// implements the pipeline's Fetcher capability.
type StreamClient struct {
	gatewayAddr string
	httpClient  *http.Client
	session     *Session
	logger      *zap.Logger
}

// NewStreamClient creates a StreamClient against the gateway at addr
// (host:port).
func NewStreamClient(addr string, session *Session, logger *zap.Logger) *StreamClient {
	return &StreamClient{
		gatewayAddr: addr,
		// No overall timeout: a track download legitimately runs for
		// minutes. Cancellation comes from the request context.
		httpClient: &http.Client{},
		session:    session,
		logger:     logger,
	}
}

// Fetch implements downloader.Fetcher. The returned length is -1 when the
// gateway does not announce one.
func (sc *StreamClient) Fetch(ctx context.Context, trackID string) (io.ReadCloser, int64, error) {
	quality := "high"
	if sc.session.Premium {
		quality = "very_high"
	}

	streamURL := fmt.Sprintf("http://%s/stream/%s?quality=%s", sc.gatewayAddr, trackID, quality)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, 0, downloader.NewPipelineErrorWithCause(downloader.ErrorTransient, "failed to build stream request", err)
	}
	req.Header.Set("Authorization", "Bearer "+sc.session.AccessToken)

	start := time.Now()
	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return nil, 0, downloader.NewPipelineErrorWithCause(downloader.ErrorTransient, "stream gateway unreachable", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil, 0, downloader.NewPipelineError(downloader.ErrorNotFound, "track not available: "+trackID)
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, 0, downloader.NewPipelineError(downloader.ErrorUnauthorized, "stream gateway rejected session")
		default:
			return nil, 0, downloader.NewPipelineError(downloader.ErrorTransient, "stream gateway returned "+resp.Status)
		}
	}

	sc.logger.Debug("stream opened",
		zap.String("track_id", trackID),
		zap.String("quality", quality),
		zap.Duration("latency", time.Since(start)),
	)
	return resp.Body, resp.ContentLength, nil
}
