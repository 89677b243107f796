package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Solverr fetches pages through a FlareSolverr instance, which solves
// Cloudflare challenges in a managed browser. One upstream browser
// session is created lazily and reused across requests for cookie
// continuity; Close destroys it.
type Solverr struct {
	apiURL  string
	client  *http.Client
	timeout time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	session string
}

type solverrRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url,omitempty"`
	Session    string `json:"session,omitempty"`
	MaxTimeout int    `json:"maxTimeout,omitempty"`
}

type solverrResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Session  string `json:"session"`
	Solution struct {
		URL      string `json:"url"`
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

// NewSolverr points at a FlareSolverr API, e.g. http://localhost:8191/v1.
func NewSolverr(apiURL string, timeout time.Duration, logger *log.Logger) *Solverr {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[FETCH] ", log.LstdFlags)
	}
	return &Solverr{
		apiURL:  apiURL,
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch solves the challenge for url, then extracts the readable
// content unless opts.Raw is set. A non-ok FlareSolverr status is an
// error; this layer does not retry. opts.Timeout bounds the upstream
// solve for this request only.
func (s *Solverr) Fetch(ctx context.Context, url string, opts Options) (Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	// Headroom past the solver's own budget, as its API recommends.
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	session, err := s.ensureSession(ctx)
	if err != nil {
		return Result{}, err
	}

	resp, err := s.call(ctx, solverrRequest{
		Cmd:        "request.get",
		URL:        url,
		Session:    session,
		MaxTimeout: int(timeout / time.Millisecond),
	})
	if err != nil {
		return Result{}, err
	}
	if resp.Status != "ok" {
		return Result{}, fmt.Errorf("flaresolverr: %s", resp.Message)
	}

	if opts.Raw {
		return Result{
			URL:    url,
			HTML:   resp.Solution.Response,
			Status: resp.Solution.Status,
		}, nil
	}

	ext, err := Extract(resp.Solution.Response, url)
	if err != nil {
		return Result{}, err
	}
	return Result{
		URL:    url,
		Title:  ext.Title,
		Text:   ext.Text,
		HTML:   ext.HTML,
		Status: resp.Solution.Status,
	}, nil
}

// Close destroys the upstream browser session, if one was created.
func (s *Solverr) Close() error {
	s.mu.Lock()
	session := s.session
	s.session = ""
	s.mu.Unlock()
	if session == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := s.call(ctx, solverrRequest{Cmd: "sessions.destroy", Session: session})
	return err
}

func (s *Solverr) ensureSession(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != "" {
		return s.session, nil
	}
	resp, err := s.call(ctx, solverrRequest{Cmd: "sessions.create"})
	if err != nil {
		return "", err
	}
	if resp.Status != "ok" || resp.Session == "" {
		return "", fmt.Errorf("flaresolverr session create: %s", resp.Message)
	}
	s.session = resp.Session
	s.logger.Printf("created flaresolverr session %s", s.session)
	return s.session, nil
}

func (s *Solverr) call(ctx context.Context, req solverrRequest) (*solverrResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flaresolverr request: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flaresolverr: unexpected status %d", httpResp.StatusCode)
	}

	var out solverrResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("flaresolverr response decode: %w", err)
	}
	return &out, nil
}

var _ Fetcher = (*Solverr)(nil)
