package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
	"marketdata-service/internal/infrastructure/httpx"
)

// Store persists the fallback snapshot as four JSON files in a GitHub
// repository. Reads go through the raw content host; writes go through
// the contents API and need a token.
type Store struct {
	Client *httpx.Client
	Owner  string
	Repo   string
	Branch string

	// RawBase and APIBase exist so tests can point the store at a local
	// server. Empty means the public GitHub hosts.
	RawBase string
	APIBase string
}

var _ application.SnapshotTransport = (*Store)(nil)

const (
	fileStocks        = "fallback-stocks.json"
	fileETFs          = "fallback-etfs.json"
	fileMutualFunds   = "fallback-mutual-funds.json"
	fileExchangeRates = "fallback-exchange-rates.json"
)

func (s *Store) rawBase() string {
	if s.RawBase != "" {
		return s.RawBase
	}
	return "https://raw.githubusercontent.com"
}

func (s *Store) apiBase() string {
	if s.APIBase != "" {
		return s.APIBase
	}
	return "https://api.github.com"
}

func (s *Store) rawURL(file string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", s.rawBase(), s.Owner, s.Repo, s.Branch, file)
}

func (s *Store) contentsURL(file string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.apiBase(), s.Owner, s.Repo, file)
}

func (s *Store) CanWrite() bool { return s.Client != nil && s.Client.Token != "" }

// FetchAll retrieves the four partition files in parallel. A missing file
// yields an empty partition; any other failure fails the whole fetch.
func (s *Store) FetchAll(ctx context.Context) (domain.FallbackSnapshot, error) {
	snap := domain.EmptySnapshot()
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for file, assign := range map[string]func(map[string]domain.QuoteRecord){
		fileStocks:        func(m map[string]domain.QuoteRecord) { snap.Stocks = m },
		fileETFs:          func(m map[string]domain.QuoteRecord) { snap.ETFs = m },
		fileMutualFunds:   func(m map[string]domain.QuoteRecord) { snap.MutualFunds = m },
		fileExchangeRates: func(m map[string]domain.QuoteRecord) { snap.ExchangeRates = m },
	} {
		file, assign := file, assign
		g.Go(func() error {
			part, err := s.fetchPartition(ctx, file)
			if err != nil {
				return err
			}
			mu.Lock()
			assign(part)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.FallbackSnapshot{}, err
	}
	return snap, nil
}

func (s *Store) fetchPartition(ctx context.Context, file string) (map[string]domain.QuoteRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.rawURL(file), nil)
	if err != nil {
		return nil, err
	}
	part := map[string]domain.QuoteRecord{}
	if err := s.Client.DoJSON(ctx, req, &part); err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return map[string]domain.QuoteRecord{}, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", file, err)
	}
	return part, nil
}

// WriteAll pushes all four partition files in parallel via the contents
// API, fetching each file's current sha first so the update applies.
func (s *Store) WriteAll(ctx context.Context, snap domain.FallbackSnapshot) error {
	g, ctx := errgroup.WithContext(ctx)
	for file, part := range map[string]map[string]domain.QuoteRecord{
		fileStocks:        snap.Stocks,
		fileETFs:          snap.ETFs,
		fileMutualFunds:   snap.MutualFunds,
		fileExchangeRates: snap.ExchangeRates,
	} {
		file, part := file, part
		g.Go(func() error { return s.writePartition(ctx, file, part) })
	}
	return g.Wait()
}

func (s *Store) writePartition(ctx context.Context, file string, part map[string]domain.QuoteRecord) error {
	if part == nil {
		part = map[string]domain.QuoteRecord{}
	}
	payload, err := json.MarshalIndent(part, "", "  ")
	if err != nil {
		return err
	}

	sha, err := s.currentSHA(ctx, file)
	if err != nil {
		return fmt.Errorf("sha %s: %w", file, err)
	}

	body := struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch,omitempty"`
		SHA     string `json:"sha,omitempty"`
	}{
		Message: "update " + file,
		Content: base64.StdEncoding.EncodeToString(payload),
		Branch:  s.Branch,
		SHA:     sha,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentsURL(file), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.Client.DoJSON(ctx, req, nil); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}

// currentSHA returns "" when the file does not exist yet.
func (s *Store) currentSHA(ctx context.Context, file string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.contentsURL(file), nil)
	if err != nil {
		return "", err
	}
	var meta struct {
		SHA string `json:"sha"`
	}
	if err := s.Client.DoJSON(ctx, req, &meta); err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	return meta.SHA, nil
}
