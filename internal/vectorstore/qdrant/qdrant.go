package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"paperpal/internal/domain"
	"paperpal/internal/vectorstore"
)

const (
	upsertBatch = 256
	scrollPage  = 256
)

// Storage is a minimal REST client to Qdrant. Each location is a collection
// using cosine distance.
type Storage struct {
	url    string
	apiKey string
	prefix string
	client *http.Client
}

type Config struct {
	URL    string
	APIKey string
	// Prefix is prepended to locations to form collection names.
	Prefix  string
	// Timeout bounds each request; zero means none.
	Timeout time.Duration
}

func NewStorage(cfg Config) *Storage {
	return &Storage{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		prefix: cfg.Prefix,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *Storage) collectionURL(location string) string {
	return fmt.Sprintf("%s/collections/%s", s.url, url.PathEscape(s.prefix+location))
}

// PointID derives a stable point id from location and insertion position.
func PointID(location string, seq int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(location+"#"+strconv.Itoa(seq))).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Save drops and recreates the collection, then upserts every record.
func (s *Storage) Save(ctx context.Context, location string, ix *vectorstore.Index) error {
	if err := vectorstore.ValidateLocation(location); err != nil {
		return err
	}
	if err := ix.Validate(); err != nil {
		return err
	}
	coll := s.collectionURL(location)
	status, err := s.do(ctx, http.MethodDelete, coll, nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("qdrant DELETE %s failed: %d", coll, status)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     ix.Dimension,
			"distance": "Cosine",
		},
	}
	if err := s.putJSON(ctx, coll, body); err != nil {
		return err
	}
	for lo := 0; lo < len(ix.Records); lo += upsertBatch {
		hi := lo + upsertBatch
		if hi > len(ix.Records) {
			hi = len(ix.Records)
		}
		points := make([]point, 0, hi-lo)
		for i := lo; i < hi; i++ {
			r := ix.Records[i]
			points = append(points, point{
				ID:     PointID(location, i),
				Vector: r.Embedding,
				Payload: map[string]any{
					"seq":         i,
					"chunk_id":    r.ID,
					"document_id": r.DocumentID,
					"text":        r.Text,
					"embedder":    ix.Embedder,
				},
			})
		}
		if err := s.putJSON(ctx, coll+"/points?wait=true", map[string]any{"points": points}); err != nil {
			return err
		}
	}
	return nil
}

type scrollResponse struct {
	Result struct {
		Points []struct {
			ID      any             `json:"id"`
			Vector  []float32       `json:"vector"`
			Payload scrolledPayload `json:"payload"`
		} `json:"points"`
		NextPageOffset any `json:"next_page_offset"`
	} `json:"result"`
}

type scrolledPayload struct {
	Seq        int    `json:"seq"`
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	Embedder   string `json:"embedder"`
}

// Load scrolls every point and restores insertion order from the seq payload.
func (s *Storage) Load(ctx context.Context, location string) (*vectorstore.Index, error) {
	ok, err := s.Exists(ctx, location)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrIndexNotFound
	}
	coll := s.collectionURL(location)
	ix := &vectorstore.Index{}
	var offset any
	for {
		req := map[string]any{"limit": scrollPage, "with_payload": true, "with_vector": true}
		if offset != nil {
			req["offset"] = offset
		}
		var resp scrollResponse
		if err := s.postJSON(ctx, coll+"/points/scroll", req, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			ix.Embedder = p.Payload.Embedder
			ix.Records = append(ix.Records, domain.VectorRecord{
				ID:         p.Payload.ChunkID,
				DocumentID: p.Payload.DocumentID,
				Position:   p.Payload.Seq,
				Text:       p.Payload.Text,
				Embedding:  p.Vector,
			})
		}
		offset = resp.Result.NextPageOffset
		if offset == nil || len(resp.Result.Points) == 0 {
			break
		}
	}
	if len(ix.Records) == 0 {
		return nil, domain.ErrIndexNotFound
	}
	sort.SliceStable(ix.Records, func(i, j int) bool { return ix.Records[i].Position < ix.Records[j].Position })
	ix.Dimension = len(ix.Records[0].Embedding)
	if err := ix.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt index %s: %w", location, err)
	}
	return ix, nil
}

func (s *Storage) Exists(ctx context.Context, location string) (bool, error) {
	if err := vectorstore.ValidateLocation(location); err != nil {
		return false, err
	}
	coll := s.collectionURL(location)
	status, err := s.do(ctx, http.MethodGet, coll, nil, nil)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status >= 300:
		return false, fmt.Errorf("qdrant GET %s failed: %d", coll, status)
	}
	return true, nil
}

func (s *Storage) putJSON(ctx context.Context, url string, body any) error {
	status, err := s.do(ctx, http.MethodPut, url, body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %d", url, status)
	}
	return nil
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	status, err := s.do(ctx, http.MethodPost, url, body, out)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %d", url, status)
	}
	return nil
}

// do sends a JSON request and decodes a 2xx body into out when out is set.
func (s *Storage) do(ctx context.Context, method, url string, body any, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
