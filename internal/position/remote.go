package position

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RemoteStore keeps positions and bookmarks in an HTTP key/value node
// service. Keys live under folio/<book>/.
type RemoteStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	backoff    func(int) time.Duration
}

func NewRemoteStore(baseURL, apiKey string) *RemoteStore {
	return &RemoteStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: Backoff,
	}
}

// nodeRequest is the body for PUT /kv/{key}.
type nodeRequest struct {
	Value  any    `json:"value"`
	Source string `json:"source,omitempty"`
}

// node is a stored value as returned by GET /kv/{key} and prefix scans.
type node struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

func positionKey(bookID string) string {
	return "folio/" + url.PathEscape(bookID) + "/position"
}

func bookmarksKey(bookID string) string {
	return "folio/" + url.PathEscape(bookID) + "/bookmarks"
}

func (s *RemoteStore) SavePosition(ctx context.Context, p Position) error {
	return s.putNode(ctx, positionKey(p.BookID), p)
}

func (s *RemoteStore) LoadPosition(ctx context.Context, bookID string) (Position, error) {
	var p Position
	n, err := s.getNode(ctx, positionKey(bookID))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(n.Value, &p); err != nil {
		return p, fmt.Errorf("decode position: %w", err)
	}
	return p, nil
}

func (s *RemoteStore) AddBookmark(ctx context.Context, b Bookmark) error {
	return s.putNode(ctx, bookmarksKey(b.BookID)+"/"+url.PathEscape(b.ID), b)
}

func (s *RemoteStore) ListBookmarks(ctx context.Context, bookID string) ([]Bookmark, error) {
	nodes, err := s.listChildren(ctx, bookmarksKey(bookID))
	if err != nil {
		return nil, err
	}
	out := make([]Bookmark, 0, len(nodes))
	for _, n := range nodes {
		var b Bookmark
		if err := json.Unmarshal(n.Value, &b); err != nil {
			return nil, fmt.Errorf("decode bookmark %s: %w", n.Key, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *RemoteStore) DeleteBookmark(ctx context.Context, bookID, id string) error {
	return s.deleteNode(ctx, bookmarksKey(bookID)+"/"+url.PathEscape(id))
}

// Close releases idle connections.
func (s *RemoteStore) Close() {
	s.httpClient.CloseIdleConnections()
}

func (s *RemoteStore) putNode(ctx context.Context, key string, value any) error {
	body, err := json.Marshal(nodeRequest{Value: value, Source: "folio"})
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	return retry(ctx, s.backoff, func() error {
		req, err := s.newRequest(ctx, http.MethodPut, s.baseURL+"/kv/"+key, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("put node: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return statusError("put node", key, resp)
		}
		return nil
	})
}

func (s *RemoteStore) getNode(ctx context.Context, key string) (*node, error) {
	var n node
	err := retry(ctx, s.backoff, func() error {
		req, err := s.newRequest(ctx, http.MethodGet, s.baseURL+"/kv/"+key, nil)
		if err != nil {
			return err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("get node: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			return statusError("get node", key, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
			return fmt.Errorf("decode node: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *RemoteStore) deleteNode(ctx context.Context, key string) error {
	return retry(ctx, s.backoff, func() error {
		req, err := s.newRequest(ctx, http.MethodDelete, s.baseURL+"/kv/"+key, nil)
		if err != nil {
			return err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("delete node: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return statusError("delete node", key, resp)
		}
		return nil
	})
}

func (s *RemoteStore) listChildren(ctx context.Context, key string) ([]node, error) {
	var result struct {
		Nodes []node `json:"nodes"`
	}
	err := retry(ctx, s.backoff, func() error {
		req, err := s.newRequest(ctx, http.MethodGet, s.baseURL+"/kv/"+key+"/*", nil)
		if err != nil {
			return err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("list children: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return statusError("list children", key, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode children: %w", err)
		}
		return nil
	})
	return result.Nodes, err
}

func (s *RemoteStore) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	return req, nil
}

func statusError(op, key string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{Op: op, Key: key, Status: resp.StatusCode, Body: string(body)}
}
