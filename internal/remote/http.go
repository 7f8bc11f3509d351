package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/staysync/internal/model"
)

// maxRetryAfter ограничивает ожидание по заголовку Retry-After.
const maxRetryAfter = 3 * time.Second

// HTTPStore работает с REST-сервисом документов:
// GET {base}/collections/{name} возвращает массив объектов,
// PUT {base}/collections/{name} принимает пакет объектов и сохраняет их по полю id.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPStore создаёт клиент REST-хранилища по указанному адресу.
func NewHTTPStore(baseURL string) *HTTPStore {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &HTTPStore{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *HTTPStore) collectionURL(c model.Collection) string {
	return fmt.Sprintf("%s/collections/%s", s.baseURL, url.PathEscape(string(c)))
}

// Ping проверяет доступность сервиса.
func (s *HTTPStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// Close ничего не делает: HTTP-клиент не держит ресурсов.
func (s *HTTPStore) Close() error { return nil }

// Scan загружает коллекцию. Ответ 204 или 404 означает пустую коллекцию.
func (s *HTTPStore) Scan(ctx context.Context, c model.Collection) ([]model.Document, error) {
	resp, err := s.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.collectionURL(c), nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		return []model.Document{}, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	docs := make([]model.Document, 0, len(items))
	for _, raw := range items {
		d, err := model.DecodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", c, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Upsert отправляет все документы одним запросом.
func (s *HTTPStore) Upsert(ctx context.Context, c model.Collection, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	items := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.Body)
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	resp, err := s.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.collectionURL(c), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// do выполняет запрос и один раз повторяет его после ответа 429 с учётом Retry-After.
func (s *HTTPStore) do(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt > 0 {
			return resp, nil
		}

		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func parseRetryAfter(v string) time.Duration {
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	d := time.Duration(seconds) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
