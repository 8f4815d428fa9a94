package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
)

// UploadFileName is the file name sent with composed uploads
const UploadFileName = "filled.pdf"

// HTTPStore implements Store against a remote storage service
type HTTPStore struct {
	baseURL string
	client  *http.Client
	maxSize int64
}

// NewHTTPStore creates a client for the service at baseURL. client may be nil.
func NewHTTPStore(baseURL string, client *http.Client, maxSize int64) (*HTTPStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid storage URL %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		maxSize: maxSize,
	}, nil
}

// Load fetches the document. Every failure is a LoadError.
func (s *HTTPStore) Load(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+LoadPath, nil)
	if err != nil {
		return nil, pdferrors.Load("failed to build load request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, pdferrors.Load("failed to fetch document", err).WithContext(req.URL.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, pdferrors.Load("no document stored", ErrEmptySlot).WithContext(req.URL.String())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pdferrors.Load(fmt.Sprintf("unexpected status %d", resp.StatusCode), errorMessage(resp.Body)).
			WithContext(req.URL.String())
	}

	body := io.Reader(resp.Body)
	if s.maxSize > 0 {
		body = io.LimitReader(resp.Body, s.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, pdferrors.Load("failed to read document", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, pdferrors.Load(fmt.Sprintf("document exceeds %d bytes", s.maxSize), nil)
	}
	return data, nil
}

// Save uploads data as multipart field "file". Every failure is a SaveTransportError.
func (s *HTTPStore) Save(ctx context.Context, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", UploadFileName)
	if err != nil {
		return pdferrors.SaveTransport("failed to build upload", err)
	}
	if _, err := part.Write(data); err != nil {
		return pdferrors.SaveTransport("failed to build upload", err)
	}
	if err := mw.Close(); err != nil {
		return pdferrors.SaveTransport("failed to build upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+SavePath, &buf)
	if err != nil {
		return pdferrors.SaveTransport("failed to build save request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return pdferrors.SaveTransport("failed to upload document", err).WithContext(req.URL.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pdferrors.SaveTransport(fmt.Sprintf("unexpected status %d", resp.StatusCode), errorMessage(resp.Body)).
			WithContext(req.URL.String())
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// errorMessage extracts {"message": ...} from an error body
func errorMessage(body io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return nil
	}
	var msg messageResponse
	if json.Unmarshal(raw, &msg) == nil && msg.Message != "" {
		return fmt.Errorf("%s", msg.Message)
	}
	return fmt.Errorf("%s", strings.TrimSpace(string(raw)))
}
