package storage

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
)

const (
	// LoadPath serves the stored document
	LoadPath = "/pdf/load"
	// SavePath accepts a multipart upload in the "file" field
	SavePath = "/pdf/save"

	saveMessage = "PDF saved successfully."
)

// HandlerConfig configures the storage HTTP routes
type HandlerConfig struct {
	// CORSOrigin is echoed in Access-Control-Allow-Origin; empty disables CORS headers
	CORSOrigin string
	// MaxUploadSize bounds the request body of a save (in bytes)
	MaxUploadSize int64
	Logger        *log.Logger
}

type messageResponse struct {
	Message string `json:"message"`
}

type handler struct {
	store  Store
	config HandlerConfig
}

// NewHandler returns the storage routes mounted on a new mux
func NewHandler(store Store, config HandlerConfig) http.Handler {
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}
	mux := http.NewServeMux()
	Register(mux, store, config)
	return mux
}

// Register mounts the storage routes on mux
func Register(mux *http.ServeMux, store Store, config HandlerConfig) {
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}
	h := &handler{store: store, config: config}
	mux.HandleFunc(LoadPath, h.cors(h.load))
	mux.HandleFunc(SavePath, h.cors(h.save))
}

func (h *handler) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.config.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", h.config.CORSOrigin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (h *handler) load(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := h.store.Load(r.Context())
	if err != nil {
		if errors.Is(err, ErrEmptySlot) {
			writeMessage(w, http.StatusNotFound, "no document stored")
			return
		}
		h.config.Logger.Printf("Error loading stored document: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(data)
	}
}

func (h *handler) save(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.config.MaxUploadSize > 0 {
		// Allow for multipart framing around the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+64*1024)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeMessage(w, http.StatusBadRequest, "upload too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	if h.config.MaxUploadSize > 0 && header.Size > h.config.MaxUploadSize {
		writeMessage(w, http.StatusBadRequest, "upload too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	if err := h.store.Save(r.Context(), data); err != nil {
		h.config.Logger.Printf("Error saving uploaded document %q: %v", header.Filename, err)
		writeMessage(w, http.StatusInternalServerError, "failed to save document")
		return
	}

	writeMessage(w, http.StatusOK, saveMessage)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(messageResponse{Message: message})
}
