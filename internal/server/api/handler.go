// Package api is the public HTTP surface of the lifecycle service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/logging"
	"github.com/pockethour/image-sentinel/internal/netx"
	"github.com/pockethour/image-sentinel/internal/payment"
	"github.com/pockethour/image-sentinel/internal/server/models"
	"github.com/pockethour/image-sentinel/internal/server/services"
)

const (
	maxJSONBytes     = 16 << 10
	maxCallbackBytes = 64 << 10
	multipartSlack   = 1 << 20
)

// FileService is the part of services.FileService the handlers use.
type FileService interface {
	Upload(ctx context.Context, in services.UploadInput) (*models.FileRecord, error)
	Get(ctx context.Context, id string) (*models.FileRecord, error)
	Count(ctx context.Context) (int64, error)
	Process(ctx context.Context, id, mode, payload string) (*models.FileRecord, error)
	Preview(ctx context.Context, id string) (io.ReadCloser, *models.FileRecord, error)
	Download(ctx context.Context, id string) (io.ReadCloser, *models.FileRecord, error)
	DownloadLink(ctx context.Context, id string) (string, error)
	VerifyFree(ctx context.Context, id string) (*models.VerificationEvidence, error)
	InitiatePayment(ctx context.Context, id string) (*payment.RedirectForm, *models.Order, error)
	HandlePaymentCallback(ctx context.Context, payload []byte) services.CallbackOutcome
}

type Handler struct {
	svc            FileService
	logger         logging.Logger
	maxUploadBytes int64
}

func NewHandler(svc FileService, maxUploadBytes int64, logger logging.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = services.DefaultMaxUploadBytes
	}
	return &Handler{svc: svc, logger: logger.With("module", "api"), maxUploadBytes: maxUploadBytes}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/files", h.upload)
		r.Route("/files/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Post("/process", h.process)
			r.Get("/preview", h.preview)
			r.Get("/download", h.download)
			r.Post("/verify", h.verify)
			r.Post("/payments", h.initiatePayment)
		})
		r.Post("/payments/callback", h.paymentCallback)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug(r.Context(), "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String())
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path, "error", err)
	}
	netx.WriteJSON(w, status, errorBody{Error: msg})
}

type fileView struct {
	ID            string          `json:"id"`
	OriginalName  string          `json:"originalName"`
	Format        string          `json:"format"`
	SizeBytes     int64           `json:"sizeBytes"`
	Checksum      string          `json:"checksum"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	Mode          string          `json:"mode,omitempty"`
	CustomPayload string          `json:"customPayload,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	State         string          `json:"state"`
	PaymentState  string          `json:"paymentState"`
	DownloadCount int64           `json:"downloadCount"`
	HasPreview    bool            `json:"hasPreview"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func viewOf(f *models.FileRecord) (fileView, error) {
	result, err := models.MarshalEvidence(f.Result)
	if err != nil {
		return fileView{}, err
	}
	return fileView{
		ID:            f.ID,
		OriginalName:  f.OriginalName,
		Format:        f.Format,
		SizeBytes:     f.SizeBytes,
		Checksum:      f.Checksum,
		Width:         f.Width,
		Height:        f.Height,
		Mode:          f.Mode,
		CustomPayload: f.CustomPayload,
		Result:        result,
		State:         string(f.State),
		PaymentState:  f.PaymentState.String(),
		DownloadCount: f.DownloadCount,
		HasPreview:    f.PreviewKey != "",
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}, nil
}

func (h *Handler) writeFile(w http.ResponseWriter, r *http.Request, status int, f *models.FileRecord) {
	v, err := viewOf(f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, status, v)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Count(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "health check failed", "error", err)
		netx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	netx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "files": n})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartSlack)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err))
		return
	}
	defer file.Close()

	free := false
	if v := r.FormValue("free"); v != "" {
		free, err = strconv.ParseBool(v)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: free=%q", common.ErrInvalidPayload, v))
			return
		}
	}

	rec, err := h.svc.Upload(r.Context(), services.UploadInput{Name: hdr.Filename, Body: file, FreeTier: free})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, r, http.StatusCreated, rec)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, r, http.StatusOK, rec)
}

type processRequest struct {
	Mode          string `json:"mode"`
	WatermarkData string `json:"watermarkData,omitempty"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := netx.DecodeJSON(r.Body, maxJSONBytes, &req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err))
		return
	}
	rec, err := h.svc.Process(r.Context(), chi.URLParam(r, "id"), req.Mode, req.WatermarkData)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, r, http.StatusOK, rec)
}

func contentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, rc io.ReadCloser, key, filename string) {
	defer rc.Close()
	w.Header().Set("Content-Type", contentType(key))
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn(r.Context(), "stream interrupted", "key", key, "error", err)
	}
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	rc, rec, err := h.svc.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.stream(w, r, rc, rec.PreviewKey, "")
}

// downloadName keeps the user's base name with the extension of the file
// actually served.
func downloadName(f *models.FileRecord) string {
	key := f.BestArtifactKey()
	base := strings.TrimSuffix(f.OriginalName, filepath.Ext(f.OriginalName))
	if base == "" {
		base = f.ID
	}
	return base + filepath.Ext(key)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	link, err := h.svc.DownloadLink(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if link != "" {
		http.Redirect(w, r, link, http.StatusTemporaryRedirect)
		return
	}

	rc, rec, err := h.svc.Download(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.stream(w, r, rc, rec.BestArtifactKey(), downloadName(rec))
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.VerifyFree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, ev)
}

type paymentView struct {
	OrderID  string                `json:"orderId"`
	Amount   int64                 `json:"amount"`
	Currency string                `json:"currency"`
	Redirect *payment.RedirectForm `json:"redirect"`
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	form, order, err := h.svc.InitiatePayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusCreated, paymentView{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Redirect: form,
	})
}

// paymentCallback always answers 200 so the provider stops redelivering;
// the outcome only reaches the logs.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		h.logger.Warn(r.Context(), "unreadable payment callback", "error", err)
		body = nil
	}
	outcome := h.svc.HandlePaymentCallback(r.Context(), body)
	h.logger.Info(r.Context(), "payment callback", "request_id", middleware.GetReqID(r.Context()), "outcome", string(outcome))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "success")
}
