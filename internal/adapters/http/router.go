package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/koi-classifier/internal/config"
	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ports"
	"github.com/kirillkom/koi-classifier/internal/observability/metrics"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	actionUpload  = "upload"
	actionPredict = "predict"
)

// Services are the inbound ports the router dispatches to.
type Services struct {
	Uploader    ports.DatasetUploader
	Predictor   ports.BatchPredictor
	Predictions ports.PredictionReader
	Dataset     ports.DatasetPreviewer
	Models      ports.ModelInspector
	Chat        ports.ChatService
	OTP         ports.OTPService
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

func NewRouter(cfg config.Config, svc Services, m *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{cfg: cfg, svc: svc, metrics: m, logger: logger}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/upload", rt.upload)
	api.HandleFunc("GET /v1/predictions/{kepid}", rt.lookupPrediction)
	api.HandleFunc("GET /v1/dataset", rt.previewDataset)
	api.HandleFunc("GET /v1/model", rt.activeModel)
	api.HandleFunc("POST /v1/chat", rt.chat)
	api.HandleFunc("POST /v1/otp/send", rt.sendOTP)
	api.HandleFunc("POST /v1/otp/verify", rt.verifyOTP)

	limited := rateLimitMiddleware(
		backpressureMiddleware(api, rt.cfg.APIMaxInFlight, rt.cfg.APIOverloadWait),
		rt.cfg.APIRateLimitRPS,
		rt.cfg.APIRateLimitBurst,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	return observeRequests(rt.logger, handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	ready := false
	if rt.svc.Models != nil {
		_, err := rt.svc.Models.ActiveModel()
		ready = err == nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "model_ready": ready})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.writeError(w, r, err)
			return
		}
		writeStatus(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	switch action := strings.TrimSpace(r.FormValue("action")); action {
	case actionUpload:
		res, err := rt.svc.Uploader.UploadAndRetrain(r.Context(), header.Filename, file)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		message := fmt.Sprintf("File uploaded, merged, and model retrained. Best model: %s (F1=%.4f)",
			res.Training.ModelName, res.Training.F1)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":                 statusSuccess,
			"message":                message,
			"rows_uploaded":          res.RowsUploaded,
			"rows_total_after_merge": res.RowsTotalAfterMerge,
			"training":               res.Training,
		})
	case actionPredict:
		batch, err := rt.svc.Predictor.PredictUpload(r.Context(), header.Filename, file)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        statusSuccess,
			"message":       "Predictions generated successfully.",
			"rows_uploaded": batch.RowsUploaded,
			"predictions":   batch.Predictions,
		})
	default:
		writeStatus(w, http.StatusBadRequest, "Invalid action. Must be 'upload' or 'predict'.")
	}
}

func (rt *Router) lookupPrediction(w http.ResponseWriter, r *http.Request) {
	kepID, err := strconv.ParseInt(r.PathValue("kepid"), 10, 64)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "kepid must be an integer")
		return
	}
	p, err := rt.svc.Predictions.Lookup(r.Context(), kepID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     statusSuccess,
		"kepid":      p.KepID,
		"prediction": p.Prediction,
	})
}

func (rt *Router) previewDataset(w http.ResponseWriter, r *http.Request) {
	numRows := 0
	if raw := r.URL.Query().Get("num_rows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeStatus(w, http.StatusBadRequest, "num_rows must be an integer of at least 1")
			return
		}
		numRows = n
	}
	preview, err := rt.svc.Dataset.Preview(r.Context(), numRows)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": statusSuccess,
		"data":   preview.Data,
		"rows":   preview.Rows,
	})
}

func (rt *Router) activeModel(w http.ResponseWriter, r *http.Request) {
	info, err := rt.svc.Models.ActiveModel()
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "model": info})
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid json")
		return
	}
	answer, err := rt.svc.Chat.Ask(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  statusSuccess,
		"content": answer.Content,
		"planet":  answer.Planet,
	})
}

func (rt *Router) sendOTP(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if err := rt.svc.OTP.Send(r.Context(), email); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeStatus(w, http.StatusOK, "OTP sent to "+strings.TrimSpace(email))
}

func (rt *Router) verifyOTP(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.OTP.Verify(r.Context(), r.FormValue("email"), r.FormValue("otp")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeStatus(w, http.StatusOK, "OTP verified successfully")
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		rt.logger.Error("request failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	writeStatus(w, status, message)
}

// writeStatus writes the {"status","message"} envelope; 4xx and 5xx are errors.
func writeStatus(w http.ResponseWriter, code int, message string) {
	status := statusSuccess
	if code >= http.StatusBadRequest {
		status = statusError
	}
	writeJSON(w, code, map[string]string{"status": status, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
