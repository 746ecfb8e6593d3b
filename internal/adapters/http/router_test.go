package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kirillkom/koi-classifier/internal/config"
	"github.com/kirillkom/koi-classifier/internal/core/domain"
)

type uploaderFake struct {
	filename string
	body     string
	err      error
}

func (f *uploaderFake) UploadAndRetrain(_ context.Context, filename string, body io.Reader) (*domain.UploadResult, error) {
	raw, _ := io.ReadAll(body)
	f.filename, f.body = filename, string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.UploadResult{
		RowsUploaded:        3,
		RowsTotalAfterMerge: 10,
		Training:            domain.TrainingReport{RunID: "run-1", ModelName: "KNN", F1: 0.93456},
	}, nil
}

type predictorFake struct{ err error }

func (f predictorFake) PredictUpload(context.Context, string, io.Reader) (*domain.PredictionBatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PredictionBatch{
		RowsUploaded: 1,
		Predictions:  []domain.Prediction{{KepID: 10797460, Prediction: domain.DispositionConfirmed}},
	}, nil
}

type lookupFake struct{ err error }

func (f lookupFake) Lookup(_ context.Context, kepID int64) (*domain.Prediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Prediction{KepID: kepID, Prediction: domain.DispositionCandidate}, nil
}

type previewerFake struct {
	numRows int
	err     error
}

func (f *previewerFake) Preview(_ context.Context, numRows int) (*domain.DatasetPreview, error) {
	f.numRows = numRows
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DatasetPreview{Data: []domain.PreviewRow{{"kepoi_name": "K00752.01"}}, Rows: 1}, nil
}

type inspectorFake struct{ err error }

func (f inspectorFake) ActiveModel() (*domain.ModelInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ModelInfo{RunID: "run-1", ModelName: "SVM", F1: 0.9}, nil
}

type chatFake struct{ err error }

func (f chatFake) Ask(_ context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatAnswer{Content: "answer to " + req.Message, Planet: req.Planet}, nil
}

type otpFake struct {
	sendErr, verifyErr error
}

func (f otpFake) Send(context.Context, string) error           { return f.sendErr }
func (f otpFake) Verify(context.Context, string, string) error { return f.verifyErr }

func testServices() Services {
	return Services{
		Uploader:    &uploaderFake{},
		Predictor:   predictorFake{},
		Predictions: lookupFake{},
		Dataset:     &previewerFake{},
		Models:      inspectorFake{},
		Chat:        chatFake{},
		OTP:         otpFake{},
	}
}

func newTestHandler(cfg config.Config, svc Services) http.Handler {
	return NewRouter(cfg, svc, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).Handler()
}

func multipartRequest(t *testing.T, filename, action string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		_, _ = part.Write(content)
	}
	if action != "" {
		_ = mw.WriteField("action", action)
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	var body map[string]any
	_ = json.Unmarshal(res.Body.Bytes(), &body)
	return res, body
}

func TestUploadActionUpload(t *testing.T) {
	svc := testServices()
	uploader := svc.Uploader.(*uploaderFake)
	handler := newTestHandler(config.Config{}, svc)

	res, body := serve(handler, multipartRequest(t, "koi.csv", "upload", []byte("a,b\n1,2\n")))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if body["status"] != "success" || body["rows_total_after_merge"] != 10.0 {
		t.Fatalf("unexpected body %v", body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "Best model: KNN (F1=0.9346)") {
		t.Fatalf("unexpected message %q", msg)
	}
	if uploader.filename != "koi.csv" || uploader.body != "a,b\n1,2\n" {
		t.Fatalf("upload not forwarded: %+v", uploader)
	}
}

func TestUploadActionPredict(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())
	res, body := serve(handler, multipartRequest(t, "koi.csv", "predict", []byte("x")))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	preds, _ := body["predictions"].([]any)
	if len(preds) != 1 {
		t.Fatalf("expected one prediction, got %v", body)
	}
	first := preds[0].(map[string]any)
	if first["kepid"] != 10797460.0 || first["prediction"] != "CONFIRMED" {
		t.Fatalf("unexpected prediction %v", first)
	}
}

func TestUploadValidation(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())

	res, body := serve(handler, multipartRequest(t, "koi.csv", "train", []byte("x")))
	if res.Code != http.StatusBadRequest || body["status"] != "error" {
		t.Fatalf("expected 400 error envelope for bad action, got %d %v", res.Code, body)
	}
	res, _ = serve(handler, multipartRequest(t, "", "upload", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing file, got %d", res.Code)
	}
	res, _ = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/upload", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET upload, got %d", res.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	handler := newTestHandler(config.Config{MaxUploadBytes: 16}, testServices())
	res, _ := serve(handler, multipartRequest(t, "koi.csv", "upload", bytes.Repeat([]byte("x"), 4096)))
	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestUploadMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrSchemaMismatch, "validate schema", errors.New("missing=[kepid]")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrDataFormat, "read upload", errors.New("bad csv")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrModelNotReady, "predict", errors.New("no model")), http.StatusServiceUnavailable},
		{errors.New("disk exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := testServices()
		svc.Predictor = predictorFake{err: tc.err}
		res, body := serve(newTestHandler(config.Config{}, svc), multipartRequest(t, "koi.csv", "predict", []byte("x")))
		if res.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, res.Code)
		}
		if body["status"] != "error" {
			t.Fatalf("expected error envelope, got %v", body)
		}
		if tc.want == http.StatusInternalServerError && body["message"] != "internal server error" {
			t.Fatalf("internal errors must not leak details, got %v", body["message"])
		}
	}
}

func TestLookupPrediction(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())
	res, body := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/predictions/10797460", nil))
	if res.Code != http.StatusOK || body["kepid"] != 10797460.0 || body["prediction"] != "CANDIDATE" {
		t.Fatalf("unexpected response %d %v", res.Code, body)
	}

	res, _ = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/predictions/abc", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", res.Code)
	}

	for kind, want := range map[error]int{
		domain.ErrPredictionNotFound: http.StatusNotFound,
		domain.ErrLogFormat:          http.StatusConflict,
	} {
		svc := testServices()
		svc.Predictions = lookupFake{err: domain.WrapError(kind, "latest prediction", errors.New("x"))}
		res, _ := serve(newTestHandler(config.Config{}, svc), httptest.NewRequest(http.MethodGet, "/v1/predictions/1", nil))
		if res.Code != want {
			t.Fatalf("%v: expected %d, got %d", kind, want, res.Code)
		}
	}
}

func TestPreviewDataset(t *testing.T) {
	svc := testServices()
	previewer := svc.Dataset.(*previewerFake)
	handler := newTestHandler(config.Config{}, svc)

	res, body := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/dataset?num_rows=5", nil))
	if res.Code != http.StatusOK || body["rows"] != 1.0 || previewer.numRows != 5 {
		t.Fatalf("unexpected response %d %v (num_rows=%d)", res.Code, body, previewer.numRows)
	}
	res, _ = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/dataset", nil))
	if res.Code != http.StatusOK || previewer.numRows != 0 {
		t.Fatalf("expected all rows when num_rows is absent")
	}
	for _, q := range []string{"0", "-3", "many"} {
		res, _ = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/dataset?num_rows="+q, nil))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("num_rows=%s: expected 400, got %d", q, res.Code)
		}
	}

	svc.Dataset = &previewerFake{err: domain.WrapError(domain.ErrDatasetNotFound, "load dataset", errors.New("x"))}
	res, _ = serve(newTestHandler(config.Config{}, svc), httptest.NewRequest(http.MethodGet, "/v1/dataset", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing dataset, got %d", res.Code)
	}
}

func TestActiveModelAndHealth(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())
	res, body := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/model", nil))
	model, _ := body["model"].(map[string]any)
	if res.Code != http.StatusOK || model["model_name"] != "SVM" {
		t.Fatalf("unexpected response %d %v", res.Code, body)
	}
	_, body = serve(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if body["model_ready"] != true {
		t.Fatalf("expected ready model, got %v", body)
	}

	svc := testServices()
	svc.Models = inspectorFake{err: domain.WrapError(domain.ErrModelNotReady, "active model", errors.New("none"))}
	handler = newTestHandler(config.Config{}, svc)
	res, _ = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/model", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without model, got %d", res.Code)
	}
	res, body = serve(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK || body["model_ready"] != false {
		t.Fatalf("healthz must stay live without a model, got %d %v", res.Code, body)
	}
}

func TestChat(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())
	payload, _ := json.Marshal(map[string]string{"message": "how big?", "planet": "Kepler-22 b"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res, body := serve(handler, req)
	if res.Code != http.StatusOK || body["content"] != "answer to how big?" || body["planet"] != "Kepler-22 b" {
		t.Fatalf("unexpected response %d %v", res.Code, body)
	}

	res, _ = serve(handler, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{")))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", res.Code)
	}

	svc := testServices()
	svc.Chat = chatFake{err: domain.WrapError(domain.ErrTemporary, "ollama generate", errors.New("503"))}
	res, _ = serve(newTestHandler(config.Config{}, svc), httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(payload)))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for temporary chat failure, got %d", res.Code)
	}
}

func TestOTPEndpoints(t *testing.T) {
	form := func(path string, values url.Values) *http.Request {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	handler := newTestHandler(config.Config{}, testServices())
	res, body := serve(handler, form("/v1/otp/send", url.Values{"email": {"ahmed23@eng-st.cu.edu.eg"}}))
	if res.Code != http.StatusOK || body["message"] != "OTP sent to ahmed23@eng-st.cu.edu.eg" {
		t.Fatalf("unexpected response %d %v", res.Code, body)
	}

	svc := testServices()
	svc.OTP = otpFake{
		sendErr:   domain.WrapError(domain.ErrInvalidInput, "send otp", errors.New("invalid email format")),
		verifyErr: domain.WrapError(domain.ErrOTPInvalid, "verify otp", errors.New("code rejected")),
	}
	handler = newTestHandler(config.Config{}, svc)
	res, _ = serve(handler, form("/v1/otp/send", url.Values{"email": {"x"}}))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	res, body = serve(handler, form("/v1/otp/verify", url.Values{"email": {"x"}, "otp": {"1"}}))
	if res.Code != http.StatusUnauthorized || body["status"] != "error" {
		t.Fatalf("expected 401 error envelope, got %d %v", res.Code, body)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	res, _ := serve(handler, req)
	if res.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("expected request id echoed, got %q", res.Header().Get(requestIDHeader))
	}

	res, _ = serve(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}
