package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/facemed/face-med/internal/blob"
	"github.com/facemed/face-med/internal/clinic"
	embmock "github.com/facemed/face-med/internal/embedding/mock"
	"github.com/facemed/face-med/internal/faceindex"
	storemock "github.com/facemed/face-med/internal/store/mock"
)

// testEnv wires the handlers onto a router backed by in-memory mocks.
type testEnv struct {
	router    *chi.Mux
	store     *storemock.Store
	extractor *embmock.Extractor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	blobs, err := blob.NewStore(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("could not create blob store: %v", err)
	}
	st := storemock.NewStore()
	ext := embmock.NewExtractor()
	svc := clinic.New(st, ext, blobs, faceindex.New(0.35, 1e-6), zerolog.Nop())

	const maxUpload = 1 << 20
	patients := NewPatientsHandler(svc, maxUpload, zerolog.Nop())
	faces := NewFacesHandler(svc, maxUpload, zerolog.Nop())
	records := NewRecordsHandler(svc, maxUpload, zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/", HealthCheck)
	r.Post("/register-patient", patients.Register)
	r.Get("/patient/{id}", patients.Get)
	r.Post("/register-face", faces.Register)
	r.Post("/recognize", faces.Recognize)
	r.Post("/recognize-face", faces.RecognizeFace)
	r.Get("/records/{patient_id}", records.List)
	r.Post("/upload-record/{patient_id}", records.Upload)
	r.Get("/data/uploads/{patient_id}/{filename}", records.DownloadUpload)
	r.Get("/download/{filename}", records.Download)

	return &testEnv{router: r, store: st, extractor: ext}
}

// multipartBody builds a multipart form with string fields and file parts.
func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".jpg")
		if err != nil {
			t.Fatalf("create file part %s: %v", field, err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file part %s: %v", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return out
}

// registerFace returns a distinct probe image registered with the mock
// extractor under the given axis of an 8-dimensional unit vector.
func (e *testEnv) registerFace(tag string, axis int) []byte {
	img := []byte("face:" + tag)
	vec := make([]float32, 8)
	vec[axis] = 1
	e.extractor.Register(img, vec)
	return img
}

// enrollPatient registers a patient through the API and returns the id.
func (e *testEnv) enrollPatient(t *testing.T, name string, img []byte) string {
	t.Helper()
	body, ct := multipartBody(t,
		map[string]string{"name": name, "age": "42", "blood_group": "O+"},
		map[string][]byte{"face": img},
	)
	rec := e.do(t, http.MethodPost, "/register-patient", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("register-patient failed: %d %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON(t, rec)
	id, _ := resp["patient_id"].(string)
	if id == "" {
		t.Fatalf("no patient_id in response: %v", resp)
	}
	return id
}
