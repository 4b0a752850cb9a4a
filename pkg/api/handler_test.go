package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sheria-labs/registries/pkg/kit"
	"github.com/sheria-labs/registries/pkg/schema"
	"github.com/sheria-labs/registries/pkg/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := schema.NewRegistry("")
	if err := reg.Load(); err != nil {
		t.Fatalf("load schemas: %v", err)
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(NewService(reg, st, logger)))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantCode int, dst any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantCode {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: status %d, want %d (%s)", url, resp.StatusCode, wantCode, body)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

const marriageCSV = "Certificate Number,Date of Marriage,Groom Name,Bride Name,Place of Marriage\n" +
	"MC001,14/02/2019,John Kamau,Mary Wanjiku,Nairobi\n" +
	"MC002,15/02/2019,Peter Omondi,Grace Akinyi,Kisumu\n"

func TestImportRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/registries/marriages/import?file=feb.csv",
		"text/csv", strings.NewReader(marriageCSV))
	if err != nil {
		t.Fatalf("POST import: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d (%s)", resp.StatusCode, body)
	}

	var result struct {
		Success  bool   `json:"success"`
		Imported int    `json:"imported"`
		BatchID  string `json:"batch_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Imported != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.BatchID == "" {
		t.Fatal("no batch id in result")
	}

	// Search finds what the import stored.
	var search struct {
		Records []store.StoredRecord `json:"records"`
	}
	getJSON(t, srv.URL+"/v1/registries/marriages/records?q=wanjiku", http.StatusOK, &search)
	if len(search.Records) != 1 || search.Records[0].Key != "MC001" {
		t.Fatalf("search = %+v", search.Records)
	}

	// The audit batch is completed with matching counters.
	var batch store.Batch
	getJSON(t, srv.URL+"/v1/batches/"+result.BatchID, http.StatusOK, &batch)
	if batch.Status != store.BatchCompleted || batch.Imported != 2 {
		t.Errorf("batch = %+v", batch)
	}
	if batch.FileName != "feb.csv" {
		t.Errorf("file name = %q, want query param honoured", batch.FileName)
	}
}

func TestImportMultipart(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "wedding_list.csv")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(marriageCSV))
	mw.Close()

	resp, err := http.Post(srv.URL+"/v1/registries/marriages/import",
		mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d (%s)", resp.StatusCode, body)
	}

	var result struct {
		Imported int `json:"imported"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Imported != 2 {
		t.Errorf("imported = %d, want 2", result.Imported)
	}
}

func TestImportErrors(t *testing.T) {
	srv := newTestServer(t)

	// Unknown registry.
	resp, err := http.Post(srv.URL+"/v1/registries/divorces/import", "text/csv",
		strings.NewReader(marriageCSV))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown registry: status = %d", resp.StatusCode)
	}

	// Empty body.
	resp, err = http.Post(srv.URL+"/v1/registries/marriages/import", "text/csv", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty body: status = %d", resp.StatusCode)
	}

	// Header-only file is a structural failure, and its batch records it.
	resp, err = http.Post(srv.URL+"/v1/registries/marriages/import", "text/csv",
		strings.NewReader("Certificate Number,Groom Name\n"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("header only: status = %d", resp.StatusCode)
	}
	var batches struct {
		Batches []store.Batch `json:"batches"`
	}
	getJSON(t, srv.URL+"/v1/batches", http.StatusOK, &batches)
	if len(batches.Batches) != 1 || batches.Batches[0].Status != store.BatchFailed {
		t.Errorf("batches = %+v, want one failed batch", batches.Batches)
	}

	// GET on the import route is rejected.
	getJSON(t, srv.URL+"/v1/registries/marriages/import", http.StatusMethodNotAllowed, nil)
}

func TestListRegistries(t *testing.T) {
	srv := newTestServer(t)

	var got struct {
		Registries []struct {
			ID       string `json:"id"`
			KeyField string `json:"key_field"`
		} `json:"registries"`
	}
	getJSON(t, srv.URL+"/v1/registries", http.StatusOK, &got)
	if len(got.Registries) != 4 {
		t.Fatalf("got %d registries, want 4", len(got.Registries))
	}
	if got.Registries[1].ID != "marriages" || got.Registries[1].KeyField != "certificate_number" {
		t.Errorf("registries[1] = %+v", got.Registries[1])
	}
}

func TestTemplateDownload(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/registries/trustees/template")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "trustees_template.csv") {
		t.Errorf("content disposition = %q", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "pt_cause_no,") {
		t.Errorf("template body = %q", body)
	}

	getJSON(t, srv.URL+"/v1/registries/divorces/template", http.StatusNotFound, nil)
}

func TestInstrumented(t *testing.T) {
	svc := NewService(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var seen string
	ep := instrumented(svc, func(ctx context.Context, _ any) (any, error) {
		seen = kit.GetRequestID(ctx)
		return nil, nil
	})

	if _, err := ep(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if seen == "" {
		t.Error("no correlation ID assigned")
	}

	// An ID already on the context is preserved, not replaced.
	ctx := kit.WithRequestID(context.Background(), "fixed")
	if _, err := ep(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if seen != "fixed" {
		t.Errorf("request id = %q, want the caller's fixed ID kept", seen)
	}

	// Errors pass through the audit layer untouched.
	boom := instrumented(svc, func(context.Context, any) (any, error) {
		return nil, io.ErrUnexpectedEOF
	})
	if _, err := boom(context.Background(), nil); err != io.ErrUnexpectedEOF {
		t.Errorf("err = %v, want the endpoint's error", err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var got healthResponse
	getJSON(t, srv.URL+"/v1/health", http.StatusOK, &got)
	if got.Status != "ok" || got.Registries != 4 {
		t.Errorf("health = %+v", got)
	}
}
