package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/outboundkit/mailmerge/internal/attemptlog"
	"github.com/outboundkit/mailmerge/internal/batch"
	"github.com/outboundkit/mailmerge/internal/web"
)

type memLog struct {
	recs []attemptlog.Record
}

func (m *memLog) Append(_ context.Context, rec attemptlog.Record) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memLog) Query(_ context.Context, f attemptlog.Filter) ([]attemptlog.Record, error) {
	return m.recs, nil
}

type stubGenerator struct {
	calls int
	err   error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "generated body", nil
}

type stubTransport struct {
	calls []string
	err   error
}

func (t *stubTransport) Deliver(_ context.Context, recipient, _, _ string) error {
	t.calls = append(t.calls, recipient)
	return t.err
}

type harness struct {
	log *memLog
	gen *stubGenerator
	tr  *stubTransport
	srv *web.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		log: &memLog{},
		gen: &stubGenerator{},
		tr:  &stubTransport{},
	}
	runner := batch.NewRunner(nil, h.gen, h.tr, h.log, batch.Options{})
	h.srv = web.NewServer(web.Options{
		Runner:    runner,
		Generator: h.gen,
		Transport: h.tr,
		Log:       h.log,
		Template:  "Write to {Company Name} at {Email}.",
	})
	return h
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)
	return rr
}

func multipartCSV(t *testing.T, filename, csvBody, prompt string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("csv_file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(csvBody)); err != nil {
		t.Fatal(err)
	}
	if prompt != "" {
		if err := mw.WriteField("prompt", prompt); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestProcessEmails(t *testing.T) {
	h := newHarness(t)
	body, contentType := multipartCSV(t,
		"contacts.csv",
		"Email,Company Name\na@x.com,Acme\n,NoMail Inc\nb@x.com,Beta\n",
		"Hello {Company Name}",
	)

	req := httptest.NewRequest(http.MethodPost, "/process-emails", body)
	req.Header.Set("Content-Type", contentType)
	rr := h.do(t, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Message string `json:"message"`
		Summary struct {
			Total  int `json:"total_contacts_processed"`
			Sent   int `json:"emails_sent"`
			Failed int `json:"emails_failed"`
		} `json:"summary"`
		Details []struct {
			Recipient string `json:"recipient"`
			Status    string `json:"status"`
			Message   string `json:"message"`
		} `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Summary.Total != 3 || resp.Summary.Sent != 2 || resp.Summary.Failed != 1 {
		t.Fatalf("summary = %+v", resp.Summary)
	}
	if len(resp.Details) != 3 {
		t.Fatalf("details count %d", len(resp.Details))
	}
	if resp.Details[1].Status != attemptlog.OutcomeFailed {
		t.Errorf("row without email: %+v", resp.Details[1])
	}
	if len(h.log.recs) != 3 {
		t.Errorf("attempt log has %d records", len(h.log.recs))
	}
}

func TestProcessEmailsRejectsBadRequests(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/process-emails", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	if rr := h.do(t, req); rr.Code != http.StatusBadRequest {
		t.Errorf("non-multipart: status %d", rr.Code)
	}

	body, contentType := multipartCSV(t, "contacts.txt", "Email\na@x.com\n", "Hi")
	req = httptest.NewRequest(http.MethodPost, "/process-emails", body)
	req.Header.Set("Content-Type", contentType)
	if rr := h.do(t, req); rr.Code != http.StatusBadRequest {
		t.Errorf("non-csv filename: status %d", rr.Code)
	}
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		outcome := attemptlog.OutcomeSent
		if i%3 == 0 {
			outcome = attemptlog.OutcomeFailed
		}
		h.log.recs = append(h.log.recs, attemptlog.Record{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Recipient: "a@x.com",
			Outcome:   outcome,
		})
	}

	rr := h.do(t, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var resp struct {
		Total  int               `json:"total_attempts"`
		Sent   int               `json:"successful_sends"`
		Failed int               `json:"failed_sends"`
		Recent []json.RawMessage `json:"recent_entries"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 12 || resp.Sent != 8 || resp.Failed != 4 {
		t.Fatalf("stats = %+v", resp)
	}
	if len(resp.Recent) != 10 {
		t.Fatalf("recent entries %d, want 10", len(resp.Recent))
	}

	if rr := h.do(t, httptest.NewRequest(http.MethodGet, "/stats?since=not-a-time", nil)); rr.Code != http.StatusBadRequest {
		t.Errorf("bad since: status %d", rr.Code)
	}
}

func TestGenerateTestEmailDoesNotSend(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, httptest.NewRequest(http.MethodGet, "/generate-test-email?company=Acme", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var resp struct {
		Body     string `json:"body"`
		Fallback bool   `json:"fallback"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Body == "" || resp.Fallback {
		t.Errorf("resp = %+v", resp)
	}
	if len(h.tr.calls) != 0 {
		t.Errorf("transport called %d times", len(h.tr.calls))
	}
}

func TestSendTestEmail(t *testing.T) {
	h := newHarness(t)

	if rr := h.do(t, httptest.NewRequest(http.MethodGet, "/send-test-email", nil)); rr.Code != http.StatusBadRequest {
		t.Errorf("missing recipient: status %d", rr.Code)
	}

	rr := h.do(t, httptest.NewRequest(http.MethodGet, "/send-test-email?recipient=ops@x.com", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if len(h.tr.calls) != 1 || h.tr.calls[0] != "ops@x.com" {
		t.Fatalf("transport calls %v", h.tr.calls)
	}
	if len(h.log.recs) != 1 || h.log.recs[0].Outcome != attemptlog.OutcomeSent {
		t.Fatalf("log records %+v", h.log.recs)
	}

	h.tr.err = errors.New("connection refused")
	rr = h.do(t, httptest.NewRequest(http.MethodGet, "/send-test-email?recipient=ops@x.com", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("failed send: status %d", rr.Code)
	}
}

func TestIndexAndHealthz(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Process a contact CSV") {
		t.Fatalf("index: status %d", rr.Code)
	}

	rr = h.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz: status %d body %s", rr.Code, rr.Body.String())
	}
}
