package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/outboundkit/mailmerge/internal/attemptlog"
	"github.com/outboundkit/mailmerge/internal/contacts"
	"github.com/outboundkit/mailmerge/internal/dispatch"
	"github.com/outboundkit/mailmerge/internal/generate"
	"github.com/outboundkit/mailmerge/internal/logging"
	"github.com/outboundkit/mailmerge/internal/version"
)

// maxUploadBytes caps contact CSV uploads.
const maxUploadBytes = 10 << 20

type indexData struct {
	Version         string
	CSVPath         string
	GeneratorReady  bool
	TransportReady  bool
	DefaultTemplate string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, genDisabled := s.opts.Generator.(generate.Disabled)
	_, trDisabled := s.opts.Transport.(dispatch.Disabled)
	data := indexData{
		Version:         version.Current,
		CSVPath:         s.opts.CSVPath,
		GeneratorReady:  s.opts.Generator != nil && !genDisabled,
		TransportReady:  s.opts.Transport != nil && !trDisabled,
		DefaultTemplate: s.opts.Template,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Error("render_index", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "version": version.Current})
}

type rowDetail struct {
	Recipient string `json:"recipient"`
	Company   string `json:"company"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type processResponse struct {
	Message string `json:"message"`
	Summary struct {
		TotalContactsProcessed int `json:"total_contacts_processed"`
		EmailsSent             int `json:"emails_sent"`
		EmailsFailed           int `json:"emails_failed"`
	} `json:"summary"`
	Details []rowDetail `json:"details"`
}

// handleProcessEmails accepts a multipart upload with a "csv_file" part and
// an optional "prompt" template, runs the batch, and reports every row.
func (s *Server) handleProcessEmails(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request: "+err.Error())
		return
	}

	file, header, err := r.FormFile("csv_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file part")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "invalid file type, upload a CSV file")
		return
	}

	tmpl := r.FormValue("prompt")
	if tmpl == "" {
		tmpl = s.opts.Template
	}
	if tmpl == "" {
		writeError(w, http.StatusBadRequest, "prompt template required")
		return
	}

	rows, err := contacts.ReadRows(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read contacts: "+err.Error())
		return
	}

	res, err := s.opts.Runner.Run(r.Context(), rows, tmpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "batch run failed: "+err.Error())
		return
	}

	resp := processResponse{Message: "Email processing complete."}
	resp.Summary.TotalContactsProcessed = res.Attempted
	resp.Summary.EmailsSent = res.Sent
	resp.Summary.EmailsFailed = res.Failed
	resp.Details = make([]rowDetail, 0, len(res.Attempts))
	for _, rec := range res.Attempts {
		resp.Details = append(resp.Details, rowDetail{
			Recipient: rec.Recipient,
			Company:   rec.Company,
			Status:    rec.Outcome,
			Message:   rec.Message,
		})
	}
	writeJSON(w, resp)
}

type recordJSON struct {
	Timestamp string `json:"timestamp"`
	BatchID   string `json:"batch_id"`
	Recipient string `json:"recipient"`
	Company   string `json:"company"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type statsResponse struct {
	TotalAttempts   int          `json:"total_attempts"`
	SuccessfulSends int          `json:"successful_sends"`
	FailedSends     int          `json:"failed_sends"`
	RecentEntries   []recordJSON `json:"recent_entries"`
}

// handleStats aggregates the attempt log, optionally windowed by the
// "since" and "until" RFC 3339 query parameters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var f attemptlog.Filter
	var err error
	if f.Since, err = parseTimeParam(r, "since"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Until, err = parseTimeParam(r, "until"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := attemptlog.Summarize(r.Context(), s.opts.Log, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read attempt log: "+err.Error())
		return
	}

	resp := statsResponse{
		TotalAttempts:   stats.TotalAttempts,
		SuccessfulSends: stats.Sent,
		FailedSends:     stats.Failed,
		RecentEntries:   make([]recordJSON, 0, len(stats.Recent)),
	}
	for _, rec := range stats.Recent {
		resp.RecentEntries = append(resp.RecentEntries, recordJSON{
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
			BatchID:   rec.BatchID,
			Recipient: rec.Recipient,
			Company:   rec.Company,
			Subject:   rec.Subject,
			Status:    rec.Outcome,
			Message:   rec.Message,
		})
	}
	writeJSON(w, resp)
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s=%q: want RFC 3339", name, v)
	}
	return t, nil
}

// handleViewData parses the preconfigured contact CSV and returns the
// normalized records so column mapping can be checked before a run.
func (s *Server) handleViewData(w http.ResponseWriter, r *http.Request) {
	if s.opts.CSVPath == "" {
		writeError(w, http.StatusNotFound, "no contact CSV configured")
		return
	}
	f, err := os.Open(s.opts.CSVPath)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("CSV file not found at %s", s.opts.CSVPath))
		return
	}
	defer f.Close()

	rows, err := contacts.ReadRows(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "parse contacts: "+err.Error())
		return
	}

	type viewRow struct {
		Email   string          `json:"email"`
		Company string          `json:"companyName"`
		Columns contacts.RawRow `json:"columns"`
	}
	out := make([]viewRow, 0, len(rows))
	for _, raw := range rows {
		rec := s.opts.Normalizer.Normalize(raw)
		out = append(out, viewRow{Email: rec.Email, Company: rec.Company, Columns: rec.Columns})
	}
	writeJSON(w, out)
}

// handleGenerateTestEmail composes a message for a synthetic contact without
// sending anything. The "company" query parameter fills the sample row.
func (s *Server) handleGenerateTestEmail(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("company")
	if company == "" {
		company = "Default Test Company"
	}
	rec := s.opts.Normalizer.Normalize(contacts.RawRow{
		"Company Name": company,
		"Email":        "test@example.com",
		"Industry":     "Various",
	})
	tmpl := "Write a short, friendly welcome email to {Company Name} in the {Industry} sector. Their email is {Email}."

	res := generate.Compose(r.Context(), s.opts.Generator, rec, tmpl)
	writeJSON(w, map[string]any{
		"recipient": rec.Email,
		"company":   rec.Company,
		"subject":   "Test Email",
		"body":      res.Body,
		"fallback":  res.Fallback,
		"reason":    res.Reason,
	})
}

// handleSendTestEmail composes and dispatches one message to the recipient
// named by the "recipient" query parameter, recording the attempt.
func (s *Server) handleSendTestEmail(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")
	if recipient == "" {
		writeError(w, http.StatusBadRequest, "missing 'recipient' query parameter")
		return
	}

	rec := s.opts.Normalizer.Normalize(contacts.RawRow{
		"Company Name": "TestCo",
		"Email":        recipient,
	})
	tmpl := "Generate a very brief test email for {Company Name} confirming the email system for {Email} is working."
	subject := "Test Email"

	res := generate.Compose(r.Context(), s.opts.Generator, rec, tmpl)
	out := dispatch.Dispatch(r.Context(), s.opts.Transport, recipient, subject, res.Body)

	logRec := attemptlog.Record{
		Timestamp: time.Now(),
		BatchID:   "test-send",
		Recipient: recipient,
		Company:   rec.Company,
		Subject:   subject,
		Outcome:   attemptlog.OutcomeFailed,
		Message:   out.Reason,
	}
	if out.Sent {
		logRec.Outcome = attemptlog.OutcomeSent
		logRec.Message = "delivered"
	}
	if err := s.opts.Log.Append(r.Context(), logRec); err != nil {
		writeError(w, http.StatusInternalServerError, "append attempt log: "+err.Error())
		return
	}

	if !out.Sent {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "failure", "message": out.Reason})
		return
	}
	writeJSON(w, map[string]string{"status": "success", "message": "delivered"})
}
