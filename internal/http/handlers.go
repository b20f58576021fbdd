package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"rareport/internal/core"
	"rareport/internal/log"
	"rareport/internal/services"
)

type uploadResponse struct {
	SessionID string             `json:"session_id"`
	Summary   core.UploadSummary `json:"summary"`
}

type link struct {
	Label string
	Href  template.URL
}

type groupTable struct {
	Title     string
	Dimension string
	Rows      []core.GroupTotal
}

type dashboardData struct {
	Session     *services.Session
	Report      *core.Report
	Options     []core.DimensionOptions
	Groups      []groupTable
	Exports     []link
	Error       string
	MaxUploadMB int64
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "journal unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := dashboardData{MaxUploadMB: s.maxUpload >> 20}
	status := http.StatusOK

	if id := sanitizeInput(r.URL.Query().Get("session")); id != "" {
		if err := s.loadDashboard(&data, id, parseSelections(r.URL.Query())); err != nil {
			status = statusFor(err)
			if status >= 500 {
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Dashboard build failed", log.FieldError, err, log.FieldSessionID, id)
				data.Error = "The report could not be built."
			} else {
				data.Error = err.Error()
			}
			if errors.Is(err, core.ErrSessionNotFound) {
				data.Session = nil
				data.Error = "This upload has expired or was discarded. Upload the file again."
			}
		}
	}
	s.render(w, r, status, "dashboard.html", data)
}

func (s *Server) loadDashboard(data *dashboardData, id string, sel core.Selections) error {
	sess, err := s.reports.Session(id)
	if err != nil {
		return err
	}
	data.Session = sess

	opts, err := s.reports.Options(id, sel)
	if err != nil {
		return err
	}
	data.Options = opts

	rep, err := s.reports.Report(id, sel)
	if err != nil {
		return err
	}
	data.Report = rep
	data.Groups = []groupTable{
		{Title: "Amount by provider", Dimension: core.ColProvider, Rows: rep.ByProvider},
		{Title: "Amount by country", Dimension: core.ColCountry, Rows: rep.ByCountry},
		{Title: "Amount by status", Dimension: core.ColStatus, Rows: rep.ByStatus},
		{Title: "Successful amount by country", Dimension: core.ColCountry, Rows: rep.SuccessByCountry},
		{Title: "Successful amount by provider", Dimension: core.ColProvider, Rows: rep.SuccessByProvider},
		{Title: "Successful amount by merchant", Dimension: core.ColMerchant, Rows: rep.SuccessByMerchant},
	}

	query := encodeSelections(sel).Encode()
	if query != "" {
		query = "?" + query
	}
	for _, dim := range core.ExportDimensions {
		data.Exports = append(data.Exports, link{
			Label: "Successful amount by " + dim + " (CSV)",
			Href:  template.URL("/sessions/" + sess.ID + "/export/" + dim + query),
		})
	}
	data.Exports = append(data.Exports, link{
		Label: "Filtered transactions (CSV)",
		Href:  template.URL("/sessions/" + sess.ID + "/transactions.csv" + query),
	})
	return nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name, log.FieldOperation, log.OpRender)
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, log.OpUpload, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "expected a multipart form with a file field"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file field"})
		return
	}
	defer file.Close()

	sess, err := s.reports.Upload(r.Context(), sanitizeInput(header.Filename), file)
	if err != nil {
		if wantsHTML(r) && statusFor(err) < 500 {
			s.render(w, r, statusFor(err), "dashboard.html", dashboardData{
				Error:       fmt.Sprintf("%s could not be processed: %v", header.Filename, err),
				MaxUploadMB: s.maxUpload >> 20,
			})
			return
		}
		writeError(w, r, log.OpUpload, err)
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/?session="+sess.ID, http.StatusSeeOther)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID+"/report")
	writeJSON(w, http.StatusCreated, uploadResponse{SessionID: sess.ID, Summary: sess.Summary})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []core.UploadSummary{})
		return
	}
	items, err := s.journal.Recent(r.Context(), parseLimit(r, 20, 200))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if items == nil {
		items = []core.UploadSummary{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := s.reports.Options(r.PathValue("id"), parseSelections(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpFilter, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Report(r.PathValue("id"), parseSelections(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleExportGroup(w http.ResponseWriter, r *http.Request) {
	dim := r.PathValue("dimension")
	var buf bytes.Buffer
	if err := s.reports.ExportGroup(&buf, r.PathValue("id"), dim, parseSelections(r.URL.Query())); err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	writeCSV(w, "success_by_"+dim+".csv", &buf)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.reports.ExportTransactions(&buf, r.PathValue("id"), parseSelections(r.URL.Query())); err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	writeCSV(w, "transactions.csv", &buf)
}

func writeCSV(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := s.reports.Discard(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDiscard, err)
		return
	}
	if r.Method == http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
