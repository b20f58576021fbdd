package services

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"rareport/internal/cache"
	"rareport/internal/core"
	"rareport/internal/journal"
	"rareport/internal/log"
	"rareport/internal/pipeline"
)

// Session is one uploaded file, prepared once and never modified.
type Session struct {
	ID        string
	Filename  string
	CreatedAt time.Time
	Data      *core.Dataset
	Payin     *core.Dataset
	Payout    *core.Dataset
	Issues    []core.RowIssue
	Summary   core.UploadSummary
}

// Config configures a ReportService.
type Config struct {
	Encoding   encoding.Encoding
	SessionTTL time.Duration
	SessionMax int
	Journal    journal.Recorder
	Logger     *log.Logger
}

// ReportService owns upload sessions and answers filter, report and export
// requests against them.
type ReportService struct {
	enc      encoding.Encoding
	sessions *cache.LRUCache[*Session]
	manager  *cache.Manager
	journal  journal.Recorder
	logger   *log.Logger
	now      func() time.Time

	uploadsOK     atomic.Int64
	uploadsFailed atomic.Int64
}

func NewReportService(cfg Config) *ReportService {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.SessionMax < 1 {
		cfg.SessionMax = 32
	}
	logger := cfg.Logger.WithComponent(log.ComponentReport)

	sessions := cache.NewLRUCache[*Session](cfg.SessionMax, cfg.SessionTTL)
	sessions.OnEvict = func(id string, s *Session) {
		logger.Info("Session evicted", log.FieldSessionID, id, log.FieldFilename, s.Filename)
	}
	manager := cache.NewManager(cfg.Logger.WithComponent(log.ComponentCache))
	manager.Register(sessions)
	manager.StartCleanup(cleanupInterval(cfg.SessionTTL))

	return &ReportService{
		enc:      cfg.Encoding,
		sessions: sessions,
		manager:  manager,
		journal:  cfg.Journal,
		logger:   logger,
		now:      time.Now,
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	return interval
}

// Upload runs the pipeline over r and stores the result as a new session.
// Input problems are returned as *core.MalformedInputError or
// *core.MissingColumnError. Every attempt is journaled.
func (s *ReportService) Upload(ctx context.Context, filename string, r io.Reader) (*Session, error) {
	cr := &countingReader{r: r}
	summary := core.UploadSummary{Filename: filename, ReceivedAt: s.now().UTC()}

	res, err := pipeline.Run(cr, s.enc)
	summary.Bytes = cr.n
	if err != nil {
		summary.Status = core.UploadStatusFailed
		summary.Error = err.Error()
		s.uploadsFailed.Add(1)
		s.record(ctx, summary)
		return nil, err
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Filename:  filename,
		CreatedAt: summary.ReceivedAt,
		Data:      res.Dataset,
		Payin:     res.Payin,
		Payout:    res.Payout,
		Issues:    res.Issues,
	}
	summary.SessionID = sess.ID
	summary.RowsRead = res.RowsRead
	summary.RowsKept = res.Dataset.Len()
	summary.DuplicatesRemoved = res.DuplicatesRemoved
	summary.BadTimestamps = res.BadTimestamps()
	summary.BadAmounts = res.BadAmounts()
	summary.Status = core.UploadStatusOK
	sess.Summary = summary

	s.sessions.Set(sess.ID, sess)
	s.uploadsOK.Add(1)

	s.logger.InfoContext(ctx, "Upload processed", log.NewFields().
		WithUpload(sess.ID, filename, summary.Bytes, summary.RowsRead, summary.RowsKept, summary.DuplicatesRemoved).
		WithOperation(log.OpUpload).ToSlice()...)
	if n := len(res.Issues); n > 0 {
		s.logger.WarnContext(ctx, "Upload has row issues",
			log.FieldSessionID, sess.ID,
			"bad_timestamps", summary.BadTimestamps,
			"bad_amounts", summary.BadAmounts)
	}

	s.record(ctx, summary)
	return sess, nil
}

func (s *ReportService) record(ctx context.Context, summary core.UploadSummary) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, summary); err != nil {
		s.logger.WarnContext(ctx, "Failed to record upload summary",
			log.FieldError, err,
			log.FieldSessionID, summary.SessionID,
			log.FieldOperation, log.OpRecord)
	}
}

// Session returns a live session or core.ErrSessionNotFound.
func (s *ReportService) Session(id string) (*Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return sess, nil
}

// Discard removes a session.
func (s *ReportService) Discard(ctx context.Context, id string) error {
	if !s.sessions.Delete(id) {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	s.logger.InfoContext(ctx, "Session discarded", log.FieldSessionID, id, log.FieldOperation, log.OpDiscard)
	return nil
}

// Options returns the cascading filter options for sel.
func (s *ReportService) Options(id string, sel core.Selections) ([]core.DimensionOptions, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return pipeline.FilterOptions(sess.Data, sel)
}

// Report aggregates the session filtered by sel.
func (s *ReportService) Report(id string, sel core.Selections) (*core.Report, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	rep, err := pipeline.Summarize(sess.Data, sess.Payin, sess.Payout, sel)
	if err != nil {
		return nil, err
	}
	rep.SessionID = sess.ID
	return rep, nil
}

// ExportGroup writes the SUCCESS-only sums of the filtered view grouped by
// dim as CSV.
func (s *ReportService) ExportGroup(w io.Writer, id, dim string, sel core.Selections) error {
	if !core.IsExportDimension(dim) {
		return fmt.Errorf("%w: %s", core.ErrUnknownDimension, dim)
	}
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	view, err := pipeline.ApplyFilters(sess.Data, sel)
	if err != nil {
		return err
	}
	totals, err := pipeline.GroupSumSuccess(view, dim)
	if err != nil {
		return err
	}
	return pipeline.WriteGroupCSV(w, dim, totals)
}

// ExportTransactions writes the filtered rows as CSV.
func (s *ReportService) ExportTransactions(w io.Writer, id string, sel core.Selections) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	view, err := pipeline.ApplyFilters(sess.Data, sel)
	if err != nil {
		return err
	}
	return pipeline.WriteTransactionsCSV(w, view)
}

// Stats are counters exposed on the metrics endpoint.
type Stats struct {
	Sessions      int
	UploadsOK     int64
	UploadsFailed int64
}

func (s *ReportService) Stats() Stats {
	return Stats{
		Sessions:      s.sessions.Size(),
		UploadsOK:     s.uploadsOK.Load(),
		UploadsFailed: s.uploadsFailed.Load(),
	}
}

// Close stops background session cleanup.
func (s *ReportService) Close() error {
	s.manager.Stop()
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
