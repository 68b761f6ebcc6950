package reporting

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/docshield/internal/shared/id"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

// DefaultCapacity is the number of reports kept before the oldest are dropped.
const DefaultCapacity = 1000

// recentCount is how many reports Summary includes.
const recentCount = 10

// ErrorReport is an immutable, user-presentable description of a failure.
type ErrorReport struct {
	ID                  string                 `json:"id" yaml:"id"`
	Severity            Severity               `json:"severity" yaml:"severity"`
	Title               string                 `json:"title" yaml:"title"`
	Message             string                 `json:"message" yaml:"message"`
	FilePath            string                 `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	ErrorCode           string                 `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Kind                taxonomy.Kind          `json:"kind,omitempty" yaml:"kind,omitempty"`
	TechnicalDetails    map[string]interface{} `json:"technical_details" yaml:"technical_details"`
	UserFacingMessage   string                 `json:"user_facing_message,omitempty" yaml:"user_facing_message,omitempty"`
	RecoverySuggestions []string               `json:"recovery_suggestions" yaml:"recovery_suggestions"`
	Timestamp           time.Time              `json:"timestamp" yaml:"timestamp"`
}

// Context describes where a failure happened.
type Context struct {
	FilePath  string
	File      *types.FileDescriptor
	Operation string
	// Recovery names the recovery outcome, if recovery was attempted.
	Recovery string
	Extra    map[string]interface{}
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the log sink.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics counts reports into metrics.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(r *Reporter) {
		r.metrics = metrics
	}
}

// WithCapacity sets the history size. Values <= 0 use DefaultCapacity.
func WithCapacity(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// Reporter turns failures into ErrorReports and keeps a bounded history.
// It never panics and never returns an error from ReportError.
type Reporter struct {
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
	capacity int

	mu          sync.RWMutex
	ring        []ErrorReport
	head        int // index of the oldest report
	size        int
	callback    func(ErrorReport)
	subscribers map[int]func(ErrorReport)
	nextSub     int
}

// NewReporter creates a reporter.
func NewReporter(opts ...Option) *Reporter {
	r := &Reporter{
		logger:      zap.NewNop(),
		now:         time.Now,
		capacity:    DefaultCapacity,
		subscribers: make(map[int]func(ErrorReport)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ring = make([]ErrorReport, r.capacity)
	return r
}

// Capacity returns the history size.
func (r *Reporter) Capacity() int {
	return r.capacity
}

// SetErrorCallback registers the notification callback. nil removes it.
func (r *Reporter) SetErrorCallback(fn func(ErrorReport)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = fn
}

// Subscribe adds an additional observer and returns a function removing it.
func (r *Reporter) Subscribe(fn func(ErrorReport)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.nextSub
	r.nextSub++
	r.subscribers[key] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, key)
	}
}

// ReportError builds a report for err, stores it, logs it and notifies
// observers.
func (r *Reporter) ReportError(err error, rc Context) (report *ErrorReport) {
	defer func() {
		if p := recover(); p != nil {
			report = r.minimalReport(err, rc, p)
		}
	}()

	built := r.build(err, rc)
	r.store(built)
	r.log(built, err)
	r.metrics.RecordReport(built.Severity.String(), string(built.Kind))
	r.notify(built)
	return &built
}

func (r *Reporter) build(err error, rc Context) ErrorReport {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}

	path := rc.FilePath
	if path == "" && rc.File != nil {
		path = rc.File.Path
	}

	severity := SeverityOf(err)
	details := map[string]interface{}{
		"error_type": fmt.Sprintf("%T", err),
		"message":    err.Error(),
	}

	var (
		kind    taxonomy.Kind
		code    string
		carried []string
	)
	if ce, ok := taxonomy.AsConversionError(err); ok {
		kind = ce.Kind
		code = ce.Code()
		carried = ce.Suggestions
		details["kind"] = string(ce.Kind)
		details["recoverable"] = ce.Recoverable()
		for k, v := range ce.Details {
			details[k] = v
		}
		if path == "" {
			path = ce.SourceLocation
		}
	}

	if rc.Operation != "" {
		details["operation"] = rc.Operation
	}
	if rc.Recovery != "" {
		details["recovery"] = rc.Recovery
	}
	if rc.File != nil {
		details["file"] = rc.File.Metadata()
	}
	for k, v := range rc.Extra {
		details[k] = v
	}

	tmpl := templateFor(kind, severity)
	name := ""
	if path != "" {
		name = filepath.Base(path)
	}
	title, userMessage := tmpl.render(name)

	suggestions := mergeSuggestions(tmpl.Suggestions, carried)
	if len(suggestions) == 0 {
		suggestions = []string{taxonomy.SkipHint}
	}

	return ErrorReport{
		ID:                  id.NewReportID().String(),
		Severity:            severity,
		Title:               title,
		Message:             err.Error(),
		FilePath:            path,
		ErrorCode:           code,
		Kind:                kind,
		TechnicalDetails:    details,
		UserFacingMessage:   userMessage,
		RecoverySuggestions: suggestions,
		Timestamp:           r.now(),
	}
}

// minimalReport is used when building the full report panicked.
func (r *Reporter) minimalReport(err error, rc Context, p interface{}) *ErrorReport {
	msg := "unknown error"
	func() {
		defer func() { _ = recover() }()
		if err != nil {
			msg = err.Error()
		}
	}()
	r.logger.Error("Error reporter failed to build report", zap.Any("panic", p))
	return &ErrorReport{
		Severity:            SeverityError,
		Title:               genericTemplate.Title,
		Message:             msg,
		FilePath:            rc.FilePath,
		TechnicalDetails:    map[string]interface{}{"reporter_panic": fmt.Sprint(p)},
		RecoverySuggestions: []string{taxonomy.SkipHint},
		Timestamp:           time.Now(),
	}
}

func (r *Reporter) store(report ErrorReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < r.capacity {
		r.ring[(r.head+r.size)%r.capacity] = report
		r.size++
		return
	}
	r.ring[r.head] = report
	r.head = (r.head + 1) % r.capacity
}

func (r *Reporter) log(report ErrorReport, err error) {
	fields := []zap.Field{
		zap.String("report_id", report.ID),
		zap.String("severity", report.Severity.String()),
		zap.String("title", report.Title),
		zap.String("file", report.FilePath),
		zap.String("code", report.ErrorCode),
		zap.Error(err),
	}
	if report.Severity == SeverityCritical {
		fields = append(fields, zap.Bool("critical", true))
	}
	if ce := r.logger.Check(report.Severity.zapLevel(), report.Title); ce != nil {
		ce.Write(fields...)
	}
}

func (r *Reporter) notify(report ErrorReport) {
	r.mu.RLock()
	observers := make([]func(ErrorReport), 0, len(r.subscribers)+1)
	if r.callback != nil {
		observers = append(observers, r.callback)
	}
	for _, fn := range r.subscribers {
		observers = append(observers, fn)
	}
	r.mu.RUnlock()

	for _, fn := range observers {
		r.safeCall(fn, report)
	}
}

func (r *Reporter) safeCall(fn func(ErrorReport), report ErrorReport) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("Error callback panicked",
				zap.String("report_id", report.ID),
				zap.Any("panic", p))
		}
	}()
	fn(report)
}

// snapshotLocked returns the history oldest first. Caller holds the lock.
func (r *Reporter) snapshotLocked() []ErrorReport {
	out := make([]ErrorReport, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.ring[(r.head+i)%r.capacity]
	}
	return out
}

// Filter narrows Reports.
type Filter struct {
	// Severity, when set, keeps only reports of exactly that severity.
	Severity *Severity
	// Last keeps only the newest N matching reports. Zero keeps all.
	Last int
}

// Reports returns matching reports, oldest first.
func (r *Reporter) Reports(f Filter) []ErrorReport {
	r.mu.RLock()
	all := r.snapshotLocked()
	r.mu.RUnlock()

	out := all[:0]
	for _, rep := range all {
		if f.Severity != nil && rep.Severity != *f.Severity {
			continue
		}
		out = append(out, rep)
	}
	if f.Last > 0 && len(out) > f.Last {
		out = out[len(out)-f.Last:]
	}
	return out
}

// Len returns the number of stored reports.
func (r *Reporter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Summary aggregates the history.
type Summary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByKind     map[string]int `json:"by_kind"`
	Recent     []ErrorReport  `json:"recent"`
}

// Summary counts reports by severity and kind and includes the most recent.
func (r *Reporter) Summary() Summary {
	all := r.Reports(Filter{})

	s := Summary{
		Total:      len(all),
		BySeverity: make(map[string]int),
		ByKind:     make(map[string]int),
	}
	for _, rep := range all {
		s.BySeverity[rep.Severity.String()]++
		kind := string(rep.Kind)
		if kind == "" {
			kind = "unclassified"
		}
		s.ByKind[kind]++
	}
	recent := all
	if len(recent) > recentCount {
		recent = recent[len(recent)-recentCount:]
	}
	s.Recent = append([]ErrorReport(nil), recent...)
	return s
}

// Clear removes reports older than olderThan and returns how many were
// removed. olderThan <= 0 removes everything.
func (r *Reporter) Clear(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.snapshotLocked()
	keep := all[:0]
	if olderThan > 0 {
		cutoff := r.now().Add(-olderThan)
		for _, rep := range all {
			if !rep.Timestamp.Before(cutoff) {
				keep = append(keep, rep)
			}
		}
	}
	removed := r.size - len(keep)

	r.ring = make([]ErrorReport, r.capacity)
	copy(r.ring, keep)
	r.head = 0
	r.size = len(keep)
	return removed
}
