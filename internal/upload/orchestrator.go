// Package upload turns an uploaded image into a persisted transaction, a
// memory and an image record, with AI analysis in between.
package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/zentry-app/zentry-api/internal/analysis"
	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/jobs"
	"github.com/zentry-app/zentry-api/internal/ledger"
)

const (
	// TransactionDescription is the description of every analyzed transaction.
	TransactionDescription = "AI Analyzed Transaction"
	// MemoryTitle is the title of the memory carrying the analysis text.
	MemoryTitle = "AI Memory"

	// DefaultMaxBytes caps an upload when no limit is configured.
	DefaultMaxBytes = 10 << 20

	sniffLen = 512

	// defaultEnqueueTimeout bounds a retry enqueue when no index timeout is set.
	defaultEnqueueTimeout = 5 * time.Second
)

// UserFinder looks up provisioned users by external identity id.
type UserFinder interface {
	FindUserByExternalID(ctx context.Context, externalID string) (domain.User, error)
}

// ObjectStore persists uploads and reads them back by URI.
type ObjectStore interface {
	UploadFile(ctx context.Context, owner, filePath, contentType string) (domain.Asset, error)
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Analyzer describes an image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (string, error)
	Model() string
}

// TransactionCreator persists a transaction with its memories atomically.
type TransactionCreator interface {
	Create(ctx context.Context, owner domain.Identity, in ledger.CreateInput) (domain.Transaction, error)
}

// ImageRecordStore writes image records to the document store.
type ImageRecordStore interface {
	CreateImageRecord(ctx context.Context, rec domain.ImageRecord) (domain.ImageRecord, error)
}

// AuditLog records analysis attempts.
type AuditLog interface {
	RecordAnalysisRun(ctx context.Context, run domain.AnalysisRun) error
}

// IndexPublisher enqueues image record writes for retry.
type IndexPublisher interface {
	PublishIndexImage(ctx context.Context, job *jobs.IndexImageJob) error
}

// File is one uploaded binary. ContentType may be empty; it is then sniffed
// from the content.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Result is what a successful or partially successful upload produced.
type Result struct {
	Transaction domain.Transaction  `json:"transaction"`
	Memory      domain.Memory       `json:"memory"`
	ImageRecord *domain.ImageRecord `json:"imageRecord,omitempty"`
	IndexJobID  string              `json:"indexJobId,omitempty"`
}

// Timeouts bound each external step. Zero disables the bound.
type Timeouts struct {
	ObjectStore time.Duration
	Analysis    time.Duration
	Index       time.Duration
}

// Orchestrator runs the upload and analysis flow.
type Orchestrator struct {
	users    UserFinder
	objects  ObjectStore
	analyzer Analyzer
	ledger   TransactionCreator
	images   ImageRecordStore
	audit    AuditLog
	index    IndexPublisher
	log      zerolog.Logger

	timeouts Timeouts
	maxBytes int64
	tempDir  string
	now      func() time.Time
	newID    func() string

	// background tracks best-effort audit writes.
	background sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithAuditLog records every analysis attempt to log.
func WithAuditLog(log AuditLog) Option {
	return func(o *Orchestrator) { o.audit = log }
}

// WithIndexPublisher enqueues a retry when the image record write fails.
func WithIndexPublisher(p IndexPublisher) Option {
	return func(o *Orchestrator) { o.index = p }
}

// WithTimeouts sets per-step timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// WithMaxBytes caps the upload size.
func WithMaxBytes(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxBytes = n
		}
	}
}

// WithTempDir sets where uploads are spooled before they are stored.
func WithTempDir(dir string) Option {
	return func(o *Orchestrator) { o.tempDir = dir }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator.
func New(users UserFinder, objects ObjectStore, analyzer Analyzer, ledger TransactionCreator, images ImageRecordStore, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		users:    users,
		objects:  objects,
		analyzer: analyzer,
		ledger:   ledger,
		images:   images,
		log:      log,
		maxBytes: DefaultMaxBytes,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process stores f, analyzes it and records the outcome for owner.
//
// Errors before the transaction is created leave nothing persisted except
// the stored object. When only the image record write fails, Process returns
// the populated Result together with an error matching domain.ErrImageIndex.
func (o *Orchestrator) Process(ctx context.Context, owner domain.Identity, f *File) (Result, error) {
	log := o.log.With().Str("owner_id", owner.ExternalID).Logger()

	user, err := o.users.FindUserByExternalID(ctx, owner.ExternalID)
	if err != nil {
		return Result{}, fmt.Errorf("Upload: find user: %w", err)
	}
	if f == nil || f.Reader == nil {
		return Result{}, domain.ErrNoFile
	}

	tmpPath, contentType, err := o.spool(f)
	if tmpPath != "" {
		defer removeTemp(tmpPath, log)
	}
	if err != nil {
		return Result{}, err
	}

	asset, err := o.store(ctx, owner, tmpPath, contentType)
	removeTemp(tmpPath, log)
	if err != nil {
		log.Error().Err(err).Str("operation", "Upload").Msg("Object store upload failed")
		return Result{}, domain.ErrObjectStore.Wrap(err)
	}
	log = log.With().Str("asset_id", asset.ID).Logger()

	text, err := o.analyze(ctx, asset)
	if err != nil {
		o.record(owner, asset, "", decimal.Zero, false, err)
		log.Error().Err(err).Str("operation", "Upload").Msg("Image analysis failed")
		return Result{}, domain.ErrAnalysis.Wrap(err)
	}

	amount, found := analysis.ExtractTotal(text)
	o.record(owner, asset, text, amount, found, nil)
	if !found {
		log.Info().Msg("No total found in analysis, defaulting amount to zero")
	}

	url := asset.URL
	tx, err := o.ledger.Create(ctx, owner, ledger.CreateInput{
		Description: TransactionDescription,
		Amount:      amount,
		Memories: []domain.MemoryInput{{
			Title:       MemoryTitle,
			Description: text,
			ImageURL:    &url,
		}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("Upload: create transaction: %w", err)
	}

	res := Result{Transaction: tx}
	if len(tx.Memories) > 0 {
		res.Memory = tx.Memories[0]
	}

	rec := domain.ImageRecord{
		UserID:      user.ID,
		ExternalID:  owner.ExternalID,
		URL:         asset.URL,
		AssetID:     asset.ID,
		UploadedAt:  o.now(),
		Title:       MemoryTitle,
		Description: text,
	}
	saved, err := o.writeRecord(ctx, rec)
	if err != nil {
		log.Error().
			Err(err).
			Str("operation", "Upload").
			Str("target_id", tx.ID).
			Msg("Image record write failed after transaction was saved")
		res.IndexJobID = o.enqueueIndex(ctx, owner, tx.ID, rec, log)
		return res, domain.ErrImageIndex.Wrap(err)
	}
	res.ImageRecord = &saved

	log.Info().
		Str("transaction_id", tx.ID).
		Str("amount", amount.String()).
		Bool("amount_found", found).
		Msg("Upload analyzed")
	return res, nil
}

// Wait blocks until background audit writes have finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// spool copies the upload into a temporary file, enforcing the size limit
// and the image content type. The returned path is set whenever a file was
// created, even on error.
func (o *Orchestrator) spool(f *File) (string, string, error) {
	br := bufio.NewReaderSize(f.Reader, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", "", fmt.Errorf("Upload: reading upload: %w", err)
	}
	if len(head) == 0 {
		return "", "", domain.ErrNoFile
	}

	contentType := mediaType(f.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mediaType(http.DetectContentType(head))
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", domain.ErrUnsupportedMedia.Wrap(fmt.Errorf("content type %q", contentType))
	}

	tmp, err := os.CreateTemp(o.tempDir, "upload-*"+extension(f.Name, contentType))
	if err != nil {
		return "", "", fmt.Errorf("Upload: creating temp file: %w", err)
	}
	path := tmp.Name()

	n, err := io.Copy(tmp, io.LimitReader(br, o.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return path, "", domain.ErrFileTooLarge
		}
		return path, "", fmt.Errorf("Upload: writing temp file: %w", err)
	}
	if n > o.maxBytes {
		return path, "", domain.ErrFileTooLarge
	}
	return path, contentType, nil
}

func (o *Orchestrator) store(ctx context.Context, owner domain.Identity, path, contentType string) (domain.Asset, error) {
	ctx, cancel := withTimeout(ctx, o.timeouts.ObjectStore)
	defer cancel()
	return o.objects.UploadFile(ctx, owner.ExternalID, path, contentType)
}

// analyze refetches the stored object so the model sees exactly the bytes
// that were persisted.
func (o *Orchestrator) analyze(ctx context.Context, asset domain.Asset) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeouts.Analysis)
	defer cancel()

	data, err := o.objects.Fetch(ctx, asset.URI)
	if err != nil {
		return "", fmt.Errorf("fetch stored asset: %w", err)
	}
	return o.analyzer.Analyze(ctx, data, asset.ContentType)
}

func (o *Orchestrator) writeRecord(ctx context.Context, rec domain.ImageRecord) (domain.ImageRecord, error) {
	ctx, cancel := withTimeout(ctx, o.timeouts.Index)
	defer cancel()
	return o.images.CreateImageRecord(ctx, rec)
}

func (o *Orchestrator) enqueueIndex(ctx context.Context, owner domain.Identity, txID string, rec domain.ImageRecord, log zerolog.Logger) string {
	if o.index == nil {
		return ""
	}
	job := &jobs.IndexImageJob{
		JobID:         o.newID(),
		OwnerID:       owner.ExternalID,
		TransactionID: txID,
		Record:        rec,
	}
	// The enqueue outlives a cancelled request but not a full queue.
	timeout := o.timeouts.Index
	if timeout <= 0 {
		timeout = defaultEnqueueTimeout
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := o.index.PublishIndexImage(pubCtx, job); err != nil {
		log.Error().Err(err).Str("target_id", txID).Msg("Failed to enqueue image index retry")
		return ""
	}
	log.Info().Str("job_id", job.JobID).Str("target_id", txID).Msg("Image index retry enqueued")
	return job.JobID
}

// record writes an audit entry in the background. Failures are logged only.
func (o *Orchestrator) record(owner domain.Identity, asset domain.Asset, text string, amount decimal.Decimal, found bool, cause error) {
	if o.audit == nil {
		return
	}
	run := domain.AnalysisRun{
		RunID:         o.newID(),
		AssetID:       asset.ID,
		UserID:        owner.ExternalID,
		Model:         o.analyzer.Model(),
		Status:        domain.AnalysisStatusSucceeded,
		ExtractedText: text,
		Amount:        amount,
		AmountFound:   found,
		CreatedAt:     o.now(),
	}
	if cause != nil {
		run.Status = domain.AnalysisStatusFailed
		run.ErrorMessage = cause.Error()
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := withTimeout(context.Background(), o.timeouts.Index)
		defer cancel()
		if err := o.audit.RecordAnalysisRun(ctx, run); err != nil {
			o.log.Warn().Err(err).Str("run_id", run.RunID).Str("asset_id", run.AssetID).Msg("Failed to record analysis run")
		}
	}()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func removeTemp(path string, log zerolog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp file")
	}
}

func mediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// extension keeps the client's extension when it is short and plain,
// otherwise derives one from the content type.
func extension(name, contentType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 1 && len(ext) <= 6 && strings.IndexFunc(ext[1:], func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) < 0 {
		return ext
	}
	if ext, ok := imageExtensions[contentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}
