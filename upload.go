package aegisx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Default client-side upload limits, mirrored from the files API.
const (
	DefaultMaxFileSize       int64 = 100 << 20
	DefaultMaxFilesPerUpload       = 10
)

func defaultAllowedTypes() []string {
	return []string{
		"image/jpeg",
		"image/png",
		"image/webp",
		"image/gif",
		"image/svg+xml",
		"application/pdf",
		"text/plain",
		"text/csv",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
}

// UploadLimits are the rules files are validated against before any
// bytes leave the client.
type UploadLimits struct {
	MaxFileSize  int64
	MaxFiles     int
	AllowedTypes []string
}

// DefaultUploadLimits returns the limits the files API enforces.
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxFileSize:  DefaultMaxFileSize,
		MaxFiles:     DefaultMaxFilesPerUpload,
		AllowedTypes: defaultAllowedTypes(),
	}
}

// UploadFile is one file selected for upload.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileValidationResult reports whether one file passed the client-side
// checks, with one message per violated rule.
type FileValidationResult struct {
	Name   string
	Valid  bool
	Errors []string
}

// Upload progress statuses.
type UploadStatus string

const (
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusError     UploadStatus = "error"
)

// UploadProgress is a point-in-time view of one file's upload.
type UploadProgress struct {
	Name    string
	Percent int
	Status  UploadStatus
	Err     string
	File    *UploadedFile
}

// ProgressFunc observes upload progress changes.
type ProgressFunc func(UploadProgress)

// SignedFileURLs are the pre-signed access URLs the files API attaches
// to file records.
type SignedFileURLs struct {
	View      string `json:"view"`
	Download  string `json:"download"`
	Thumbnail string `json:"thumbnail"`
}

// UploadedFile is the file record returned by the files API.
type UploadedFile struct {
	ID               string          `json:"id"`
	OriginalName     string          `json:"originalName"`
	Filename         string          `json:"filename"`
	MimeType         string          `json:"mimeType"`
	FileSize         int64           `json:"fileSize"`
	FileCategory     string          `json:"fileCategory,omitempty"`
	IsPublic         bool            `json:"isPublic"`
	IsTemporary      bool            `json:"isTemporary"`
	ExpiresAt        string          `json:"expiresAt,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	ProcessingStatus string          `json:"processingStatus,omitempty"`
	UploadedBy       string          `json:"uploadedBy,omitempty"`
	UploadedAt       string          `json:"uploadedAt,omitempty"`
	UpdatedAt        string          `json:"updatedAt,omitempty"`
	SignedURLs       *SignedFileURLs `json:"signedUrls,omitempty"`
}

// UploadOptions are the optional form fields accepted by the upload
// endpoints.
type UploadOptions struct {
	Category    string
	IsPublic    *bool
	IsTemporary *bool
	ExpiresIn   int
	Metadata    map[string]any
}

// FailedUpload is one file the server rejected in a batch upload.
type FailedUpload struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
}

// MultiUploadResult splits a batch upload into its accepted and
// rejected files.
type MultiUploadResult struct {
	Uploaded []UploadedFile `json:"uploaded"`
	Failed   []FailedUpload `json:"failed"`
}

// FileListQuery narrows and pages the file listing.
type FileListQuery struct {
	Page     int
	Limit    int
	Category string
	Search   string
}

// FileUpdateRequest carries the mutable file record fields.
type FileUpdateRequest struct {
	OriginalName string         `json:"originalName,omitempty"`
	IsPublic     *bool          `json:"isPublic,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SignedURLRequest asks the API to mint fresh signed access URLs.
type SignedURLRequest struct {
	ExpiresIn int `json:"expiresIn,omitempty"`
}

// FileStats summarizes the current user's stored files.
type FileStats struct {
	TotalFiles     int64            `json:"totalFiles"`
	TotalSize      int64            `json:"totalSize"`
	PublicFiles    int64            `json:"publicFiles"`
	TemporaryFiles int64            `json:"temporaryFiles"`
	Categories     map[string]int64 `json:"categories"`
}

// UploadService talks to the files API: client-side validation,
// multipart uploads with progress tracking, file listing and metadata
// management. Requests go through the configured HTTP client, normally
// one backed by the intercepting Transport so they carry the bearer
// token and survive a token rotation.
type UploadService struct {
	httpClient *http.Client
	cfg        Config
	logger     Logger
	limits     UploadLimits
	onProgress ProgressFunc

	mu       sync.Mutex
	progress map[string]UploadProgress
}

// UploadOption customizes UploadService construction.
type UploadOption func(*UploadService)

// WithUploadHTTPClient sets the HTTP client used for the files API.
func WithUploadHTTPClient(httpClient *http.Client) UploadOption {
	return func(s *UploadService) {
		if httpClient != nil {
			s.httpClient = httpClient
		}
	}
}

// WithUploadLogger overrides the default logger.
func WithUploadLogger(logger Logger) UploadOption {
	return func(s *UploadService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithUploadLimits replaces the default validation rules.
func WithUploadLimits(limits UploadLimits) UploadOption {
	return func(s *UploadService) {
		if limits.MaxFileSize > 0 {
			s.limits.MaxFileSize = limits.MaxFileSize
		}
		if limits.MaxFiles > 0 {
			s.limits.MaxFiles = limits.MaxFiles
		}
		if len(limits.AllowedTypes) > 0 {
			s.limits.AllowedTypes = limits.AllowedTypes
		}
	}
}

// WithUploadProgress observes per-file progress changes.
func WithUploadProgress(fn ProgressFunc) UploadOption {
	return func(s *UploadService) {
		s.onProgress = fn
	}
}

// NewUploadService returns a service bound to cfg.
func NewUploadService(cfg Config, opts ...UploadOption) *UploadService {
	s := &UploadService{
		httpClient: http.DefaultClient,
		cfg:        cfg,
		logger:     defLogger{},
		limits:     DefaultUploadLimits(),
		progress:   map[string]UploadProgress{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// ValidateFiles checks the selection against the configured limits
// before any bytes are sent. A selection over the file-count limit
// fails every file in it.
func (s *UploadService) ValidateFiles(files []UploadFile) []FileValidationResult {
	results := make([]FileValidationResult, 0, len(files))

	if len(files) > s.limits.MaxFiles {
		msg := fmt.Sprintf("Maximum %d files allowed. You selected %d files.", s.limits.MaxFiles, len(files))
		for _, file := range files {
			results = append(results, FileValidationResult{
				Name:   file.Name,
				Errors: []string{msg},
			})
		}
		return results
	}

	for _, file := range files {
		var errs []string

		size := int64(len(file.Data))
		if size > s.limits.MaxFileSize {
			errs = append(errs, fmt.Sprintf("File size %dMB exceeds maximum allowed size of %dMB",
				size/(1<<20), s.limits.MaxFileSize/(1<<20)))
		}
		if !s.typeAllowed(file.ContentType) {
			errs = append(errs, fmt.Sprintf("File type %q is not allowed", file.ContentType))
		}
		if size == 0 {
			errs = append(errs, "Empty files are not allowed")
		}

		results = append(results, FileValidationResult{
			Name:   file.Name,
			Valid:  len(errs) == 0,
			Errors: errs,
		})
	}

	return results
}

// Upload sends one file to the files API. The file is validated first;
// a rejected file never produces a request. Progress moves through
// uploading to completed (or error) and is observable through both the
// progress callback and Progress().
func (s *UploadService) Upload(ctx context.Context, file UploadFile, opts UploadOptions) (*UploadedFile, error) {
	if results := s.ValidateFiles([]UploadFile{file}); !results[0].Valid {
		err := errWithMetadata(ErrFileRejected, map[string]any{
			"file":   file.Name,
			"errors": results[0].Errors,
		})
		s.setProgress(file.Name, 0, UploadStatusError, nil, strings.Join(results[0].Errors, "; "))
		return nil, err
	}

	s.setProgress(file.Name, 0, UploadStatusUploading, nil, "")

	body, contentType, err := encodeUploadForm([]UploadFile{file}, opts)
	if err != nil {
		s.setProgress(file.Name, 0, UploadStatusError, nil, err.Error())
		return nil, err
	}

	env, status, err := s.send(ctx, http.MethodPost, "/api/files/upload", body, contentType, func(percent int) {
		s.setProgress(file.Name, percent, UploadStatusUploading, nil, "")
	})
	if err != nil {
		s.setProgress(file.Name, 0, UploadStatusError, nil, err.Error())
		return nil, err
	}

	if status != http.StatusOK && status != http.StatusCreated || env == nil || !env.Success {
		err := fileErrorFromStatus(status)
		s.setProgress(file.Name, 0, UploadStatusError, nil, err.Error())
		return nil, err
	}

	uploaded := &UploadedFile{}
	if err := json.Unmarshal(env.Data, uploaded); err != nil {
		err := goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed upload response")
		s.setProgress(file.Name, 0, UploadStatusError, nil, err.Error())
		return nil, err
	}

	s.setProgress(file.Name, 100, UploadStatusCompleted, uploaded, "")

	return uploaded, nil
}

// UploadMany sends a batch of files in one multipart request. The
// whole selection is validated first; any invalid file rejects the
// batch before bytes are sent. Per-file outcomes come back in the
// result: server-side rejections land in Failed without failing the
// call.
func (s *UploadService) UploadMany(ctx context.Context, files []UploadFile, opts UploadOptions) (*MultiUploadResult, error) {
	if len(files) == 0 {
		return &MultiUploadResult{}, nil
	}

	var rejected []string
	for _, result := range s.ValidateFiles(files) {
		if !result.Valid {
			rejected = append(rejected, result.Name)
		}
	}
	if len(rejected) > 0 {
		return nil, errWithMetadata(ErrFileRejected, map[string]any{
			"files": rejected,
		})
	}

	for _, file := range files {
		s.setProgress(file.Name, 0, UploadStatusUploading, nil, "")
	}

	body, contentType, err := encodeUploadForm(files, opts)
	if err != nil {
		s.failAll(files, err)
		return nil, err
	}

	env, status, err := s.send(ctx, http.MethodPost, "/api/files/upload/multiple", body, contentType, func(percent int) {
		for _, file := range files {
			s.setProgress(file.Name, percent, UploadStatusUploading, nil, "")
		}
	})
	if err != nil {
		s.failAll(files, err)
		return nil, err
	}

	if status != http.StatusOK && status != http.StatusCreated || env == nil || !env.Success {
		err := fileErrorFromStatus(status)
		s.failAll(files, err)
		return nil, err
	}

	result := &MultiUploadResult{}
	if err := json.Unmarshal(env.Data, result); err != nil {
		err := goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed upload response")
		s.failAll(files, err)
		return nil, err
	}

	for i := range result.Uploaded {
		uploaded := &result.Uploaded[i]
		s.setProgress(uploaded.OriginalName, 100, UploadStatusCompleted, uploaded, "")
	}
	for _, failed := range result.Failed {
		s.setProgress(failed.Filename, 0, UploadStatusError, nil, failed.Error)
	}

	return result, nil
}

// Files lists the current user's files.
func (s *UploadService) Files(ctx context.Context, query FileListQuery) ([]UploadedFile, error) {
	path := "/api/files"
	if qs := query.values().Encode(); qs != "" {
		path += "?" + qs
	}

	env, status, err := s.send(ctx, http.MethodGet, path, nil, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env == nil || !env.Success {
		return nil, fileErrorFromStatus(status)
	}

	var files []UploadedFile
	if err := json.Unmarshal(env.Data, &files); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed file list response")
	}
	return files, nil
}

// File fetches one file record by id.
func (s *UploadService) File(ctx context.Context, id string) (*UploadedFile, error) {
	env, status, err := s.send(ctx, http.MethodGet, "/api/files/"+url.PathEscape(id), nil, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env == nil || !env.Success {
		return nil, fileErrorFromStatus(status)
	}

	file := &UploadedFile{}
	if err := json.Unmarshal(env.Data, file); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed file response")
	}
	return file, nil
}

// UpdateFile patches the mutable file record fields.
func (s *UploadService) UpdateFile(ctx context.Context, id string, updates FileUpdateRequest) (*UploadedFile, error) {
	encoded, err := json.Marshal(updates)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode file update")
	}

	env, status, err := s.send(ctx, http.MethodPatch, "/api/files/"+url.PathEscape(id), encoded, "application/json", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env == nil || !env.Success {
		return nil, fileErrorFromStatus(status)
	}

	file := &UploadedFile{}
	if err := json.Unmarshal(env.Data, file); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed file response")
	}
	return file, nil
}

// DeleteFile removes a file.
func (s *UploadService) DeleteFile(ctx context.Context, id string) error {
	env, status, err := s.send(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(id), nil, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK || env == nil || !env.Success {
		return fileErrorFromStatus(status)
	}
	return nil
}

// SignedURLs asks the API to mint fresh signed access URLs for a file.
func (s *UploadService) SignedURLs(ctx context.Context, id string, req SignedURLRequest) (*SignedFileURLs, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode signed URL request")
	}

	env, status, err := s.send(ctx, http.MethodPost, "/api/files/"+url.PathEscape(id)+"/signed-urls", encoded, "application/json", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env == nil || !env.Success {
		return nil, fileErrorFromStatus(status)
	}

	urls := &SignedFileURLs{}
	if err := json.Unmarshal(env.Data, urls); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed signed URL response")
	}
	return urls, nil
}

// Stats fetches the current user's file statistics.
func (s *UploadService) Stats(ctx context.Context) (*FileStats, error) {
	env, status, err := s.send(ctx, http.MethodGet, "/api/files/stats", nil, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env == nil || !env.Success {
		return nil, fileErrorFromStatus(status)
	}

	stats := &FileStats{}
	if err := json.Unmarshal(env.Data, stats); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed file stats response")
	}
	return stats, nil
}

// DownloadURL builds the relative download path for a file, ready for
// a client backed by the intercepting Transport.
func (s *UploadService) DownloadURL(id string, disposition string) string {
	path := "/api/files/" + url.PathEscape(id) + "/download"
	if disposition != "" {
		path += "?disposition=" + url.QueryEscape(disposition)
	}
	return path
}

// Progress returns the current per-file progress snapshots.
func (s *UploadService) Progress() []UploadProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]UploadProgress, 0, len(s.progress))
	for _, p := range s.progress {
		out = append(out, p)
	}
	return out
}

// ClearProgress drops all progress tracking state.
func (s *UploadService) ClearProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = map[string]UploadProgress{}
}

func (s *UploadService) typeAllowed(contentType string) bool {
	for _, allowed := range s.limits.AllowedTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

func (s *UploadService) setProgress(name string, percent int, status UploadStatus, file *UploadedFile, errMsg string) {
	p := UploadProgress{
		Name:    name,
		Percent: percent,
		Status:  status,
		File:    file,
		Err:     errMsg,
	}

	s.mu.Lock()
	s.progress[name] = p
	s.mu.Unlock()

	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func (s *UploadService) failAll(files []UploadFile, err error) {
	for _, file := range files {
		s.setProgress(file.Name, 0, UploadStatusError, nil, err.Error())
	}
}

// send issues one request against the files API. For uploads the body
// is streamed through a counting reader so onProgress observes bytes
// leaving the client.
func (s *UploadService) send(ctx context.Context, method, path string, body []byte, contentType string, onProgress func(percent int)) (*apiEnvelope, int, error) {
	var reader io.Reader
	if body != nil {
		reader = &progressReader{
			r:          bytes.NewReader(body),
			total:      int64(len(body)),
			onProgress: onProgress,
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.GetAPIBaseURL()+path, reader)
	if err != nil {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build request")
	}

	if body != nil {
		req.ContentLength = int64(len(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(&progressReader{
				r:          bytes.NewReader(body),
				total:      int64(len(body)),
				onProgress: onProgress,
			}), nil
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, errWithMetadata(ErrNetwork, map[string]any{
			"path":  path,
			"cause": err.Error(),
		})
	}
	defer resp.Body.Close()

	env := &apiEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		env = nil
	}

	return env, resp.StatusCode, nil
}

// encodeUploadForm builds the multipart body shared by the single and
// batch upload endpoints. Every file goes under the "file" field; the
// options become plain form fields.
func encodeUploadForm(files []UploadFile, opts UploadOptions) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, file := range files {
		part, err := w.CreateFormFile("file", file.Name)
		if err != nil {
			return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build upload form")
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build upload form")
		}
	}

	if opts.Category != "" {
		w.WriteField("category", opts.Category)
	}
	if opts.IsPublic != nil {
		w.WriteField("isPublic", strconv.FormatBool(*opts.IsPublic))
	}
	if opts.IsTemporary != nil {
		w.WriteField("isTemporary", strconv.FormatBool(*opts.IsTemporary))
	}
	if opts.ExpiresIn > 0 {
		w.WriteField("expiresIn", strconv.Itoa(opts.ExpiresIn))
	}
	if opts.Metadata != nil {
		encoded, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode upload metadata")
		}
		w.WriteField("metadata", string(encoded))
	}

	if err := w.Close(); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build upload form")
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func (q FileListQuery) values() url.Values {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	return values
}

// progressReader counts bytes as the HTTP client drains the request
// body and reports whole-percent changes.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	last       int
	onProgress func(percent int)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)

	if p.onProgress != nil && p.total > 0 {
		percent := int(math.Round(float64(p.read) / float64(p.total) * 100))
		if percent > 100 {
			percent = 100
		}
		if percent != p.last {
			p.last = percent
			p.onProgress(percent)
		}
	}

	return n, err
}

// FormatFileSize renders a byte count for display.
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}

	value := math.Round(float64(bytes)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + units[i]
}

// FileTypeCategory buckets a MIME type for display.
func FileTypeCategory(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case strings.Contains(mimeType, "pdf"):
		return "pdf"
	case strings.Contains(mimeType, "word"), strings.Contains(mimeType, "document"):
		return "document"
	case strings.Contains(mimeType, "spreadsheet"), strings.Contains(mimeType, "excel"):
		return "spreadsheet"
	case strings.Contains(mimeType, "zip"), strings.Contains(mimeType, "compressed"):
		return "archive"
	default:
		return "file"
	}
}
