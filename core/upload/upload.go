package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/policy"
	"github.com/trezcool/jifunze/core/user"
)

const mb = 1 << 20

type Kind string

const (
	KindAssignmentDocument Kind = "assignment"
	KindPostImage          Kind = "post-image"
)

// Rule is the allow-list for one Kind of upload.
type Rule struct {
	MaxSize int64
	Types   map[string]string // content type: default extension
}

var Rules = map[Kind]Rule{
	KindAssignmentDocument: {
		MaxSize: 10 * mb,
		Types: map[string]string{
			"application/pdf":    ".pdf",
			"application/msword": ".doc",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
			"application/vnd.ms-powerpoint":                                             ".ppt",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
			"text/plain":      ".txt",
			"application/zip": ".zip",
		},
	},
	KindPostImage: {
		MaxSize: 5 * mb,
		Types: map[string]string{
			"image/jpeg": ".jpg",
			"image/png":  ".png",
			"image/gif":  ".gif",
			"image/webp": ".webp",
		},
	},
}

var (
	ErrNotConfigured = core.NewUnavailableError("file storage is not configured")

	errNoFile = "a file is required"
	errEmpty  = "file is empty"
)

type (
	// FileStore is a third party object storage.
	FileStore interface {
		// Put stores `size` bytes read from `r` under `key` and returns the public URL of the object.
		Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
		Name() string
	}

	// AssignmentGetter gives access to an assignment on behalf of a user.
	AssignmentGetter interface {
		Get(ctx context.Context, actor user.User, id string) (assignment.View, error)
	}

	File struct {
		Filename    string
		ContentType string
		Size        int64
		Body        io.Reader
	}

	Result struct {
		URL         string `json:"url"`
		Key         string `json:"key"`
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
		Size        int64  `json:"size"`
	}

	KindInfo struct {
		MaxSize      int64    `json:"max_size"`
		MaxSizeHuman string   `json:"max_size_human"`
		AllowedTypes []string `json:"allowed_types"`
	}

	Info struct {
		Assignment KindInfo `json:"assignment"`
		PostImage  KindInfo `json:"post_image"`
	}

	Status struct {
		Configured bool   `json:"configured"`
		Provider   string `json:"provider,omitempty"`
	}

	ServiceInterface interface {
		UploadAssignmentFile(ctx context.Context, actor user.User, assignmentID string, f File) (Result, error)
		UploadPostImage(ctx context.Context, actor user.User, f File) (Result, error)
		Info() Info
		Status() Status
	}

	Service struct {
		store       FileStore // nil when no provider is configured
		assignments AssignmentGetter
		newKey      func() string
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(store FileStore, assignments AssignmentGetter) *Service {
	return &Service{
		store:       store,
		assignments: assignments,
		newKey:      func() string { return uuid.NewString() },
	}
}

// UploadAssignmentFile stores a document attached to an assignment the user can read.
func (svc *Service) UploadAssignmentFile(ctx context.Context, actor user.User, assignmentID string, f File) (Result, error) {
	if _, err := svc.assignments.Get(ctx, actor, assignmentID); err != nil {
		return Result{}, err
	}
	prefix := path.Join("assignments", assignmentID, actor.ID)
	return svc.upload(ctx, actor, KindAssignmentDocument, prefix, f)
}

func (svc *Service) UploadPostImage(ctx context.Context, actor user.User, f File) (Result, error) {
	return svc.upload(ctx, actor, KindPostImage, path.Join("posts", actor.ID), f)
}

func (svc *Service) upload(ctx context.Context, actor user.User, kind Kind, prefix string, f File) (Result, error) {
	if err := policy.Check(actor, policy.ActionUpload, ""); err != nil {
		return Result{}, err
	}
	ct, ext, err := Validate(kind, f)
	if err != nil {
		return Result{}, err
	}
	if svc.store == nil {
		return Result{}, ErrNotConfigured
	}

	key := path.Join(prefix, svc.newKey()+ext)
	url, err := svc.store.Put(ctx, key, ct, f.Body, f.Size)
	if err != nil {
		return Result{}, errors.Wrapf(err, "uploading to %s", svc.store.Name())
	}
	return Result{
		URL:         url,
		Key:         key,
		Filename:    path.Base(f.Filename),
		ContentType: ct,
		Size:        f.Size,
	}, nil
}

func (svc *Service) Info() Info {
	return Info{
		Assignment: kindInfo(KindAssignmentDocument),
		PostImage:  kindInfo(KindPostImage),
	}
}

func (svc *Service) Status() Status {
	if svc.store == nil {
		return Status{}
	}
	return Status{Configured: true, Provider: svc.store.Name()}
}

// Validate checks `f` against the rule of `kind`.
// It returns the normalized content type and the extension to store the file with.
func Validate(kind Kind, f File) (string, string, error) {
	rule, ok := Rules[kind]
	if !ok {
		return "", "", errors.Errorf("unknown upload kind %q", kind)
	}
	if f.Body == nil || f.Filename == "" {
		return "", "", core.NewFieldError("file", errNoFile)
	}
	if f.Size <= 0 {
		return "", "", core.NewFieldError("file", errEmpty)
	}
	if f.Size > rule.MaxSize {
		return "", "", core.NewFieldError("file", fmt.Sprintf("file is too large: the maximum size is %s", humanSize(rule.MaxSize)))
	}

	ext := strings.ToLower(path.Ext(f.Filename))
	ct := normalizeContentType(f.ContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = normalizeContentType(mime.TypeByExtension(ext))
	}
	defExt, ok := rule.Types[ct]
	if !ok {
		return "", "", core.NewFieldError("file", fmt.Sprintf("file type %q is not allowed", ct))
	}
	if ext == "" || normalizeContentType(mime.TypeByExtension(ext)) != ct {
		ext = defExt
	}
	return ct, ext, nil
}

func normalizeContentType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

func kindInfo(kind Kind) KindInfo {
	rule := Rules[kind]
	types := make([]string, 0, len(rule.Types))
	for ct := range rule.Types {
		types = append(types, ct)
	}
	sort.Strings(types)
	return KindInfo{
		MaxSize:      rule.MaxSize,
		MaxSizeHuman: humanSize(rule.MaxSize),
		AllowedTypes: types,
	}
}

func humanSize(n int64) string {
	return fmt.Sprintf("%dMB", n/mb)
}
