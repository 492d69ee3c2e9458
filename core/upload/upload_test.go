package upload

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/user"
)

type memStore struct {
	puts map[string]string // key: content type
}

func (s *memStore) Name() string { return "mem" }

func (s *memStore) Put(_ context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return "", err
	}
	if n != size {
		return "", errors.Errorf("read %d bytes, want %d", n, size)
	}
	s.puts[key] = contentType
	return "https://mem/" + key, nil
}

type assignments map[string]string // id: owner

func (a assignments) Get(_ context.Context, actor user.User, id string) (assignment.View, error) {
	owner, ok := a[id]
	if !ok {
		return assignment.View{}, assignment.ErrNotFound
	}
	if actor.IsProfessor() && actor.ID != owner {
		return assignment.View{}, core.NewForbiddenError("not yours")
	}
	return assignment.View{Assignment: assignment.Assignment{ID: id, CreatedBy: owner}}, nil
}

func file(name, contentType string, size int) File {
	return File{Filename: name, ContentType: contentType, Size: int64(size), Body: bytes.NewReader(make([]byte, size))}
}

func fieldMsg(t *testing.T, err error) string {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want a *core.ValidationError, got %v", err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "file", vErr.Fields[0].Field)
	return vErr.Fields[0].Error
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		file    File
		wantCT  string
		wantExt string
		wantMsg string
	}{
		{name: "png by header", kind: KindPostImage, file: file("a.png", "image/png", 10), wantCT: "image/png", wantExt: ".png"},
		{name: "png by extension", kind: KindPostImage, file: file("a.PNG", "application/octet-stream", 10), wantCT: "image/png", wantExt: ".png"},
		{name: "header parameters", kind: KindPostImage, file: file("a.jpeg", "Image/JPEG; charset=binary", 10), wantCT: "image/jpeg", wantExt: ".jpeg"},
		{name: "mismatched extension", kind: KindPostImage, file: file("a.txt", "image/gif", 10), wantCT: "image/gif", wantExt: ".gif"},
		{name: "no extension", kind: KindAssignmentDocument, file: file("report", "application/pdf", 10), wantCT: "application/pdf", wantExt: ".pdf"},
		{name: "max size", kind: KindPostImage, file: file("a.png", "image/png", 5*mb), wantCT: "image/png", wantExt: ".png"},
		{name: "document", kind: KindAssignmentDocument, file: file("a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", 10),
			wantCT: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", wantExt: ".docx"},
		{name: "no file", kind: KindPostImage, file: File{}, wantMsg: "a file is required"},
		{name: "empty", kind: KindPostImage, file: file("a.png", "image/png", 0), wantMsg: "file is empty"},
		{name: "image too large", kind: KindPostImage, file: file("a.png", "image/png", 5*mb+1), wantMsg: "file is too large: the maximum size is 5MB"},
		{name: "document too large", kind: KindAssignmentDocument, file: file("a.pdf", "application/pdf", 10*mb+1), wantMsg: "file is too large: the maximum size is 10MB"},
		{name: "image as document", kind: KindAssignmentDocument, file: file("a.png", "image/png", 10), wantMsg: `file type "image/png" is not allowed`},
		{name: "unknown type", kind: KindPostImage, file: file("a.zzz", "", 10), wantMsg: `file type "" is not allowed`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, ext, err := Validate(tt.kind, tt.file)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, fieldMsg(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCT, ct)
			assert.Equal(t, tt.wantExt, ext)
		})
	}

	_, _, err := Validate("video", file("a.mp4", "video/mp4", 10))
	assert.Error(t, err)
}

func TestService_Upload(t *testing.T) {
	store := &memStore{puts: make(map[string]string)}
	svc := NewService(store, assignments{"a1": "p1"})
	svc.newKey = func() string { return "k" }
	ctx := context.Background()
	student := user.User{ID: "s1", Role: user.RoleStudent}
	prof := user.User{ID: "p2", Role: user.RoleProfessor}

	res, err := svc.UploadPostImage(ctx, student, file("dir/cat.jpg", "image/jpeg", 42))
	require.NoError(t, err)
	assert.Equal(t, Result{
		URL:         "https://mem/posts/s1/k.jpg",
		Key:         "posts/s1/k.jpg",
		Filename:    "cat.jpg",
		ContentType: "image/jpeg",
		Size:        42,
	}, res)

	res, err = svc.UploadAssignmentFile(ctx, student, "a1", file("essay.pdf", "application/pdf", 7))
	require.NoError(t, err)
	assert.Equal(t, "assignments/a1/s1/k.pdf", res.Key)
	assert.Equal(t, "application/pdf", store.puts[res.Key])

	_, err = svc.UploadAssignmentFile(ctx, student, "nope", file("essay.pdf", "application/pdf", 7))
	assert.Equal(t, assignment.ErrNotFound, err)

	_, err = svc.UploadAssignmentFile(ctx, prof, "a1", file("essay.pdf", "application/pdf", 7))
	assert.True(t, core.IsKind(err, core.KindForbidden))

	_, err = svc.UploadPostImage(ctx, user.User{ID: "x", Role: "lol"}, file("cat.jpg", "image/jpeg", 1))
	assert.True(t, core.IsKind(err, core.KindForbidden))

	assert.Equal(t, Status{Configured: true, Provider: "mem"}, svc.Status())
	assert.Len(t, store.puts, 2)
}

func TestService_NotConfigured(t *testing.T) {
	svc := NewService(nil, assignments{})
	student := user.User{ID: "s1", Role: user.RoleStudent}

	// validation comes first
	_, err := svc.UploadPostImage(context.Background(), student, file("a.exe", "application/x-msdownload", 1))
	assert.True(t, strings.Contains(fieldMsg(t, err), "is not allowed"))

	_, err = svc.UploadPostImage(context.Background(), student, file("a.png", "image/png", 1))
	assert.Equal(t, ErrNotConfigured, err)
	assert.Equal(t, Status{}, svc.Status())
}

func TestService_Info(t *testing.T) {
	info := NewService(nil, nil).Info()
	assert.Equal(t, int64(10*mb), info.Assignment.MaxSize)
	assert.Equal(t, "10MB", info.Assignment.MaxSizeHuman)
	assert.Contains(t, info.Assignment.AllowedTypes, "application/pdf")
	assert.Equal(t, int64(5*mb), info.PostImage.MaxSize)
	assert.Equal(t, []string{"image/gif", "image/jpeg", "image/png", "image/webp"}, info.PostImage.AllowedTypes)
}
