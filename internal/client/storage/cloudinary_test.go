package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudinary struct {
	LastParams uploader.UploadParams
	Result     *uploader.UploadResult
	Err        error
}

func (f *fakeCloudinary) Upload(_ context.Context, _ interface{}, p uploader.UploadParams) (*uploader.UploadResult, error) {
	f.LastParams = p
	return f.Result, f.Err
}

func TestCloudinaryStore_Put(t *testing.T) {
	fake := &fakeCloudinary{Result: &uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/video/upload/x.mp4"}}
	s := &CloudinaryStore{api: fake, folder: "gophchat"}

	u, err := s.Put(context.Background(), "users/u1/abc.mp4", strings.NewReader("v"), 1, "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/video/upload/x.mp4", u)
	assert.Equal(t, "users/u1/abc", fake.LastParams.PublicID)
	assert.Equal(t, "gophchat", fake.LastParams.Folder)
	assert.Equal(t, "video", fake.LastParams.ResourceType)
}

func TestCloudinaryStore_ErrorInResponse(t *testing.T) {
	fake := &fakeCloudinary{Result: &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid Signature abc"}}}
	s := &CloudinaryStore{api: fake}

	_, err := s.Put(context.Background(), "k.png", strings.NewReader(""), 0, "image/png")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestClassifyCloudinary(t *testing.T) {
	assert.ErrorIs(t, classifyCloudinary("Monthly quota reached", errors.New("q")), common.ErrQuotaExceeded)
	assert.ErrorIs(t, classifyCloudinary("Rate Limit Exceeded", errors.New("r")), common.ErrTooManyRequests)
	assert.ErrorIs(t, classifyCloudinary("x", context.DeadlineExceeded), common.ErrNetwork)
	assert.Equal(t, common.KindUnknown, common.KindOf(classifyCloudinary("boom", errors.New("boom"))))
}

func TestResourceType(t *testing.T) {
	assert.Equal(t, "image", resourceType("image/gif"))
	assert.Equal(t, "video", resourceType("video/webm"))
	assert.Equal(t, "auto", resourceType("application/pdf"))
}
