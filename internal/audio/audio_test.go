package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/verbal-diary/internal/logging"
)

func TestLocalArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "voice_messages")
	a, err := NewLocalArchive(dir)
	require.NoError(t, err)

	p, err := a.SaveAudio(context.Background(), "file-1.ogg", []byte("OggS"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "file-1.ogg"), p)

	require.NoError(t, a.SaveTranscript(context.Background(), "file-1.txt", "hello world"))
	got, err := os.ReadFile(filepath.Join(dir, "file-1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestLocalArchive_NameCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	a, err := NewLocalArchive(dir)
	require.NoError(t, err)

	p, err := a.SaveAudio(context.Background(), "../../etc/evil.ogg", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "evil.ogg"), p)
}

type fakePutter struct {
	keys   []string
	types  []string
	bodies []string
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	f.types = append(f.types, aws.ToString(in.ContentType))
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Mirror_UploadsAfterLocalWrite(t *testing.T) {
	local, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	putter := &fakePutter{}
	m := newS3Mirror(local, putter, "diary", "voice_messages", logging.Discard())

	p, err := m.SaveAudio(context.Background(), "f.ogg", []byte("OggS"))
	require.NoError(t, err)
	assert.FileExists(t, p)
	require.NoError(t, m.SaveTranscript(context.Background(), "f.txt", "text"))

	assert.Equal(t, []string{"diary/voice_messages/f.ogg", "diary/voice_messages/f.txt"}, putter.keys)
	assert.Equal(t, []string{"audio/ogg", "text/plain; charset=utf-8"}, putter.types)
	assert.Equal(t, []string{"OggS", "text"}, putter.bodies)
}

func TestS3Mirror_UploadFailureIsNotFatal(t *testing.T) {
	local, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	m := newS3Mirror(local, &fakePutter{err: errors.New("denied")}, "b", "", logging.Discard())

	p, err := m.SaveAudio(context.Background(), "f.m4a", []byte("x"))
	require.NoError(t, err)
	assert.FileExists(t, p)
}
