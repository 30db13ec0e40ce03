package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	return Record{
		EventID:    uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"),
		Provider:   "worldline",
		ReceivedAt: time.Date(2024, 6, 1, 23, 30, 0, 0, time.FixedZone("CEST", 2*3600)),
		Payload:    []byte(`{"type":"payment.captured"}`),
	}
}

func TestRecord_Key(t *testing.T) {
	assert.Equal(t, "worldline/2024/06/01/0f8fad5b-d9cb-469f-a165-70867728950e.json.gz", testRecord().Key())

	rec := testRecord()
	rec.Provider = ""
	assert.Equal(t, "unknown/2024/06/01/0f8fad5b-d9cb-469f-a165-70867728950e.json.gz", rec.Key())
}

func TestFileArchiver_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := NewFileArchiver(dir, zerolog.Nop())
	ctx := context.Background()

	key, err := a.Archive(ctx, testRecord())
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err, "file on disk is gzipped")
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, testRecord().Payload, plain)

	got, err := a.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, testRecord().Payload, got)
}

func TestFileArchiver_Errors(t *testing.T) {
	dir := t.TempDir()
	a := NewFileArchiver(dir, zerolog.Nop())
	ctx := context.Background()

	_, err := a.Load(ctx, "missing.json.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open archive file")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.json.gz"), []byte("not gzip"), 0o644))
	_, err = a.Load(ctx, "plain.json.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create gzip reader")

	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = NewFileArchiver(blocker, zerolog.Nop()).Archive(ctx, testRecord())
	require.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	input   *s3.PutObjectInput
	putErr  error
	getErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.input = in
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestS3Archiver_RoundTrip(t *testing.T) {
	client := newFakeS3()
	a := newS3Archiver(client, "audit-bucket", "payment-events/", zerolog.Nop())
	ctx := context.Background()

	key, err := a.Archive(ctx, testRecord())
	require.NoError(t, err)
	assert.Equal(t, "payment-events/"+testRecord().Key(), key)

	require.NotNil(t, client.input)
	assert.Equal(t, "gzip", aws.ToString(client.input.ContentEncoding))
	assert.Equal(t, "application/json", aws.ToString(client.input.ContentType))
	assert.Equal(t, "worldline", client.input.Metadata["provider"])

	got, err := a.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, testRecord().Payload, got)
}

func TestS3Archiver_Errors(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("access denied")
	a := newS3Archiver(client, "audit-bucket", "", zerolog.Nop())

	_, err := a.Archive(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket=audit-bucket")

	_, err = a.Load(context.Background(), "nope")
	require.Error(t, err)
}

// stubArchiver is a function-backed Archiver for fallback tests.
type stubArchiver struct {
	archiveFunc func(ctx context.Context, rec Record) (string, error)
	loadFunc    func(ctx context.Context, key string) ([]byte, error)
}

func (s *stubArchiver) Archive(ctx context.Context, rec Record) (string, error) {
	if s.archiveFunc != nil {
		return s.archiveFunc(ctx, rec)
	}
	return "", errors.New("not implemented")
}

func (s *stubArchiver) Load(ctx context.Context, key string) ([]byte, error) {
	if s.loadFunc != nil {
		return s.loadFunc(ctx, key)
	}
	return nil, errors.New("not implemented")
}

func TestFallbackArchiver_Archive(t *testing.T) {
	ctx := context.Background()
	s3OK := &stubArchiver{archiveFunc: func(ctx context.Context, rec Record) (string, error) { return "s3:" + rec.Key(), nil }}
	s3Down := &stubArchiver{archiveFunc: func(ctx context.Context, rec Record) (string, error) { return "", errors.New("S3 connection failed") }}
	local := &stubArchiver{archiveFunc: func(ctx context.Context, rec Record) (string, error) { return "file:" + rec.Key(), nil }}
	localDown := &stubArchiver{archiveFunc: func(ctx context.Context, rec Record) (string, error) { return "", errors.New("disk full") }}

	tests := []struct {
		name      string
		s3        Archiver
		file      Archiver
		s3Enabled bool
		wantKey   string
		wantErr   string
	}{
		{name: "S3 success", s3: s3OK, file: local, s3Enabled: true, wantKey: "s3:"},
		{name: "S3 fails falls back to local", s3: s3Down, file: local, s3Enabled: true, wantKey: "file:"},
		{name: "S3 disabled", s3: s3OK, file: local, s3Enabled: false, wantKey: "file:"},
		{name: "S3 archiver nil", s3: nil, file: local, s3Enabled: true, wantKey: "file:"},
		{name: "both fail", s3: s3Down, file: localDown, s3Enabled: true, wantErr: "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewFallbackArchiver(tt.s3, tt.file, "payment-events/", tt.s3Enabled, zerolog.Nop())

			key, err := a.Archive(ctx, testRecord())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey+testRecord().Key(), key)
		})
	}
}

func TestFallbackArchiver_LoadPrefixHandling(t *testing.T) {
	ctx := context.Background()

	var s3Keys, fileKeys []string
	s3 := &stubArchiver{loadFunc: func(ctx context.Context, key string) ([]byte, error) {
		s3Keys = append(s3Keys, key)
		return nil, errors.New("NoSuchKey")
	}}
	file := &stubArchiver{loadFunc: func(ctx context.Context, key string) ([]byte, error) {
		fileKeys = append(fileKeys, key)
		return []byte("{}"), nil
	}}

	a := NewFallbackArchiver(s3, file, "payment-events/", true, zerolog.Nop())

	_, err := a.Load(ctx, "payment-events/mock/2024/06/01/x.json.gz")
	require.NoError(t, err)
	_, err = a.Load(ctx, "mock/2024/06/01/y.json.gz")
	require.NoError(t, err)

	assert.Equal(t, []string{"payment-events/mock/2024/06/01/x.json.gz", "payment-events/mock/2024/06/01/y.json.gz"}, s3Keys)
	assert.Equal(t, []string{"mock/2024/06/01/x.json.gz", "mock/2024/06/01/y.json.gz"}, fileKeys)
}

func TestFallbackArchiver_EndToEndWithFiles(t *testing.T) {
	ctx := context.Background()
	a := NewFallbackArchiver(nil, NewFileArchiver(t.TempDir(), zerolog.Nop()), "", false, zerolog.Nop())

	key, err := a.Archive(ctx, testRecord())
	require.NoError(t, err)

	got, err := a.Load(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, string(testRecord().Payload), string(got))
}
