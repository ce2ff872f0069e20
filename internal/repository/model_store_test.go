package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"WeatherCast/internal/domain/models"
)

func assertSameModel(t *testing.T, a, b *models.TrainedModel) {
	t.Helper()
	if a.Target != b.Target || a.LagDepth != b.LagDepth || !reflect.DeepEqual(a.AuxFields, b.AuxFields) {
		t.Fatalf("metadata differs: %+v vs %+v", a, b)
	}
	if !reflect.DeepEqual(a.Scaler, b.Scaler) || !reflect.DeepEqual(a.Forest, b.Forest) {
		t.Fatalf("fitted parameters differ")
	}
	if !reflect.DeepEqual(a.FeatureNames, b.FeatureNames) || a.Metrics != b.Metrics || !a.TrainedAt.Equal(b.TrainedAt) {
		t.Fatalf("layout or metrics differ")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	m := trainedModel(t)
	blob, err := EncodeModel(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeModel("m", blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertSameModel(t, m, got)
	x := make([]float64, m.NumFeatures())
	for i := range x {
		x[i] = float64(i)
	}
	if m.Predict(x) != got.Predict(x) {
		t.Fatalf("prediction changed after round trip")
	}
}

func TestCodecRejectsCorruptBlobs(t *testing.T) {
	blob, err := EncodeModel(trainedModel(t))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	flipped := bytes.Clone(blob)
	flipped[len(flipped)-1] ^= 0xff
	badVersion := bytes.Clone(blob)
	badVersion[7] = 99

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, models.ErrTruncatedModel},
		{"header only", blob[:blobHeaderSize-1], models.ErrTruncatedModel},
		{"truncated payload", blob[:len(blob)-10], models.ErrTruncatedModel},
		{"flipped byte", flipped, models.ErrChecksumMismatch},
		{"schema version", badVersion, models.ErrSchemaVersion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := DecodeModel("m", tc.data)
			if m != nil {
				t.Fatalf("partial model returned")
			}
			if !models.IsModelLoadError(err) || !errors.Is(err, tc.want) {
				t.Fatalf("expected ModelLoadError wrapping %v, got %v", tc.want, err)
			}
		})
	}
	if _, err := DecodeModel("m", append([]byte("XXXX"), blob[4:]...)); !models.IsModelLoadError(err) {
		t.Fatalf("bad magic should be a ModelLoadError, got %v", err)
	}
}

func TestEncodeRejectsInvalidModel(t *testing.T) {
	m := trainedModel(t)
	m.Scaler.Scale[0] = 0
	if _, err := EncodeModel(m); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "models")
	store := NewFileModelStore(dir)
	m := trainedModel(t)

	if ok, _ := store.Exists(ctx, "weather_model"); ok {
		t.Fatalf("model should not exist yet")
	}
	if err := store.Save(ctx, "weather_model", m); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "weather_model.wcm")); err != nil {
		t.Fatalf("expected model file: %v", err)
	}
	got, err := store.Load(ctx, "weather_model")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameModel(t, m, got)

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestFileStoreFailedSaveKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileModelStore(dir)
	m := trainedModel(t)
	if err := store.Save(ctx, "m", m); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, _ := os.ReadFile(filepath.Join(dir, "m.wcm"))

	bad := *m
	bad.Forest.Trees = nil
	if err := store.Save(ctx, "m", &bad); err == nil {
		t.Fatalf("expected save of invalid model to fail")
	}
	after, _ := os.ReadFile(filepath.Join(dir, "m.wcm"))
	if !bytes.Equal(before, after) {
		t.Fatalf("failed save modified the existing model")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("unexpected files after failed save: %v", entries)
	}
}

func TestFileStoreLoadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileModelStore(dir)

	_, err := store.Load(ctx, "missing")
	if !models.IsModelLoadError(err) || !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected not-found ModelLoadError, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "junk.wcm"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx, "junk"); !models.IsModelLoadError(err) {
		t.Fatalf("expected ModelLoadError for junk, got %v", err)
	}
	if err := store.Save(ctx, "../escape", trainedModel(t)); err == nil {
		t.Fatalf("expected path separator rejection")
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewS3ModelStoreWithClient(fake, S3StoreConfig{Bucket: "b", Prefix: "models/"})
	m := trainedModel(t)

	if ok, err := store.Exists(ctx, "w"); err != nil || ok {
		t.Fatalf("expected missing object, got %v %v", ok, err)
	}
	if err := store.Save(ctx, "w", m); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := fake.objects["b/models/w.wcm"]; !ok {
		t.Fatalf("unexpected keys %v", fake.objects)
	}
	got, err := store.Load(ctx, "w")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameModel(t, m, got)

	_, err = store.Load(ctx, "nope")
	if !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	fake.objects["b/models/bad.wcm"] = []byte(strings.Repeat("x", 100))
	if _, err := store.Load(ctx, "bad"); !models.IsModelLoadError(err) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}
}
