package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

func TestLocal_PutGetDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal error: %v", err)
	}
	ctx := context.Background()

	path := "snapshots/kitchen-7/1-cam.jpg"
	data := []byte{0xff, 0xd8, 0xff} // jpeg magic

	if err := store.Put(ctx, path, data); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, err := store.Get(ctx, path)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("Get = %v, %v; want original bytes", got, err)
	}

	ok, err := store.Exists(ctx, path)
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v; want true", ok, err)
	}

	if err := store.Delete(ctx, path); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := store.Delete(ctx, path); err != nil {
		t.Errorf("second Delete = %v, want nil", err)
	}
	if _, err := store.Get(ctx, path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Get deleted = %v, want os.ErrNotExist", err)
	}
	ok, _ = store.Exists(ctx, path)
	if ok {
		t.Error("Exists after delete = true, want false")
	}
}

func TestLocal_RejectsEscapingPaths(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "store")
	store, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal error: %v", err)
	}
	ctx := context.Background()

	paths := []string{
		"../outside.jpg",
		"a/../../outside.jpg",
		SnapshotPath("../../escape", "live", time.UnixMilli(1700000000000)),
	}
	for _, p := range paths {
		if err := store.Put(ctx, p, []byte("x")); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Put(%q) = %v, want ErrInvalidPath", p, err)
		}
		if _, err := store.Get(ctx, p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Get(%q) = %v, want ErrInvalidPath", p, err)
		}
		if err := store.Delete(ctx, p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Delete(%q) = %v, want ErrInvalidPath", p, err)
		}
		if _, err := store.Exists(ctx, p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Exists(%q) = %v, want ErrInvalidPath", p, err)
		}
	}

	// Nothing may appear next to the root.
	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "store" {
		t.Errorf("store root sibling entries = %v, want only %q", entries, "store")
	}
}

func TestSnapshotPath(t *testing.T) {
	at := time.UnixMilli(1717267500000)
	got := SnapshotPath("kitchen-7", "cam1", at)
	want := "snapshots/kitchen-7/1717267500000-cam1.jpg"
	if got != want {
		t.Errorf("SnapshotPath = %q, want %q", got, want)
	}
}

// fakeS3 is an in-memory S3Client.
type fakeS3 struct {
	objects map[string][]byte
}

type fakeS3NotFound struct{}

func (fakeS3NotFound) Error() string                  { return "NotFound" }
func (fakeS3NotFound) ErrorCode() string              { return "NotFound" }
func (fakeS3NotFound) ErrorMessage() string           { return "object not found" }
func (fakeS3NotFound) ErrorFault() smithy.ErrorFault  { return smithy.FaultClient }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, fakeS3NotFound{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, fakeS3NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Store_PrefixedKeys(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	store := NewS3(fake, "bucket", "souschef")
	ctx := context.Background()

	if err := store.Put(ctx, "snapshots/r/1.jpg", []byte("img")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if _, ok := fake.objects["souschef/snapshots/r/1.jpg"]; !ok {
		keys := make([]string, 0, len(fake.objects))
		for k := range fake.objects {
			keys = append(keys, k)
		}
		t.Fatalf("object stored under wrong key: %s", strings.Join(keys, ","))
	}

	got, err := store.Get(ctx, "snapshots/r/1.jpg")
	if err != nil || string(got) != "img" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	ok, _ := store.Exists(ctx, "snapshots/r/1.jpg")
	if !ok {
		t.Error("Exists = false, want true")
	}

	if _, err := store.Get(ctx, "missing.jpg"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Get missing = %v, want os.ErrNotExist", err)
	}

	if err := store.Delete(ctx, "snapshots/r/1.jpg"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	ok, _ = store.Exists(ctx, "snapshots/r/1.jpg")
	if ok {
		t.Error("Exists after delete = true, want false")
	}
}
