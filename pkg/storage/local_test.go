package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalWriteAllReadAll(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocal(filepath.Join(dir, "models"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := WriteAll(ctx, s, "v1/bundle.yaml", []byte("version: v1\n")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	got, err := ReadAll(ctx, s, "v1/bundle.yaml", 0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "version: v1\n" {
		t.Fatalf("got %q", got)
	}

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "models", "v1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want 1", len(entries))
	}
}

func TestLocalOverwrite(t *testing.T) {
	s, _ := NewLocal(t.TempDir())
	ctx := context.Background()
	WriteAll(ctx, s, "f", []byte("long content here"))
	WriteAll(ctx, s, "f", []byte("short"))
	got, err := ReadAll(ctx, s, "f", 0)
	if err != nil || string(got) != "short" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestLocalReadNotExist(t *testing.T) {
	s, _ := NewLocal(t.TempDir())
	_, err := s.Read(context.Background(), "no-such-file")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
	ok, err := s.Exists(context.Background(), "no-such-file")
	if err != nil || ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

func TestReadAllTooLarge(t *testing.T) {
	s, _ := NewLocal(t.TempDir())
	ctx := context.Background()
	WriteAll(ctx, s, "big", []byte(strings.Repeat("x", 100)))
	if _, err := ReadAll(ctx, s, "big", 10); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := ReadAll(ctx, s, "big", 100); err != nil {
		t.Fatalf("ReadAll at limit: %v", err)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    Location
		wantErr bool
	}{
		{in: "s3://models/voiceguard/v1.msgpack", want: Location{Bucket: "models", Dir: "voiceguard", Name: "v1.msgpack"}},
		{in: "s3://models/v1.msgpack", want: Location{Bucket: "models", Dir: "", Name: "v1.msgpack"}},
		{in: "/var/lib/voiceguard/model.yaml", want: Location{Dir: "/var/lib/voiceguard", Name: "model.yaml"}},
		{in: "model.yaml", want: Location{Dir: ".", Name: "model.yaml"}},
		{in: "s3://models/", wantErr: true},
		{in: "s3:///key", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocation(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOpenS3(t *testing.T) {
	mock := newMockS3()
	mock.objects["voiceguard/v1.msgpack"] = []byte("payload")
	fs, name, err := Open("s3://models/voiceguard/v1.msgpack", func() S3Client { return mock })
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadAll(context.Background(), fs, name, 0)
	if err != nil || string(got) != "payload" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, _, err := Open("s3://models/x", nil); err == nil {
		t.Fatal("expected error without client factory")
	}
}
