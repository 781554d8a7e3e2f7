package utils

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"lottery-draw-system/config"
)

type recordingPutter struct {
	input *s3.PutObjectInput
	body  []byte
}

func (r *recordingPutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	r.input = params
	r.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func imageHeader(t *testing.T) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, _ := w.CreateFormFile("image", "mug.png")
	_, _ = part.Write([]byte("image-bytes"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return req.MultipartForm.File["image"][0]
}

func TestR2StoreUploadFile(t *testing.T) {
	fh := imageHeader(t)

	putter := &recordingPutter{}
	store := NewR2StoreWithClient(putter, "prizes", "https://cdn.example/")

	url, err := store.UploadFile(context.Background(), fh, "prizes/1/mug.png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.example/prizes/1/mug.png" {
		t.Errorf("Expected CDN url, but got %s", url)
	}
	if aws.ToString(putter.input.Bucket) != "prizes" || aws.ToString(putter.input.Key) != "prizes/1/mug.png" {
		t.Errorf("Expected bucket/key prizes/prizes/1/mug.png, but got %s/%s", aws.ToString(putter.input.Bucket), aws.ToString(putter.input.Key))
	}
	if string(putter.body) != "image-bytes" {
		t.Errorf("Expected uploaded body, but got %q", putter.body)
	}
}

func TestLocalImageStoreUploadFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalImageStore(dir, "/uploads/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	t.Run("saves under dir", func(t *testing.T) {
		url, err := store.UploadFile(context.Background(), imageHeader(t), "prizes/1/mug.png")
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		if url != "/uploads/prizes/1/mug.png" {
			t.Errorf("Expected /uploads/prizes/1/mug.png, but got %s", url)
		}
		data, err := os.ReadFile(filepath.Join(dir, "prizes", "1", "mug.png"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != "image-bytes" {
			t.Errorf("Expected saved body, but got %q", data)
		}
	})

	t.Run("key cannot escape dir", func(t *testing.T) {
		url, err := store.UploadFile(context.Background(), imageHeader(t), "../../escape.png")
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		if url != "/uploads/escape.png" {
			t.Errorf("Expected /uploads/escape.png, but got %s", url)
		}
		if _, err := os.Stat(filepath.Join(dir, "escape.png")); err != nil {
			t.Errorf("Expected file inside upload dir, but got %v", err)
		}
	})

	t.Run("empty key", func(t *testing.T) {
		if _, err := store.UploadFile(context.Background(), imageHeader(t), "/"); err == nil {
			t.Error("Expected error for empty key, but got nil")
		}
	})

	t.Run("save failure keeps cause", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "blocked"), nil, 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := store.UploadFile(context.Background(), imageHeader(t), "blocked/mug.png")
		if err == nil {
			t.Fatal("Expected error when the parent is a file, but got nil")
		}
		if !strings.HasPrefix(err.Error(), "failed to save file: ") {
			t.Errorf("Expected wrapped save error, but got %v", err)
		}
		if _, ok := errors.Cause(err).(*fs.PathError); !ok {
			t.Errorf("Expected a *fs.PathError cause, but got %T", errors.Cause(err))
		}
	})
}

func TestNewR2StoreDisabled(t *testing.T) {
	store, err := NewR2Store(context.Background(), config.R2Config{})
	if err != nil || store != nil {
		t.Errorf("Expected nil store without credentials, got %v, %v", store, err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %s, but got %s", in, want, got)
		}
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lottery.log")
	log, err := NewLogger(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("Expected JSON log line in file, but got %s", data)
	}
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("Expected v, but got %s", got)
	}

	mr.Close()
	if _, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()}); err == nil {
		t.Error("Expected ping failure against a stopped server")
	}
}

func TestNewRedisClientDisabled(t *testing.T) {
	client, err := NewRedisClient(context.Background(), config.RedisConfig{})
	if err != nil || client != nil {
		t.Errorf("Expected nil client without REDIS_ADDR, got %v, %v", client, err)
	}
}
