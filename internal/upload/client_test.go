package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speech.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestUploadScript(t *testing.T) {
	var gotName, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ScriptPath {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		gotName, gotBody = header.Filename, string(data)

		json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"message":        "done",
			"total_segments": 2,
			"segments": []map[string]any{
				{"id": 0, "text": "Good morning.", "status": "pending", "embedding_idx": 0},
				{"id": 1, "text": "Today we talk about Go.", "status": "pending", "embedding_idx": 1},
			},
		})
	}))
	defer srv.Close()

	path := writeScript(t, "Good morning. Today we talk about Go.")
	items, err := NewClient(srv.URL+"/").UploadScript(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if gotName != "speech.txt" || !strings.HasPrefix(gotBody, "Good morning.") {
		t.Errorf("server got %q: %q", gotName, gotBody)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[1].ID != 1 || items[1].Text != "Today we talk about Go." {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestUploadScriptBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"detail": "empty script"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).UploadScript(context.Background(), writeScript(t, ""))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "empty script") || !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v", err)
	}
}

func TestUploadScriptMissingFile(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").UploadScript(context.Background(), "/no/such/script.txt")
	if err == nil {
		t.Error("expected error for missing script")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthPath {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "Smart Teleprompter"})
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).Health(context.Background()); err != nil {
		t.Errorf("health: %v", err)
	}
}

func TestHealthDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "starting"})
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).Health(context.Background()); err == nil {
		t.Error("expected health error")
	}
}
