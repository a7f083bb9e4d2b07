package box

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/infrastructure/resilience"
)

type fakeBox struct {
	t          *testing.T
	tokenCalls atomic.Int32
	fileCalls  atomic.Int32
	failFirst  atomic.Int32
	folders    map[string]folder
	files      map[string]file
	content    string
}

func newFakeBox(t *testing.T) *fakeBox {
	return &fakeBox{
		t:       t,
		folders: map[string]folder{},
		files:   map[string]file{},
		content: "RIFF....WAVE",
	}
}

func (b *fakeBox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == tokenPath {
		b.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			b.t.Errorf("ParseForm() error = %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("box_subject_id") != "437569" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		writeJSON(w, tokenResponse{AccessToken: "tok", ExpiresIn: 3600, TokenType: "bearer"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/content"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/2.0/files/"), "/content")
		if _, ok := b.files[id]; !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, b.content)
	case strings.HasPrefix(r.URL.Path, "/2.0/files/"):
		b.fileCalls.Add(1)
		if b.failFirst.Load() > 0 {
			b.failFirst.Add(-1)
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("fields") == "" {
			b.t.Errorf("expected fields query parameter")
		}
		f, ok := b.files[strings.TrimPrefix(r.URL.Path, "/2.0/files/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, f)
	case strings.HasPrefix(r.URL.Path, "/2.0/folders/"):
		f, ok := b.folders[strings.TrimPrefix(r.URL.Path, "/2.0/folders/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, f)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBox) addFolder(id, name, parent string) {
	f := folder{Type: "folder", ID: id, Name: name}
	if parent != "" {
		f.Parent = &miniItem{Type: "folder", ID: parent}
	}
	b.folders[id] = f
}

func newTestStorage(t *testing.T, fake *fakeBox, maxDepth int) *Storage {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
	client := New(Config{
		BaseURL:        srv.URL,
		ClientID:       "id",
		ClientSecret:   "secret",
		SubjectID:      "437569",
		MaxFolderDepth: maxDepth,
	}, exec, nil)
	return NewStorage(client)
}

func TestGetFileMapsDescriptorAndCachesToken(t *testing.T) {
	fake := newFakeBox(t)
	created := time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC)
	fake.files["100"] = file{
		Type:        "file",
		ID:          "100",
		Name:        "deposition.MP3",
		Extension:   "MP3",
		Description: "two speakers",
		CreatedAt:   created,
		CreatedBy:   &user{ID: "42", Name: "Pat Doe", Login: "pat@example.com"},
		Parent:      &miniItem{Type: "folder", ID: "11", Name: "Acme"},
	}
	storage := newTestStorage(t, fake, 0)

	got, err := storage.GetFile(context.Background(), "100")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if got.ID != "100" || got.EffectiveExtension() != "mp3" || got.ParentFolderID != "11" {
		t.Fatalf("unexpected descriptor %+v", got)
	}
	if !got.CreatedAt.Equal(created) || got.CreatedBy.Login != "pat@example.com" || got.Description != "two speakers" {
		t.Fatalf("unexpected metadata %+v", got)
	}

	if _, err := storage.GetFile(context.Background(), "100"); err != nil {
		t.Fatalf("second GetFile() error = %v", err)
	}
	if fake.tokenCalls.Load() != 1 {
		t.Fatalf("expected cached token, got %d token calls", fake.tokenCalls.Load())
	}
}

func TestGetFileNotFound(t *testing.T) {
	storage := newTestStorage(t, newFakeBox(t), 0)

	_, err := storage.GetFile(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestGetFileRetriesServerErrors(t *testing.T) {
	fake := newFakeBox(t)
	fake.files["1"] = file{Type: "file", ID: "1", Name: "a.wav"}
	fake.failFirst.Store(2)
	storage := newTestStorage(t, fake, 0)

	if _, err := storage.GetFile(context.Background(), "1"); err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if fake.fileCalls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", fake.fileCalls.Load())
	}
}

func TestGetFileExhaustedRetriesAreTemporary(t *testing.T) {
	fake := newFakeBox(t)
	fake.files["1"] = file{Type: "file", ID: "1", Name: "a.wav"}
	fake.failFirst.Store(10)
	storage := newTestStorage(t, fake, 0)

	_, err := storage.GetFile(context.Background(), "1")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestAncestorPathWalksToRoot(t *testing.T) {
	fake := newFakeBox(t)
	fake.addFolder("0", "All Files", "")
	fake.addFolder("1", "Clients", "0")
	fake.addFolder("2", "Legal Clients", "1")
	fake.addFolder("3", "Acme Legal", "2")
	storage := newTestStorage(t, fake, 0)

	path, err := storage.AncestorPath(context.Background(), domain.FileDescriptor{ID: "9", ParentFolderID: "3"})
	if err != nil {
		t.Fatalf("AncestorPath() error = %v", err)
	}
	if path.String() != "Clients/Legal Clients/Acme Legal" {
		t.Fatalf("unexpected path %v", path)
	}
	if path[0] != "Acme Legal" {
		t.Fatalf("expected nearest ancestor first, got %v", path)
	}
}

func TestAncestorPathStopsOnCycleAndDepth(t *testing.T) {
	fake := newFakeBox(t)
	fake.addFolder("1", "A", "2")
	fake.addFolder("2", "B", "1")
	storage := newTestStorage(t, fake, 0)

	_, err := storage.AncestorPath(context.Background(), domain.FileDescriptor{ParentFolderID: "1"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected cycle error, got %v", err)
	}

	deep := newFakeBox(t)
	deep.addFolder("1", "L1", "2")
	deep.addFolder("2", "L2", "3")
	deep.addFolder("3", "L3", "0")
	shallow := newTestStorage(t, deep, 2)
	if _, err := shallow.AncestorPath(context.Background(), domain.FileDescriptor{ParentFolderID: "1"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestAncestorPathMissingFolderIsNotFound(t *testing.T) {
	storage := newTestStorage(t, newFakeBox(t), 0)
	_, err := storage.AncestorPath(context.Background(), domain.FileDescriptor{ParentFolderID: "404"})
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestOpenContentStreamsBody(t *testing.T) {
	fake := newFakeBox(t)
	fake.files["5"] = file{Type: "file", ID: "5", Name: "a.wav"}
	storage := newTestStorage(t, fake, 0)

	body, err := storage.OpenContent(context.Background(), "5")
	if err != nil {
		t.Fatalf("OpenContent() error = %v", err)
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(raw) != fake.content {
		t.Fatalf("unexpected content %q", raw)
	}
}

func TestExpiredTokenIsRefreshedOnUnauthorized(t *testing.T) {
	fake := newFakeBox(t)
	fake.files["1"] = file{Type: "file", ID: "1", Name: "a.wav"}
	storage := newTestStorage(t, fake, 0)

	storage.client.tokenMu.Lock()
	storage.client.accessToken = "stale"
	storage.client.tokenExpiry = time.Now().Add(time.Hour)
	storage.client.tokenMu.Unlock()

	if _, err := storage.GetFile(context.Background(), "1"); err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if fake.tokenCalls.Load() != 1 {
		t.Fatalf("expected one token refresh, got %d", fake.tokenCalls.Load())
	}
}
