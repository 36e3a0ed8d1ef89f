package checkpoint

import (
    "context"
    "errors"
    "os"
    "path/filepath"
    "testing"
    "time"
)

func TestFileStore_MissingFileIsNotFound(t *testing.T) {
    st := NewFileStore(filepath.Join(t.TempDir(), "last_run.json"))
    _, err := st.Read(context.Background())
    if !errors.Is(err, ErrNotFound) { t.Fatalf("expected ErrNotFound, got %v", err) }
}

func TestFileStore_RoundTrip(t *testing.T) {
    path := filepath.Join(t.TempDir(), "last_run.json")
    st := NewFileStore(path)
    want := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

    if err := st.Write(context.Background(), want); err != nil { t.Fatal(err) }
    got, err := st.Read(context.Background())
    if err != nil { t.Fatal(err) }
    if !got.Equal(want) { t.Fatalf("got %v want %v", got, want) }

    data, err := os.ReadFile(path)
    if err != nil { t.Fatal(err) }
    if string(data) != `{"last_run":"2025-06-01T12:30:00Z"}` {
        t.Fatalf("unexpected document layout: %s", data)
    }
}

func TestFileStore_CorruptDocumentFails(t *testing.T) {
    path := filepath.Join(t.TempDir(), "last_run.json")
    if err := os.WriteFile(path, []byte("not json"), 0644); err != nil { t.Fatal(err) }
    st := NewFileStore(path)
    if _, err := st.Read(context.Background()); err == nil {
        t.Fatal("expected parse error for corrupt document")
    }
}
