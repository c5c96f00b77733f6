package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestProber() *Prober {
	return New(2*time.Second, 2, "seriesdl/test")
}

func TestExpectedSize_Head(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Header().Set("Content-Length", "12345")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := newTestProber().ExpectedSize(context.Background(), srv.URL+"/file.mkv")

	if !res.SizeKnown {
		t.Fatal("SizeKnown = false, want true")
	}
	if res.Size != 12345 {
		t.Errorf("Size = %d, want 12345", res.Size)
	}
}

func TestExpectedSize_FallsBackToRangedGet(t *testing.T) {
	var headSeen, getSeen atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			headSeen.Add(1)
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			getSeen.Add(1)
			if r.Header.Get("Range") != "bytes=0-0" {
				t.Errorf("Range header = %q", r.Header.Get("Range"))
			}
			w.Header().Set("Content-Range", "bytes 0-0/98765")
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte{0})
		}
	}))
	defer srv.Close()

	res := newTestProber().ExpectedSize(context.Background(), srv.URL+"/file.mkv")

	if !res.SizeKnown {
		t.Fatal("SizeKnown = false, want true")
	}
	if res.Size != 98765 {
		t.Errorf("Size = %d, want 98765", res.Size)
	}
	if headSeen.Load() == 0 || getSeen.Load() == 0 {
		t.Errorf("expected both mechanisms to be tried (head=%d get=%d)", headSeen.Load(), getSeen.Load())
	}
}

func TestExpectedSize_RangeIgnoredByServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		// 200 with a Content-Length: server ignored the Range header.
		w.Header().Set("Content-Length", "555")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "x")
	}))
	defer srv.Close()

	res := newTestProber().ExpectedSize(context.Background(), srv.URL+"/file.mkv")

	if !res.SizeKnown || res.Size != 555 {
		t.Errorf("got %+v, want known size 555", res)
	}
}

func TestExpectedSize_TotalFailureDegradesToUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := newTestProber().ExpectedSize(context.Background(), srv.URL+"/file.mkv")

	if res.SizeKnown {
		t.Errorf("SizeKnown = true for failing server, want false")
	}
}

func TestExpectedSize_UnreachableHost(t *testing.T) {
	// Must degrade to unknown, never panic or propagate an error.
	res := New(200*time.Millisecond, 1, "seriesdl/test").
		ExpectedSize(context.Background(), "https://127.0.0.1:1/file.mkv")

	if res.SizeKnown {
		t.Error("SizeKnown = true for unreachable host")
	}
}

func TestExpectedSize_DispositionFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		w.Header().Set("Content-Disposition", `attachment; filename="episode 01.mkv"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := newTestProber().ExpectedSize(context.Background(), srv.URL+"/x")

	if res.Filename != "episode 01.mkv" {
		t.Errorf("Filename = %q, want %q", res.Filename, "episode 01.mkv")
	}
}
