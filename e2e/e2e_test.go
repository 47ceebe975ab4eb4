package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/signs"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/testdata"
)

type sessionView struct {
	State    string  `json:"state"`
	Session  string  `json:"session"`
	LivePose bool    `json:"live_pose"`
	Last     *string `json:"last"`
	Matched  bool    `json:"matched"`
	Signs    int     `json:"signs"`
}

type signsView struct {
	Signs []struct {
		Index     int    `json:"index"`
		Name      string `json:"name"`
		Landmarks int    `json:"landmarks"`
		Thumbnail bool   `json:"thumbnail"`
	} `json:"signs"`
}

type client struct {
	t   *testing.T
	url string
	c   *http.Client
}

func (c *client) do(method, path, body string) *http.Response {
	c.t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.url+path, r)
	if err != nil {
		c.t.Fatalf("NewRequest() error = %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.c.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s error = %v", method, path, err)
	}
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (c *client) expect(method, path, body string, status int) *http.Response {
	c.t.Helper()

	resp := c.do(method, path, body)
	if resp.StatusCode != status {
		data, _ := io.ReadAll(resp.Body)
		c.t.Fatalf("%s %s status = %d, want %d: %s", method, path, resp.StatusCode, status, data)
	}
	return resp
}

func (c *client) session() sessionView {
	c.t.Helper()

	var v sessionView
	resp := c.expect(http.MethodGet, "/api/session", "", http.StatusOK)
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		c.t.Fatalf("decode session: %v", err)
	}
	return v
}

func (c *client) signs() signsView {
	c.t.Helper()

	var v signsView
	resp := c.expect(http.MethodGet, "/api/signs", "", http.StatusOK)
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		c.t.Fatalf("decode signs: %v", err)
	}
	return v
}

// waitFor polls the session until cond holds.
func (c *client) waitFor(what string, cond func(sessionView) bool) sessionView {
	c.t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v := c.session(); cond(v) {
			return v
		}
		time.Sleep(20 * time.Millisecond)
	}
	c.t.Fatalf("timed out waiting for %s", what)
	return sessionView{}
}

// waitDetections waits until the detector has run n more times, so the
// controller's live pose reflects the detector's current hands.
func waitDetections(t *testing.T, d *detector.MockDetector, n int) {
	t.Helper()

	target := d.Calls() + n
	deadline := time.Now().Add(5 * time.Second)
	for d.Calls() < target {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d detections", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	dbPath := filepath.Join(t.TempDir(), "mudra.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	signStore := signs.NewStore(s.Vocabulary(), nil)
	signStore.Load(context.Background())

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	mockDetector := detector.NewMockDetector()
	hub := server.NewHub(nil)

	application := app.New(app.Config{
		Signs:     signStore,
		Notifier:  notify.Multi{hub},
		Threshold: 0.04,
		Camera:    capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		Detector:  mockDetector,
	})
	defer application.Close()

	srv := server.New(server.Config{
		Session: application.Controller(),
		Frames:  application.Source(),
		Events:  hub,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	newClient := func(t *testing.T) *client {
		return &client{t: t, url: ts.URL, c: ts.Client()}
	}

	t.Run("Train", func(t *testing.T) {
		c := newClient(t)

		c.expect(http.MethodPost, "/api/session", `{"action":"start_training"}`, http.StatusOK)

		// No hand yet: saving is ignored.
		c.expect(http.MethodPost, "/api/signs", `{"name":"open"}`, http.StatusNoContent)

		mockDetector.SetHands([]detector.HandLandmarks{testdata.Hand(testdata.OpenPalm)})
		c.waitFor("live pose", func(v sessionView) bool { return v.LivePose })
		c.expect(http.MethodPost, "/api/signs", `{"name":"open"}`, http.StatusCreated)

		mockDetector.SetHands([]detector.HandLandmarks{testdata.Hand(testdata.Fist), testdata.Hand(testdata.Sideways)})
		waitDetections(t, mockDetector, 2)
		c.expect(http.MethodPost, "/api/signs", `{"name":"fist"}`, http.StatusCreated)

		c.expect(http.MethodPost, "/api/signs", `{"name":"   "}`, http.StatusNoContent)

		v := c.signs()
		if len(v.Signs) != 2 {
			t.Fatalf("expected 2 signs, got %+v", v.Signs)
		}
		for i, want := range []string{"open", "fist"} {
			got := v.Signs[i]
			if got.Name != want || got.Index != i || got.Landmarks != detector.NumLandmarks || !got.Thumbnail {
				t.Errorf("sign %d = %+v, want %s with landmarks and thumbnail", i, got, want)
			}
		}
	})

	t.Run("Thumbnail", func(t *testing.T) {
		c := newClient(t)

		resp := c.expect(http.MethodGet, "/api/signs/1/thumbnail", "", http.StatusOK)
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q, want image/png", ct)
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "fist.png") {
			t.Errorf("Content-Disposition = %q, want fist.png", cd)
		}
		data, _ := io.ReadAll(resp.Body)
		if !bytes.HasPrefix(data, []byte("\x89PNG")) {
			t.Error("thumbnail is not a PNG")
		}
	})

	t.Run("Detect", func(t *testing.T) {
		c := newClient(t)

		mockDetector.SetHands([]detector.HandLandmarks{testdata.Hand(testdata.OpenPalm)})
		c.expect(http.MethodPost, "/api/session", `{"action":"start_detecting"}`, http.StatusOK)
		c.waitFor("open", func(v sessionView) bool { return v.Last != nil && *v.Last == "open" && v.Matched })

		mockDetector.SetHands([]detector.HandLandmarks{testdata.Hand(testdata.Sideways)})
		c.waitFor("no match", func(v sessionView) bool { return v.Last != nil && *v.Last == "" && !v.Matched })

		mockDetector.SetHands([]detector.HandLandmarks{testdata.Hand(testdata.Fist)})
		c.waitFor("fist", func(v sessionView) bool { return v.Last != nil && *v.Last == "fist" })

		// Saving is only allowed while training.
		c.expect(http.MethodPost, "/api/signs", `{"name":"late"}`, http.StatusConflict)

		c.expect(http.MethodPost, "/api/session", `{"action":"stop_detecting"}`, http.StatusOK)
		if v := c.session(); v.State != "idle" || v.Last != nil || v.Session != "" {
			t.Errorf("expected idle session with no classification, got %+v", v)
		}
		c.expect(http.MethodPost, "/api/session", `{"action":"stop_detecting"}`, http.StatusConflict)
	})

	t.Run("Persisted", func(t *testing.T) {
		reopened := signs.NewStore(s.Vocabulary(), nil)
		vocab := reopened.Load(context.Background())
		if got := vocab.Names(); len(got) != 2 || got[0] != "open" || got[1] != "fist" {
			t.Errorf("persisted vocabulary = %v, want [open fist]", got)
		}
	})

	t.Run("DeleteAndClear", func(t *testing.T) {
		c := newClient(t)

		c.expect(http.MethodDelete, "/api/signs/5", "", http.StatusNotFound)
		c.expect(http.MethodDelete, "/api/signs/0", "", http.StatusNoContent)

		if v := c.signs(); len(v.Signs) != 1 || v.Signs[0].Name != "fist" {
			t.Fatalf("expected only fist left, got %+v", v.Signs)
		}

		c.expect(http.MethodDelete, "/api/signs", "", http.StatusNoContent)
		if v := c.signs(); len(v.Signs) != 0 {
			t.Fatalf("expected no signs, got %+v", v.Signs)
		}
	})
}

func TestE2E_FileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signs.json.zst")
	persist := signs.NewFilePersistence(path, true)

	st := signs.NewStore(persist, nil)
	st.Load(context.Background())

	live, err := detector.Normalize(testdata.MustPose(testdata.OpenPalm))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if err := st.Add(context.Background(), signs.Record{Name: "open", Landmarks: live}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	reopened := signs.NewStore(signs.NewFilePersistence(path, true), nil)
	vocab := reopened.Load(context.Background())
	if len(vocab) != 1 || vocab[0].Name != "open" || len(vocab[0].Landmarks) != detector.NumLandmarks {
		t.Fatalf("reloaded vocabulary = %+v", vocab)
	}
}
