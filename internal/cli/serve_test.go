package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pagefold/pagefold/pkg/bucket"
	"github.com/pagefold/pagefold/pkg/compose"
	"github.com/pagefold/pagefold/pkg/entry"
	"github.com/pagefold/pagefold/pkg/plan"
	"github.com/pagefold/pagefold/pkg/region"
)

func newServedSession(t *testing.T) *compose.Session {
	t.Helper()
	s := compose.NewSession(compose.Config{
		DocumentID: "doc",
		Geometry: region.Geometry{
			ColumnCount:       2,
			PageWidthPx:       800,
			RegionHeightPx:    1000,
			VerticalSpacingPx: 10,
		},
		FlushInterval: time.Hour,
	})
	t.Cleanup(s.Close)
	s.SetComponents([]bucket.Instance{
		{ID: "hero", Kind: entry.KindBlock},
		{ID: "footer", Kind: entry.KindBlock, OrderIndex: 1},
	})
	return s
}

func TestServeHealthz(t *testing.T) {
	srv := httptest.NewServer(newRouter(newServedSession(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServePlanLifecycle(t *testing.T) {
	sess := newServedSession(t)
	srv := httptest.NewServer(newRouter(sess))
	defer srv.Close()

	// No committed plan yet.
	resp, err := http.Get(srv.URL + "/plan")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /plan before commit = %d, want 404", resp.StatusCode)
	}

	// The proxies endpoint lists the unmeasured instances.
	resp, err = http.Get(srv.URL + "/proxies")
	if err != nil {
		t.Fatal(err)
	}
	var proxies struct {
		MeasurementComplete bool           `json:"measurement_complete"`
		Proxies             []*entry.Entry `json:"proxies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&proxies); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if proxies.MeasurementComplete || len(proxies.Proxies) != 2 {
		t.Errorf("proxies = complete:%v n:%d, want incomplete with 2", proxies.MeasurementComplete, len(proxies.Proxies))
	}

	// Post measurements for both instances.
	h1, h2 := 300.0, 200.0
	body, _ := json.Marshal([]measurementPayload{
		{Key: "blk:hero", Height: &h1},
		{Key: "blk:footer", Height: &h2},
	})
	resp, err = http.Post(srv.URL+"/measurements", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /measurements = %d, want 202", resp.StatusCode)
	}

	// The HTTP layer only buffers; drive the session cycle directly the
	// way the background loop does.
	sess.FlushMeasurements()
	if _, ok := sess.Recalculate(); !ok {
		t.Fatal("session should recompute after both measurements")
	}
	if _, err := sess.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp, err = http.Get(srv.URL + "/plan")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /plan after commit = %d, want 200", resp.StatusCode)
	}
	var p plan.Plan
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.EntryCount() != 2 {
		t.Errorf("plan entries = %d, want 2", p.EntryCount())
	}
}

func TestServeMeasurementsRejectsBadInput(t *testing.T) {
	srv := httptest.NewServer(newRouter(newServedSession(t)))
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing key", `[{"height": 100}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/measurements", "application/json", bytes.NewReader([]byte(tt.body)))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestServeNullHeightDeletes(t *testing.T) {
	sess := newServedSession(t)
	srv := httptest.NewServer(newRouter(sess))
	defer srv.Close()

	h := 300.0
	body, _ := json.Marshal([]measurementPayload{{Key: "blk:hero", Height: &h}})
	resp, err := http.Post(srv.URL+"/measurements", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	sess.FlushMeasurements()

	if _, ok := sess.Snapshot().Height("blk:hero"); !ok {
		t.Fatal("measurement should be stored")
	}

	// A null height is a deletion.
	resp, err = http.Post(srv.URL+"/measurements", "application/json", bytes.NewReader([]byte(`[{"key":"blk:hero","height":null}]`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	sess.FlushMeasurements()

	if _, ok := sess.Snapshot().Height("blk:hero"); ok {
		t.Error("null height should delete the stored measurement")
	}
}
