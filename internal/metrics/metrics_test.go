// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobAndRowCounters(t *testing.T) {
	m := New()
	m.JobFinished(OutcomeSuccess, 2*time.Second)
	m.JobFinished(OutcomeSuccess, time.Second)
	m.JobFinished(OutcomeUploadFailed, time.Second)
	m.RowsProcessed(8, 2)
	m.RowsProcessed(3, 0)

	if got := testutil.ToFloat64(m.jobsTotal.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("success jobs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.jobsTotal.WithLabelValues(OutcomeUploadFailed)); got != 1 {
		t.Errorf("upload_failed jobs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rowsTotal.WithLabelValues("ok")); got != 11 {
		t.Errorf("ok rows = %v, want 11", got)
	}
	if got := testutil.ToFloat64(m.rowsTotal.WithLabelValues("failed")); got != 2 {
		t.Errorf("failed rows = %v, want 2", got)
	}
}

func TestObserveRequestUnmatchedRoute(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/templates/{id}", http.StatusOK, time.Millisecond)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/templates/{id}", "200")); got != 1 {
		t.Errorf("templates route = %v, want 1", got)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.JobFinished(OutcomeSuccess, time.Second)
	m.ArchiveUploaded(1 << 20)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`certforge_generation_jobs_total{outcome="success"} 1`,
		"certforge_generation_archive_bytes_count 1",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.JobFinished(OutcomeError, time.Second)
	m.RowsProcessed(1, 1)
	m.ArchiveUploaded(10)
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
	m.RateLimited("/api/auth/login")
	if err := m.RegisterDB(nil, "x"); err != nil {
		t.Errorf("RegisterDB on nil = %v", err)
	}
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}
