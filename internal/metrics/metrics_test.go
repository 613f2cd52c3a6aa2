package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"svckeeper/internal/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

func TestRegisterIdempotentAndHelpersWork(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncCycle()
	IncCycleError()
	ObserveCycleDuration(1500 * time.Millisecond)
	AddDrift(2)
	IncStopAttempt(ResultStopped)
	IncStopAttempt(ResultFailed)
	IncDisqualified(PhaseCycle)
	SetTargets(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	want := map[string]bool{
		"svckeeper_engine_cycles_total":           false,
		"svckeeper_engine_cycle_errors_total":     false,
		"svckeeper_engine_cycle_duration_seconds": false,
		"svckeeper_engine_drift_detected_total":   false,
		"svckeeper_engine_stop_attempts_total":    false,
		"svckeeper_engine_disqualified_total":     false,
		"svckeeper_engine_targets":                false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
			if len(mf.GetMetric()) == 0 {
				t.Errorf("metric %s has no samples", mf.GetName())
			}
		}
		if mf.GetName() == "svckeeper_engine_stop_attempts_total" && len(mf.GetMetric()) != 2 {
			t.Errorf("expected 2 result labels, got %d", len(mf.GetMetric()))
		}
	}
	for n, ok := range want {
		if !ok {
			t.Errorf("expected to find metric %s", n)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}
	IncCycle()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "svckeeper_engine_cycles_total") {
		t.Errorf("expected svckeeper_engine_cycles_total in output")
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr) }()

	var resp *http.Response
	for i := 0; i < 100; i++ {
		resp, err = http.Get("http://" + addr + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("metrics endpoint never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	err = Serve(context.Background(), ln.Addr().String())
	if err == nil {
		t.Fatal("expected listen error for busy address")
	}
}
