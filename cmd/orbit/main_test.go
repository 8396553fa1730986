package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

type testBackend struct {
	*httptest.Server
	listCalls   atomic.Int32
	updateCalls atomic.Int32
	rejectMoves bool
}

func newTestBackend(t *testing.T, rejectMoves bool) *testBackend {
	t.Helper()
	b := &testBackend{rejectMoves: rejectMoves}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/cards", func(w http.ResponseWriter, r *http.Request) {
		b.listCalls.Add(1)
		writeJSON(w, map[string]any{
			"success": true,
			"cards": []map[string]any{
				{"ID_RC": "RC-9001", "Status": "Solicitado", "Valor_Estimado": 120.5, "Criado_Por": "Ana", "Data_Criacao": "2025-03-04T10:11:12Z"},
				{"ID_RC": "RC-9002", "Status": "Aprovado", "Valor_Estimado": 3383.18},
			},
		})
	})
	mux.HandleFunc("/api/update-card-status", func(w http.ResponseWriter, r *http.Request) {
		b.updateCalls.Add(1)
		writeJSON(w, map[string]any{"success": !b.rejectMoves})
	})
	mux.HandleFunc("/api/dashboard-stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"success": true,
			"data": map[string]any{
				"total_requisicoes":   2,
				"valor_total":         3503.68,
				"status_distribution": map[string]int{"Solicitado": 1, "Aprovado": 1},
			},
		})
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// deadAddress returns an address nothing listens on.
func deadAddress(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	return addr
}

type cliEnv struct {
	configPath  string
	sessionPath string
}

func setupCLIEnv(t *testing.T, primary, fallback string) cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	env := cliEnv{
		configPath:  filepath.Join(base, "config.toml"),
		sessionPath: filepath.Join(base, "session.toml"),
	}
	content := fmt.Sprintf("primary_url = %q\nfallback_url = %q\nsession_path = %q\nrequest_timeout = \"2s\"\n",
		primary, fallback, env.sessionPath)
	if err := os.WriteFile(env.configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env cliEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath, "--assume-online"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
