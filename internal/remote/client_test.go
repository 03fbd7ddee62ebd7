package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
)

func TestFetchStatusCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/status" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"total":10,"pending":3,"queued":1,"sending":2,"sent":3,"failed":1,"skipped":0}`)
	}))
	defer srv.Close()

	counts, err := NewClient(srv.URL).FetchStatusCounts(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if counts.Total != 10 || counts.Sending != 2 || counts.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestFetchTaskListDecodesNullableFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"id":1,"file_path":"/data/inbox/a.jpg","student_name":"张三","parent_name":"张三家长","user_id":"u1","status":"sent","error":null,"created_at":"2026-08-30 10:00:00","updated_at":"2026-08-30 10:01:00"},
			{"id":2,"file_path":"/data/inbox/b.jpg","student_name":"李四","parent_name":"李四家长","user_id":null,"status":"failed","error":"contact not found","created_at":"2026-08-30 10:00:00","updated_at":"2026-08-30 10:02:00"}
		]`)
	}))
	defer srv.Close()

	tasks, err := NewClient(srv.URL).FetchTaskList(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].UserID == nil || *tasks[0].UserID != "u1" {
		t.Fatalf("user_id lost: %+v", tasks[0])
	}
	if tasks[1].UserID != nil {
		t.Fatalf("null user_id must stay nil")
	}
	if tasks[1].Error == nil || *tasks[1].Error != "contact not found" {
		t.Fatalf("error detail lost: %+v", tasks[1])
	}
	if tasks[1].Status != core.TaskStatusFailed {
		t.Fatalf("unexpected status: %q", tasks[1].Status)
	}
}

func TestTriggerScanSendsRootPathVerbatim(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/scan" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).TriggerScan(context.Background(), "  /not/normalized/../x  "); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if got["rootPath"] != "  /not/normalized/../x  " {
		t.Fatalf("path must not be normalized or trimmed: %q", got["rootPath"])
	}
}

func TestTriggerSelectedSendNeverSendsNullIDs(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).TriggerSelectedSend(context.Background(), nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(raw, `"taskIds":[]`) {
		t.Fatalf("nil ids must serialize as an empty array: %s", raw)
	}
}

func TestSaveConfigOmitsUneditedFields(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/config" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	corpID := "ww123"
	update := core.ConfigUpdate{CorpID: &corpID}
	if err := NewClient(srv.URL).SaveConfig(context.Background(), update); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if raw["corp_id"] != "ww123" {
		t.Fatalf("corp_id missing: %v", raw)
	}
	for _, key := range []string{"agent_id", "secret", "root_path", "rate_limit_per_sec", "max_concurrency"} {
		if _, ok := raw[key]; ok {
			t.Fatalf("unedited field %q must not appear in the body: %v", key, raw)
		}
	}
}

func TestUploadContactsFileSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/contacts/upload" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "contacts.xlsx" {
			t.Errorf("unexpected filename: %q", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "opaque spreadsheet bytes" {
			t.Errorf("content mangled: %q", content)
		}
	}))
	defer srv.Close()

	err := NewClient(srv.URL).UploadContactsFile(context.Background(), "contacts.xlsx", strings.NewReader("opaque spreadsheet bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
}

func TestFetchEgressIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ip" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		io.WriteString(w, `{"ip":"203.0.113.9"}`)
	}))
	defer srv.Close()

	ip, err := NewClient(srv.URL).FetchEgressIP(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if ip != "203.0.113.9" {
		t.Fatalf("unexpected ip: %q", ip)
	}
}

func TestNon2xxBecomesStableRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	cases := []struct {
		name string
		call func() error
		op   string
	}{
		{"status", func() error { _, err := client.FetchStatusCounts(context.Background()); return err }, "status failed"},
		{"tasks", func() error { _, err := client.FetchTaskList(context.Background()); return err }, "list tasks failed"},
		{"config", func() error { _, err := client.FetchConfig(context.Background()); return err }, "get config failed"},
		{"scan", func() error { return client.TriggerScan(context.Background(), "/x") }, "scan failed"},
		{"batch", func() error { return client.TriggerBatchSend(context.Background()) }, "send batch failed"},
		{"selected", func() error { return client.TriggerSelectedSend(context.Background(), []int64{1}) }, "send selected failed"},
		{"watch", func() error { return client.SetAutoWatch(context.Background(), true) }, "toggle auto watch failed"},
		{"upload", func() error {
			return client.UploadContactsFile(context.Background(), "c.xlsx", strings.NewReader("x"))
		}, "upload contacts failed"},
		{"save", func() error { return client.SaveConfig(context.Background(), core.ConfigUpdate{}) }, "update config failed"},
		{"ip", func() error { _, err := client.FetchEgressIP(context.Background()); return err }, "get ip failed"},
	}
	for _, tc := range cases {
		err := tc.call()
		if err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			t.Fatalf("%s: expected a RequestError, got %T", tc.name, err)
		}
		if reqErr.Status != http.StatusBadGateway {
			t.Fatalf("%s: expected status 502, got %d", tc.name, reqErr.Status)
		}
		if err.Error() != tc.op {
			t.Fatalf("%s: message must stay stable, got %q want %q", tc.name, err.Error(), tc.op)
		}
	}
}

func TestConnectionFailureHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL).FetchStatusCounts(context.Background())
	if err == nil {
		t.Fatalf("expected an error against a closed server")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected a RequestError, got %T", err)
	}
	if reqErr.Status != 0 {
		t.Fatalf("transport failures carry no HTTP status, got %d", reqErr.Status)
	}
	if err.Error() != "status failed" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
