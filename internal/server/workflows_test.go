package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/planweave/internal/agent/core"
	"github.com/mohammad-safakhou/planweave/internal/runlog"
	"github.com/mohammad-safakhou/planweave/internal/store"
	"github.com/mohammad-safakhou/planweave/internal/workflow"
)

type stubEngine struct {
	result workflow.Result
	inputs []string
}

func (s *stubEngine) Execute(ctx context.Context, wf *workflow.Workflow, input string, rc core.RunConfig) workflow.Result {
	s.inputs = append(s.inputs, input)
	return s.result
}

type stubRunner struct {
	result core.RunResult
}

func (s *stubRunner) Run(ctx context.Context, input string, rc core.RunConfig) core.RunResult {
	return s.result
}

type testServer struct {
	*httptest.Server
	store  *store.MemoryStore
	engine *stubEngine
	runner *stubRunner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	engine := &stubEngine{result: workflow.Result{FinalResult: "ran fine"}}
	runner := &stubRunner{result: core.RunResult{FinalResult: "direct\n", GoalAssessmentResult: `["x"]`}}

	logs, err := runlog.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	e := newEcho()
	wh := NewWorkflowsHandler(st, engine, runner, logs)
	api := e.Group("/api")
	wh.Register(api.Group("/workflows"))
	wh.RegisterLegacy(e.Group("/api/flowchart"))
	wh.RegisterExecute(api)

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: st, engine: engine, runner: runner}
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

const validWorkflow = `{
	"metadata": {"name": "News Digest"},
	"nodes": [
		{"id": "A", "type": "act", "prompt": "find news"},
		{"id": "T", "type": "terminal", "content": "done"}
	],
	"connections": [{"from": {"nodeId": "A"}, "to": {"nodeId": "T"}}]
}`

func TestSaveAndFetchWorkflow(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, "POST", ts.URL+"/api/workflows", validWorkflow)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["message"] != "Flowchart 'News Digest' saved successfully" {
		t.Errorf("message = %v", body["message"])
	}
	id, _ := body["filename"].(string)
	if id != "News_Digest" {
		t.Errorf("filename = %q", id)
	}

	resp, body = doJSON(t, "GET", ts.URL+"/api/workflows/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	meta, _ := body["metadata"].(map[string]interface{})
	if meta["name"] != "News Digest" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestSaveWorkflowValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, "POST", ts.URL+"/api/workflows",
		`{"metadata": {}, "nodes": [{"id": "A", "type": "act", "prompt": "p"}]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body["message"] != "Flowchart must have a name in metadata" {
		t.Errorf("message = %v", body["message"])
	}

	resp, body = doJSON(t, "POST", ts.URL+"/api/workflows",
		`{"metadata": {"name": "n"}, "nodes": [{"id": "step1", "type": "act"}]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body["message"] != "Node step1 must have a command" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestListWorkflows(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, "POST", ts.URL+"/api/workflows", validWorkflow)

	req, _ := http.NewRequest("GET", ts.URL+"/api/workflows", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var list []WorkflowSummary
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Name != "News Digest" || list[0].ID != "News_Digest" || list[0].Filename != "News_Digest" {
		t.Errorf("summary = %+v", list[0])
	}
	if list[0].Description != "done" {
		t.Errorf("description should fall back to node content, got %q", list[0].Description)
	}
}

func TestGetUnknownWorkflow(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, "GET", ts.URL+"/api/workflows/ghost", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body["error"] != "Workflow 'ghost' not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestRenameWorkflow(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, "POST", ts.URL+"/api/workflows", validWorkflow)

	resp, body := doJSON(t, "PUT", ts.URL+"/api/workflows/News_Digest/name", `{"name": "Renamed"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["message"] != "Workflow name updated successfully" {
		t.Errorf("message = %v", body["message"])
	}

	_, got := doJSON(t, "GET", ts.URL+"/api/workflows/News_Digest", "")
	meta, _ := got["metadata"].(map[string]interface{})
	if meta["name"] != "Renamed" {
		t.Errorf("metadata = %v", meta)
	}

	resp, _ = doJSON(t, "PUT", ts.URL+"/api/workflows/ghost/name", `{"name": "x"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("rename unknown status = %d", resp.StatusCode)
	}
}

func TestDeleteWorkflow(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, "POST", ts.URL+"/api/workflows", validWorkflow)

	resp, body := doJSON(t, "DELETE", ts.URL+"/api/workflows/News_Digest", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["message"] != "Workflow 'News_Digest' deleted successfully" {
		t.Errorf("message = %v", body["message"])
	}

	resp, _ = doJSON(t, "DELETE", ts.URL+"/api/workflows/News_Digest", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, "DELETE", ts.URL+"/api/workflows/current", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("delete current slot status = %d", resp.StatusCode)
	}
}

func TestExecuteWorkflow(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, "POST", ts.URL+"/api/workflows", validWorkflow)

	resp, body := doJSON(t, "POST", ts.URL+"/api/workflows/News_Digest/execute", `{"input": "go"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["final_result"] != "ran fine" {
		t.Errorf("final_result = %v", body["final_result"])
	}
	if ts.engine.inputs[0] != "go" {
		t.Errorf("engine input = %q", ts.engine.inputs[0])
	}

	// execution was logged
	resp, body = doJSON(t, "GET", ts.URL+"/api/workflows/News_Digest/logs/latest", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logs status = %d", resp.StatusCode)
	}
	if body["found"] != true {
		t.Fatalf("body = %v", body)
	}
	entry, _ := body["log"].(map[string]interface{})
	if entry["workflow_name"] != "News Digest" || entry["success"] != true {
		t.Errorf("log = %v", entry)
	}
}

func TestExecuteWorkflowError(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.result = workflow.Result{FinalResult: "partial", Error: "model unavailable"}
	doJSON(t, "POST", ts.URL+"/api/workflows", validWorkflow)

	resp, body := doJSON(t, "POST", ts.URL+"/api/workflows/News_Digest/execute", `{"input": "go"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want failure to be non-2xx", resp.StatusCode)
	}
	if body["error"] != "model unavailable" || body["final_result"] != "partial" {
		t.Errorf("body = %v", body)
	}
}

func TestExecuteWorkflowNeedsInput(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, "POST", ts.URL+"/api/workflows", validWorkflow)

	resp, _ := doJSON(t, "POST", ts.URL+"/api/workflows/News_Digest/execute", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestCurrentFlowchartSlot(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, "GET", ts.URL+"/api/flowchart/current", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("empty slot status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, "POST", ts.URL+"/api/flowchart", validWorkflow)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, "GET", ts.URL+"/api/flowchart/current", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	meta, _ := body["metadata"].(map[string]interface{})
	if meta["name"] != "News Digest" {
		t.Errorf("metadata = %v", meta)
	}

	// the slot is separate from the registry
	resp, _ = doJSON(t, "GET", ts.URL+"/api/workflows/News_Digest", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("registry status = %d, want 404", resp.StatusCode)
	}

	resp, body = doJSON(t, "POST", ts.URL+"/api/flowchart/current/execute", `{"input": "go"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute status = %d", resp.StatusCode)
	}
	if body["final_result"] != "ran fine" {
		t.Errorf("final_result = %v", body["final_result"])
	}
}

func TestExecutePrompt(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, "POST", ts.URL+"/api/execute", `{"input": "a goal"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["goal_assessment_result"] != `["x"]` {
		t.Errorf("body = %v", body)
	}

	resp, _ = doJSON(t, "POST", ts.URL+"/api/execute", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing input status = %d", resp.StatusCode)
	}
}
