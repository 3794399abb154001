package router

import (
	"encoding/json"
	"testing"
)

func TestRequest_Unmarshal(t *testing.T) {
	raw := `{
		"id": "req-1",
		"type": "invoke",
		"method": "put",
		"params": {"collection": "pets", "key": "rex", "type": "com.example.Animal", "body": {"@type": "Dog", "@value": {"name": "Rex"}}},
		"ctx": {"userId": "alice", "timeoutMs": 500}
	}`

	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("router:envelope_test - failed to unmarshal: %v", err)
	}
	if req.ID != "req-1" || req.Method != MethodPut {
		t.Errorf("router:envelope_test - id/method = %s/%s", req.ID, req.Method)
	}
	if req.Ctx == nil || req.Ctx.UserID != "alice" || req.Ctx.TimeoutMs != 500 {
		t.Fatalf("router:envelope_test - ctx = %+v", req.Ctx)
	}
}

func TestResponse_MarshalError(t *testing.T) {
	resp := errorResponse("req-2", "NOT_FOUND", "document pets/rex not found", false)

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("router:envelope_test - failed to marshal: %v", err)
	}
	want := `{"id":"req-2","ok":false,"error":{"code":"NOT_FOUND","message":"document pets/rex not found","retryable":false}}`
	if string(data) != want {
		t.Errorf("router:envelope_test - got %s, want %s", data, want)
	}
}
