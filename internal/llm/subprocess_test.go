package llm

import (
	"context"
	"strings"
	"testing"
)

func TestNewSubprocess_RequiresCommand(t *testing.T) {
	if _, err := NewSubprocess("", ""); err == nil {
		t.Fatal("expected error for empty command")
	}
	if _, err := NewSubprocess("   ", ""); err == nil {
		t.Fatal("expected error for blank command")
	}
}

func TestSubprocess_Complete(t *testing.T) {
	client, err := NewSubprocess("cat >/dev/null && echo 'hello from the model'", "")
	if err != nil {
		t.Fatalf("NewSubprocess error: %v", err)
	}

	reply, err := client.Complete(context.Background(), llmMessages())
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if reply != "hello from the model" {
		t.Errorf("reply = %q", reply)
	}
}

func TestSubprocess_TranscriptOnStdin(t *testing.T) {
	client, err := NewSubprocess("cat", "")
	if err != nil {
		t.Fatalf("NewSubprocess error: %v", err)
	}

	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "list files"},
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	for _, want := range []string{`"role":"system"`, `"role":"user"`, `"content":"list files"`} {
		if !strings.Contains(reply, want) {
			t.Errorf("transcript missing %s: %s", want, reply)
		}
	}
}

func TestSubprocess_ModelExported(t *testing.T) {
	client, err := NewSubprocess(`cat >/dev/null && echo "model=$DISPATCHR_MODEL"`, "fast-1")
	if err != nil {
		t.Fatalf("NewSubprocess error: %v", err)
	}

	reply, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if reply != "model=fast-1" {
		t.Errorf("reply = %q", reply)
	}
}

func TestSubprocess_MCPEndpointExported(t *testing.T) {
	client, err := NewSubprocess(`cat >/dev/null && echo "mcp=$DISPATCHR_MCP_URL model=$DISPATCHR_MODEL"`, "fast-1")
	if err != nil {
		t.Fatalf("NewSubprocess error: %v", err)
	}
	client = client.WithMCPEndpoint("http://127.0.0.1:9999/mcp")

	reply, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if reply != "mcp=http://127.0.0.1:9999/mcp model=fast-1" {
		t.Errorf("reply = %q", reply)
	}
}

func TestSubprocess_FailureCarriesStderr(t *testing.T) {
	client, err := NewSubprocess("cat >/dev/null && echo 'rate limited' >&2 && exit 3", "")
	if err != nil {
		t.Fatalf("NewSubprocess error: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error from failing command")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error should carry stderr detail: %v", err)
	}
}

func TestSubprocess_EmptyOutputIsError(t *testing.T) {
	client, err := NewSubprocess("cat >/dev/null", "")
	if err != nil {
		t.Fatalf("NewSubprocess error: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "no output") {
		t.Errorf("expected no-output error, got %v", err)
	}
}

func llmMessages() []Message {
	return []Message{
		{Role: RoleSystem, Content: "you are terse"},
		{Role: RoleUser, Content: "say hello"},
	}
}
