package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestCollaborate_WrapsOnce(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := Collaborate("embedding", "embed query", cause)
	if !IsCollaborator(err) {
		t.Fatalf("expected collaborator error, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	again := Collaborate("synthesizer", "answer", err)
	if again != err {
		t.Fatalf("expected already wrapped error to be returned unchanged")
	}
	if !strings.Contains(err.Error(), "embedding embed query") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestCollaborate_Nil(t *testing.T) {
	if err := Collaborate("embedding", "embed", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if IsCollaborator(ErrIndexNotFound) {
		t.Fatalf("sentinel must not be a collaborator error")
	}
}

func TestQueryResult_Texts(t *testing.T) {
	r := QueryResult{
		{Record: VectorRecord{Text: "first"}, Score: 0.9},
		{Record: VectorRecord{Text: "second"}, Score: 0.1},
	}
	got := r.Texts()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected texts %v", got)
	}
}
