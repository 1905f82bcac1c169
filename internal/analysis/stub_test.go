package analysis

import (
	"context"
	"reflect"
	"testing"
)

func TestStubIsDeterministic(t *testing.T) {
	a := Synthesize("uploads/a.mp4")
	b := Synthesize("uploads/a.mp4")
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same source produced different results")
	}
	if len(a.Segments) == 0 {
		t.Fatal("expected segments")
	}
	for _, s := range a.Segments {
		if s.EndS <= s.StartS {
			t.Fatalf("invalid segment %+v", s)
		}
	}
	if c := Synthesize("uploads/b.mp4"); reflect.DeepEqual(a, c) {
		t.Fatal("different sources should differ")
	}
}

func TestStubFailureScript(t *testing.T) {
	s := NewStub().FailNext(2)
	ctx := context.Background()
	req := Request{UploadID: "u", Source: "k", Kind: "file"}

	for i := 0; i < 2; i++ {
		if _, err := s.Analyze(ctx, req); err == nil || IsPermanent(err) {
			t.Fatalf("call %d: err = %v, want transient", i, err)
		}
	}
	if _, err := s.Analyze(ctx, req); err != nil {
		t.Fatalf("third call: %v", err)
	}

	s.FailPermanently()
	if _, err := s.Analyze(ctx, req); !IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
	if s.Calls() != 4 {
		t.Fatalf("calls = %d, want 4", s.Calls())
	}
}
