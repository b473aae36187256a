package resolver

import (
	"context"
	"testing"
)

func TestRegistryResolveRegistered(t *testing.T) {
	reg := NewRegistry()
	reg.Register("echo", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return params, nil
	})

	fn, ok := reg.Resolve("echo")
	if !ok {
		t.Fatal("Resolve() ok = false, want true")
	}

	result, err := fn(context.Background(), map[string]interface{}{"x": 1})
	if err != nil {
		t.Fatalf("fn() error = %v", err)
	}
	if result.(map[string]interface{})["x"] != 1 {
		t.Errorf("result = %v, want echoed params", result)
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Resolve("missing")
	if ok {
		t.Fatal("Resolve() ok = true, want false for unregistered function")
	}
}

func TestRegistryHas(t *testing.T) {
	reg := NewRegistry()
	if reg.Has("echo") {
		t.Fatal("Has() = true before registration")
	}
	reg.Register("echo", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return nil, nil
	})
	if !reg.Has("echo") {
		t.Fatal("Has() = false after registration")
	}
}

func TestErrUnknownFunctionMessage(t *testing.T) {
	err := &ErrUnknownFunction{FunctionIdentifier: "ghost"}
	if err.Error() == "" {
		t.Fatal("Error() returned empty string")
	}
}
