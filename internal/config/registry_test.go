package config_test

import (
	"errors"
	"testing"

	"github.com/orato-ai/orato/internal/config"
	"github.com/orato-ai/orato/pkg/provider/llm"
	"github.com/orato-ai/orato/pkg/provider/llm/mock"
)

func TestRegistry_CreateLLM(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterLLM("mock", func(entry config.ProviderEntry) (llm.Provider, error) {
		return &mock.Provider{ProviderName: entry.Model}, nil
	})

	p, err := reg.CreateLLM(config.ProviderEntry{Name: "mock", Model: "test-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "test-model" {
		t.Errorf("factory did not receive entry: got %q", p.Name())
	}
}

func TestRegistry_CreateLLM_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &mock.Provider{ProviderName: "first"}, nil
	})
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &mock.Provider{ProviderName: "second"}, nil
	})

	p, err := reg.CreateLLM(config.ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "second" {
		t.Errorf("got %q, want %q", p.Name(), "second")
	}
}
