package providers

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestProvider_Register(t *testing.T) {
	ctx := context.Background()
	p := NewProvider[string]()

	if err := p.Register(ctx, "b", "beta"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := p.Register(ctx, "a", "alpha"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := p.Register(ctx, "a", "again"); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Register() duplicate error = %v, want ErrDuplicateKey", err)
	}

	if v, ok := p.Get("a"); !ok || v != "alpha" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}
	if !reflect.DeepEqual(p.Keys(), []string{"a", "b"}) {
		t.Errorf("Keys() = %v", p.Keys())
	}
	if !reflect.DeepEqual(p.Values(), []string{"alpha", "beta"}) {
		t.Errorf("Values() = %v", p.Values())
	}
	if p.Size() != 2 {
		t.Errorf("Size() = %d, want 2", p.Size())
	}

	if err := p.Delete("b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if p.Has("b") {
		t.Error("Has(b) should be false after Delete")
	}
	if err := p.Delete("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrNotFound", err)
	}
}

func TestProvider_Freeze(t *testing.T) {
	ctx := context.Background()
	p := NewProvider[int]()
	if err := p.Register(ctx, "one", 1); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p.Freeze()

	if err := p.Register(ctx, "two", 2); !errors.Is(err, ErrProviderFrozen) {
		t.Errorf("Register() error = %v, want ErrProviderFrozen", err)
	}
	if err := p.Delete("one"); !errors.Is(err, ErrProviderFrozen) {
		t.Errorf("Delete() error = %v, want ErrProviderFrozen", err)
	}
	if !p.IsFrozen() {
		t.Error("IsFrozen() = false")
	}
}

func TestProvider_Hooks(t *testing.T) {
	ctx := context.Background()
	p := NewProvider[int]()

	var registered []string
	p.OnWillRegister(func(_ context.Context, rc *RegisterContext[int]) error {
		if rc.Value < 0 {
			return errors.New("negative values are not allowed")
		}
		rc.Value *= 10
		return nil
	})
	p.OnDidRegister(func(_ context.Context, rc *RegisterContext[int]) error {
		registered = append(registered, rc.Key)
		return nil
	})

	if err := p.Register(ctx, "x", 2); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if v, _ := p.Get("x"); v != 20 {
		t.Errorf("Get(x) = %d, want value rewritten by willRegister (20)", v)
	}

	if err := p.Register(ctx, "y", -1); err == nil {
		t.Error("Register() should fail when willRegister fails")
	}
	if p.Has("y") {
		t.Error("rejected item should not be stored")
	}

	if !reflect.DeepEqual(registered, []string{"x"}) {
		t.Errorf("didRegister calls = %v, want [x]", registered)
	}
}
