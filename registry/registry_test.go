package registry

import (
	"errors"
	"sync"
	"testing"
)

type service struct {
	name string
}

func TestProvide_ConstructsLazilyAndCaches(t *testing.T) {
	r := New()
	token := NewToken[service]("svc")

	calls := 0
	factory := func() *service {
		calls++
		return &service{name: "one"}
	}

	first := Provide(r, token, Scope[service]{}, factory)
	second := Provide(r, token, Scope[service]{}, factory)

	if first != second {
		t.Fatal("Provide() returned distinct instances for the same token")
	}
	if calls != 1 {
		t.Fatalf("factory ran %d times, want 1", calls)
	}
}

func TestProvide_OnInitRunsOnce(t *testing.T) {
	r := New()
	token := NewToken[service]("svc")

	inits := 0
	scope := Scope[service]{OnInit: func(s *service) {
		inits++
		s.name = "initialized"
	}}

	Provide(r, token, scope, func() *service { return &service{} })
	got := Provide(r, token, scope, func() *service { return &service{} })

	if inits != 1 {
		t.Fatalf("OnInit ran %d times, want 1", inits)
	}
	if got.name != "initialized" {
		t.Fatalf("instance name = %q, want %q", got.name, "initialized")
	}
}

func TestProvide_NamespacesIsolate(t *testing.T) {
	r := New()
	token := NewToken[service]("svc")

	a := Provide(r, token, Scope[service]{Namespace: "tenant-a"}, func() *service {
		return &service{name: "a"}
	})
	b := Provide(r, token, Scope[service]{Namespace: "tenant-b"}, func() *service {
		return &service{name: "b"}
	})

	if a == b {
		t.Fatal("instances from different namespaces must be distinct")
	}
	if a.name != "a" || b.name != "b" {
		t.Fatalf("got names %q, %q", a.name, b.name)
	}
}

func TestResolve(t *testing.T) {
	r := New()
	token := NewToken[service]("svc")

	if _, err := Resolve(r, token, ""); !errors.Is(err, ErrNotProvided) {
		t.Fatalf("Resolve() error = %v, want ErrNotProvided", err)
	}

	provided := Provide(r, token, Scope[service]{}, func() *service { return &service{name: "x"} })

	resolved, err := Resolve(r, token, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved != provided {
		t.Fatal("Resolve() returned a different instance than Provide()")
	}
}

func TestForgetAndFlush(t *testing.T) {
	r := New()
	token := NewToken[service]("svc")

	first := Provide(r, token, Scope[service]{}, func() *service { return &service{} })
	Forget(r, token, "")

	second := Provide(r, token, Scope[service]{}, func() *service { return &service{} })
	if first == second {
		t.Fatal("Forget() must drop the cached instance")
	}

	r.Flush()
	if _, err := Resolve(r, token, ""); !errors.Is(err, ErrNotProvided) {
		t.Fatalf("Resolve() after Flush() error = %v, want ErrNotProvided", err)
	}
}

func TestProvide_ConcurrentFirstRequest(t *testing.T) {
	r := New()
	token := NewToken[service]("svc")

	var mu sync.Mutex
	calls := 0
	instances := make(map[*service]bool)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := Provide(r, token, Scope[service]{}, func() *service {
				mu.Lock()
				calls++
				mu.Unlock()
				return &service{}
			})
			mu.Lock()
			instances[got] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(instances) != 1 {
		t.Fatalf("observed %d distinct instances, want 1", len(instances))
	}
	if calls != 1 {
		t.Fatalf("factory ran %d times, want 1", calls)
	}
}
