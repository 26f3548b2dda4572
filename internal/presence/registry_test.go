package presence

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestRegisterAndOnline(t *testing.T) {
	r := NewRegistry()

	r.Register("conn-1", "alice")
	r.Register("conn-2", "bob")

	got := r.OnlineIdentities()
	want := []string{"alice", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("online set: got %v, want %v", got, want)
	}
}

func TestMultiDeviceIdentity(t *testing.T) {
	r := NewRegistry()

	r.Register("phone", "alice")
	r.Register("laptop", "alice")

	if r.OnlineCount() != 1 {
		t.Errorf("one identity expected, got %d", r.OnlineCount())
	}
	if r.ConnectionCount() != 2 {
		t.Errorf("two connections expected, got %d", r.ConnectionCount())
	}

	// Identity stays online until the last connection goes.
	r.Unregister("phone")
	if r.OnlineCount() != 1 {
		t.Error("identity must stay online while a connection remains")
	}
	r.Unregister("laptop")
	if r.OnlineCount() != 0 {
		t.Error("identity must go offline with its last connection")
	}
}

func TestRegisterIdempotentPerHandle(t *testing.T) {
	r := NewRegistry()

	r.Register("conn-1", "alice")
	r.Register("conn-1", "alice")

	if r.ConnectionCount() != 1 {
		t.Errorf("re-registering a handle must not duplicate it, got %d", r.ConnectionCount())
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Register("conn-1", "alice")
	r.Unregister("conn-1")
	// Second and third removals must be no-ops.
	r.Unregister("conn-1")
	r.Unregister("never-registered")

	if r.ConnectionCount() != 0 || r.OnlineCount() != 0 {
		t.Error("registry must be empty after unregister")
	}
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	r := NewRegistry()

	r.Register("conn-1", "alice")
	before, _ := r.Get("conn-1")

	r.Touch("conn-1")
	after, ok := r.Get("conn-1")
	if !ok {
		t.Fatal("entry disappeared after touch")
	}
	if after.LastSeenAt.Before(before.LastSeenAt) {
		t.Error("LastSeenAt must not move backwards")
	}

	// Touching an unknown handle must not create an entry.
	r.Touch("ghost")
	if r.ConnectionCount() != 1 {
		t.Error("touch must not create entries")
	}
}

func TestConcurrentRegistry(t *testing.T) {
	r := NewRegistry()
	goroutines := 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			handle := fmt.Sprintf("conn-%d", id)
			identity := fmt.Sprintf("wallet-%d", id%10)
			for i := 0; i < 50; i++ {
				r.Register(handle, identity)
				r.Touch(handle)
				_ = r.OnlineIdentities()
			}
		}(g)
	}
	wg.Wait()

	if r.ConnectionCount() != goroutines {
		t.Errorf("expected %d connections, got %d", goroutines, r.ConnectionCount())
	}
	if r.OnlineCount() != 10 {
		t.Errorf("expected 10 identities, got %d", r.OnlineCount())
	}
}
