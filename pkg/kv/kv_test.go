package kv

import (
	"context"
	"errors"
	"testing"
)

// storeUnderTest runs the shared suite against a Store implementation.
func storeUnderTest(t *testing.T, name string, open func(t *testing.T) Store) {
	t.Run(name+"/get_set_delete", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		key := Key{"session", "kitchen-7", "state"}
		if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get missing = %v, want ErrNotFound", err)
		}

		if err := s.Set(ctx, key, []byte("v1")); err != nil {
			t.Fatalf("Set error: %v", err)
		}
		got, err := s.Get(ctx, key)
		if err != nil || string(got) != "v1" {
			t.Fatalf("Get = %q, %v; want v1", got, err)
		}

		if err := s.Set(ctx, key, []byte("v2")); err != nil {
			t.Fatalf("overwrite error: %v", err)
		}
		got, _ = s.Get(ctx, key)
		if string(got) != "v2" {
			t.Errorf("Get after overwrite = %q, want v2", got)
		}

		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete error: %v", err)
		}
		if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after delete = %v, want ErrNotFound", err)
		}
		// Idempotent.
		if err := s.Delete(ctx, key); err != nil {
			t.Errorf("Delete missing = %v, want nil", err)
		}
	})

	t.Run(name+"/list_prefix", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		entries := []Entry{
			{Key{"session", "a", "state"}, []byte("1")},
			{Key{"session", "a", "timers"}, []byte("2")},
			{Key{"session", "ab", "state"}, []byte("3")},
			{Key{"other", "x"}, []byte("4")},
		}
		if err := s.Batch(ctx, entries, nil); err != nil {
			t.Fatalf("Batch error: %v", err)
		}

		var got []string
		for e, err := range s.List(ctx, Key{"session", "a"}) {
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			got = append(got, e.Key.String())
		}
		want := []string{"session:a:state", "session:a:timers"}
		if len(got) != len(want) {
			t.Fatalf("List = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run(name+"/batch_set_delete", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		if err := s.Set(ctx, Key{"a"}, []byte("old")); err != nil {
			t.Fatal(err)
		}
		err := s.Batch(ctx,
			[]Entry{{Key{"b"}, []byte("new")}},
			[]Key{{"a"}},
		)
		if err != nil {
			t.Fatalf("Batch error: %v", err)
		}
		if _, err := s.Get(ctx, Key{"a"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("deleted key still present: %v", err)
		}
		if got, _ := s.Get(ctx, Key{"b"}); string(got) != "new" {
			t.Errorf("Get b = %q, want new", got)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, "memory", func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestBadgerStore(t *testing.T) {
	storeUnderTest(t, "badger", func(t *testing.T) Store {
		s, err := NewBadger(BadgerOptions{InMemory: true})
		if err != nil {
			t.Fatalf("NewBadger error: %v", err)
		}
		return s
	})
}

func TestBadger_RequiresDir(t *testing.T) {
	if _, err := NewBadger(BadgerOptions{}); err == nil {
		t.Error("expected error for missing Dir")
	}
}

func TestKey_Codec(t *testing.T) {
	k := Key{"session", "kitchen-7", "grocery"}
	if got := decodeKey(encodeKey(k)); got.String() != k.String() {
		t.Errorf("decode(encode) = %v, want %v", got, k)
	}
}
