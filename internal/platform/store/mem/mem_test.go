package mem

import (
	"errors"
	"reflect"
	"testing"
)

func TestMemStore(t *testing.T) {
	db := New()
	defer db.Close()

	if err := db.Put("g", map[string][]byte{"k": nil}); !errors.Is(err, ErrNoBucket) {
		t.Fatalf("expected ErrNoBucket, got %v", err)
	}
	_ = db.CreateBucket("b")
	_ = db.CreateBucket("a")
	_ = db.CreateBucket("a")
	if names, _ := db.Buckets(); !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Fatalf("buckets = %v", names)
	}

	val := []byte("v1")
	if err := db.Put("a", map[string][]byte{"k": val}); err != nil {
		t.Fatal(err)
	}
	val[0] = 'X'
	got, ok, _ := db.Get("a", "k")
	if !ok || string(got) != "v1" {
		t.Fatalf("stored value aliased caller slice: %q", got)
	}
	got[0] = 'Y'
	if again, _, _ := db.Get("a", "k"); string(again) != "v1" {
		t.Fatalf("returned value aliased storage")
	}

	_ = db.Put("a", map[string][]byte{"k": []byte("v2")})
	if v, _, _ := db.Get("a", "k"); string(v) != "v2" {
		t.Fatalf("last write should win, got %q", v)
	}
	if keys, _ := db.Keys("a"); !reflect.DeepEqual(keys, []string{"k"}) {
		t.Fatalf("keys = %v", keys)
	}
	_ = db.DeleteKey("a", "k")
	_ = db.DeleteKey("missing", "k")
	if _, ok, _ := db.Get("a", "k"); ok {
		t.Fatalf("key not deleted")
	}

	if ok, _ := db.DeleteBucket("a"); !ok {
		t.Fatalf("expected delete true")
	}
	if ok, _ := db.HasBucket("a"); ok {
		t.Fatalf("bucket survived delete")
	}
}
