package symbols

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemberMapPreservesInsertionOrder(t *testing.T) {
	m := NewMemberMap()
	m.Set("z", Unknown)
	m.Set("a", Unknown)
	m.Set("m", Unknown)

	if diff := cmp.Diff([]string{"z", "a", "m"}, m.Names()); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestMemberMapSetUpdatesInPlaceWithoutReordering(t *testing.T) {
	m := NewMemberMap()
	m.Set("a", &Constant{BuiltinTypeID: "int", Value: 1})
	m.Set("b", Unknown)
	m.Set("a", &Constant{BuiltinTypeID: "int", Value: 2}) // update, not re-insert

	if diff := cmp.Diff([]string{"a", "b"}, m.Names()); diff != "" {
		t.Fatalf("Names() mismatch after update, want no reordering (-want +got):\n%s", diff)
	}
	v, ok := m.Get("a")
	if !ok {
		t.Fatal("expected a to be present")
	}
	if c, ok := v.(*Constant); !ok || c.Value != 2 {
		t.Fatalf("a = %#v, want updated Constant(2)", v)
	}
}
