package hal

import (
	"errors"
	"testing"

	"boardhal-go/errcode"
	"boardhal-go/types"
)

func rec(t types.ControllerType, name string) DriverRecord {
	return DriverRecord{
		Type:    t,
		Name:    name,
		Author:  "test",
		Version: "1.0",
		Impl:    NewHandle(),
		State:   NewHandle(),
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()

	a := rec(types.ControllerGPIO, "native")
	if err := r.Add(a); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := r.Add(rec(types.ControllerGPIO, "native")); !errors.Is(err, errcode.DuplicateName) {
		t.Fatalf("second Add: want duplicate_name, got %v", err)
	}

	// Same name under a different type is fine.
	if err := r.Add(rec(types.ControllerSPI, "native")); err != nil {
		t.Fatalf("Add same name, other type: %v", err)
	}

	// Remove then re-add with that name succeeds.
	if err := r.Remove(a.Impl); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.Add(rec(types.ControllerGPIO, "native")); err != nil {
		t.Fatalf("re-Add after Remove: %v", err)
	}
}

func TestRegistry_RemoveUnknownHandle(t *testing.T) {
	r := NewRegistry()
	if err := r.Remove(NewHandle()); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("want not_found, got %v", err)
	}
}

func TestRegistry_FindAbsent(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Find("nope", types.ControllerGPIO); ok {
		t.Fatal("Find on empty registry should report absent")
	}
}

func TestRegistry_FindAllSnapshot(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(rec(types.ControllerGPIO, "a")); err != nil {
		t.Fatal(err)
	}

	snap := r.FindAll()
	if err := r.Add(rec(types.ControllerGPIO, "b")); err != nil {
		t.Fatal(err)
	}

	if len(snap) != 1 {
		t.Fatalf("snapshot reflects later mutation: %d records", len(snap))
	}
	if got := r.FindAll(); len(got) != 2 {
		t.Fatalf("fresh enumeration: want 2, got %d", len(got))
	}
}

func TestRegistry_FindByType(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(rec(types.ControllerGPIO, "a")); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(rec(types.ControllerSPI, "b")); err != nil {
		t.Fatal(err)
	}

	got := r.FindByType(types.ControllerGPIO)
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("FindByType: %+v", got)
	}
}

func TestRegistry_DefaultNameUnregistered(t *testing.T) {
	r := NewRegistry()
	r.SetDefaultName(types.ControllerGPIO, "ghost")

	// A default naming a record that never registered resolves absent,
	// without error.
	if _, ok := r.ResolveDefault(types.ControllerGPIO); ok {
		t.Fatal("resolution should be absent for an unregistered default name")
	}
}

func TestRegistry_DefaultNameAfterRemove(t *testing.T) {
	r := NewRegistry()
	a := rec(types.ControllerGPIO, "native")
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	r.SetDefaultName(types.ControllerGPIO, "native")

	res, ok := r.ResolveDefault(types.ControllerGPIO)
	if !ok || res.Record == nil || res.Record.Impl != a.Impl {
		t.Fatalf("resolution before remove: ok=%v res=%+v", ok, res)
	}

	// Once the record is gone the stale name must not resolve.
	if err := r.Remove(a.Impl); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.ResolveDefault(types.ControllerGPIO); ok {
		t.Fatal("resolution should fail cleanly after the default record is removed")
	}
}

func TestRegistry_DefaultCreatorFallback(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.DefaultFromCreator(types.ControllerADC); ok {
		t.Fatal("no creator installed, want absent")
	}

	calls := 0
	r.SetDefaultCreator(types.ControllerADC, func() any {
		calls++
		return "adc-provider"
	})

	res, ok := r.ResolveDefault(types.ControllerADC)
	if !ok || res.Provider != "adc-provider" {
		t.Fatalf("creator resolution: ok=%v res=%+v", ok, res)
	}
	if calls != 1 {
		t.Fatalf("creator invoked %d times, want 1 (lazy, per resolution)", calls)
	}

	// A named record takes precedence over the creator.
	a := rec(types.ControllerADC, "native-adc")
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	r.SetDefaultName(types.ControllerADC, "native-adc")

	res, ok = r.ResolveDefault(types.ControllerADC)
	if !ok || res.Record == nil {
		t.Fatalf("record should win over creator: %+v", res)
	}
	if calls != 1 {
		t.Fatalf("creator ran during record resolution (calls=%d)", calls)
	}
}
