package reactive

import "testing"

func TestOwnerCleanupOrder(t *testing.T) {
	owner := NewOwner(nil)

	var order []int
	owner.OnCleanup(func() { order = append(order, 1) })
	owner.OnCleanup(func() { order = append(order, 2) })
	owner.OnCleanup(func() { order = append(order, 3) })

	owner.Dispose()

	want := []int{3, 2, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected reverse order %v, got %v", want, order)
		}
	}
}

func TestOwnerDisposesChildren(t *testing.T) {
	parent := NewOwner(nil)
	child := NewOwner(parent)
	grandchild := NewOwner(child)

	parent.Dispose()

	if !child.IsDisposed() {
		t.Error("child should be disposed with parent")
	}
	if !grandchild.IsDisposed() {
		t.Error("grandchild should be disposed with parent")
	}
}

func TestOwnerChildrenBeforeOwnCleanups(t *testing.T) {
	parent := NewOwner(nil)
	child := NewOwner(parent)

	var order []string
	parent.OnCleanup(func() { order = append(order, "parent") })
	child.OnCleanup(func() { order = append(order, "child") })

	parent.Dispose()

	if len(order) != 2 || order[0] != "child" || order[1] != "parent" {
		t.Errorf("expected [child parent], got %v", order)
	}
}

func TestOwnerDisposeIdempotent(t *testing.T) {
	owner := NewOwner(nil)

	count := 0
	owner.OnCleanup(func() { count++ })

	owner.Dispose()
	owner.Dispose()

	if count != 1 {
		t.Errorf("expected cleanup to run once, got %d", count)
	}
}

func TestOnCleanupAfterDisposeRunsImmediately(t *testing.T) {
	owner := NewOwner(nil)
	owner.Dispose()

	ran := false
	owner.OnCleanup(func() { ran = true })

	if !ran {
		t.Error("cleanup registered after dispose should run immediately")
	}
}

func TestChildDisposeDetachesFromParent(t *testing.T) {
	parent := NewOwner(nil)
	child := NewOwner(parent)

	childCleanups := 0
	child.OnCleanup(func() { childCleanups++ })

	child.Dispose()
	parent.Dispose()

	if childCleanups != 1 {
		t.Errorf("child cleanup should run exactly once, got %d", childCleanups)
	}
}

func TestOnDisposeUsesCurrentOwner(t *testing.T) {
	owner := NewOwner(nil)

	ran := false
	WithOwner(owner, func() {
		OnDispose(func() { ran = true })
	})

	if ran {
		t.Error("OnDispose must defer until disposal")
	}

	owner.Dispose()
	if !ran {
		t.Error("OnDispose callback should run on owner disposal")
	}
}
