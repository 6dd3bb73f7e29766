package command

import (
	"testing"
)

type drawRecord struct {
	VertexCount, InstanceCount, FirstVertex, FirstInstance uint32
}

type pushRecord struct {
	Offset uint32
	Count  uint32
}

type emptyRecord struct{}

// mustPanic runs fn and fails the test if it returns normally.
func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestAllocator_RoundTrip(t *testing.T) {
	a := NewAllocator()

	d := Allocate[drawRecord](a, DrawArrays)
	*d = drawRecord{VertexCount: 3, InstanceCount: 1}

	p := Allocate[pushRecord](a, SetPushConstants)
	p.Offset, p.Count = 4, 3
	copy(AllocateData[uint32](a, 3), []uint32{7, 8, 9})

	Allocate[emptyRecord](a, EndRenderSubpass)

	if a.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", a.Len())
	}

	it := a.MoveToIterator()
	if !a.IsMoved() {
		t.Error("IsMoved() = false after MoveToIterator")
	}
	if it.Len() != 3 {
		t.Errorf("iterator Len() = %d, want 3", it.Len())
	}

	id, ok := it.NextCommandID()
	if !ok || id != DrawArrays {
		t.Fatalf("NextCommandID() = %v, %v, want DrawArrays, true", id, ok)
	}
	gotDraw := NextCommand[drawRecord](it)
	if gotDraw != d {
		t.Error("NextCommand returned a copy, want the recorded value")
	}
	if gotDraw.VertexCount != 3 || gotDraw.InstanceCount != 1 {
		t.Errorf("draw = %+v, want VertexCount 3, InstanceCount 1", *gotDraw)
	}

	id, _ = it.NextCommandID()
	if id != SetPushConstants {
		t.Fatalf("NextCommandID() = %v, want SetPushConstants", id)
	}
	gotPush := NextCommand[pushRecord](it)
	values := NextData[uint32](it, int(gotPush.Count))
	if len(values) != 3 || values[0] != 7 || values[2] != 9 {
		t.Errorf("NextData() = %v, want [7 8 9]", values)
	}

	id, _ = it.NextCommandID()
	if id != EndRenderSubpass {
		t.Fatalf("NextCommandID() = %v, want EndRenderSubpass", id)
	}
	NextCommand[emptyRecord](it)

	if _, ok := it.NextCommandID(); ok {
		t.Error("NextCommandID() = true at end of stream")
	}
	// The end of the stream is terminal.
	if _, ok := it.NextCommandID(); ok {
		t.Error("NextCommandID() = true after end of stream")
	}
}

func TestAllocator_ManyBlocks(t *testing.T) {
	a := NewAllocator()
	const n = blockSize*3 + 17
	for i := 0; i < n; i++ {
		d := Allocate[drawRecord](a, DrawArrays)
		d.FirstVertex = uint32(i)
		AllocateData[uint64](a, i%3)
	}

	it := a.MoveToIterator()
	for pass := 0; pass < 2; pass++ {
		count := 0
		for id, ok := it.NextCommandID(); ok; id, ok = it.NextCommandID() {
			if id != DrawArrays {
				t.Fatalf("pass %d: id = %v, want DrawArrays", pass, id)
			}
			d := NextCommand[drawRecord](it)
			if d.FirstVertex != uint32(count) {
				t.Fatalf("pass %d: record %d has FirstVertex %d", pass, count, d.FirstVertex)
			}
			NextData[uint64](it, count%3)
			count++
		}
		if count != n {
			t.Errorf("pass %d: read %d commands, want %d", pass, count, n)
		}
		it.Reset()
	}
}

func TestAllocator_EmptyStream(t *testing.T) {
	it := NewAllocator().MoveToIterator()
	if !it.IsEmpty() {
		t.Error("IsEmpty() = false for empty stream")
	}
	if _, ok := it.NextCommandID(); ok {
		t.Error("NextCommandID() = true for empty stream")
	}
}

func TestAllocator_Misuse(t *testing.T) {
	mustPanic(t, "write after move", func() {
		a := NewAllocator()
		a.MoveToIterator()
		Allocate[drawRecord](a, DrawArrays)
	})

	mustPanic(t, "double move", func() {
		a := NewAllocator()
		a.MoveToIterator()
		a.MoveToIterator()
	})

	mustPanic(t, "data without header", func() {
		AllocateData[uint32](NewAllocator(), 1)
	})

	mustPanic(t, "invalid id", func() {
		Allocate[drawRecord](NewAllocator(), numIDs)
	})
}

func TestIterator_SymmetryViolations(t *testing.T) {
	build := func() *Iterator {
		a := NewAllocator()
		Allocate[pushRecord](a, SetPushConstants).Count = 2
		AllocateData[uint32](a, 2)
		Allocate[drawRecord](a, DrawArrays)
		return a.MoveToIterator()
	}

	mustPanic(t, "wrong record type", func() {
		it := build()
		it.NextCommandID()
		NextCommand[drawRecord](it)
	})

	mustPanic(t, "wrong data length", func() {
		it := build()
		it.NextCommandID()
		NextCommand[pushRecord](it)
		NextData[uint32](it, 3)
	})

	mustPanic(t, "wrong data type", func() {
		it := build()
		it.NextCommandID()
		NextCommand[pushRecord](it)
		NextData[uint64](it, 2)
	})

	mustPanic(t, "skipped trailing data", func() {
		it := build()
		it.NextCommandID()
		NextCommand[pushRecord](it)
		it.NextCommandID()
	})

	mustPanic(t, "command without id", func() {
		NextCommand[pushRecord](build())
	})

	mustPanic(t, "id twice", func() {
		it := build()
		it.NextCommandID()
		it.NextCommandID()
	})
}

func TestIterator_DataWasDestroyed(t *testing.T) {
	a := NewAllocator()
	Allocate[drawRecord](a, DrawArrays)
	it := a.MoveToIterator()

	if it.IsDestroyed() {
		t.Fatal("IsDestroyed() = true before DataWasDestroyed")
	}
	it.DataWasDestroyed()
	if !it.IsDestroyed() {
		t.Error("IsDestroyed() = false after DataWasDestroyed")
	}

	it.Reset()
	if _, ok := it.NextCommandID(); ok {
		t.Error("NextCommandID() = true after DataWasDestroyed")
	}
}
