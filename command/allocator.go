package command

import "fmt"

// blockSize is the number of records stored in one arena block. Blocks are
// never reallocated once created, so records keep stable addresses while the
// stream grows.
const blockSize = 256

type slotKind uint8

const (
	slotHeader slotKind = iota
	slotData
)

// slot is one arena entry: a command header or a trailing data array.
type slot struct {
	kind  slotKind
	id    ID
	value any
}

// Allocator is the write side of a command stream.
//
// Allocator is not safe for concurrent use. It is owned by a single recorder
// until [Allocator.MoveToIterator] hands its contents to an Iterator.
type Allocator struct {
	blocks   [][]slot
	commands int

	lastID    ID
	hasHeader bool
	moved     bool
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Len returns the number of commands written so far.
func (a *Allocator) Len() int {
	return a.commands
}

// IsMoved reports whether the allocator has been converted to an iterator.
func (a *Allocator) IsMoved() bool {
	return a.moved
}

func (a *Allocator) push(s slot) {
	if a.moved {
		panic("command: allocator used after MoveToIterator")
	}
	n := len(a.blocks)
	if n == 0 || len(a.blocks[n-1]) == cap(a.blocks[n-1]) {
		a.blocks = append(a.blocks, make([]slot, 0, blockSize))
		n++
	}
	a.blocks[n-1] = append(a.blocks[n-1], s)
}

// Allocate reserves one command record of type T tagged with id and returns
// a pointer to its zero value for the caller to fill in.
func Allocate[T any](a *Allocator, id ID) *T {
	if !id.IsValid() {
		panic(fmt.Sprintf("command: allocate with invalid id %d", id))
	}
	rec := new(T)
	a.push(slot{kind: slotHeader, id: id, value: rec})
	a.commands++
	a.lastID = id
	a.hasHeader = true
	return rec
}

// AllocateData reserves a trailing array of count elements of type T right
// after the most recent command. The reader must consume it with
// [NextData] using the same T and count.
func AllocateData[T any](a *Allocator, count int) []T {
	if !a.hasHeader {
		panic("command: AllocateData without a preceding command")
	}
	if count < 0 {
		panic(fmt.Sprintf("command: negative data count %d", count))
	}
	data := make([]T, count)
	a.push(slot{kind: slotData, id: a.lastID, value: data})
	return data
}

// MoveToIterator transfers the recorded stream to a new Iterator. The
// allocator panics on any later write.
func (a *Allocator) MoveToIterator() *Iterator {
	if a.moved {
		panic("command: allocator already moved to an iterator")
	}
	it := &Iterator{blocks: a.blocks, commands: a.commands}
	a.blocks = nil
	a.moved = true
	return it
}

// Iterator is the read side of a command stream. It walks the records
// sequentially; there is no random access.
//
// Every header must be read with [Iterator.NextCommandID] followed by
// [NextCommand], and every trailing array with [NextData], in write order.
// Any mismatch panics.
type Iterator struct {
	blocks   [][]slot
	commands int

	block   int
	index   int
	pending bool

	destroyed bool
}

// Len returns the number of commands in the stream.
func (it *Iterator) Len() int {
	return it.commands
}

// IsEmpty reports whether the stream holds no commands.
func (it *Iterator) IsEmpty() bool {
	return it.commands == 0
}

func (it *Iterator) current() (*slot, bool) {
	for it.block < len(it.blocks) {
		if it.index < len(it.blocks[it.block]) {
			return &it.blocks[it.block][it.index], true
		}
		it.block++
		it.index = 0
	}
	return nil, false
}

// NextCommandID returns the ID of the next command, or false at the end of
// the stream. The command itself must then be read with [NextCommand].
func (it *Iterator) NextCommandID() (ID, bool) {
	if it.destroyed {
		return 0, false
	}
	if it.pending {
		panic("command: NextCommandID called before the previous command was read")
	}
	s, ok := it.current()
	if !ok {
		return 0, false
	}
	if s.kind != slotHeader {
		panic(fmt.Sprintf("command: unread trailing data after %v", s.id))
	}
	it.pending = true
	return s.id, true
}

// NextCommand returns the command record announced by the last
// NextCommandID call. T must be the type the record was allocated with.
func NextCommand[T any](it *Iterator) *T {
	if !it.pending {
		panic("command: NextCommand called without NextCommandID")
	}
	s, _ := it.current()
	rec, ok := s.value.(*T)
	if !ok {
		panic(fmt.Sprintf("command: %v record is %T, read as %T", s.id, s.value, rec))
	}
	it.pending = false
	it.index++
	return rec
}

// NextData returns the trailing array following the last read command.
// T and count must match the [AllocateData] call that wrote it.
func NextData[T any](it *Iterator, count int) []T {
	if it.pending {
		panic("command: NextData called before the command header was read")
	}
	s, ok := it.current()
	if !ok || s.kind != slotData {
		panic(fmt.Sprintf("command: expected %d trailing elements, found none", count))
	}
	data, ok := s.value.([]T)
	if !ok {
		panic(fmt.Sprintf("command: %v data is %T, read as %T", s.id, s.value, data))
	}
	if len(data) != count {
		panic(fmt.Sprintf("command: %v data has %d elements, read as %d", s.id, len(data), count))
	}
	it.index++
	return data
}

// Reset rewinds the iterator to the first command for another full pass.
func (it *Iterator) Reset() {
	it.block = 0
	it.index = 0
	it.pending = false
}

// DataWasDestroyed records that the references held by the records have
// been released. The records are dropped and every later read reports the
// end of the stream, so the release pass cannot run twice.
func (it *Iterator) DataWasDestroyed() {
	it.destroyed = true
	it.blocks = nil
	it.Reset()
}

// IsDestroyed reports whether DataWasDestroyed has been called.
func (it *Iterator) IsDestroyed() bool {
	return it.destroyed
}
