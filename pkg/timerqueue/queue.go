// Package timerqueue holds scheduled commands ordered by due time.
//
// Commands with equal due times come out in the order they were inserted.
// The queue is a min-heap keyed by (time, insertion sequence) with an index
// by id, so insert, pop and remove-by-id are all O(log n).
package timerqueue

import (
	"container/heap"
	"sort"
)

// ID identifies a scheduled command. Zero is never assigned.
type ID uint64

// Command is a callback scheduled to run at an absolute virtual time.
type Command struct {
	// Time is the virtual time, in milliseconds, at which the command is due.
	Time int64

	// Fn is invoked when the command fires.
	Fn func()

	// Repeat is the re-schedule interval in milliseconds, or 0 to fire once.
	Repeat int64

	ID ID
}

// Queue is an ordered collection of commands. It is not safe for concurrent
// use.
type Queue struct {
	entries entryHeap
	byID    map[ID]*entry
	lastID  ID
	seq     uint64
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{
		byID: make(map[ID]*entry),
	}
}

// Insert schedules fn at time t. If id is zero a new id is assigned from the
// queue's counter. A non-zero id that is already queued replaces the queued
// command. The counter never goes below a caller-supplied id, so later
// auto-assigned ids cannot collide with it.
func (q *Queue) Insert(t int64, fn func(), repeat int64, id ID) ID {
	if id == 0 {
		q.lastID++
		id = q.lastID
	} else {
		q.Remove(id)
		if id > q.lastID {
			q.lastID = id
		}
	}

	q.seq++
	e := &entry{
		cmd: Command{Time: t, Fn: fn, Repeat: repeat, ID: id},
		seq: q.seq,
	}
	heap.Push(&q.entries, e)
	q.byID[id] = e
	return id
}

// Remove removes the command with the given id. It reports whether a command
// was removed; an unknown id is not an error.
func (q *Queue) Remove(id ID) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.entries, e.index)
	delete(q.byID, id)
	return true
}

// Peek returns the earliest command without removing it.
func (q *Queue) Peek() (Command, bool) {
	if len(q.entries) == 0 {
		return Command{}, false
	}
	return q.entries[0].cmd, true
}

// Pop removes and returns the earliest command.
func (q *Queue) Pop() (Command, bool) {
	if len(q.entries) == 0 {
		return Command{}, false
	}
	e := heap.Pop(&q.entries).(*entry)
	delete(q.byID, e.cmd.ID)
	return e.cmd, true
}

// Clear removes every command. The id counter is kept so ids stay unique
// across clears.
func (q *Queue) Clear() {
	q.entries = nil
	q.byID = make(map[ID]*entry)
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Contains reports whether a command with the given id is queued.
func (q *Queue) Contains(id ID) bool {
	_, ok := q.byID[id]
	return ok
}

// LastID returns the most recently assigned or observed id.
func (q *Queue) LastID() ID {
	return q.lastID
}

// Commands returns a snapshot of the queue in firing order.
func (q *Queue) Commands() []Command {
	sorted := make([]*entry, len(q.entries))
	copy(sorted, q.entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].before(sorted[j])
	})

	cmds := make([]Command, len(sorted))
	for i, e := range sorted {
		cmds[i] = e.cmd
	}
	return cmds
}

// entry is a queued command plus its heap bookkeeping.
type entry struct {
	cmd   Command
	seq   uint64 // insertion order, for the FIFO tie-break
	index int    // position in the heap
}

func (e *entry) before(o *entry) bool {
	if e.cmd.Time == o.cmd.Time {
		return e.seq < o.seq
	}
	return e.cmd.Time < o.cmd.Time
}

// entryHeap is a min-heap of entries ordered by time, then insertion order.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool { return h[i].before(h[j]) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[0 : n-1]
	return e
}
