// internal/browser/jsexec/timers.go
package jsexec

import (
	"container/heap"
	"context"
	"time"

	"github.com/dop251/goja"
)

// timer is one pending setTimeout or setInterval callback.
type timer struct {
	id       int64
	due      time.Time
	interval time.Duration
	repeat   bool
	fn       goja.Callable
	args     []goja.Value
	seq      int64
	index    int
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	t := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	t.index = -1
	return t
}

// loop is a single-goroutine timer queue driven from Execute. Promise jobs
// are drained by goja itself whenever a callback returns.
type loop struct {
	vm     *goja.Runtime
	queue  timerHeap
	byID   map[int64]*timer
	nextID int64
	seq    int64
}

func newLoop(vm *goja.Runtime) *loop {
	return &loop{vm: vm, byID: make(map[int64]*timer)}
}

// install defines the timer globals.
func (l *loop) install() error {
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":    func(c goja.FunctionCall) goja.Value { return l.schedule(c, false) },
		"setInterval":   func(c goja.FunctionCall) goja.Value { return l.schedule(c, true) },
		"clearTimeout":  l.clear,
		"clearInterval": l.clear,
	} {
		if err := l.vm.Set(name, fn); err != nil {
			return err
		}
	}
	_, err := l.vm.RunString(`var queueMicrotask = function (fn) { Promise.resolve().then(fn); };`)
	return err
}

func (l *loop) schedule(call goja.FunctionCall, repeat bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		// String handlers are a form of eval and are not supported.
		panic(l.vm.NewTypeError("timer handler must be a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}
	l.nextID++
	l.seq++
	t := &timer{
		id:       l.nextID,
		due:      time.Now().Add(delay),
		interval: delay,
		repeat:   repeat,
		fn:       fn,
		args:     args,
		seq:      l.seq,
	}
	heap.Push(&l.queue, t)
	l.byID[t.id] = t
	return l.vm.ToValue(t.id)
}

func (l *loop) clear(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := l.byID[id]; ok {
		delete(l.byID, id)
		if t.index >= 0 {
			heap.Remove(&l.queue, t.index)
		}
	}
	return goja.Undefined()
}

// pending reports whether any timer is still scheduled.
func (l *loop) pending() bool { return l.queue.Len() > 0 }

// runNext waits for the earliest timer and fires it. It returns ctx's error
// when the context ends first, and the callback's error when it throws.
func (l *loop) runNext(ctx context.Context) error {
	if l.queue.Len() == 0 {
		return nil
	}
	t := l.queue[0]
	if wait := time.Until(t.due); wait > 0 {
		tm := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			tm.Stop()
			return ctx.Err()
		case <-tm.C:
		}
	}
	heap.Pop(&l.queue)
	if t.repeat {
		l.seq++
		t.seq = l.seq
		t.due = time.Now().Add(t.interval)
		heap.Push(&l.queue, t)
	} else {
		delete(l.byID, t.id)
	}
	_, err := t.fn(goja.Undefined(), t.args...)
	return err
}
