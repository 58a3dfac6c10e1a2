/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package timer implements a cooperative, re-entrancy-safe one-shot/
// repeating task on top of time.AfterFunc. Re-entrant Start/Stop calls from
// within the running task itself are well-defined, which is what lets the
// endpoint and acceptor layers arm/disarm timers from inside their own
// callbacks without deadlocking.
package timer

import (
	"context"
	"sync"
	"time"

	liberr "github/sabouaram/someip-local/errors"
)

// State is one of the five states of the timer's cooperative machine.
type State uint8

const (
	Stopped State = iota
	Started
	InTask
	InTaskStarted
	InTaskStopped
)

var stateNames = map[State]string{
	Stopped:       "STOPPED",
	Started:       "STARTED",
	InTask:        "IN_TASK",
	InTaskStarted: "IN_TASK_STARTED",
	InTaskStopped: "IN_TASK_STOPPED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Task is run outside of the timer's mutex on every fire. Returning true
// re-arms the timer with the same interval; false stops it.
type Task func(ctx context.Context) bool

// Timer is a cooperative delayed/repeating task bound to an owner context:
// when the owner context is done, the next fire is a no-op, which is the
// idiomatic Go substitute for the weak-reference capture the source uses
// to avoid ownership cycles between a timer and the object that holds it.
type Timer interface {
	Start()
	Stop()
	SetInterval(d time.Duration) error
	SetTask(t Task) error
	State() State
	IsRunning() bool
}

type timer struct {
	mu       sync.Mutex
	state    State
	interval time.Duration
	task     Task
	owner    context.Context
	pending  *time.Timer
}

// Create returns a Timer that will invoke task after interval once
// started. owner is checked at each fire; once it is Done the timer settles
// to Stopped without running the task again.
func Create(owner context.Context, interval time.Duration, task Task) Timer {
	if owner == nil {
		owner = context.Background()
	}
	return &timer{owner: owner, interval: interval, task: task}
}

func (t *timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *timer) IsRunning() bool {
	s := t.State()
	return s != Stopped && s != InTaskStopped
}

func (t *timer) SetInterval(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Stopped {
		return liberr.New(ErrorNotStopped.Uint16(), getMessage(ErrorNotStopped))
	}
	t.interval = d
	return nil
}

func (t *timer) SetTask(task Task) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Stopped {
		return liberr.New(ErrorNotStopped.Uint16(), getMessage(ErrorNotStopped))
	}
	t.task = task
	return nil
}

// arm schedules the next fire. Must be called with t.mu held.
func (t *timer) arm() {
	t.pending = time.AfterFunc(t.interval, t.fire)
}

// cancelPending stops any outstanding delay. Must be called with t.mu held.
func (t *timer) cancelPending() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Stopped:
		t.state = Started
		t.arm()
	case Started:
		t.cancelPending()
		t.arm()
	case InTask:
		t.state = InTaskStarted
	case InTaskStarted:
		// already armed to restart once the running task returns.
	case InTaskStopped:
		t.state = InTaskStarted
	}
}

func (t *timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Started:
		t.cancelPending()
		t.state = Stopped
	case InTask:
		t.state = InTaskStopped
	case InTaskStarted:
		t.state = InTaskStopped
	case Stopped, InTaskStopped:
		// already settling toward stopped.
	}
}

func (t *timer) fire() {
	t.mu.Lock()
	if t.state != Started {
		// raced with a Stop/Start between the delay arming and firing.
		t.mu.Unlock()
		return
	}
	t.state = InTask
	task := t.task
	owner := t.owner
	t.mu.Unlock()

	cont := false
	if task != nil {
		select {
		case <-owner.Done():
			cont = false
		default:
			cont = task(owner)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case InTask:
		if cont {
			t.state = Started
			t.arm()
		} else {
			t.state = Stopped
		}
	case InTaskStarted:
		t.state = Started
		t.arm()
	case InTaskStopped:
		t.state = Stopped
	}
}
