// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package cache

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPriorityHeapOrderBasic(t *testing.T) {
	h := NewPriorityHeap[string]()
	base := time.Now()

	h.Push("a", "NORMAL@t0-1s", 0, base.Add(-time.Second))
	h.Push("b", "CRITICAL@t0", 10, base)
	h.Push("c", "CRITICAL@t0+1s", 10, base.Add(time.Second))

	order := []string{}
	for h.Len() > 0 {
		order = append(order, h.Pop().Key)
	}
	require.Equal(t, []string{"b", "c", "a"}, order)
}

func TestPriorityHeapPropertyRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	h := NewPriorityHeap[int]()
	base := time.Now()

	const n = 10000
	type want struct {
		priority int
		sched    time.Time
	}
	items := make([]want, n)
	for i := 0; i < n; i++ {
		p := r.Intn(5)
		sched := base.Add(time.Duration(r.Intn(100000)) * time.Millisecond)
		items[i] = want{priority: p, sched: sched}
		h.Push(randKey(i), i, p, sched)
	}

	var prev *want
	for h.Len() > 0 {
		e := h.Pop()
		cur := want{priority: e.Priority, sched: e.ScheduledFor}
		if prev != nil {
			if prev.priority == cur.priority {
				require.False(t, cur.sched.Before(prev.sched), "scheduled_time must be ascending within equal priority")
			} else {
				require.Greater(t, prev.priority, cur.priority, "priority must be descending across pops")
			}
		}
		prev = &cur
	}
}

func randKey(i int) string {
	return "k" + strconv.Itoa(i)
}
