package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncerCoalescesModifies(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "a.go", Op: OpModify})
	}

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Op)
}

func TestDebouncerCreateThenDeleteCancels(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "tmp.go", Op: OpCreate})
	d.Add(FileEvent{Path: "tmp.go", Op: OpDelete})
	d.Add(FileEvent{Path: "keep.go", Op: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "keep.go", batch[0].Path)
}

func TestDebouncerDeleteThenCreateIsModify(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.go", Op: OpDelete})
	d.Add(FileEvent{Path: "a.go", Op: OpCreate})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Op, "replaced file surfaces as a modify")
}

func TestDebouncerCreateThenModifyStaysCreate(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.go", Op: OpCreate})
	d.Add(FileEvent{Path: "a.go", Op: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Op)
}

func TestDebouncerBatchesEventsInsideWindow(t *testing.T) {
	d := NewDebouncer(50*time.Millisecond, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.go", Op: OpModify})
	time.Sleep(30 * time.Millisecond)
	d.Add(FileEvent{Path: "b.go", Op: OpModify})

	// Both land in one batch because the window runs from the first add.
	batch := collectBatch(t, d)
	assert.Len(t, batch, 2)
}

func TestDebouncerSteadyStreamDoesNotStarveOtherPaths(t *testing.T) {
	d := NewDebouncer(40*time.Millisecond, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "quiet.go", Op: OpModify})

	// A write stream to one file that never pauses longer than the
	// window must not defer the quiet path's flush indefinitely.
	deadline := time.After(2 * time.Second)
	got := make(chan FileEvent, 1)
	go func() {
		for batch := range d.Output() {
			for _, ev := range batch {
				if ev.Path == "quiet.go" {
					got <- ev
					return
				}
			}
		}
	}()

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-got:
			assert.Equal(t, OpModify, ev.Op)
			return
		case <-deadline:
			t.Fatal("quiet path never flushed while another path streamed")
		case <-tick.C:
			d.Add(FileEvent{Path: "busy.go", Op: OpModify})
		}
	}
}

func TestDebouncerStopIsIdempotent(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, nil)
	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "a.go", Op: OpModify}) // ignored after stop

	_, open := <-d.Output()
	assert.False(t, open)
}
