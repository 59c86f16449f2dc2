package client

import (
	"context"
	"time"
)

// LayoutDebounce is how long a layout must stay still before it is saved
const LayoutDebounce = 500 * time.Millisecond

type LayoutItem struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
	W  int    `json:"w"`
	H  int    `json:"h"`
}

// SaveLayoutFunc persists the full position set of one dashboard
type SaveLayoutFunc func(ctx context.Context, dashboardID string, layout []LayoutItem) error

// LayoutSaver coalesces drag and resize events of one dashboard view into a
// single save of the latest positions.
type LayoutSaver struct {
	ctx         context.Context
	dashboardID string
	save        SaveLayoutFunc
	debouncer   *Debouncer

	// OnError receives failed saves; the next change retries with fresh positions
	OnError func(error)
}

func NewLayoutSaver(ctx context.Context, clock Clock, dashboardID string, save SaveLayoutFunc) *LayoutSaver {
	return &LayoutSaver{
		ctx:         ctx,
		dashboardID: dashboardID,
		save:        save,
		debouncer:   NewDebouncer(clock, LayoutDebounce),
	}
}

// Changed records the current layout. Earlier unsaved layouts are discarded.
func (s *LayoutSaver) Changed(layout []LayoutItem) {
	snapshot := append([]LayoutItem(nil), layout...)
	s.debouncer.Trigger(func() {
		if err := s.save(s.ctx, s.dashboardID, snapshot); err != nil && s.OnError != nil {
			s.OnError(err)
		}
	})
}

// Flush saves a pending layout immediately, for example when leaving edit mode
func (s *LayoutSaver) Flush() {
	s.debouncer.Flush()
}

// Discard drops a pending layout without saving it
func (s *LayoutSaver) Discard() {
	s.debouncer.Cancel()
}
