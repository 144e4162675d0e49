// Package desktop implements the window stacking manager behind the
// browser desktop shell: the set of open application windows, their
// stacking order, and clamped geometry. The server uses it to
// normalize workspace snapshots on save/restore; the same rules drive
// the client-side shell.
package desktop

import "sort"

const (
	// ChromeZTop is the top of the z range reserved for fixed UI
	// chrome (menu bar, dropdowns, modals). Window z-indexes are
	// allocated strictly above it.
	ChromeZTop = 100

	// MinWidth and MinHeight floor window dimensions.
	MinWidth  = 300
	MinHeight = 200

	// MinVisibleMargin is the number of pixels of a window that must
	// stay inside the viewport on every side after a move or resize.
	MinVisibleMargin = 40
)

// Viewport is the visible desktop area in pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowState represents one open application window.
type WindowState struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Minimized bool   `json:"minimized"`
	ZIndex    int    `json:"z_index"`
}

// WindowSpec describes a window to open.
type WindowSpec struct {
	ID     string
	Title  string
	X      int
	Y      int
	Width  int
	Height int
}

// WindowUpdate is a partial update applied by UpdateWindow. Nil fields
// are left untouched.
type WindowUpdate struct {
	X         *int
	Y         *int
	Width     *int
	Height    *int
	Minimized *bool
}

// Snapshot is a serializable capture of the full desktop state.
type Snapshot struct {
	Windows        []WindowState `json:"windows"`
	ActiveWindowID string        `json:"active_window_id"`
	Viewport       Viewport      `json:"viewport"`
}

// Manager tracks the set of open windows and their stacking order.
// The z counter is a struct field so independent managers never share
// allocation state. Not safe for concurrent use; each workspace
// restore builds its own manager.
type Manager struct {
	windows  map[string]*WindowState
	activeID string
	zCounter int
	viewport Viewport
}

// NewManager creates an empty manager for the given viewport. The
// first allocated z-index is ChromeZTop+1.
func NewManager(viewport Viewport) *Manager {
	return &Manager{
		windows:  make(map[string]*WindowState),
		zCounter: ChromeZTop,
		viewport: viewport,
	}
}

// nextZ allocates a fresh top z-index. The counter only grows; there
// is no reclamation.
func (m *Manager) nextZ() int {
	m.zCounter++
	return m.zCounter
}

// AddWindow opens a window. If a window with the same id is already
// open it is focused; if it exists minimized it is restored and
// focused. At most one window per id ever exists.
func (m *Manager) AddWindow(spec WindowSpec) *WindowState {
	if w, ok := m.windows[spec.ID]; ok {
		if w.Minimized {
			w.Minimized = false
		}
		w.ZIndex = m.nextZ()
		m.activeID = w.ID
		return w
	}

	w := &WindowState{
		ID:     spec.ID,
		Title:  spec.Title,
		X:      spec.X,
		Y:      spec.Y,
		Width:  spec.Width,
		Height: spec.Height,
		ZIndex: m.nextZ(),
	}
	m.clamp(w)
	m.windows[w.ID] = w
	m.activeID = w.ID
	return w
}

// RemoveWindow closes a window. If it was active, the remaining window
// with the highest z-index becomes active, or none if the desktop is
// empty.
func (m *Manager) RemoveWindow(id string) {
	if _, ok := m.windows[id]; !ok {
		return
	}
	delete(m.windows, id)
	if m.activeID != id {
		return
	}
	m.activeID = ""
	top := -1
	for _, w := range m.windows {
		if w.ZIndex > top {
			top = w.ZIndex
			m.activeID = w.ID
		}
	}
}

// UpdateWindow merges a partial update into a window (drag, resize,
// minimize toggling). Geometry is re-clamped on every call. No-op when
// the id is absent.
func (m *Manager) UpdateWindow(id string, update WindowUpdate) {
	w, ok := m.windows[id]
	if !ok {
		return
	}
	if update.X != nil {
		w.X = *update.X
	}
	if update.Y != nil {
		w.Y = *update.Y
	}
	if update.Width != nil {
		w.Width = *update.Width
	}
	if update.Height != nil {
		w.Height = *update.Height
	}
	if update.Minimized != nil {
		w.Minimized = *update.Minimized
	}
	m.clamp(w)
}

// FocusWindow raises a window to the top and marks it active. It does
// not clear Minimized; only AddWindow's restore path does that.
func (m *Manager) FocusWindow(id string) {
	w, ok := m.windows[id]
	if !ok {
		return
	}
	w.ZIndex = m.nextZ()
	m.activeID = id
}

// Get returns the window with the given id, or nil.
func (m *Manager) Get(id string) *WindowState {
	return m.windows[id]
}

// ActiveID returns the id of the active window, or "" when none.
func (m *Manager) ActiveID() string {
	return m.activeID
}

// Len returns the number of open windows, minimized included.
func (m *Manager) Len() int {
	return len(m.windows)
}

// Windows returns all windows ordered bottom to top.
func (m *Manager) Windows() []WindowState {
	out := make([]WindowState, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Snapshot captures the desktop state for persistence.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		Windows:        m.Windows(),
		ActiveWindowID: m.activeID,
		Viewport:       m.viewport,
	}
}

// Restore rebuilds a manager from a snapshot: windows are deduped by
// id (last occurrence wins), stacking order is recomputed with fresh
// z-indexes preserving relative order, and geometry is re-clamped
// against the snapshot viewport.
func Restore(snap Snapshot) *Manager {
	m := NewManager(snap.Viewport)

	deduped := make([]WindowState, 0, len(snap.Windows))
	seen := make(map[string]int)
	for _, w := range snap.Windows {
		if idx, ok := seen[w.ID]; ok {
			deduped[idx] = w
			continue
		}
		seen[w.ID] = len(deduped)
		deduped = append(deduped, w)
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].ZIndex < deduped[j].ZIndex })

	for i := range deduped {
		w := deduped[i]
		w.ZIndex = m.nextZ()
		m.clamp(&w)
		m.windows[w.ID] = &w
	}

	if _, ok := m.windows[snap.ActiveWindowID]; ok {
		m.activeID = snap.ActiveWindowID
	} else {
		top := -1
		for _, w := range m.windows {
			if w.ZIndex > top {
				top = w.ZIndex
				m.activeID = w.ID
			}
		}
	}

	return m
}

// clamp floors the window size and keeps at least MinVisibleMargin
// pixels inside the viewport on all sides.
func (m *Manager) clamp(w *WindowState) {
	if w.Width < MinWidth {
		w.Width = MinWidth
	}
	if w.Height < MinHeight {
		w.Height = MinHeight
	}

	// Right/bottom edges must reach at least the margin into the
	// viewport; left/top edges must not pass beyond viewport-margin.
	minX := MinVisibleMargin - w.Width
	maxX := m.viewport.Width - MinVisibleMargin
	if w.X < minX {
		w.X = minX
	}
	if w.X > maxX {
		w.X = maxX
	}

	minY := MinVisibleMargin - w.Height
	maxY := m.viewport.Height - MinVisibleMargin
	if w.Y < minY {
		w.Y = minY
	}
	if w.Y > maxY {
		w.Y = maxY
	}
}
