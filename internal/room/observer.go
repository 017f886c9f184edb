package room

import "sync"

// Note is a one-line status message for the user.
type Note struct {
	Text  string `json:"text"`
	Error bool   `json:"error"`
}

// Observer receives status notes and the projection after every change.
// Calls are made without the room lock held, one at a time and with views in
// the order they were taken. An observer must not call back into the room
// synchronously.
type Observer interface {
	Status(n Note)
	Render(v View)
}

// NameStore persists the local display name.
type NameStore interface {
	LoadName() (string, error)
	SaveName(name string) error
}

// Observers fans notifications out to a changing set of observers.
type Observers struct {
	mu   sync.RWMutex
	list []Observer
}

// Add registers o.
func (o *Observers) Add(obs Observer) {
	o.mu.Lock()
	o.list = append(o.list, obs)
	o.mu.Unlock()
}

func (o *Observers) Status(n Note) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, obs := range o.list {
		obs.Status(n)
	}
}

func (o *Observers) Render(v View) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, obs := range o.list {
		obs.Render(v)
	}
}
