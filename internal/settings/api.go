package settings

// API exposes settings access to the frontend via Wails binding. API keys
// round-trip through here; the frontend masks them itself.
type API struct {
	store *Store
}

func NewAPI(store *Store) *API { return &API{store: store} }

func (a *API) GetSettings() Settings { return a.store.Get() }

func (a *API) SaveSettings(next Settings) (Settings, error) {
	return a.store.Set(next)
}
