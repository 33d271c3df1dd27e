package launcher

// API exposes external-tool actions to the frontend via Wails binding.
type API struct {
	svc *Service
}

func NewAPI(svc *Service) *API { return &API{svc: svc} }

func (a *API) OpenURL(url string) error            { return a.svc.OpenURL(url) }
func (a *API) OpenInEditor(path string) error      { return a.svc.OpenInEditor(path) }
func (a *API) OpenInTerminal(path string) error    { return a.svc.OpenInTerminal(path) }
func (a *API) OpenInFileManager(path string) error { return a.svc.OpenInFileManager(path) }
