package ai

import "context"

// API exposes model-assisted actions to the frontend via Wails binding.
type API struct {
	svc *Service
}

func NewAPI(svc *Service) *API { return &API{svc: svc} }

func (a *API) AIGenerateCommitMessage(diff string) (string, error) {
	return a.svc.GenerateCommitMessage(context.Background(), diff)
}

func (a *API) AIGeneratePRDescription(commits []string, diff, baseBranch, headBranch string) (PRDraft, error) {
	return a.svc.GeneratePRDescription(context.Background(), commits, diff, baseBranch, headBranch)
}

func (a *API) AISuggestFixCommands(req DiagnoseRequest) ([]string, error) {
	return a.svc.SuggestFixCommands(context.Background(), req)
}
