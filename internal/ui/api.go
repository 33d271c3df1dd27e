package ui

import (
	"context"
	"fmt"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

// API exposes native dialog helpers to the frontend via Wails binding.
type API struct {
	ctxFn func() context.Context
	log   logging.Logger
}

func NewAPI(ctxProvider func() context.Context, logger logging.Logger) *API {
	if logger == nil {
		logger = logging.Nop()
	}
	return &API{ctxFn: ctxProvider, log: logger}
}

func (a *API) runtimeCtx() (context.Context, error) {
	if a.ctxFn == nil {
		return nil, fmt.Errorf("application context not initialised")
	}
	ctx := a.ctxFn()
	if ctx == nil {
		return nil, fmt.Errorf("application context not initialised")
	}
	return ctx, nil
}

// SelectProjectDirectory opens the native directory picker.
func (a *API) SelectProjectDirectory(defaultDirectory string) (string, error) {
	ctx, err := a.runtimeCtx()
	if err != nil {
		return "", err
	}
	options := wailsruntime.OpenDialogOptions{Title: "Select a project directory"}
	if defaultDirectory != "" {
		options.DefaultDirectory = defaultDirectory
	}
	return wailsruntime.OpenDirectoryDialog(ctx, options)
}

// ConfirmDiscardChanges asks before a destructive checkout or branch switch.
func (a *API) ConfirmDiscardChanges(message string) (bool, error) {
	ctx, err := a.runtimeCtx()
	if err != nil {
		return false, err
	}
	result, err := wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:          wailsruntime.QuestionDialog,
		Title:         "Discard changes?",
		Message:       message,
		Buttons:       []string{"Discard", "Cancel"},
		DefaultButton: "Cancel",
	})
	if err != nil {
		return false, err
	}
	return result == "Discard", nil
}
