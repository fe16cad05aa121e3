package main

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/store"
)

// openStore opens the configured backend. Failures exit with exitStore.
func (a *app) openStore(ctx context.Context) (core.Store, error) {
	st, err := store.Open(ctx, a.cfg.Store.Backend, store.OptionsFromConfig(a.cfg))
	if err != nil {
		return nil, withExitCode(exitStore, err)
	}
	return st, nil
}

// newMapper builds the mapper from the configured policy file and id strategy.
func (a *app) newMapper() (*core.Mapper, error) {
	policy, err := core.LoadPolicy(a.cfg.Import.MappingFile)
	if err != nil {
		return nil, withExitCode(exitConfig, fmt.Errorf("load mapping file: %w", err))
	}
	return core.NewMapper(policy, core.IDStrategy(a.cfg.Import.IDStrategy)), nil
}
