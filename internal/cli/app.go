package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"

	"github.com/agentx-labs/exthost/internal/activation"
	"github.com/agentx-labs/exthost/internal/bundle"
	"github.com/agentx-labs/exthost/internal/registry"
	"github.com/agentx-labs/exthost/internal/runtime"
	"github.com/agentx-labs/exthost/internal/settings"
	"github.com/agentx-labs/exthost/internal/settings/sqlstore"
	"github.com/agentx-labs/exthost/internal/userdata"
)

// Default subject ids seeded into a new settings database.
const (
	globalSubjectID = "global"
	userSubjectID   = "user"
)

// openStore opens the settings database and seeds the global and user
// subjects. Callers close the store.
func openStore(ctx context.Context) (*sqlstore.Store, error) {
	if _, err := userdata.EnsureHome(); err != nil {
		return nil, fmt.Errorf("preparing home directory: %w", err)
	}
	store, err := sqlstore.Open(ctx, appConfig.Settings.Database, sqlstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	seed := []settings.Subject{
		{ID: globalSubjectID, Kind: settings.KindGlobal, Name: "Global settings"},
		{ID: userSubjectID, Kind: settings.KindUser, Name: currentUserName(), ViewerCanAdminister: true},
	}
	for _, s := range seed {
		if err := store.EnsureSubject(ctx, s); err != nil {
			store.Close()
			return nil, fmt.Errorf("seeding subject %s: %w", s.ID, err)
		}
	}
	return store, nil
}

func currentUserName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return userSubjectID
}

// newUpdater wires an updater whose snapshots refresh after each write.
func newUpdater(store *sqlstore.Store) (*settings.Updater, *settings.CachedProvider) {
	cached := settings.NewCachedProvider(store)
	return settings.NewUpdater(cached, store, settings.WithLogger(logger)), cached
}

func loadRegistry() (*registry.Index, error) {
	paths := append([]string{appConfig.Registry.Path}, appConfig.Registry.Mirrors...)
	idx, err := registry.LoadAll(paths...)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no registry at %s; publish an extension or set registry.path", appConfig.Registry.Path)
		}
		return nil, err
	}
	return idx, nil
}

func newHost() *activation.Host {
	fetcher := bundle.New(
		bundle.WithMaxBytes(appConfig.Fetch.MaxBytes),
		bundle.WithTimeout(appConfig.Fetch.Timeout),
		bundle.WithLogger(logger),
	)
	factory := activation.NewFactory(fetcher,
		activation.WithLogger(logger),
		activation.WithDefaultRuntime(appConfig.Runtime.Default),
		activation.WithRuntimeOptions(runtime.Options{
			Buffer:          appConfig.Runtime.Buffer,
			ShutdownTimeout: appConfig.Runtime.ShutdownTimeout,
			Logger:          logger,
		}),
	)
	return activation.NewHost(factory,
		activation.WithConcurrency(appConfig.Activation.Concurrency),
		activation.WithHostLogger(logger))
}
