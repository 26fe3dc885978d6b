// Package app ties the catalog, the playback controller and the network
// collaborators into one session. All session state is owned by the
// goroutine running Run; every other goroutine talks to it through the
// methods below, which queue work onto that loop.
package app

import (
	"context"
	"errors"
	"log/slog"

	"clipdeck/internal/catalog"
	"clipdeck/internal/downloader"
	"clipdeck/internal/player"
	"clipdeck/pkg/models"
)

// DownloadWarning is shown once for every failed download
const DownloadWarning = "An error occurred while downloading the file. Please try again."

var (
	ErrStopped      = errors.New("session is not running")
	ErrUnknownAsset = errors.New("no asset with that id")
)

// Notifier shows alerts to the user
type Notifier interface {
	Warn(msg string)
}

// Downloader saves a source under a file name, blocking until done
type Downloader interface {
	Download(ctx context.Context, src, fileName string) *downloader.Request
}

// Options wires an App to its collaborators
type Options struct {
	Handle       player.Handle
	Lister       catalog.Lister
	Downloader   Downloader
	Notifier     Notifier
	Logger       *slog.Logger
	SizeDecimals int
}

// App is one viewing session
type App struct {
	handle     player.Handle
	lister     catalog.Lister
	downloader Downloader
	notifier   Notifier
	logger     *slog.Logger
	decimals   int

	catalog    *catalog.Catalog
	controller *player.Controller
	loadErr    error

	queue   chan func()
	changes chan struct{}
	done    chan struct{}
	ctx     context.Context
}

// New creates a session. Nothing happens until Run is called.
func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	a := &App{
		handle:     opts.Handle,
		lister:     opts.Lister,
		downloader: opts.Downloader,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		decimals:   opts.SizeDecimals,
		catalog:    catalog.New(),
		controller: player.NewController(opts.Handle, opts.Logger),
		queue:      make(chan func(), 64),
		changes:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		ctx:        context.Background(),
	}

	a.catalog.OnChange(a.syncSource)

	return a
}

// Run owns the session until ctx is cancelled. It starts the initial
// catalog load, then applies queued work and handle events one at a time.
func (a *App) Run(ctx context.Context) error {
	defer close(a.done)

	a.ctx = ctx
	a.startLoad()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case fn := <-a.queue:
			fn()

		case ev, ok := <-a.handle.Events():
			if !ok {
				a.logger.Warn("media handle closed its event stream")
				return nil
			}
			if a.controller.Observe(ev) {
				a.changed()
			}
		}
	}
}

// Changes signals after any visible state change. Signals coalesce.
func (a *App) Changes() <-chan struct{} {
	return a.changes
}

// Done is closed when Run returns
func (a *App) Done() <-chan struct{} {
	return a.done
}

func (a *App) changed() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

// post queues fn onto the loop. It is dropped once the loop has stopped.
func (a *App) post(fn func()) {
	select {
	case a.queue <- fn:
	case <-a.done:
	}
}

// call runs fn on the loop and waits for its result
func (a *App) call(fn func() error) error {
	res := make(chan error, 1)

	select {
	case a.queue <- func() { res <- fn() }:
	case <-a.done:
		return ErrStopped
	}

	select {
	case err := <-res:
		return err
	case <-a.done:
		return ErrStopped
	}
}

// syncSource points the controller at whatever the selection resolves to
func (a *App) syncSource() {
	src, name := a.catalog.Source()
	if err := a.controller.SetSource(src, name); err != nil {
		a.logger.Warn("failed to switch source", "src", src, "error", err)
	}
	a.changed()
}

// startLoad fetches the catalog off the loop and applies the result on it
func (a *App) startLoad() {
	token := a.catalog.BeginLoad()
	ctx := a.ctx

	go func() {
		assets, err := a.lister.ListMedia(ctx)
		a.post(func() {
			err := a.catalog.CompleteLoad(token, assets, err)
			switch {
			case err == nil:
				a.loadErr = nil
				a.logger.Info("catalog loaded", "assets", len(assets))
			case errors.Is(err, catalog.ErrStaleLoad), errors.Is(err, catalog.ErrAlreadyLoaded):
				a.logger.Debug("ignoring catalog result", "reason", err)
				return
			default:
				a.loadErr = err
				a.logger.Error("failed to load catalog", "error", err)
			}
			a.changed()
		})
	}()
}

// Reload retries the catalog fetch. A loaded catalog is never refetched.
func (a *App) Reload() error {
	return a.call(func() error {
		if a.catalog.Loaded() {
			return catalog.ErrAlreadyLoaded
		}
		a.startLoad()
		return nil
	})
}

// Select makes the asset with id the current selection
func (a *App) Select(id models.AssetID) error {
	return a.call(func() error {
		if _, ok := catalog.Resolve(a.catalog.Assets(), id); !ok {
			return ErrUnknownAsset
		}
		a.catalog.SelectID(id)
		return nil
	})
}

// SelectIndex selects by zero-based position in the grid
func (a *App) SelectIndex(index int) error {
	return a.call(func() error {
		asset, ok := a.catalog.Find(index)
		if !ok {
			return ErrUnknownAsset
		}
		a.catalog.Select(asset)
		return nil
	})
}

func (a *App) TogglePlay() error {
	return a.control(func() error {
		if !a.controller.Controls().PlayPause {
			return player.ErrControlDisabled
		}
		return a.controller.TogglePlay()
	})
}

func (a *App) Seek(dir player.Direction) error {
	return a.control(func() error {
		return a.controller.Seek(dir)
	})
}

func (a *App) ToggleMute() error {
	return a.control(func() error {
		return a.controller.ToggleMute()
	})
}

// control runs a transport intent and signals a change if it succeeded
func (a *App) control(fn func() error) error {
	return a.call(func() error {
		if err := fn(); err != nil {
			return err
		}
		a.changed()
		return nil
	})
}

// Download saves the current source in the background. Failure is
// reported through the Notifier only; playback and selection are untouched.
func (a *App) Download() error {
	return a.call(func() error {
		if !a.controller.Controls().Download {
			return player.ErrControlDisabled
		}

		state := a.controller.State()
		src, name := state.Src, state.Name
		ctx := a.ctx

		go func() {
			req := a.downloader.Download(ctx, src, name)
			a.post(func() {
				if req.Error != nil {
					a.logger.Error("download failed", "file", name, "error", req.Error)
					a.notifier.Warn(DownloadWarning)
					return
				}
				a.logger.Info("saved download", "file", req.Entry.FileName)
			})
		}()

		return nil
	})
}
