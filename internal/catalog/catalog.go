// Package catalog holds the list of media assets fetched from the server and
// the user's current selection within it.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"clipdeck/pkg/models"
)

var (
	ErrAlreadyLoaded = errors.New("catalog is already loaded")
	ErrStaleLoad     = errors.New("catalog load was superseded")
)

// Lister fetches the asset list from the media server
type Lister interface {
	ListMedia(ctx context.Context) ([]models.MediaAsset, error)
}

// Catalog is the fetched asset list plus the selection. It is loaded at
// most once and is not safe for concurrent use.
type Catalog struct {
	assets    []models.MediaAsset
	loaded    bool
	selected  models.AssetID
	loadToken uint64
	listeners []func()
}

// New creates an empty, not yet loaded catalog
func New() *Catalog {
	return &Catalog{}
}

// OnChange registers fn to run after a successful load or a selection change
func (c *Catalog) OnChange(fn func()) {
	c.listeners = append(c.listeners, fn)
}

func (c *Catalog) notify() {
	for _, fn := range c.listeners {
		fn()
	}
}

// Loaded reports whether a load has succeeded
func (c *Catalog) Loaded() bool {
	return c.loaded
}

// Assets returns a copy of the assets in server order
func (c *Catalog) Assets() []models.MediaAsset {
	out := make([]models.MediaAsset, len(c.assets))
	copy(out, c.assets)
	return out
}

// BeginLoad starts a load attempt and returns the token its result must
// carry. Starting a new attempt supersedes any attempt still in flight.
func (c *Catalog) BeginLoad() uint64 {
	c.loadToken++
	return c.loadToken
}

// CompleteLoad applies the result of the load identified by token. Results
// for superseded attempts, failed fetches, or a catalog that is already
// loaded leave the catalog untouched.
func (c *Catalog) CompleteLoad(token uint64, assets []models.MediaAsset, err error) error {
	if token != c.loadToken {
		return ErrStaleLoad
	}
	if c.loaded {
		return ErrAlreadyLoaded
	}
	if err != nil {
		return err
	}

	c.assets = make([]models.MediaAsset, len(assets))
	copy(c.assets, assets)
	c.loaded = true
	c.notify()

	return nil
}

// Load fetches and applies the asset list in one step
func (c *Catalog) Load(ctx context.Context, lister Lister) error {
	if c.loaded {
		return ErrAlreadyLoaded
	}

	token := c.BeginLoad()
	assets, err := lister.ListMedia(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load catalog: %w", err)
	}

	return c.CompleteLoad(token, assets, err)
}

// Select makes asset the current selection. It reports whether the
// selection changed.
func (c *Catalog) Select(asset models.MediaAsset) bool {
	return c.SelectID(asset.ID())
}

// SelectID selects by identifier. The id need not resolve to an asset, but
// the nil id is ignored: a selection only ever moves, it is never cleared.
func (c *Catalog) SelectID(id models.AssetID) bool {
	if id.IsNil() || id == c.selected {
		return false
	}
	c.selected = id
	c.notify()
	return true
}

// SelectedID returns the raw selection, which may be nil
func (c *Catalog) SelectedID() models.AssetID {
	return c.selected
}

// Selected resolves the selection against the current assets. If several
// assets share the id the first one wins.
func (c *Catalog) Selected() (models.MediaAsset, bool) {
	return Resolve(c.assets, c.selected)
}

// Source returns the playback path and file name of the selected asset,
// or empty strings when nothing resolves.
func (c *Catalog) Source() (src, name string) {
	asset, ok := c.Selected()
	if !ok {
		return "", ""
	}
	return asset.VideoPath(), asset.Name
}

// Find returns the asset at a zero-based position in the list
func (c *Catalog) Find(index int) (models.MediaAsset, bool) {
	if index < 0 || index >= len(c.assets) {
		return models.MediaAsset{}, false
	}
	return c.assets[index], true
}

// Resolve returns the first asset whose id equals id
func Resolve(assets []models.MediaAsset, id models.AssetID) (models.MediaAsset, bool) {
	if id.IsNil() {
		return models.MediaAsset{}, false
	}
	for _, a := range assets {
		if a.ID() == id {
			return a, true
		}
	}
	return models.MediaAsset{}, false
}
