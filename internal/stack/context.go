// SPDX-License-Identifier: MPL-2.0

package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/plater3d/plater/internal/index"
	"github.com/plater3d/plater/internal/material"
	"github.com/plater3d/plater/internal/resources"
)

// MaterialsDir is the subdirectory holding material documents, both in the
// user data directory and in the installed resource tree.
const MaterialsDir = "materials"

type (
	// Options configures Load.
	Options struct {
		// DataDir is the user data directory scanned for profiles and materials.
		DataDir string
		// Locator makes the installed resource tree available. When nil, references
		// that only exist there stay unresolved.
		Locator resources.Locator
	}

	// Context owns everything resolution reads. It is read-only after Load
	// apart from the lazily acquired resource root and installed materials.
	Context struct {
		Index     *index.Index
		Materials *material.Library

		locator resources.Locator

		mu        sync.Mutex
		root      *resources.Root
		rootErr   error
		acquired  bool
		installed *material.Library
		closed    bool
	}
)

// Load builds the profile index and the user material library from
// opts.DataDir.
func Load(ctx context.Context, opts Options) (*Context, error) {
	idx, err := index.Build(ctx, opts.DataDir)
	if err != nil {
		return nil, err
	}
	lib, err := material.LoadDir(ctx, filepath.Join(opts.DataDir, MaterialsDir))
	if err != nil {
		return nil, err
	}
	return New(idx, lib, opts.Locator), nil
}

// New assembles a Context from already loaded parts. lib and locator may be nil.
func New(idx *index.Index, lib *material.Library, locator resources.Locator) *Context {
	if lib == nil {
		lib = material.NewLibrary()
	}
	return &Context{Index: idx, Materials: lib, locator: locator}
}

// Root acquires the installed resource tree on first use. It returns nil and
// no error when the Context has no Locator.
func (c *Context) Root(ctx context.Context) (*resources.Root, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("stack context is closed")
	}
	if c.locator == nil {
		return nil, nil
	}
	if !c.acquired {
		c.acquired = true
		c.root, c.rootErr = c.locator.Acquire(ctx)
		if c.rootErr == nil {
			slog.Debug("acquired resource root", "path", c.root.Path())
		}
	}
	return c.root, c.rootErr
}

// Material returns the material with the given id. User materials shadow
// installed ones; installed materials are loaded on first miss.
func (c *Context) Material(ctx context.Context, id string) (*material.Material, bool, error) {
	if m, ok := c.Materials.Get(id); ok {
		return m, true, nil
	}
	installed, err := c.installedMaterials(ctx)
	if err != nil {
		return nil, false, err
	}
	m, ok := installed.Get(id)
	return m, ok, nil
}

// AllMaterials returns the installed materials overlaid with the user ones.
func (c *Context) AllMaterials(ctx context.Context) (*material.Library, error) {
	installed, err := c.installedMaterials(ctx)
	if err != nil {
		return nil, err
	}
	all := material.NewLibrary()
	all.Merge(installed)
	all.Merge(c.Materials)
	return all, nil
}

func (c *Context) installedMaterials(ctx context.Context) (*material.Library, error) {
	root, err := c.Root(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed != nil {
		return c.installed, nil
	}
	if root == nil {
		c.installed = material.NewLibrary()
		return c.installed, nil
	}
	lib, err := material.LoadDir(ctx, filepath.Join(root.Path(), MaterialsDir))
	if err != nil {
		return nil, fmt.Errorf("load installed materials: %w", err)
	}
	c.installed = lib
	return lib, nil
}

// ExtruderCount returns the number of extruders registered for machine.
func (c *Context) ExtruderCount(machine string) int {
	return len(c.Index.ExtrudersForMachine(machine))
}

// Close releases the resource root if it was acquired. It is safe to call
// more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.root != nil {
		return c.root.Close()
	}
	return nil
}
