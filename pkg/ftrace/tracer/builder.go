package tracer

import (
	"fmt"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/elfsym"
)

// Builder collects the images to trace before a Manager is created.
type Builder struct {
	mainPath    string
	showContext bool
	progPaths   []string
	seen        map[string]struct{}
}

// NewBuilder starts a configuration whose main image is mainPath.
func NewBuilder(mainPath string) *Builder {
	return &Builder{mainPath: mainPath, seen: make(map[string]struct{})}
}

// MainPath returns the main image path.
func (b *Builder) MainPath() string { return b.mainPath }

// SetShowContext toggles argument and return capture.
func (b *Builder) SetShowContext(on bool) { b.showContext = on }

// ShowContext reports the current capture setting.
func (b *Builder) ShowContext() bool { return b.showContext }

// AddProgPath registers an additional image. Adding the same path twice has
// no effect.
func (b *Builder) AddProgPath(path string) {
	if _, ok := b.seen[path]; ok {
		return
	}
	b.seen[path] = struct{}{}
	b.progPaths = append(b.progPaths, path)
}

// ProgPaths returns the registered prog paths in insertion order.
func (b *Builder) ProgPaths() []string {
	out := make([]string, len(b.progPaths))
	copy(out, b.progPaths)
	return out
}

// Build loads every image and returns a ready Manager.
func (b *Builder) Build(opts ...Option) (*Manager, error) {
	main, err := elfsym.Open(0, b.mainPath)
	if err != nil {
		return nil, fmt.Errorf("load main image: %w", err)
	}
	progs := make([]*elfsym.Reader, 0, len(b.progPaths))
	for i, path := range b.progPaths {
		r, err := elfsym.Open(i+1, path)
		if err != nil {
			return nil, fmt.Errorf("load prog image %s: %w", path, err)
		}
		progs = append(progs, r)
	}
	all := append([]Option{WithShowContext(b.showContext)}, opts...)
	return NewManager(main, progs, all...)
}
