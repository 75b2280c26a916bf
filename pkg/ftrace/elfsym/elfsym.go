// Package elfsym loads the function symbols of an ELF image and answers
// address-to-function queries.
package elfsym

import (
	"debug/elf"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNoSymbols is returned for images without a symbol table.
	ErrNoSymbols = errors.New("elfsym: image has no symbol table")

	// ErrNoFunctions is returned when an image defines no local function.
	ErrNoFunctions = errors.New("elfsym: image defines no functions")
)

// Kind distinguishes functions defined in an image from references to code
// living elsewhere.
type Kind int

const (
	Local Kind = iota
	External
)

func (k Kind) String() string {
	if k == External {
		return "external"
	}
	return "local"
}

// Func is one function symbol. End is exclusive.
type Func struct {
	ID    int
	Kind  Kind
	Name  string
	Start uint64
	End   uint64
}

// Contains reports whether pc lies in [Start, End).
func (f Func) Contains(pc uint64) bool {
	return pc >= f.Start && pc < f.End
}

// Reader indexes the functions of one image, sorted by start address.
type Reader struct {
	ID    int
	Name  string
	Start uint64
	End   uint64
	funcs []Func
}

// Open reads the symbol table of the ELF file at path. Undefined symbols
// (address and size both zero) are skipped.
func Open(id int, path string) (*Reader, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfsym: open %s: %w", path, err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, fmt.Errorf("%w: %s", ErrNoSymbols, path)
		}
		return nil, fmt.Errorf("elfsym: read symbols of %s: %w", path, err)
	}

	funcs := make([]Func, 0, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if s.Value == 0 && s.Size == 0 {
			continue
		}
		funcs = append(funcs, Func{Kind: Local, Name: s.Name, Start: s.Value, End: s.Value + s.Size})
	}

	r, err := New(id, stem(path), funcs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return r, nil
}

// New builds a Reader from an explicit function list. The list is copied,
// sorted by start address and renumbered so that a function's ID equals its
// index.
func New(id int, name string, funcs []Func) (*Reader, error) {
	if len(funcs) == 0 {
		return nil, ErrNoFunctions
	}
	sorted := make([]Func, len(funcs))
	copy(sorted, funcs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := range sorted {
		sorted[i].ID = i
		if sorted[i].End < sorted[i].Start {
			return nil, fmt.Errorf("elfsym: function %q ends before it starts", sorted[i].Name)
		}
	}

	end := sorted[0].End
	for _, fn := range sorted {
		if fn.End > end {
			end = fn.End
		}
	}
	return &Reader{
		ID:    id,
		Name:  name,
		Start: sorted[0].Start,
		End:   end,
		funcs: sorted,
	}, nil
}

// Find returns the function whose range contains pc.
func (r *Reader) Find(pc uint64) (Func, bool) {
	// First function starting after pc; the candidate is the one before it.
	i := sort.Search(len(r.funcs), func(i int) bool { return r.funcs[i].Start > pc })
	for j := i - 1; j >= 0; j-- {
		fn := r.funcs[j]
		if fn.Contains(pc) {
			return fn, true
		}
		// Zero-sized labels may sit inside the function that owns pc.
		if fn.End > fn.Start && fn.Start < r.funcs[i-1].Start {
			break
		}
	}
	return Func{}, false
}

// Func returns the function with the given id.
func (r *Reader) Func(id int) (Func, bool) {
	if id < 0 || id >= len(r.funcs) {
		return Func{}, false
	}
	return r.funcs[id], true
}

// Funcs returns a copy of the function table.
func (r *Reader) Funcs() []Func {
	out := make([]Func, len(r.funcs))
	copy(out, r.funcs)
	return out
}

// Len returns the number of functions.
func (r *Reader) Len() int { return len(r.funcs) }

// Contains reports whether pc lies within the image. The end is inclusive so
// that zero-sized trailing symbols still resolve to this image.
func (r *Reader) Contains(pc uint64) bool {
	return pc >= r.Start && pc <= r.End
}

// Gap returns the range [lo, hi) between the functions surrounding pc. It is
// used to keep anonymous code (no symbol) attributed to a single frame.
func (r *Reader) Gap(pc uint64) (lo, hi uint64) {
	lo, hi = r.Start, r.End
	for _, fn := range r.funcs {
		if fn.End <= pc && fn.End > lo {
			lo = fn.End
		}
		if fn.Start > pc && fn.Start < hi {
			hi = fn.Start
		}
	}
	return lo, hi
}

// Overlaps reports whether any two prog images overlap, or whether one of
// them contains the start of the main image. progs must be sorted by start.
func Overlaps(main *Reader, progs []*Reader) bool {
	for i, p := range progs {
		if i+1 < len(progs) && p.End > progs[i+1].Start {
			return true
		}
		if main != nil && main.Start >= p.Start && main.Start < p.End {
			return true
		}
	}
	return false
}

func stem(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}
