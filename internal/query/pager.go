package query

import "sync"

// Pager holds the presentation layer's paging state and enforces the caller
// contract: changing the spec or the page size snaps the page index back to
// zero. The engine itself stays stateless.
type Pager struct {
	mu        sync.Mutex
	spec      Spec
	pageIndex int
	pageSize  int
}

func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Pager{spec: Spec{}, pageSize: pageSize}
}

func (p *Pager) SetSpec(spec Spec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !specsEqual(p.spec, spec) {
		p.pageIndex = 0
	}
	p.spec = cloneSpec(spec)
}

func (p *Pager) SetPageSize(pageSize int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pageSize != p.pageSize {
		p.pageIndex = 0
	}
	p.pageSize = pageSize
}

func (p *Pager) SetPageIndex(pageIndex int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageIndex = pageIndex
}

func (p *Pager) State() (Spec, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneSpec(p.spec), p.pageIndex, p.pageSize
}

func cloneSpec(spec Spec) Spec {
	out := make(Spec, len(spec))
	for k, v := range spec {
		out[k] = v
	}
	return out
}

func specsEqual(a, b Spec) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
