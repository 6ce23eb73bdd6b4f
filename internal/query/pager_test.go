package query

import "testing"

func TestPagerResetsOnSpecChange(t *testing.T) {
	pager := NewPager(10)
	pager.SetPageIndex(4)
	pager.SetSpec(Spec{"severity": "high"})
	if _, pageIndex, _ := pager.State(); pageIndex != 0 {
		t.Fatalf("page index = %d, want 0 after spec change", pageIndex)
	}
}

func TestPagerResetsOnPageSizeChange(t *testing.T) {
	pager := NewPager(10)
	pager.SetPageIndex(2)
	pager.SetPageSize(25)
	spec, pageIndex, pageSize := pager.State()
	if pageIndex != 0 {
		t.Fatalf("page index = %d, want 0 after page size change", pageIndex)
	}
	if pageSize != 25 {
		t.Fatalf("page size = %d, want 25", pageSize)
	}
	if len(spec) != 0 {
		t.Fatalf("spec should be empty, got %v", spec)
	}
}

func TestPagerKeepsIndexWhenNothingChanges(t *testing.T) {
	pager := NewPager(10)
	pager.SetSpec(Spec{"severity": "high"})
	pager.SetPageIndex(3)
	pager.SetSpec(Spec{"severity": "high"})
	pager.SetPageSize(10)
	if _, pageIndex, _ := pager.State(); pageIndex != 3 {
		t.Fatalf("page index = %d, want 3 when spec and size unchanged", pageIndex)
	}
}
