package page

import "testing"

func TestNewGeometryInvariants(t *testing.T) {
	g, err := NewGeometry(200, 70, 5, 40, 8270, 11690)
	if err != nil {
		t.Fatalf("NewGeometry: %v", err)
	}
	if g.NX*g.NY < (g.Redundancy+1)*(g.GroupsPerPage+1) {
		t.Fatalf("nx*ny=%d too small for (redundancy+1)*(groups_per_page+1)=%d", g.NX*g.NY, (g.Redundancy+1)*(g.GroupsPerPage+1))
	}
	wantPageSize := g.Redundancy * g.GroupsPerPage * 90
	if g.PageSize != wantPageSize {
		t.Fatalf("PageSize = %d, want %d", g.PageSize, wantPageSize)
	}
}

func TestNewGeometryRejectsOutOfRangeOptions(t *testing.T) {
	cases := []struct {
		name                     string
		dpi, dot, red, border    int
	}{
		{"dpi too low", 39, 70, 5, 40},
		{"dpi too high", 601, 70, 5, 40},
		{"dotpercent too low", 200, 49, 5, 40},
		{"dotpercent too high", 200, 101, 5, 40},
		{"redundancy too low", 200, 70, 1, 40},
		{"redundancy too high", 200, 70, 11, 40},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewGeometry(c.dpi, c.dot, c.red, c.border, 8270, 11690); err == nil {
				t.Fatalf("expected an error for %s", c.name)
			}
		})
	}
}

func TestNewGeometryBoundaryOptionsAccepted(t *testing.T) {
	for _, c := range []struct{ dpi, dot, red int }{
		{40, 50, 2}, {600, 100, 10},
	} {
		if _, err := NewGeometry(c.dpi, c.dot, c.red, 40, 8270, 11690); err != nil {
			t.Fatalf("NewGeometry(%d,%d,%d): %v", c.dpi, c.dot, c.red, err)
		}
	}
}

func TestBlockSideAccountsForGuardAndSyncCells(t *testing.T) {
	g, err := NewGeometry(300, 70, 5, 40, 8270, 11690)
	if err != nil {
		t.Fatalf("NewGeometry: %v", err)
	}
	want := (32 + 3) * g.CellPx
	if g.BlockSidePx != want {
		t.Fatalf("BlockSidePx = %d, want %d", g.BlockSidePx, want)
	}
}
