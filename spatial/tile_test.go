package spatial

import "testing"

func TestTileIDFromIDRoundTrip(t *testing.T) {
	cases := []tile{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, 1},
		{3, 2, 2},
		{100, 57, 8},
		{0, 0, 16},
	}
	for _, tl := range cases {
		id := tl.id()
		got := fromID(id)
		if got != tl {
			t.Fatalf("fromID(%d.id()) = %+v, want %+v", id, got, tl)
		}
	}
}

func TestTileIDPacksZInLowFiveBits(t *testing.T) {
	tl := tile{x: 3, y: 5, z: 4}
	if got := tl.id() % 32; got != 4 {
		t.Fatalf("id() %% 32 = %d, want z=4", got)
	}
}

func TestTileParentHalvesCoordinates(t *testing.T) {
	cases := []struct {
		in   tile
		want tile
	}{
		{tile{0, 0, 3}, tile{0, 0, 2}},
		{tile{1, 0, 3}, tile{0, 0, 2}},
		{tile{0, 1, 3}, tile{0, 0, 2}},
		{tile{1, 1, 3}, tile{0, 0, 2}},
		{tile{2, 3, 3}, tile{1, 1, 2}},
		{tile{3, 2, 3}, tile{1, 1, 2}},
	}
	for _, c := range cases {
		got := c.in.parent()
		if got != c.want {
			t.Fatalf("%+v.parent() = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestTileParentReducesZoomByOne(t *testing.T) {
	tl := tile{x: 10, y: 20, z: 6}
	p := tl.parent()
	if p.z != tl.z-1 {
		t.Fatalf("parent().z = %d, want %d", p.z, tl.z-1)
	}
}
