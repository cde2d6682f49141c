package statecache

import "testing"

func TestCache_GetMissing(t *testing.T) {
	c := New()
	if _, ok := c.Get("0x1", "k"); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestCache_SetGet(t *testing.T) {
	c := New()
	c.SetF32("0x1", "lux", 123.5, 1000)
	v, ok := c.Get("0x1", "lux")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.Kind != KindF32 || v.F32 != 123.5 {
		t.Errorf("v = %+v", v)
	}
}

func TestCache_DistinctKeysDoNotCollide(t *testing.T) {
	c := New()
	c.SetBool("0x1", "online", true, 0)
	c.SetBool("0x2", "online", false, 0)
	v1, _ := c.Get("0x1", "online")
	v2, _ := c.Get("0x2", "online")
	if !v1.Bool || v2.Bool {
		t.Errorf("v1=%v v2=%v, want true/false", v1.Bool, v2.Bool)
	}
}

func TestValue_AsFloatCoercion(t *testing.T) {
	cases := []struct {
		v    Value
		want float64
	}{
		{Value{Kind: KindBool, Bool: true}, 1},
		{Value{Kind: KindBool, Bool: false}, 0},
		{Value{Kind: KindU32, U32: 42}, 42},
		{Value{Kind: KindU64, U64: 9999999999}, 9999999999},
		{Value{Kind: KindF32, F32: 3.5}, 3.5},
	}
	for _, tc := range cases {
		got, ok := tc.v.AsFloat()
		if !ok || got != tc.want {
			t.Errorf("AsFloat(%+v) = %v, %v; want %v, true", tc.v, got, ok, tc.want)
		}
	}
}

func TestValue_AsBoolCoercion(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Value{Kind: KindU32, U32: 0}, false},
		{Value{Kind: KindU32, U32: 5}, true},
		{Value{Kind: KindF32, F32: 0}, false},
		{Value{Kind: KindF32, F32: -1}, true},
	}
	for _, tc := range cases {
		got, ok := tc.v.AsBool()
		if !ok || got != tc.want {
			t.Errorf("AsBool(%+v) = %v, %v; want %v, true", tc.v, got, ok, tc.want)
		}
	}
}

func TestCache_Delete(t *testing.T) {
	c := New()
	c.SetBool("0x1", "online", true, 0)
	c.Delete("0x1", "online")
	if _, ok := c.Get("0x1", "online"); ok {
		t.Error("expected miss after delete")
	}
}
