package value

import "testing"

func TestParseBool(t *testing.T) {
	cases := []struct {
		in      string
		strict  bool
		want    bool
		wantErr bool
	}{
		{"y", true, true, false},
		{"YES", true, true, false},
		{"true", true, true, false},
		{"n", true, false, false},
		{"No", true, false, false},
		{"false", true, false, false},
		{"maybe", true, false, true},
		{"maybe", false, false, false},
	}
	for _, c := range cases {
		got, err := ParseBool(c.in, c.strict)
		if c.wantErr != (err != nil) {
			t.Fatalf("ParseBool(%q, %v) error = %v, wantErr %v", c.in, c.strict, err, c.wantErr)
		}
		if err == nil && got != c.want {
			t.Fatalf("ParseBool(%q, %v) = %v, want %v", c.in, c.strict, got, c.want)
		}
	}
}

func TestAsBooleanFromString(t *testing.T) {
	v := NewString("yes")
	b, err := v.AsBoolean()
	if err != nil || !b {
		t.Fatalf("AsBoolean() = %v, %v; want true, nil", b, err)
	}
}

func TestGetBooleanStrict(t *testing.T) {
	v := NewString("true")
	if _, err := v.GetBoolean(); err == nil {
		t.Fatal("GetBoolean() on a String value should fail")
	}
}

func TestAsListFromString(t *testing.T) {
	v := NewString("x")
	l, err := v.AsList()
	if err != nil || len(l) != 1 || l[0] != "x" {
		t.Fatalf("AsList() = %v, %v", l, err)
	}
	if l2, _ := NewString("").AsList(); len(l2) != 0 {
		t.Fatalf("AsList() of empty string = %v, want []", l2)
	}
}

func TestEqualRequiresSameKind(t *testing.T) {
	s := NewString("true")
	b := NewBool(true)
	eq, err := s.Equal(b)
	if err != nil {
		t.Fatal(err)
	}
	if eq {
		t.Fatal("String(\"true\") should not equal Bool(true): no implicit coercion in Equal")
	}
}

func TestEqualListOrderSensitive(t *testing.T) {
	a := NewList([]string{"a", "b"})
	b := NewList([]string{"b", "a"})
	eq, err := a.Equal(b)
	if err != nil {
		t.Fatal(err)
	}
	if eq {
		t.Fatal("lists with different order should not be equal")
	}
	c := NewList([]string{"a", "b"})
	eq, err = a.Equal(c)
	if err != nil || !eq {
		t.Fatalf("identical lists should be equal: %v %v", eq, err)
	}
}

func TestLazyStringResolvedOnce(t *testing.T) {
	calls := 0
	v := NewStringLazy(func() (string, error) {
		calls++
		return "computed", nil
	})
	if s, err := v.AsString(); err != nil || s != "computed" {
		t.Fatalf("AsString() = %q, %v", s, err)
	}
	if s, err := v.AsString(); err != nil || s != "computed" {
		t.Fatalf("second AsString() = %q, %v", s, err)
	}
	if calls != 1 {
		t.Fatalf("thunk called %d times, want 1", calls)
	}
}

func TestEmptyWithoutErrorIsTypeError(t *testing.T) {
	_, err := Nil.AsString()
	if err == nil {
		t.Fatal("expected error dereferencing empty value")
	}
	var te *TypeError
	if !(asTypeError(err, &te)) {
		t.Fatalf("expected *TypeError, got %T: %v", err, err)
	}
}

func asTypeError(err error, target **TypeError) bool {
	if te, ok := err.(*TypeError); ok {
		*target = te
		return true
	}
	return false
}
