package schema

import "testing"

func TestKindString(t *testing.T) {
	if got := KindSfixed64.String(); got != "sfixed64" {
		t.Errorf("KindSfixed64.String() = %q", got)
	}
	if got := Kind(999).String(); got != "kind(999)" {
		t.Errorf("Kind(999).String() = %q", got)
	}
}

func TestPackable(t *testing.T) {
	packable := []Kind{
		KindDouble, KindFloat, KindInt32, KindInt64, KindUint32, KindUint64,
		KindSint32, KindSint64, KindFixed32, KindFixed64, KindSfixed32,
		KindSfixed64, KindBool, KindEnum,
	}
	for _, k := range packable {
		if !k.Packable() {
			t.Errorf("%s should be packable", k)
		}
	}
	for _, k := range []Kind{KindString, KindBytes, KindMessage, KindUnknown} {
		if k.Packable() {
			t.Errorf("%s should not be packable", k)
		}
	}
}

func TestDescriptorLookup(t *testing.T) {
	d := NewDescriptor("Thing",
		&Field{Name: "alpha", Number: 1, Kind: KindString},
		&Field{Name: "beta", Number: 7, Kind: KindInt32},
	)
	if f := d.FieldByNumber(7); f == nil || f.Name != "beta" {
		t.Fatalf("FieldByNumber(7) = %+v", f)
	}
	if f := d.FieldByNumber(2); f != nil {
		t.Errorf("FieldByNumber(2) = %+v, want nil", f)
	}
	if f := d.FieldByName("alpha"); f == nil || f.Number != 1 {
		t.Fatalf("FieldByName(alpha) = %+v", f)
	}
	if f := d.FieldByName("gamma"); f != nil {
		t.Errorf("FieldByName(gamma) = %+v, want nil", f)
	}
}

func TestEnumLookup(t *testing.T) {
	e := &Enum{Name: "Color", Values: []EnumValue{
		{Name: "RED", Number: 0},
		{Name: "BLUE", Number: 2},
	}}
	if got := e.NameByNumber(2); got != "BLUE" {
		t.Errorf("NameByNumber(2) = %q", got)
	}
	if got := e.NameByNumber(1); got != "" {
		t.Errorf("NameByNumber(1) = %q, want empty", got)
	}
	n, ok := e.NumberByName("RED")
	if !ok || n != 0 {
		t.Errorf("NumberByName(RED) = %d, %v", n, ok)
	}
	if _, ok := e.NumberByName("GREEN"); ok {
		t.Error("NumberByName(GREEN) should miss")
	}
}

func TestMapSink(t *testing.T) {
	singular := &Field{Name: "s", Number: 1, Kind: KindString}
	repeated := &Field{Name: "r", Number: 2, Kind: KindInt32, Repeated: true}
	entryDesc := NewDescriptor("MEntry",
		&Field{Name: "key", Number: 1, Kind: KindString},
		&Field{Name: "value", Number: 2, Kind: KindInt32},
	)
	mapF := &Field{Name: "m", Number: 3, Kind: KindMessage, Repeated: true, MapEntry: true, Message: entryDesc}

	d := NewDescriptor("Holder", singular, repeated, mapF)
	sink := d.NewMessage()

	for _, step := range []struct {
		f *Field
		v any
	}{
		{singular, "first"},
		{singular, "last write wins"},
		{repeated, int32(1)},
		{repeated, int32(2)},
		{mapF, map[string]any{"key": "a", "value": int32(10)}},
		{mapF, map[string]any{"key": "b", "value": int32(20)}},
	} {
		if err := sink.ConsumeField(step.f, step.v); err != nil {
			t.Fatalf("ConsumeField(%s): %v", step.f.Name, err)
		}
	}

	got, ok := sink.Complete().(map[string]any)
	if !ok {
		t.Fatalf("Complete() = %T, want map[string]any", sink.Complete())
	}
	if got["s"] != "last write wins" {
		t.Errorf("singular = %v", got["s"])
	}
	r, _ := got["r"].([]any)
	if len(r) != 2 || r[0] != int32(1) || r[1] != int32(2) {
		t.Errorf("repeated = %v", got["r"])
	}
	m, _ := got["m"].(map[any]any)
	if len(m) != 2 || m["a"] != int32(10) || m["b"] != int32(20) {
		t.Errorf("map = %v", got["m"])
	}
}

func TestMapSink_BackfillsZeroDefaults(t *testing.T) {
	entryDesc := NewDescriptor("MEntry",
		&Field{Name: "key", Number: 1, Kind: KindString},
		&Field{Name: "value", Number: 2, Kind: KindInt32},
	)
	mapF := &Field{Name: "m", Number: 1, Kind: KindMessage, Repeated: true, MapEntry: true, Message: entryDesc}
	sink := NewDescriptor("Holder", mapF).NewMessage()

	// An entry encoded with neither field present means key "" and value 0.
	if err := sink.ConsumeField(mapF, map[string]any{}); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}
	if err := sink.ConsumeField(mapF, map[string]any{"key": "x"}); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	got := sink.Complete().(map[string]any)
	m, _ := got["m"].(map[any]any)
	if m[""] != int32(0) {
		t.Errorf(`m[""] = %v (%T), want int32(0)`, m[""], m[""])
	}
	if m["x"] != int32(0) {
		t.Errorf(`m["x"] = %v (%T), want int32(0)`, m["x"], m["x"])
	}
}

func TestMapSink_RejectsNonMessageEntry(t *testing.T) {
	mapF := &Field{Name: "m", Number: 1, Kind: KindMessage, Repeated: true, MapEntry: true}
	sink := NewDescriptor("Holder", mapF).NewMessage()
	if err := sink.ConsumeField(mapF, "not a message"); err == nil {
		t.Error("ConsumeField should reject a non-message map entry")
	}
}
