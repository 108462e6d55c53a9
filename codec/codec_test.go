package codec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/types/known/structpb"
)

type row struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Seats int    `json:"seats"`
}

type page struct {
	Events []row          `json:"events"`
	Extra  map[string]any `json:"extra,omitempty"`
}

func TestCodecsKeepPageShape(t *testing.T) {
	in := page{Events: []row{{ID: "e1", Title: "Picnic <park> & games", Seats: 12}, {ID: "e2", Title: "Hike"}}}

	for _, name := range []string{"json", "cbor", "msgpack"} {
		cd, ok := ByName[page](name)
		if !ok {
			t.Fatalf("ByName(%q) not found", name)
		}
		b, err := cd.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := cd.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if diff := cmp.Diff(in, out); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, ok := ByName[page]("xml"); ok {
		t.Fatalf("expected unknown codec to be rejected")
	}
}

func TestJSONDoesNotEscapeHTML(t *testing.T) {
	b, err := JSON[string]{}.Encode("<b>&")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"<b>&"` {
		t.Fatalf("got %s", b)
	}
}

func TestCBORDeterministicIsStable(t *testing.T) {
	cd := MustCBOR[map[string]int](CBOROptions{Deterministic: true})
	a, err := cd.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatal(err)
	}
	b, err := cd.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("deterministic encodings differ: %x vs %x", a, b)
	}
}

func TestProtobufStruct(t *testing.T) {
	cd := NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })
	in, err := structpb.NewStruct(map[string]any{"id": "e1", "seats": 4.0})
	if err != nil {
		t.Fatal(err)
	}
	b, err := cd.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := cd.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if out.Fields["id"].GetStringValue() != "e1" || out.Fields["seats"].GetNumberValue() != 4 {
		t.Fatalf("unexpected decode: %v", out)
	}
}

func TestProtobufWithoutConstructor(t *testing.T) {
	var cd Protobuf[*structpb.Struct]
	if _, err := cd.Decode(nil); err == nil {
		t.Fatalf("expected error without constructor")
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	cd := Limit[string]{Inner: JSON[string]{}, Max: 8}

	if _, err := cd.Encode("short"); err != nil {
		t.Fatalf("small value rejected: %v", err)
	}
	_, err := cd.Encode("definitely too long")
	var tl *ErrTooLarge
	if !errors.As(err, &tl) || tl.Max != 8 {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := cd.Decode([]byte(`"0123456789"`)); err == nil {
		t.Fatalf("expected oversized decode to fail")
	}

	unlimited := Limit[string]{Inner: JSON[string]{}}
	if _, err := unlimited.Encode("definitely too long"); err != nil {
		t.Fatalf("Max=0 should disable the limit: %v", err)
	}
}

func TestCBORBoundsDecodedRows(t *testing.T) {
	small := MustCBOR[[]int](CBOROptions{MaxRows: 16})
	b, err := MustCBOR[[]int](CBOROptions{}).Encode(make([]int, 20))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := small.Decode(b); err == nil {
		t.Fatalf("expected decode of 20 rows to fail with MaxRows=16")
	}
	if got, err := small.Decode(b[:0:0]); err == nil {
		t.Fatalf("expected empty input to fail, got %v", got)
	}
}
