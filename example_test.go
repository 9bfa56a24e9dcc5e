package protostream_test

import (
	"context"
	"fmt"

	protostream "github.com/anirudhraja/protostream"
	"github.com/anirudhraja/protostream/schema"
)

func Example() {
	ps := protostream.New()
	ps.GetRegistry().Register(schema.NewDescriptor("Greeting",
		&schema.Field{Name: "text", Number: 1, Kind: schema.KindString},
		&schema.Field{Name: "count", Number: 2, Kind: schema.KindUint32},
	))

	buf, err := ps.Marshal(map[string]any{"text": "hello", "count": uint32(3)}, "Greeting")
	if err != nil {
		panic(err)
	}

	decoded, err := ps.Parse(buf, "Greeting")
	if err != nil {
		panic(err)
	}
	fmt.Println(decoded["text"], decoded["count"])
	// Output: hello 3
}

func Example_streaming() {
	ps := protostream.New()
	ps.GetRegistry().Register(schema.NewDescriptor("Greeting",
		&schema.Field{Name: "text", Number: 1, Kind: schema.KindString},
	))

	buf, err := ps.Marshal(map[string]any{"text": "incremental"}, "Greeting")
	if err != nil {
		panic(err)
	}

	p, err := ps.NewStreamParser("Greeting")
	if err != nil {
		panic(err)
	}

	// Deliver the bytes in two arbitrary chunks; the parser suspends at the
	// boundary and resumes without re-reading anything.
	ctx := context.Background()
	status, _ := p.Feed(ctx, buf[:4])
	fmt.Println("after first chunk:", status.State)
	if _, err := p.Feed(ctx, buf[4:]); err != nil {
		panic(err)
	}
	status, _ = p.Finish(ctx)
	fmt.Println("after finish:", status.State)

	msg, err := p.Result()
	if err != nil {
		panic(err)
	}
	fmt.Println("text:", msg.(map[string]any)["text"])
	// Output:
	// after first chunk: suspended
	// after finish: done
	// text: incremental
}
