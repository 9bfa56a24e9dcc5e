package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	protostream "github.com/anirudhraja/protostream"
)

func main() {
	ps := protostream.New()
	if err := ps.LoadSchema("testdata/addressbook.proto"); err != nil {
		log.Fatalf("Failed to load addressbook.proto: %v", err)
	}

	fmt.Println("Protostream Sample App")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Loaded messages: %v\n", ps.ListMessages())

	person := map[string]any{
		"name":  "Ada Lovelace",
		"id":    int32(7),
		"email": "ada@example.com",
		"phones": []any{
			map[string]any{"number": "555-0100", "type": "HOME"},
			map[string]any{"number": "555-0101", "type": "WORK"},
		},
		"attributes": map[any]any{
			"timezone": "UTC",
			"theme":    "dark",
		},
	}

	encoded, err := ps.Marshal(person, "Person")
	if err != nil {
		log.Fatalf("Failed to marshal: %v", err)
	}
	fmt.Printf("\nMarshalled %d bytes: %s\n", len(encoded), hex.EncodeToString(encoded))

	decoded, err := ps.Parse(encoded, "Person")
	if err != nil {
		log.Fatalf("Failed to parse: %v", err)
	}
	fmt.Printf("Parsed back: %+v\n", decoded)

	// Streaming decode: deliver the same bytes in small chunks and let the
	// parser suspend at every boundary.
	fmt.Println("\nStreaming decode in 5-byte chunks:")
	parser, err := ps.NewStreamParser("Person")
	if err != nil {
		log.Fatalf("Failed to create stream parser: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < len(encoded); i += 5 {
		end := i + 5
		if end > len(encoded) {
			end = len(encoded)
		}
		status, err := parser.Feed(ctx, encoded[i:end])
		if err != nil {
			log.Fatalf("Feed failed: %v", err)
		}
		fmt.Printf("  fed bytes %2d-%2d: %s (need %d more)\n", i, end-1, status.State, status.NeedBytes)
	}
	if _, err := parser.Finish(ctx); err != nil {
		log.Fatalf("Finish failed: %v", err)
	}
	streamed, err := parser.Result()
	if err != nil {
		log.Fatalf("Result failed: %v", err)
	}
	fmt.Printf("Streamed result: %+v\n", streamed)
}
