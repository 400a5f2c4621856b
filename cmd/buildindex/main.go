// Build a B+ tree index over one fixed-width integer attribute of a
// relation file, bulk-loading from the relation's existing records.
//
// Usage: go run ./cmd/buildindex <relation-file> <relation-name> <attr-offset>
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"btreeidx/bptree"
	"btreeidx/relation"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <relation-file> <relation-name> <attr-offset>\n", os.Args[0])
		os.Exit(1)
	}

	relPath := os.Args[1]
	relName := os.Args[2]
	attrOffset, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatalf("attr-offset: %v", err)
	}

	rel, err := relation.Open(relPath)
	if err != nil {
		log.Fatalf("open relation: %v", err)
	}
	defer rel.Close()

	tree, err := bptree.Open(relName, int32(attrOffset), bptree.AttrTypeInteger, 64, rel)
	if err != nil {
		log.Fatalf("build index: %v", err)
	}
	defer tree.Close()

	fmt.Printf("built index %s.%d\n", relName, attrOffset)
}
