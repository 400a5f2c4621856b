// Open an existing index and print every RID in a range scan.
//
// Usage: go run ./cmd/scanindex <relation-name> <attr-offset> <lowVal> <lowOp> <highVal> <highOp>
// Operators: gt, gte, lt, lte
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"btreeidx/bptree"
)

func parseOp(s string) (bptree.Operator, error) {
	switch s {
	case "gt":
		return bptree.GT, nil
	case "gte":
		return bptree.GTE, nil
	case "lt":
		return bptree.LT, nil
	case "lte":
		return bptree.LTE, nil
	default:
		return 0, fmt.Errorf("unknown operator %q (want gt, gte, lt, lte)", s)
	}
}

func main() {
	if len(os.Args) != 7 {
		fmt.Fprintf(os.Stderr, "Usage: %s <relation-name> <attr-offset> <lowVal> <lowOp> <highVal> <highOp>\n", os.Args[0])
		os.Exit(1)
	}

	relName := os.Args[1]
	attrOffset, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("attr-offset: %v", err)
	}
	lowVal, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatalf("lowVal: %v", err)
	}
	lowOp, err := parseOp(os.Args[4])
	if err != nil {
		log.Fatalf("lowOp: %v", err)
	}
	highVal, err := strconv.Atoi(os.Args[5])
	if err != nil {
		log.Fatalf("highVal: %v", err)
	}
	highOp, err := parseOp(os.Args[6])
	if err != nil {
		log.Fatalf("highOp: %v", err)
	}

	tree, err := bptree.Open(relName, int32(attrOffset), bptree.AttrTypeInteger, 64, nil)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}
	defer tree.Close()

	if err := tree.StartScan(int32(lowVal), lowOp, int32(highVal), highOp); err != nil {
		if errors.Is(err, bptree.ErrNoSuchKeyFound) {
			fmt.Println("no matching entries")
			return
		}
		log.Fatalf("start scan: %v", err)
	}
	defer tree.EndScan()

	var rid bptree.RID
	count := 0
	for {
		if err := tree.ScanNext(&rid); err != nil {
			if errors.Is(err, bptree.ErrIndexScanCompleted) {
				break
			}
			log.Fatalf("scan next: %v", err)
		}
		fmt.Printf("rid=(%d,%d)\n", rid.PageNo, rid.SlotNo)
		count++
	}
	fmt.Printf("%d matching entries\n", count)
}
