package pomps_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliwjones/pomps"
)

func ExampleGroupData() {
	dir, _ := os.MkdirTemp("", "pomps-example")
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "people.jsonl")
	_ = os.WriteFile(src, []byte(strings.Join([]string{
		`{"_id": 2, "name": "joe j"}`,
		`{"_id": 0, "name": "bob smith"}`,
		`{"_id": 1, "name": "bill b"}`,
		`{"_id": 0, "name": "rsmith"}`,
	}, "\n")), 0o644)

	path, err := pomps.GroupDataNamed(context.Background(), src, "_id", pomps.FieldText("_id"), 2)
	if err != nil {
		fmt.Println(err)
		return
	}
	out, _ := os.ReadFile(path)
	fmt.Print(string(out))
	// Output:
	// {"group_key":"0","data":[{"_id":0,"name":"bob smith"},{"_id":0,"name":"rsmith"}]}
	// {"group_key":"1","data":[{"_id":1,"name":"bill b"}]}
	// {"group_key":"2","data":[{"_id":2,"name":"joe j"}]}
}

func ExampleBuildBucketMap() {
	keys := []string{"a", "a", "a", "a", "b", "c", "d", "e"}

	m, _ := pomps.BuildBucketMap(keys, 4)
	for _, r := range m {
		fmt.Println(r.Min, r.Max)
	}
	// Output:
	// a a
	// b c
	// d e
}

func ExampleMergeJoin() {
	dir, _ := os.MkdirTemp("", "pomps-example")
	defer os.RemoveAll(dir)

	left := filepath.Join(dir, "left.jsonl")
	right := filepath.Join(dir, "right.jsonl")
	_ = os.WriteFile(left, []byte(`{"group_key":"a","data":[1]}
{"group_key":"b","data":[2]}
`), 0o644)
	_ = os.WriteFile(right, []byte(`{"group_key":"b","data":[3]}
{"group_key":"c","data":[4]}
`), 0o644)

	n, err := pomps.MergeJoin(context.Background(), left, right, os.Stdout, pomps.Join(pomps.LeftJoin, pomps.PairRecords))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(n, "records")
	// Output:
	// {"group_key":"a","left":[1],"right":[]}
	// {"group_key":"b","left":[2],"right":[3]}
	// 2 records
}
