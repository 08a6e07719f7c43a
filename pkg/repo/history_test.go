package repo

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/odvcencio/gitbrowse/pkg/object"
	"github.com/odvcencio/gitbrowse/pkg/repo/repotest"
)

func hashes(commits []Commit) []object.Hash {
	out := make([]object.Hash, len(commits))
	for i, c := range commits {
		out[i] = c.Hash
	}
	return out
}

func TestHistoryFiltersByPath(t *testing.T) {
	b := repotest.New(t, "hist")
	c1 := b.CommitOn("master", "add a\n", repotest.Files{"a.txt": repotest.Text("x\n")})
	c2 := b.CommitOn("master", "add b\n", repotest.Files{
		"a.txt": repotest.Text("x\n"),
		"b.txt": repotest.Text("y\n"),
	})
	r := openFixture(t, b)
	head := mustCommit(t, r, "master")
	if string(head.Hash) != c2 {
		t.Fatalf("master = %s, want %s", head.Hash, c2)
	}

	got, err := r.History(head, "a.txt", 10, 0)
	if err != nil {
		t.Fatalf("History(a.txt): %v", err)
	}
	if want := []object.Hash{object.Hash(c1)}; !reflect.DeepEqual(hashes(got), want) {
		t.Errorf("History(a.txt) = %v, want %v", hashes(got), want)
	}

	got, err = r.History(head, "b.txt", 10, 0)
	if err != nil {
		t.Fatalf("History(b.txt): %v", err)
	}
	if want := []object.Hash{object.Hash(c2)}; !reflect.DeepEqual(hashes(got), want) {
		t.Errorf("History(b.txt) = %v, want %v", hashes(got), want)
	}

	got, err = r.History(head, "", 10, 0)
	if err != nil {
		t.Fatalf("History(all): %v", err)
	}
	if want := []object.Hash{object.Hash(c2), object.Hash(c1)}; !reflect.DeepEqual(hashes(got), want) {
		t.Errorf("History(all) = %v, want %v", hashes(got), want)
	}

	got, err = r.History(head, "missing.txt", 10, 0)
	if err != nil {
		t.Fatalf("History(missing): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("History(missing) = %v, want empty", hashes(got))
	}
}

func TestHistoryDirectoryAndModeChanges(t *testing.T) {
	b := repotest.New(t, "hist")
	c1 := b.CommitOn("master", "one\n", repotest.Files{"src/main.c": repotest.Text("int main;\n")})
	b.CommitOn("master", "docs\n", repotest.Files{
		"src/main.c": repotest.Text("int main;\n"),
		"README":     repotest.Text("readme\n"),
	})
	c3 := b.CommitOn("master", "chmod\n", repotest.Files{
		"src/main.c": repotest.Exec("int main;\n"),
		"README":     repotest.Text("readme\n"),
	})
	r := openFixture(t, b)

	got, err := r.History(mustCommit(t, r, "master"), "src", 0, 0)
	if err != nil {
		t.Fatalf("History(src): %v", err)
	}
	if want := []object.Hash{object.Hash(c3), object.Hash(c1)}; !reflect.DeepEqual(hashes(got), want) {
		t.Errorf("History(src) = %v, want %v", hashes(got), want)
	}
}

func TestHistoryMergeOrderedByCommitTime(t *testing.T) {
	b := repotest.New(t, "merge")
	base := b.Commit("base\n", repotest.Files{"f": repotest.Text("0\n")})
	left := b.Commit("left\n", repotest.Files{"f": repotest.Text("1\n")}, base)
	right := b.Commit("right\n", repotest.Files{"f": repotest.Text("0\n"), "g": repotest.Text("2\n")}, base)
	merge := b.Commit("merge\n", repotest.Files{"f": repotest.Text("1\n"), "g": repotest.Text("2\n")}, left, right)
	b.Branch("master", merge)
	r := openFixture(t, b)

	got, err := r.History(mustCommit(t, r, "master"), "", 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []object.Hash{object.Hash(merge), object.Hash(right), object.Hash(left), object.Hash(base)}
	if !reflect.DeepEqual(hashes(got), want) {
		t.Errorf("History = %v, want %v", hashes(got), want)
	}
}

func TestHistoryDanglingParent(t *testing.T) {
	b := repotest.New(t, "shallow")
	missing := "1111111111111111111111111111111111111111"
	tip := b.Commit("tip\n", repotest.Files{"f": repotest.Text("x\n")}, missing)
	b.Branch("master", tip)
	r := openFixture(t, b)

	got, err := r.History(mustCommit(t, r, "master"), "f", 0, 0)
	if err != nil {
		t.Fatalf("History with dangling parent: %v", err)
	}
	if len(got) != 1 || string(got[0].Hash) != tip {
		t.Errorf("History = %v, want [%s]", hashes(got), tip)
	}
}

func TestHistoryPagination(t *testing.T) {
	b := repotest.New(t, "pages")
	var all []string
	for i := 0; i < 45; i++ {
		all = append(all, b.CommitOn("master", fmt.Sprintf("commit %d\n", i), repotest.Files{
			"counter": repotest.Text(fmt.Sprintf("%d\n", i)),
		}))
	}
	r := openFixture(t, b)
	head := mustCommit(t, r, "master")

	seen := make(map[object.Hash]int)
	total := 0
	for page := 0; page < 3; page++ {
		limit, skip := HistoryPage(page)
		got, err := r.History(head, "", limit, skip)
		if err != nil {
			t.Fatalf("History page %d: %v", page, err)
		}
		for _, c := range got {
			if prev, dup := seen[c.Hash]; dup {
				t.Fatalf("commit %s on page %d and page %d", c.Hash.Short(), prev, page)
			}
			seen[c.Hash] = page
		}
		total += len(got)
	}
	if total != len(all) {
		t.Fatalf("pages covered %d commits, want %d", total, len(all))
	}
	// Newest first: the first page starts at the tip.
	first, _ := r.History(head, "", FirstPageSize, 0)
	if len(first) != FirstPageSize || string(first[0].Hash) != all[len(all)-1] {
		t.Errorf("first page = %d commits starting %s", len(first), first[0].Hash.Short())
	}
}

func TestHistoryPageBounds(t *testing.T) {
	tests := []struct {
		page        int
		limit, skip int
	}{
		{0, 10, 0},
		{1, 30, 10},
		{2, 30, 40},
		{5, 30, 130},
	}
	for _, tt := range tests {
		limit, skip := HistoryPage(tt.page)
		if limit != tt.limit || skip != tt.skip {
			t.Errorf("HistoryPage(%d) = (%d, %d), want (%d, %d)", tt.page, limit, skip, tt.limit, tt.skip)
		}
	}
}

func TestPreviousPages(t *testing.T) {
	tests := []struct {
		page int
		want []int
	}{
		{0, nil},
		{1, []int{0}},
		{3, []int{0, 1, 2}},
		{7, []int{0, 1, 2, 3, 4, 5, 6}},
		{8, []int{0, 1, 2, PageGap, 5, 6, 7}},
		{20, []int{0, 1, 2, PageGap, 17, 18, 19}},
	}
	for _, tt := range tests {
		if got := PreviousPages(tt.page); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PreviousPages(%d) = %v, want %v", tt.page, got, tt.want)
		}
	}
}
