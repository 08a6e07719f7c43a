package main

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/odvcencio/gitbrowse/pkg/config"
	"github.com/odvcencio/gitbrowse/pkg/repo/repotest"
)

func init() {
	color.NoColor = true
}

type cmdFixture struct {
	dir    string
	c1, c2 string
}

func newCmdFixture(t *testing.T) cmdFixture {
	t.Helper()
	b := repotest.New(t, "tool")
	c1 := b.CommitOn("master", "Add greeting\n", repotest.Files{
		"hello.txt": repotest.Text("hello\n"),
	})
	c2 := b.CommitOn("master", "Add farewell\n\nSecond line.\n", repotest.Files{
		"hello.txt": repotest.Text("hello\nbye\n"),
		"docs/a.md": repotest.Text("# A\n"),
	})
	b.Branch("feature", c1)
	b.Tag("v1", c1)
	return cmdFixture{dir: b.Dir, c1: c1, c2: c2}
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "gitbrowse "+version+"\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestLogCmd(t *testing.T) {
	fx := newCmdFixture(t)

	out, err := runCmd(t, "-C", fx.dir, "log", "--oneline")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := fx.c2[:10] + " Add farewell\n" + fx.c1[:10] + " Add greeting\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}

	out, err = runCmd(t, "-C", fx.dir, "log", "master", "docs")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "commit "+fx.c2) || strings.Contains(out, fx.c1) {
		t.Fatalf("path log = %q, want only %s", out, fx.c2)
	}
	if !strings.Contains(out, "    Second line.\n") {
		t.Fatalf("path log lacks indented body: %q", out)
	}

	out, err = runCmd(t, "-C", fx.dir, "log", "--oneline", "-n", "1", "--skip", "1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != fx.c1[:10]+" Add greeting\n" {
		t.Fatalf("skip output = %q", out)
	}
}

func TestCatCmd(t *testing.T) {
	fx := newCmdFixture(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"cat", "hello.txt"}, "hello\nbye\n"},
		{[]string{"cat", "--rev", "v1", "hello.txt"}, "hello\n"},
		{[]string{"cat", "-r", "feature", "hello.txt"}, "hello\n"},
	}
	for _, tt := range tests {
		out, err := runCmd(t, append([]string{"-C", fx.dir}, tt.args...)...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if out != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, out, tt.want)
		}
	}

	if _, err := runCmd(t, "-C", fx.dir, "cat", "docs"); err == nil {
		t.Fatal("cat of a directory should fail")
	}
}

func TestBlameCmd(t *testing.T) {
	fx := newCmdFixture(t)
	out, err := runCmd(t, "-C", fx.dir, "blame", "hello.txt")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("blame printed %d lines: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], fx.c1[:10]) || !strings.HasSuffix(lines[0], "1  hello") {
		t.Errorf("line 1 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], fx.c2[:10]) || !strings.HasSuffix(lines[1], "2  bye") {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestShowCmd(t *testing.T) {
	fx := newCmdFixture(t)
	out, err := runCmd(t, "-C", fx.dir, "show")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"From " + fx.c2, "Subject: [PATCH] Add farewell", "diff --git a/docs/a.md b/docs/a.md", "+bye\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output lacks %q:\n%s", want, out)
		}
	}
}

func TestBranchesCmd(t *testing.T) {
	fx := newCmdFixture(t)

	out, err := runCmd(t, "-C", fx.dir, "branches")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "* master") || !strings.HasPrefix(lines[1], "  feature") {
		t.Fatalf("branches = %q", out)
	}

	out, err = runCmd(t, "-C", fx.dir, "branches", "--tags")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out, "  v1") {
		t.Fatalf("tags = %q", out)
	}
}

func TestArchiveCmd(t *testing.T) {
	fx := newCmdFixture(t)
	dest := filepath.Join(t.TempDir(), "out.tar")

	if _, err := runCmd(t, "-C", fx.dir, "archive", "--format", "tar", "--prefix", "tool/", "-o", dest, "v1"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	var names []string
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		names = append(names, hdr.Name)
	}
	if strings.Join(names, ",") != "tool/hello.txt" {
		t.Fatalf("archive entries = %v", names)
	}

	if _, err := runCmd(t, "-C", fx.dir, "archive", "--format", "zip", "-o", "-"); err == nil {
		t.Fatal("unknown format should fail")
	}
}

func TestLsCmd(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"beta", "alpha"} {
		b := repotest.New(t, name)
		b.CommitOn("master", "init\n", repotest.Files{"f": repotest.Text("f\n")})
		if err := os.Rename(b.Dir, filepath.Join(root, name+".git")); err != nil {
			t.Fatalf("Rename: %v", err)
		}
	}

	out, err := runCmd(t, "ls", "--namespace", "pub", root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out, "pub/alpha") || !strings.Contains(out, "\npub/beta") {
		t.Fatalf("ls = %q", out)
	}

	out, err = runCmd(t, "ls", "--filter", "BET", root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(out, "alpha") || !strings.Contains(out, "beta") {
		t.Fatalf("filtered ls = %q", out)
	}
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gitbrowse.toml")
	content := "listen = \"0.0.0.0:9000\"\nsite_name = \"from file\"\nlog_level = \"debug\"\n\n[[repo]]\npath = \"repos/one.git\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cmd := newServeCmd()
	cmd.Flags().String("repo", ".", "")
	if err := cmd.Flags().Parse([]string{"--config", path, "--listen", ":7000", "--root", "/srv/git"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := serveFlags{}
	f.configPath, _ = cmd.Flags().GetString("config")
	f.listen, _ = cmd.Flags().GetString("listen")
	f.roots, _ = cmd.Flags().GetStringArray("root")

	cfg, err := f.config(cmd, []string{"/srv/extra.git"})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Listen != ":7000" || cfg.SiteName != "from file" || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Repos) != 2 || cfg.Repos[0].Path != filepath.Join(dir, "repos/one.git") || cfg.Repos[1].Path != "/srv/extra.git" {
		t.Fatalf("repos = %+v", cfg.Repos)
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0].Path != "/srv/git" {
		t.Fatalf("roots = %+v", cfg.Roots)
	}

	empty := serveFlags{}
	cfg, err = empty.config(cmd, nil)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Listen != config.DefaultListen || len(cfg.Repos) != 1 || cfg.Repos[0].Path != "." {
		t.Fatalf("default cfg = %+v", cfg)
	}
}
