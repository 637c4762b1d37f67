package telegram

import (
	"bytes"
	"go/format"
	"os"
	"testing"
)

func TestSourcesAreGofmtClean(t *testing.T) {
	files := []string{
		"httpclient.go",
		"registry.go",
		"sender/dispatcher.go",
		"router/router_test.go",
		"helpers/helpers_test.go",
	}
	for _, name := range files {
		src, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		formatted, err := format.Source(src)
		if err != nil {
			t.Fatalf("format %s: %v", name, err)
		}
		if !bytes.Equal(src, formatted) {
			t.Fatalf("%s is not gofmt-formatted", name)
		}
	}
}
