package apps

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCollectFields(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addSubmitFlags(flags, &submitOpts{})

	if err := flags.Parse([]string{"--name", "Foo", "--support-url", "https://example.com", "--keywords", "a,b", "--published=false"}); err != nil {
		t.Fatal(err)
	}

	fields := collectFields(flags)
	want := map[string]string{
		"name":        "Foo",
		"support_url": "https://example.com",
		"keywords":    "a,b",
		"published":   "false",
	}
	if len(fields) != len(want) {
		t.Fatalf("unexpected fields %v", fields)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, fields[k])
		}
	}
}

func TestWrite(t *testing.T) {
	v := map[string]int{"Games": 2}

	var buf bytes.Buffer
	if err := write(&buf, "yaml", v); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Games: 2\n" {
		t.Errorf("unexpected yaml %q", buf.String())
	}

	buf.Reset()
	if err := write(&buf, "json", v); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"Games": 2`) {
		t.Errorf("unexpected json %q", buf.String())
	}

	if err := write(&buf, "xml", v); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
