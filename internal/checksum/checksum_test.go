package checksum

import (
	"strings"
	"testing"
	"time"
)

func TestSum(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestETag(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	base := ETag("n1", ts, 10)

	if !strings.HasPrefix(base, `"`) || !strings.HasSuffix(base, `"`) || len(base) != 34 {
		t.Fatalf("ETag = %s, want quoted 32 hex chars", base)
	}
	if again := ETag("n1", ts.In(time.FixedZone("x", 3600)), 10); again != base {
		t.Errorf("ETag depends on location: %s != %s", again, base)
	}

	for name, other := range map[string]string{
		"id":       ETag("n2", ts, 10),
		"modified": ETag("n1", ts.Add(time.Microsecond), 10),
		"size":     ETag("n1", ts, 11),
	} {
		if other == base {
			t.Errorf("changing %s did not change the tag", name)
		}
	}
}
