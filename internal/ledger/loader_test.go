package ledger

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/encoding/japanese"

	"kakeibo/internal/core"
	"kakeibo/internal/sources"
	"kakeibo/internal/sources/memory"
)

type failingLister struct{}

func (failingLister) ListSources(context.Context) ([]string, error) {
	return nil, errors.New("directory gone")
}

func TestLoaderConcatenatesAndSkipsUnreadable(t *testing.T) {
	sjis, _ := japanese.ShiftJIS.NewEncoder().String("日付,内容,金額（円）\n2024/03/09,書籍,-1500\n")
	store := memory.New(map[string][]byte{
		"b_broken.csv": {0xFF, 0xFE, 0x00},
		"c_sjis.csv":   []byte(sjis),
		"a_utf8.csv":   []byte("日付,内容,金額（円）\n2024/03/01,a,-1\n2024/03/02,b,-2\n"),
	})

	res, err := NewLoader(store, store).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Sources) != 3 || res.Sources[0] != "a_utf8.csv" {
		t.Fatalf("unexpected sources %v", res.Sources)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "b_broken.csv" {
		t.Fatalf("unexpected skipped %v", res.Skipped)
	}
	if res.Ledger.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", res.Ledger.Len())
	}
	titles := []string{"a", "b", "書籍"}
	for i, want := range titles {
		if got, _ := res.Ledger.Records[i].Get(core.ColDescription); got != want {
			t.Fatalf("record %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestLoaderEmpty(t *testing.T) {
	store := memory.New(nil)
	res, err := NewLoader(store, store).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Ledger.Len() != 0 || len(res.Ledger.Columns) != len(core.CanonicalColumns()) {
		t.Fatalf("expected empty ledger with canonical headers, got %+v", res.Ledger)
	}

	all := memory.New(map[string][]byte{"x.csv": {}})
	res, err = NewLoader(all, all).Load(context.Background())
	if err != nil || res.Ledger.Len() != 0 || len(res.Ledger.Columns) != 10 {
		t.Fatalf("all sources failing should give an empty ledger: %+v err=%v", res, err)
	}
}

func TestLoaderListingFailure(t *testing.T) {
	store := memory.New(nil)
	if _, err := NewLoader(failingLister{}, store).Load(context.Background()); err == nil {
		t.Fatalf("expected listing error")
	}
}

func TestLoadSourceNotFound(t *testing.T) {
	store := memory.New(nil)
	if _, err := NewLoader(store, store).LoadSource(context.Background(), "nope.csv"); !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
