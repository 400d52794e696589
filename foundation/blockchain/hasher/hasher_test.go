package hasher_test

import (
	"strings"
	"testing"

	"github.com/ardanlabs/edublock/foundation/blockchain/hasher"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Hash(t *testing.T) {
	value := struct {
		Name  string
		Value int64
	}{
		Name:  "Bill",
		Value: 10,
	}

	t.Log("Given the need to hash values deterministically.")
	{
		h1 := hasher.Hash(value)
		h2 := hasher.Hash(value)

		if h1 != h2 {
			t.Logf("got: %s", h1)
			t.Logf("exp: %s", h2)
			t.Fatalf("\t%s\tShould get back the same hash twice.", failed)
		}
		t.Logf("\t%s\tShould get back the same hash twice.", success)

		if len(h1) != 66 || !strings.HasPrefix(h1, "0x") {
			t.Fatalf("\t%s\tShould get back a 0x prefixed 32 byte hash: %s", failed, h1)
		}
		t.Logf("\t%s\tShould get back a 0x prefixed 32 byte hash.", success)

		value.Value = 11
		if h3 := hasher.Hash(value); h3 == h1 {
			t.Fatalf("\t%s\tShould get a different hash for different data.", failed)
		}
		t.Logf("\t%s\tShould get a different hash for different data.", success)
	}
}

func Test_Serialize(t *testing.T) {
	m1 := map[string]int{"a": 1, "b": 2, "c": 3}
	m2 := map[string]int{"c": 3, "b": 2, "a": 1}

	d1, err := hasher.Serialize(m1)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to serialize the value: %s", failed, err)
	}

	d2, err := hasher.Serialize(m2)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to serialize the value: %s", failed, err)
	}

	if string(d1) != string(d2) {
		t.Fatalf("\t%s\tShould get the same bytes regardless of map order.", failed)
	}
	t.Logf("\t%s\tShould get the same bytes regardless of map order.", success)
}

func Test_IsSolved(t *testing.T) {
	type table struct {
		name       string
		difficulty uint16
		hash       string
		solved     bool
	}

	tt := []table{
		{name: "nodifficulty", difficulty: 0, hash: "0xf000000000000000000000000000000000000000000000000000000000000000", solved: true},
		{name: "solved", difficulty: 2, hash: "0x00f0000000000000000000000000000000000000000000000000000000000000", solved: true},
		{name: "unsolved", difficulty: 3, hash: "0x00f0000000000000000000000000000000000000000000000000000000000000", solved: false},
		{name: "noprefix", difficulty: 1, hash: "00f0000000000000000000000000000000000000000000000000000000000000", solved: true},
		{name: "short", difficulty: 1, hash: "0x00", solved: false},
		{name: "toohard", difficulty: 65, hash: hasher.ZeroHash, solved: false},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			got := hasher.IsSolved(tst.difficulty, tst.hash)
			if got != tst.solved {
				t.Logf("Test %s:\tgot: %v", tst.name, got)
				t.Logf("Test %s:\texp: %v", tst.name, tst.solved)
				t.Fatalf("\t%s\tTest %s:\tShould get back the right answer.", failed, tst.name)
			}
			t.Logf("\t%s\tTest %s:\tShould get back the right answer.", success, tst.name)
		}

		t.Run(tst.name, f)
	}
}
