package peer_test

import (
	"testing"

	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
		self  string
		exp   []string
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host3"}, {Host: "host1"}, {Host: "host2"}},
			self:  "host2",
			exp:   []string{"host1", "host3"},
		},
		{
			name:  "duplicates",
			peers: []peer.Peer{{Host: "host1"}, {Host: "host1"}, {Host: ""}},
			self:  "",
			exp:   []string{"host1"},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, peer := range tst.peers {
				ps.Add(peer)
			}

			peers := ps.Copy(tst.self)
			if len(peers) != len(tst.exp) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.exp))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			for i, host := range tst.exp {
				if peers[i].Host != host {
					t.Logf("Test %s:\tgot: %s", tst.name, peers[i].Host)
					t.Logf("Test %s:\texp: %s", tst.name, host)
					t.Fatalf("Test %s:\tShould get back the peers in host order.", tst.name)
				}
			}

			ps.Remove(peers[0])
			if got := len(ps.Copy(tst.self)); got != len(tst.exp)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, got)
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.exp)-1)
				t.Fatalf("Test %s:\tShould be able to remove a peer.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}
