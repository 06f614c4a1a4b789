package client

import (
	"context"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jason-s-yu/bridgeduel/internal/auth"
	"github.com/jason-s-yu/bridgeduel/internal/game"
	"github.com/jason-s-yu/bridgeduel/internal/handlers"
	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/jason-s-yu/bridgeduel/internal/replication"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// startSide dials the relay and runs a replication peer on the connection.
func startSide(t *testing.T, ctx context.Context, url string, seed int64) *replication.Peer {
	log := logrus.NewEntry(quietLogger())
	conn, err := Dial(ctx, url, Options{RoomID: "e2e"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	e := game.NewEngine(log)
	e.SetShuffler(rand.New(rand.NewSource(seed)))
	e.TrickDelay = 20 * time.Millisecond
	p := replication.NewPeer("e2e", e, conn, log)
	t.Cleanup(p.Close)

	go func() { _ = conn.Run(ctx, p) }()
	return p
}

func TestDuelOverRelay(t *testing.T) {
	require.NoError(t, auth.Init())
	srv := httptest.NewServer(handlers.NewRelayServer(quietLogger()).Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	host := startSide(t, ctx, url, 1)
	require.Eventually(t, func() bool { return host.Role() == models.Host }, 2*time.Second, 10*time.Millisecond)
	peer := startSide(t, ctx, url, 2)

	converged := func() bool {
		return !peer.Parked() && !host.Parked() &&
			peer.State().Phase == models.PhaseBidding && host.State().Equal(peer.State())
	}
	require.Eventually(t, converged, 2*time.Second, 10*time.Millisecond)

	// first dealer is the peer
	require.NoError(t, peer.Act(ctx, models.BidAction(1, models.NoTrump, models.Peer)))
	require.Eventually(t, func() bool { return host.State().CurrentBid != nil }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, host.Act(ctx, models.PassAction()))
	require.Eventually(t, func() bool {
		return peer.State().Phase == models.PhasePlaying && host.State().Equal(peer.State())
	}, 2*time.Second, 10*time.Millisecond)

	// one trick, resolved by both timers
	for i := 0; i < 2; i++ {
		s := host.State()
		mover := host
		if s.Turn == models.Peer {
			mover = peer
		}
		hand := s.Hands[s.Turn]
		var card models.Card
		for _, c := range hand {
			if game.CanPlayCard(c, hand, s, s.Turn).Valid {
				card = c
				break
			}
		}
		require.NoError(t, mover.Act(ctx, models.PlayCardAction(card.ID)))
		require.Eventually(t, func() bool { return host.State().Equal(peer.State()) }, 2*time.Second, 10*time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return host.State().TrickSeq == 1 && host.State().Equal(peer.State())
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, game.CheckConservation(peer.State()))
}
