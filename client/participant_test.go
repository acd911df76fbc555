// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewParticipant(t *testing.T) {
	info := ParticipantInfo{
		Sid:      "sidA",
		Identity: "alice",
		Name:     "Alice",
		Metadata: map[string]any{"role": "speaker"},
		Tracks: []TrackInfo{
			{Sid: "trackA", Name: "camera", Kind: TrackKindVideo},
			{Sid: "", Kind: TrackKindAudio},
		},
	}
	p := newParticipant(info, NewEmitter(nil, 0), testLogger(t), false)

	require.Equal(t, "sidA", p.Sid())
	require.Equal(t, "alice", p.Identity())
	require.Equal(t, "Alice", p.Name())
	require.Equal(t, map[string]any{"role": "speaker"}, p.Metadata())
	require.Equal(t, ParticipantStateJoining, p.State())
	require.False(t, p.IsLocal())
	require.Nil(t, p.Capabilities())

	// The descriptor without a sid is dropped.
	require.Len(t, p.Tracks(), 1)
	pub := p.GetTrack("trackA")
	require.NotNil(t, pub)
	require.Equal(t, "camera", pub.Name())
	require.Equal(t, TrackKindVideo, pub.Kind())
	require.Equal(t, "sidA", pub.ParticipantSid())
	require.False(t, pub.IsSubscribed())
}

func TestNewLocalParticipant(t *testing.T) {
	caps := &LocalCapabilities{
		EnableCamera: func(_ context.Context, _ bool) error {
			return nil
		},
	}
	p := newLocalParticipant(ParticipantInfo{Sid: "sidLocal", Identity: "alice"}, caps, NewEmitter(nil, 0), testLogger(t))

	require.True(t, p.IsLocal())
	require.Equal(t, caps, p.Capabilities())
}

func TestParticipantAddTrack(t *testing.T) {
	p := newTestParticipant(t, "sidA", "alice")

	pub, created := p.addTrack(TrackInfo{Sid: "trackA", Kind: TrackKindAudio})
	require.True(t, created)
	require.NotNil(t, pub)

	t.Run("duplicate sid updates in place", func(t *testing.T) {
		pub2, created := p.addTrack(TrackInfo{Sid: "trackA", Kind: TrackKindAudio, Muted: true})
		require.False(t, created)
		require.Same(t, pub, pub2)
		require.True(t, pub.IsMuted())
		require.Len(t, p.Tracks(), 1)
	})

	t.Run("remove", func(t *testing.T) {
		removed := p.removeTrack("trackA")
		require.Same(t, pub, removed)
		require.Nil(t, p.GetTrack("trackA"))
		require.Nil(t, p.removeTrack("trackA"))
	})
}

func TestParticipantSubscribe(t *testing.T) {
	p := newTestParticipant(t, "sidA", "alice")

	t.Run("no callback wired", func(t *testing.T) {
		require.NoError(t, p.Subscribe("trackA"))
		require.NoError(t, p.Unsubscribe("trackA"))
	})

	t.Run("delegates to the callback", func(t *testing.T) {
		type call struct {
			trackSid  string
			subscribe bool
		}
		var calls []call
		p.setSubscribeFn(func(trackSid string, subscribe bool) error {
			calls = append(calls, call{trackSid, subscribe})
			return nil
		})

		require.NoError(t, p.Subscribe("trackA"))
		require.NoError(t, p.Unsubscribe("trackA"))
		require.Equal(t, []call{{"trackA", true}, {"trackA", false}}, calls)
	})

	t.Run("propagates errors", func(t *testing.T) {
		p.setSubscribeFn(func(_ string, _ bool) error {
			return fmt.Errorf("subscribe failure")
		})
		require.EqualError(t, p.Subscribe("trackA"), "subscribe failure")
	})

	t.Run("dropped on close", func(t *testing.T) {
		p.close()
		require.NoError(t, p.Subscribe("trackA"))
	})
}

func TestParticipantUpdateInfo(t *testing.T) {
	emitter := NewEmitter(nil, 0)
	p := newParticipant(ParticipantInfo{
		Sid:      "sidA",
		Identity: "alice",
		Name:     "Alice",
		Tracks: []TrackInfo{
			{Sid: "trackA", Kind: TrackKindAudio},
			{Sid: "trackB", Kind: TrackKindVideo},
		},
	}, emitter, testLogger(t), false)

	var published, unpublished []TrackEvent
	emitter.On(TrackPublishedEvent, func(ctx any) {
		published = append(published, ctx.(TrackEvent))
	})
	emitter.On(TrackUnpublishedEvent, func(ctx any) {
		unpublished = append(unpublished, ctx.(TrackEvent))
	})

	trackB := p.GetTrack("trackB")
	trackB.setTrack(&fakeRemoteTrack{id: "trackB", kind: TrackKindVideo})

	// trackA survives with a refreshed mute state, trackB disappears,
	// trackC is new.
	p.UpdateInfo(ParticipantInfo{
		Sid:      "sidA",
		Name:     "Alice B.",
		Metadata: map[string]any{"role": "moderator"},
		Tracks: []TrackInfo{
			{Sid: "trackA", Kind: TrackKindAudio, Muted: true},
			{Sid: "trackC", Kind: TrackKindVideo},
		},
	})

	require.Equal(t, "Alice B.", p.Name())
	require.Equal(t, "alice", p.Identity())
	require.Equal(t, map[string]any{"role": "moderator"}, p.Metadata())

	require.True(t, p.GetTrack("trackA").IsMuted())
	require.Nil(t, p.GetTrack("trackB"))
	require.NotNil(t, p.GetTrack("trackC"))

	require.Len(t, published, 1)
	require.Equal(t, "trackC", published[0].Publication.Sid())
	require.Equal(t, p, published[0].Participant)

	require.Len(t, unpublished, 1)
	require.Equal(t, "trackB", unpublished[0].Publication.Sid())
	require.False(t, unpublished[0].Publication.IsSubscribed())

	t.Run("empty fields leave scalars alone", func(t *testing.T) {
		p.UpdateInfo(ParticipantInfo{Sid: "sidA", Tracks: []TrackInfo{
			{Sid: "trackA", Kind: TrackKindAudio, Muted: true},
			{Sid: "trackC", Kind: TrackKindVideo},
		}})
		require.Equal(t, "alice", p.Identity())
		require.Equal(t, "Alice B.", p.Name())
		require.Equal(t, map[string]any{"role": "moderator"}, p.Metadata())
	})
}

func TestParticipantClose(t *testing.T) {
	p := newTestParticipant(t, "sidA", "alice",
		TrackInfo{Sid: "trackA", Kind: TrackKindAudio},
		TrackInfo{Sid: "trackB", Kind: TrackKindVideo})

	p.GetTrack("trackA").setTrack(&fakeRemoteTrack{id: "trackA"})
	p.GetTrack("trackB").setTrack(&fakeRemoteTrack{id: "trackB"})

	p.close()

	require.Equal(t, ParticipantStateDisconnected, p.State())
	for _, pub := range p.Tracks() {
		require.False(t, pub.IsSubscribed())
	}
}

func TestTrackPublication(t *testing.T) {
	info := TrackInfo{
		Sid:    "trackA",
		Name:   "camera",
		Kind:   TrackKindVideo,
		Source: "camera",
	}
	pub := newTrackPublication(info, "sidA")

	require.Equal(t, info, pub.Info())
	require.Equal(t, "camera", pub.Source())
	require.False(t, pub.IsMuted())
	require.False(t, pub.IsSubscribed())
	require.Nil(t, pub.Track())

	track := &fakeRemoteTrack{id: "trackA", kind: TrackKindVideo}
	pub.setTrack(track)
	require.True(t, pub.IsSubscribed())
	require.Equal(t, track, pub.Track())

	t.Run("clear preserves the record", func(t *testing.T) {
		cleared := pub.ClearTrack()
		require.Equal(t, track, cleared)
		require.False(t, pub.IsSubscribed())
		require.Equal(t, "trackA", pub.Sid())
		require.Nil(t, pub.ClearTrack())
	})

	t.Run("mute toggles", func(t *testing.T) {
		pub.setMuted(true)
		require.True(t, pub.IsMuted())
		pub.setMuted(false)
		require.False(t, pub.IsMuted())
	})
}
