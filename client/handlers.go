// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// DataEvent is the payload for data-received events.
type DataEvent struct {
	Data        any
	Participant *Participant
}

// registerDefaultHandlers installs one handler per inbound message type.
func registerDefaultHandlers(reg *Registry) {
	reg.Register(JoinedMessage, handleJoined)
	reg.Register(ParticipantJoinedMessage, handleParticipantJoined)
	reg.Register(ParticipantLeftMessage, handleParticipantLeft)
	reg.Register(TrackPublishedMessage, handleTrackPublished)
	reg.Register(TrackUnpublishedMessage, handleTrackUnpublished)
	reg.Register(TrackSubscribedMessage, handleTrackSubscribed)
	reg.Register(TrackUnsubscribedMessage, handleTrackUnsubscribed)
	reg.Register(TrackMutedMessage, handleTrackMuted)
	reg.Register(TrackUnmutedMessage, handleTrackUnmuted)
	reg.Register(TransportCreatedMessage, handleTransportEvent)
	reg.Register(TransportConnectedMessage, handleTransportEvent)
	reg.Register(DataMessage, handleData)
	reg.Register(DataConsumerCreatedMessage, handleDataConsumerCreated)
	reg.Register(DataConsumerClosedMessage, handleDataConsumerClosed)
	reg.Register(DataProducerCreatedMessage, handleDataProducerCreated)
	reg.Register(CallReceivedMessage, handleCallReceived)
	reg.Register(CallAcceptedMessage, handleCallAccepted)
	reg.Register(CallRejectedMessage, handleCallRejected)
	reg.Register(ErrorMessage, handleError)
}

// participantSid tolerates the "participantSid" and bare "sid" field names
// servers have used across protocol revisions, plus frames that nest the
// full participant object instead of referencing it by sid.
func participantSid(data map[string]any) string {
	if sid := stringField(data, "participantSid"); sid != "" {
		return sid
	}
	if sid := stringField(data, "sid"); sid != "" {
		return sid
	}
	return stringField(mapField(data, "participant"), "sid")
}

// subscriberFn builds the subscribe callback wired into remote
// participants. It delegates to the transport controller.
func subscriberFn(ctx *HandlerContext) func(trackSid string, subscribe bool) error {
	transport := ctx.Transport
	return func(trackSid string, subscribe bool) error {
		if transport == nil {
			return nil
		}
		if subscribe {
			return transport.SubscribeToTrack(context.Background(), trackSid)
		}
		return transport.UnsubscribeFromTrack(context.Background(), trackSid)
	}
}

func localCapabilities(ctx *HandlerContext) *LocalCapabilities {
	transport := ctx.Transport
	if transport == nil {
		return &LocalCapabilities{}
	}
	return &LocalCapabilities{
		EnableCamera:     transport.EnableCamera,
		EnableMicrophone: transport.EnableMicrophone,
		PublishData:      transport.PublishData,
	}
}

func handleJoined(ctx *HandlerContext, msg Message) error {
	ctx.Room.SetInfo(roomInfoFromMap(mapField(msg.Data, "room")))
	ctx.Room.SetRTPCapabilities(msg.Data["rtpCapabilities"])

	localInfo := participantInfoFromMap(mapField(msg.Data, "participant"))
	local := newLocalParticipant(localInfo, localCapabilities(ctx), ctx.Emitter, ctx.Log)
	local.setState(ParticipantStateConnected)
	ctx.Room.SetLocalParticipant(local)
	ctx.Emitter.Emit(LocalParticipantJoinedEvent, local)

	for _, entry := range sliceField(msg.Data, "otherParticipants") {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		info := participantInfoFromMap(m)
		if info.Sid == "" {
			continue
		}
		p := newParticipant(info, ctx.Emitter, ctx.Log, false)
		p.setSubscribeFn(subscriberFn(ctx))
		p.setState(ParticipantStateConnected)
		ctx.Room.AddParticipant(p)
		ctx.Emitter.Emit(ParticipantJoinedEvent, p)
	}

	if ctx.AutoSubscribe && ctx.Transport != nil {
		transport := ctx.Transport
		ctx.Go("auto-subscribe", func(c context.Context) error {
			if err := transport.EnsureWebRTCInitialized(c); err != nil {
				return err
			}
			if err := transport.InitDataProvider(c); err != nil {
				return err
			}
			return transport.SubscribeToAllTracks(c)
		})
	}

	return nil
}

func handleParticipantJoined(ctx *HandlerContext, msg Message) error {
	m := mapField(msg.Data, "participant")
	if m == nil {
		m = msg.Data
	}
	info := participantInfoFromMap(m)
	if info.Sid == "" {
		ctx.Log.Warn("handler: participant_joined with no sid")
		return nil
	}

	// A duplicate sid is treated as an update.
	if existing := ctx.Room.GetParticipant(info.Sid); existing != nil {
		existing.UpdateInfo(info)
		return nil
	}

	p := newParticipant(info, ctx.Emitter, ctx.Log, false)
	p.setSubscribeFn(subscriberFn(ctx))
	p.setState(ParticipantStateConnected)
	ctx.Room.AddParticipant(p)
	ctx.Emitter.Emit(ParticipantJoinedEvent, p)

	return nil
}

func handleParticipantLeft(ctx *HandlerContext, msg Message) error {
	sid := participantSid(msg.Data)
	p := ctx.Room.RemoveParticipant(sid)
	if p == nil {
		return nil
	}
	ctx.Emitter.Emit(ParticipantLeftEvent, p)
	return nil
}

func handleTrackPublished(ctx *HandlerContext, msg Message) error {
	p := ctx.Room.GetParticipant(participantSid(msg.Data))
	if p == nil {
		// State catches up on the next participant update.
		ctx.Log.Debug("handler: track_published for unknown participant")
		return nil
	}

	info := trackInfoFromMap(mapField(msg.Data, "track"))
	if info.Sid == "" {
		return nil
	}

	pub, _ := p.addTrack(info)
	ctx.Emitter.Emit(TrackPublishedEvent, TrackEvent{Participant: p, Publication: pub})

	if ctx.AutoSubscribe && ctx.Transport != nil {
		transport := ctx.Transport
		trackSid := info.Sid
		ctx.Go("subscribe "+trackSid, func(c context.Context) error {
			if err := transport.EnsureWebRTCInitialized(c); err != nil {
				return err
			}
			return transport.SubscribeToTrack(c, trackSid)
		})
	}

	return nil
}

func handleTrackUnpublished(ctx *HandlerContext, msg Message) error {
	p := ctx.Room.GetParticipant(participantSid(msg.Data))
	if p == nil {
		return nil
	}
	pub := p.GetTrack(stringField(msg.Data, "trackSid"))
	if pub == nil {
		return nil
	}

	// The publication record stays in the map so that a re-publish of the
	// same sid reuses it transparently.
	pub.ClearTrack()
	ctx.Emitter.Emit(TrackUnpublishedEvent, TrackEvent{Participant: p, Publication: pub})

	return nil
}

// handleTrackSubscribed is a synchronization marker only, the transport
// layer owns the handle attachment.
func handleTrackSubscribed(ctx *HandlerContext, msg Message) error {
	ctx.Log.Debug("handler: track subscribed",
		slog.String("trackSid", stringField(msg.Data, "trackSid")))
	return nil
}

func handleTrackUnsubscribed(ctx *HandlerContext, msg Message) error {
	p := ctx.Room.GetParticipant(participantSid(msg.Data))
	if p == nil {
		return nil
	}
	pub := p.GetTrack(stringField(msg.Data, "trackSid"))
	if pub == nil {
		return nil
	}

	track := pub.ClearTrack()
	if track != nil {
		track.OnUnsubscribed()
		ctx.Emitter.Emit(TrackUnsubscribedEvent, TrackEvent{Participant: p, Publication: pub, Track: track})
	}

	return nil
}

func handleTrackMuted(ctx *HandlerContext, msg Message) error {
	return setTrackMuted(ctx, msg, true)
}

func handleTrackUnmuted(ctx *HandlerContext, msg Message) error {
	return setTrackMuted(ctx, msg, false)
}

func setTrackMuted(ctx *HandlerContext, msg Message, muted bool) error {
	p := ctx.Room.GetParticipant(participantSid(msg.Data))
	if p == nil {
		return nil
	}
	pub := p.GetTrack(stringField(msg.Data, "trackSid"))
	if pub == nil {
		return nil
	}

	pub.setMuted(muted)

	if track := pub.Track(); track != nil {
		event := TrackMutedEvent
		if !muted {
			event = TrackUnmutedEvent
		}
		ctx.Emitter.Emit(event, TrackEvent{Participant: p, Publication: pub, Track: track})
	}

	return nil
}

// handleTransportEvent covers transport_created and transport_connected,
// which the transport collaborator already acted on.
func handleTransportEvent(ctx *HandlerContext, msg Message) error {
	ctx.Log.Debug("handler: transport event", slog.String("type", msg.Type))
	return nil
}

func handleData(ctx *HandlerContext, msg Message) error {
	sender := ctx.Room.GetParticipant(participantSid(msg.Data))

	payload, ok := msg.Data["payload"]
	if !ok {
		payload = msg.Data["data"]
	}

	ctx.Emitter.Emit(DataReceivedEvent, DataEvent{Data: payload, Participant: sender})

	return nil
}

func handleDataConsumerCreated(ctx *HandlerContext, msg Message) error {
	if ctx.Transport == nil {
		return nil
	}

	params := AddDataConsumerParams{
		ID:                   stringField(msg.Data, "id"),
		SCTPStreamParameters: mapField(msg.Data, "sctpStreamParameters"),
		ParticipantSid:       participantSid(msg.Data),
		Label:                stringField(msg.Data, "label"),
		Ordered:              boolField(msg.Data, "ordered"),
	}
	producerID := stringField(msg.Data, "producerId")
	kind := dataKindForLabel(params.Label)

	transport := ctx.Transport
	emitter := ctx.Emitter
	room := ctx.Room
	log := ctx.Log

	ctx.Go("add data consumer "+params.ID, func(c context.Context) error {
		consumer, err := transport.AddDataConsumer(c, producerID, params)
		if err != nil {
			return err
		}

		consumer.OnMessage(func(payload []byte) {
			var value any
			if err := json.Unmarshal(payload, &value); err != nil {
				value = string(payload)
			}
			packet := DataPacket{
				Kind:           kind,
				Value:          value,
				ParticipantSid: params.ParticipantSid,
				Timestamp:      time.Now(),
			}
			emitter.Emit(DataReceivedEvent, DataEvent{
				Data:        packet,
				Participant: room.GetParticipant(params.ParticipantSid),
			})
		})
		consumer.OnClose(func() {
			log.Debug("data consumer closed", slog.String("id", params.ID))
		})
		consumer.OnError(func(err error) {
			log.Error("data consumer error",
				slog.String("id", params.ID), slog.String("err", err.Error()))
		})

		return nil
	})

	return nil
}

// handleDataConsumerClosed is informational, the transport owns teardown.
func handleDataConsumerClosed(ctx *HandlerContext, msg Message) error {
	ctx.Log.Debug("handler: data consumer closed",
		slog.String("id", stringField(msg.Data, "id")))
	return nil
}

func handleDataProducerCreated(ctx *HandlerContext, msg Message) error {
	ctx.Log.Debug("handler: data producer created",
		slog.String("id", stringField(msg.Data, "id")))
	return nil
}

// upsertParticipant returns the participant with the given sid, creating a
// placeholder if the server references one we have not seen yet.
func upsertParticipant(ctx *HandlerContext, sid string, m map[string]any) *Participant {
	if sid == "" {
		return nil
	}
	if p := ctx.Room.GetParticipant(sid); p != nil {
		return p
	}

	info := participantInfoFromMap(m)
	info.Sid = sid
	p := newParticipant(info, ctx.Emitter, ctx.Log, false)
	p.setSubscribeFn(subscriberFn(ctx))
	ctx.Room.AddParticipant(p)
	return p
}

func handleCallReceived(ctx *HandlerContext, msg Message) error {
	callerSid := stringField(msg.Data, "callerSid")
	caller := upsertParticipant(ctx, callerSid, mapField(msg.Data, "caller"))

	info := CallInfo{
		CallID:    stringField(msg.Data, "callId"),
		CallerSid: callerSid,
		TargetSid: stringField(msg.Data, "targetSid"),
		Caller:    caller,
		Metadata:  mapField(msg.Data, "metadata"),
		State:     CallStatePending,
		StartTime: time.Now(),
	}
	ctx.Emitter.Emit(CallReceivedEvent, info)

	return nil
}

func handleCallAccepted(ctx *HandlerContext, msg Message) error {
	targetSid := stringField(msg.Data, "targetSid")
	target := upsertParticipant(ctx, targetSid, mapField(msg.Data, "participant"))

	info := CallInfo{
		CallID:      stringField(msg.Data, "callId"),
		CallerSid:   stringField(msg.Data, "callerSid"),
		TargetSid:   targetSid,
		Participant: target,
		Metadata:    mapField(msg.Data, "metadata"),
		State:       CallStateAccepted,
		StartTime:   time.Now(),
	}
	ctx.Emitter.Emit(CallAcceptedEvent, info)

	return nil
}

func handleCallRejected(ctx *HandlerContext, msg Message) error {
	targetSid := stringField(msg.Data, "targetSid")
	target := upsertParticipant(ctx, targetSid, mapField(msg.Data, "participant"))

	now := time.Now()
	metadata := map[string]any{}
	for k, v := range mapField(msg.Data, "metadata") {
		metadata[k] = v
	}
	if reason := stringField(msg.Data, "reason"); reason != "" {
		metadata["reason"] = reason
	}

	info := CallInfo{
		CallID:      stringField(msg.Data, "callId"),
		CallerSid:   stringField(msg.Data, "callerSid"),
		TargetSid:   targetSid,
		Participant: target,
		Metadata:    metadata,
		State:       CallStateRejected,
		StartTime:   now,
		EndTime:     now,
	}
	ctx.Emitter.Emit(CallRejectedEvent, info)

	return nil
}

func handleError(ctx *HandlerContext, msg Message) error {
	errMsg := stringField(mapField(msg.Data, "error"), "message")
	if errMsg == "" {
		errMsg = stringField(msg.Data, "message")
	}
	if errMsg == "" {
		errMsg = "Unknown error"
	}
	ctx.Emitter.Emit(ErrorEvent, errors.New(errMsg))
	return nil
}
