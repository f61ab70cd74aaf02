package push

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidlive/go/internal/models"
)

// TypeField is the reserved discriminator of the tagged message envelope.
const TypeField = "$type"

// MessageType discriminates push messages.
type MessageType string

const (
	MessageTypeEvent    MessageType = "event"
	MessageTypeSnapshot MessageType = "snapshot"
)

// Message is a decoded push message: either a discrete event or a partial snapshot.
type Message struct {
	Type     MessageType
	Kind     string          // event kind, set for events
	Payload  json.RawMessage // event payload, set for events
	Snapshot models.SnapshotDelta
}

// envelope is the tagged wire form:
//
//	{"$type":"event","kind":"BID_ACCEPTED","payload":{...}}
//	{"$type":"snapshot","snapshot":{"currentPrice":1200}}
type envelope struct {
	Type     MessageType     `json:"$type"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// legacyEvent is the untagged event form {"type":K,"data":{...}}. Some senders use "kind" instead of "type".
type legacyEvent struct {
	Type    string          `json:"type"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses one push message. It never fails: anything it cannot make sense
// of becomes an empty snapshot.
func Decode(raw []byte) Message {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		log.Debug().Err(err).Int("size", len(raw)).Msg("undecodable push message, treating as empty snapshot")
		return Message{Type: MessageTypeSnapshot}
	}

	if _, tagged := fields[TypeField]; tagged {
		return decodeTagged(raw)
	}
	return decodeLegacy(raw, fields)
}

func decodeTagged(raw []byte) Message {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Debug().Err(err).Msg("malformed push envelope, treating as empty snapshot")
		return Message{Type: MessageTypeSnapshot}
	}

	switch env.Type {
	case MessageTypeEvent:
		if env.Kind == "" {
			log.Debug().Msg("event envelope without kind, treating as empty snapshot")
			return Message{Type: MessageTypeSnapshot}
		}
		return Message{Type: MessageTypeEvent, Kind: env.Kind, Payload: env.Payload}
	case MessageTypeSnapshot:
		return Message{Type: MessageTypeSnapshot, Snapshot: DecodeDelta(env.Snapshot)}
	default:
		log.Debug().Str("type", string(env.Type)).Msg("unknown push envelope type, treating as empty snapshot")
		return Message{Type: MessageTypeSnapshot}
	}
}

// decodeLegacy infers the shape from key presence: a string "type" (or "kind")
// key marks an event, anything else is a snapshot object. An event's payload
// is its "data" value, else its "payload" value, else the whole message.
func decodeLegacy(raw []byte, fields map[string]json.RawMessage) Message {
	_, hasType := fields["type"]
	_, hasKind := fields["kind"]
	if hasType || hasKind {
		var ev legacyEvent
		if err := json.Unmarshal(raw, &ev); err == nil {
			kind := ev.Type
			if kind == "" {
				kind = ev.Kind
			}
			if kind != "" {
				payload := ev.Data
				if len(payload) == 0 {
					payload = ev.Payload
				}
				if len(payload) == 0 {
					payload = raw
				}
				return Message{Type: MessageTypeEvent, Kind: kind, Payload: payload}
			}
		}
	}
	return Message{Type: MessageTypeSnapshot, Snapshot: DecodeDelta(raw)}
}

type deltaWire struct {
	CurrentPrice *int64          `json:"currentPrice"`
	BidCount     *int64          `json:"bidCount"`
	EndAt        json.RawMessage `json:"endAt"`
	Status       *string         `json:"status"`
}

// DecodeDelta parses a partial snapshot object. Any invalid field makes the whole
// delta empty.
func DecodeDelta(raw json.RawMessage) models.SnapshotDelta {
	if len(raw) == 0 {
		return models.SnapshotDelta{}
	}

	var w deltaWire
	if err := json.Unmarshal(raw, &w); err != nil {
		log.Debug().Err(err).Msg("malformed snapshot delta, ignoring")
		return models.SnapshotDelta{}
	}

	var d models.SnapshotDelta
	if w.CurrentPrice != nil {
		if *w.CurrentPrice < 0 {
			return models.SnapshotDelta{}
		}
		d.CurrentPrice = w.CurrentPrice
	}
	if w.BidCount != nil {
		if *w.BidCount < 0 {
			return models.SnapshotDelta{}
		}
		d.BidCount = w.BidCount
	}
	if len(w.EndAt) > 0 && !bytes.Equal(w.EndAt, []byte("null")) {
		endAt, ok := parseTimestamp(w.EndAt)
		if !ok {
			return models.SnapshotDelta{}
		}
		d.EndAt = &endAt
	}
	if w.Status != nil {
		status, ok := models.ParseAuctionStatus(*w.Status)
		if !ok {
			return models.SnapshotDelta{}
		}
		d.Status = &status
	}
	return d
}

// parseTimestamp accepts an RFC 3339 string or epoch milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
