package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Variant names the payload shapes the webhook accepts.
type Variant string

const (
	VariantWaSenderEvent Variant = "wasender_event"
	VariantWaSenderFlat  Variant = "wasender_flat"
	VariantCloudAPI      Variant = "cloud_api"
)

// Inbound is a normalized chat message.
type Inbound struct {
	From      string
	Text      string
	MessageID string
	Variant   Variant
}

// Events that carry a user's chat message. Everything else (webhook.test,
// message.sent, session.status, ...) is acknowledged and dropped.
var messageEvents = map[string]bool{
	"messages.upsert":            true,
	"messages.received":          true,
	"messages-personal.received": true,
}

type envelope struct {
	// WaSender event envelope
	Event string        `json:"event"`
	Data  *wasenderData `json:"data"`
	// Cloud API
	Object string       `json:"object"`
	Entry  []cloudEntry `json:"entry"`
	// flat shape
	From string `json:"from"`
	Text string `json:"text"`
}

type wasenderData struct {
	Messages json.RawMessage `json:"messages"`
}

type wasenderMessage struct {
	Key struct {
		ID              string `json:"id"`
		RemoteJid       string `json:"remoteJid"`
		FromMe          bool   `json:"fromMe"`
		CleanedSenderPn string `json:"cleanedSenderPn"`
	} `json:"key"`
	MessageBody string `json:"messageBody"`
	Message     struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
	} `json:"message"`
}

type cloudEntry struct {
	Changes []struct {
		Value struct {
			Messages []struct {
				ID   string `json:"id"`
				From string `json:"from"`
				Type string `json:"type"`
				Text struct {
					Body string `json:"body"`
				} `json:"text"`
			} `json:"messages"`
		} `json:"value"`
	} `json:"changes"`
}

// Extract normalizes a raw webhook body. It returns an error wrapping
// ErrEmptyMessage whenever there is no (from, text) pair to act on.
func Extract(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrEmptyMessage, err)
	}

	var in Inbound
	switch {
	case env.Object == "whatsapp_business_account" || len(env.Entry) > 0:
		in = fromCloud(env.Entry)
	case env.Event != "":
		if !messageEvents[env.Event] {
			return Inbound{}, ErrEmptyMessage
		}
		in = fromWaSender(env.Data)
	case env.From != "":
		in = Inbound{From: env.From, Text: env.Text, Variant: VariantWaSenderFlat}
	default:
		return Inbound{}, ErrEmptyMessage
	}

	in.From = cleanJid(in.From)
	in.Text = strings.TrimSpace(in.Text)
	if in.From == "" || in.Text == "" {
		return Inbound{}, ErrEmptyMessage
	}
	return in, nil
}

func fromWaSender(data *wasenderData) Inbound {
	if data == nil || len(data.Messages) == 0 {
		return Inbound{}
	}

	// data.messages is an object for single deliveries and an array for batches.
	var msg wasenderMessage
	trimmed := bytes.TrimSpace(data.Messages)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []wasenderMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil || len(batch) == 0 {
			return Inbound{}
		}
		msg = batch[0]
	} else if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Inbound{}
	}

	if msg.Key.FromMe {
		return Inbound{}
	}

	from := msg.Key.CleanedSenderPn
	if from == "" {
		from = msg.Key.RemoteJid
	}
	text := msg.MessageBody
	if text == "" {
		text = msg.Message.Conversation
	}
	if text == "" {
		text = msg.Message.ExtendedTextMessage.Text
	}
	return Inbound{From: from, Text: text, MessageID: msg.Key.ID, Variant: VariantWaSenderEvent}
}

func fromCloud(entries []cloudEntry) Inbound {
	for _, e := range entries {
		for _, c := range e.Changes {
			for _, m := range c.Value.Messages {
				if m.Type != "" && m.Type != "text" {
					continue
				}
				return Inbound{From: m.From, Text: m.Text.Body, MessageID: m.ID, Variant: VariantCloudAPI}
			}
		}
	}
	return Inbound{}
}

// cleanJid turns "15551234567@s.whatsapp.net" into "15551234567".
func cleanJid(jid string) string {
	jid = strings.TrimSpace(jid)
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		jid = jid[:i]
	}
	return jid
}
