package context

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/redskulldevv/omni-agi/internal/apperr"
)

// Type names a slot in the context manager.
type Type string

const (
	Market      Type = "market"
	Social      Type = "social"
	System      Type = "system"
	User        Type = "user"
	Transaction Type = "transaction"
	Analysis    Type = "analysis"
)

// Types lists every context type in a stable order.
var Types = []Type{Market, Social, System, User, Transaction, Analysis}

// Valid reports whether t is a known context type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Payload is the typed data carried by a context.
type Payload interface {
	Type() Type
	Fields() map[string]interface{}
}

// MarketData is a market observation keyed by asset symbol.
type MarketData struct {
	Prices    map[string]float64 `json:"prices"`
	Volumes   map[string]float64 `json:"volumes"`
	Sentiment float64            `json:"sentiment"`
	Trend     string             `json:"trend"`
}

func (MarketData) Type() Type { return Market }

func (d MarketData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"prices":    d.Prices,
		"volumes":   d.Volumes,
		"sentiment": d.Sentiment,
		"trend":     d.Trend,
	}
}

// SocialData aggregates community activity.
type SocialData struct {
	Mentions   int      `json:"mentions"`
	Sentiment  float64  `json:"sentiment"`
	Engagement float64  `json:"engagement"`
	Topics     []string `json:"topics"`
}

func (SocialData) Type() Type { return Social }

func (d SocialData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"mentions":         d.Mentions,
		"social_sentiment": d.Sentiment,
		"engagement":       d.Engagement,
		"topics":           d.Topics,
	}
}

// SystemData describes the agent's own health.
type SystemData struct {
	Healthy    bool              `json:"healthy"`
	Uptime     time.Duration     `json:"uptime"`
	ErrorCount int               `json:"error_count"`
	Loops      map[string]string `json:"loops"`
}

func (SystemData) Type() Type { return System }

func (d SystemData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"healthy":     d.Healthy,
		"uptime":      d.Uptime.String(),
		"error_count": d.ErrorCount,
		"loops":       d.Loops,
	}
}

// UserData is the latest inbound message from a person.
type UserData struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Platform string `json:"platform"`
	Message  string `json:"message"`
}

func (UserData) Type() Type { return User }

func (d UserData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   d.UserID,
		"user_name": d.UserName,
		"platform":  d.Platform,
		"message":   d.Message,
	}
}

// TransactionData records the last wallet action.
type TransactionData struct {
	Chain  string  `json:"chain"`
	Action string  `json:"action"`
	Asset  string  `json:"asset"`
	Amount float64 `json:"amount"`
	TxHash string  `json:"tx_hash,omitempty"`
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
}

func (TransactionData) Type() Type { return Transaction }

func (d TransactionData) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"chain":  d.Chain,
		"action": d.Action,
		"asset":  d.Asset,
		"amount": d.Amount,
		"status": d.Status,
	}
	if d.TxHash != "" {
		f["tx_hash"] = d.TxHash
	}
	if d.Error != "" {
		f["error"] = d.Error
	}
	return f
}

// AnalysisData is the most recent reasoning output.
type AnalysisData struct {
	Action     string             `json:"action"`
	Confidence float64            `json:"confidence"`
	Summary    string             `json:"summary"`
	Signals    map[string]float64 `json:"signals"`
}

func (AnalysisData) Type() Type { return Analysis }

func (d AnalysisData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"action":     d.Action,
		"confidence": d.Confidence,
		"summary":    d.Summary,
		"signals":    d.Signals,
	}
}

// copyPayload returns p with its reference fields copied. Payload types
// defined outside this package are returned as is.
func copyPayload(p Payload) Payload {
	switch d := p.(type) {
	case MarketData:
		d.Prices = maps.Clone(d.Prices)
		d.Volumes = maps.Clone(d.Volumes)
		return d
	case SocialData:
		d.Topics = slices.Clone(d.Topics)
		return d
	case SystemData:
		d.Loops = maps.Clone(d.Loops)
		return d
	case AnalysisData:
		d.Signals = maps.Clone(d.Signals)
		return d
	}
	return p
}

// DecodePayload builds the typed payload for typ from untyped data, as
// received over the HTTP API.
func DecodePayload(typ Type, data map[string]interface{}) (Payload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, apperr.Invalid("encode %s payload: %v", typ, err)
	}

	var p Payload
	switch typ {
	case Market:
		var d MarketData
		err = json.Unmarshal(raw, &d)
		p = d
	case Social:
		var d SocialData
		err = json.Unmarshal(raw, &d)
		p = d
	case System:
		var d SystemData
		err = json.Unmarshal(raw, &d)
		p = d
	case User:
		var d UserData
		err = json.Unmarshal(raw, &d)
		p = d
	case Transaction:
		var d TransactionData
		err = json.Unmarshal(raw, &d)
		p = d
	case Analysis:
		var d AnalysisData
		err = json.Unmarshal(raw, &d)
		p = d
	default:
		return nil, apperr.Invalid("unknown context type %q", typ)
	}
	if err != nil {
		return nil, apperr.Invalid("decode %s payload: %v", typ, err)
	}
	return p, nil
}
