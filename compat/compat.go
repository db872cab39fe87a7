// Package compat bridges several protocol-version-specific block/event/ABCI
// request type generations into one internal family, following the
// teacher's types/abci.go (BeginBlocker/EndBlocker/BeginBlock/EndBlock)
// and the original program's tendermint_compat.rs.
//
// Every registered app version (package appversion) speaks this family
// instead of a consensus-engine wire type directly, so that an upgrade of
// the vendored consensus library never touches version logic.
package compat

import (
	abci "github.com/cometbft/cometbft/abci/types"

	"github.com/cosmos-archival/reindexer/block"
)

// Attribute is a single event attribute: a key/value byte pair, optionally
// marked for indexing by downstream query engines.
type Attribute struct {
	Key     []byte
	Value   []byte
	Indexed bool
}

// Event is a typed, attribute-tagged record emitted by the application
// during block processing.
type Event struct {
	Kind       string
	Attributes []Attribute
}

// NewAttribute constructs an indexed string attribute, mirroring the
// sdk.NewAttribute convenience constructor.
func NewAttribute(key, value string) Attribute {
	return Attribute{Key: []byte(key), Value: []byte(value), Indexed: true}
}

// NewEvent constructs an Event from a kind and a set of attributes,
// mirroring the sdk.NewEvent convenience constructor.
func NewEvent(kind string, attrs ...Attribute) Event {
	return Event{Kind: kind, Attributes: attrs}
}

// BeginBlock is the request passed to an app version's begin_block.
type BeginBlock struct {
	Height int64
	Hash   []byte
	Header tmHeader
}

// EndBlock is the request passed to an app version's end_block.
type EndBlock struct {
	Height int64
}

// DeliverTx is the request passed to an app version's deliver_tx.
type DeliverTx struct {
	Tx []byte
}

// TxResult is produced when a transaction is delivered. On failure only
// Code and Log are populated.
type TxResult struct {
	Code      uint32
	Data      []byte
	Log       string
	Info      string
	GasWanted int64
	GasUsed   int64
	Events    []Event
	Codespace string
}

// WithDefaults maps a deliver_tx failure into the coded tx result: code=1,
// log=err message, empty events. A successful result is passed through
// unchanged.
func WithDefaults(result []Event, err error) TxResult {
	if err != nil {
		return TxResult{Code: 1, Log: err.Error()}
	}
	return TxResult{Code: 0, Events: result}
}

type tmHeader struct {
	ChainID string
	Height  int64
}

// FromBlock builds the BeginBlock request for a block, constructing one per
// height before driving an app version.
func FromBlock(b block.Block) BeginBlock {
	return BeginBlock{
		Height: b.Height(),
		Hash:   b.Header.AppHash,
		Header: tmHeader{ChainID: b.ChainID(), Height: b.Height()},
	}
}

// ToABCIEvent converts an internal Event to the current cometbft ABCI wire
// shape (the "current" generation in the consensus-compat shim).
func ToABCIEvent(e Event) abci.Event {
	attrs := make([]abci.EventAttribute, len(e.Attributes))
	for i, a := range e.Attributes {
		attrs[i] = abci.EventAttribute{Key: string(a.Key), Value: string(a.Value), Index: a.Indexed}
	}
	return abci.Event{Type: e.Kind, Attributes: attrs}
}

// FromABCIEvent converts a current-generation cometbft ABCI event into the
// internal Event type.
func FromABCIEvent(e abci.Event) Event {
	attrs := make([]Attribute, len(e.Attributes))
	for i, a := range e.Attributes {
		attrs[i] = Attribute{Key: []byte(a.Key), Value: []byte(a.Value), Indexed: a.Index}
	}
	return Event{Kind: e.Type, Attributes: attrs}
}

// ToABCITxResult converts an internal TxResult to the wire shape the
// upstream consensus engine's own indexing service persists
// (abci.ResponseDeliverTx), so the index's stored encoding matches it
// exactly.
func ToABCITxResult(r TxResult) abci.ResponseDeliverTx {
	events := make([]abci.Event, len(r.Events))
	for i, e := range r.Events {
		events[i] = ToABCIEvent(e)
	}
	return abci.ResponseDeliverTx{
		Code:      r.Code,
		Data:      r.Data,
		Log:       r.Log,
		Info:      r.Info,
		GasWanted: r.GasWanted,
		GasUsed:   r.GasUsed,
		Events:    events,
		Codespace: r.Codespace,
	}
}

// LegacyEvent is the previous consensus-engine generation's event shape,
// which carried attribute keys/values as text fields instead of raw bytes.
// A second registered app version generation (e.g. a pre-upgrade binary)
// may still emit this shape; FromLegacyEvent/ToLegacyEvent convert in both
// directions, copying keys and values as-is (no base64 encoding or
// decoding), so every field survives the round trip.
type LegacyEvent struct {
	Type  string
	Pairs []LegacyAttribute
}

// LegacyAttribute is the legacy per-field attribute shape.
type LegacyAttribute struct {
	Key     string
	Value   string
	Indexed bool
}

// FromLegacyEvent converts an older-generation event into the internal type.
func FromLegacyEvent(e LegacyEvent) Event {
	attrs := make([]Attribute, len(e.Pairs))
	for i, p := range e.Pairs {
		attrs[i] = Attribute{Key: []byte(p.Key), Value: []byte(p.Value), Indexed: p.Indexed}
	}
	return Event{Kind: e.Type, Attributes: attrs}
}

// ToLegacyEvent converts an internal event into the older-generation shape,
// used when an older registered app version must emit through a legacy ABCI
// surface.
func ToLegacyEvent(e Event) LegacyEvent {
	pairs := make([]LegacyAttribute, len(e.Attributes))
	for i, a := range e.Attributes {
		pairs[i] = LegacyAttribute{Key: string(a.Key), Value: string(a.Value), Indexed: a.Indexed}
	}
	return LegacyEvent{Type: e.Kind, Pairs: pairs}
}
