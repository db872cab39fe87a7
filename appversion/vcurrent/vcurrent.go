// Package vcurrent is the third and newest registered protocol version:
// vledger's balance+memo ledger plus a per-account lock flag that freezes
// an account's outgoing transfers, another incompatible on-disk shape
// requiring a migration from vledger.
package vcurrent

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cosmos-archival/reindexer/appversion"
	"github.com/cosmos-archival/reindexer/appversion/kvstore"
	"github.com/cosmos-archival/reindexer/appversion/vledger"
	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/compat"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// Name is this version's registry key.
const Name = "vcurrent"

const stateBackend = "goleveldb"

// PerBlockIssuance mirrors the earlier versions' fixed per-block mint.
const PerBlockIssuance = vledger.PerBlockIssuance

// State is vcurrent's on-disk data shape.
type State struct {
	Balances  map[string]int64  `json:"balances"`
	Memos     map[string]string `json:"memos"`
	Locked    map[string]bool   `json:"locked"`
	Community int64             `json:"community"`
}

const stateKey = "vcurrent.state"

// Version registers vcurrent with an appversion.Registry.
type Version struct{}

func (Version) Name() string { return Name }

func (Version) Load(ctx context.Context, workingDir string) (appversion.Instance, error) {
	store, err := kvstore.Open(workingDir, "vcurrent-state", stateBackend)
	if err != nil {
		return nil, err
	}
	return &instance{store: store}, nil
}

type instance struct {
	store *kvstore.Store
	state State
}

func (i *instance) Genesis(ctx context.Context, g block.Genesis) error {
	if _, ok, _ := i.store.GetMeta(); ok {
		return xerrors.VersionRuntime.New("vcurrent instance is already initialized")
	}
	var doc struct {
		AppState struct {
			Balances map[string]int64 `json:"balances"`
		} `json:"app_state"`
	}
	if len(g.Raw) > 0 {
		if err := json.Unmarshal(g.Raw, &doc); err != nil {
			return xerrors.VersionRuntime.Wrap(err, "decoding vcurrent app_state")
		}
	}
	balances := doc.AppState.Balances
	if balances == nil {
		balances = map[string]int64{}
	}
	i.state = State{Balances: balances, Memos: map[string]string{}, Locked: map[string]bool{}}
	if err := i.store.PutJSON(stateKey, i.state); err != nil {
		return err
	}
	return i.store.PutMeta(kvstore.Meta{Height: g.InitialHeight - 1, ChainID: g.ChainID, Ready: true})
}

func (i *instance) Metadata(ctx context.Context) (int64, string, error) {
	meta, ok, err := i.store.GetMeta()
	if err != nil {
		return 0, "", err
	}
	if !ok || !meta.Ready {
		return 0, "", xerrors.VersionRuntime.New("vcurrent instance is not initialized")
	}
	return meta.Height, meta.ChainID, nil
}

func (i *instance) loadState() error {
	if i.state.Balances != nil {
		return nil
	}
	var s State
	ok, err := i.store.GetJSON(stateKey, &s)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.VersionRuntime.New("vcurrent state missing for an initialized instance")
	}
	i.state = s
	return nil
}

func (i *instance) BeginBlock(ctx context.Context, req compat.BeginBlock) ([]compat.Event, error) {
	if err := i.loadState(); err != nil {
		return nil, err
	}
	i.state.Community += PerBlockIssuance
	return []compat.Event{{
		Kind: "mint",
		Attributes: []compat.Attribute{
			compat.NewAttribute("amount", strconv.FormatInt(PerBlockIssuance, 10)),
			compat.NewAttribute("height", strconv.FormatInt(req.Height, 10)),
		},
	}}, nil
}

// DeliverTx accepts "from:to:amount[:memo]" transfers and a
// "lock:addr:true|false" administrative tx that toggles an account's lock.
// A locked account's outgoing transfers fail.
func (i *instance) DeliverTx(ctx context.Context, req compat.DeliverTx) ([]compat.Event, error) {
	if err := i.loadState(); err != nil {
		return nil, err
	}

	parts := strings.SplitN(string(req.Tx), ":", 4)
	if len(parts) == 3 && parts[0] == "lock" {
		addr := parts[1]
		locked, err := strconv.ParseBool(parts[2])
		if err != nil {
			return nil, xerrors.VersionRuntime.Wrapf(err, "malformed lock tx %q", string(req.Tx))
		}
		i.state.Locked[addr] = locked
		return []compat.Event{{
			Kind: "lock",
			Attributes: []compat.Attribute{
				compat.NewAttribute("address", addr),
				compat.NewAttribute("locked", strconv.FormatBool(locked)),
			},
		}}, nil
	}

	if len(parts) < 3 {
		return nil, xerrors.VersionRuntime.Newf("malformed transfer tx %q", string(req.Tx))
	}
	from, to := parts[0], parts[1]
	amount, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, xerrors.VersionRuntime.Wrapf(err, "malformed transfer amount in tx %q", string(req.Tx))
	}
	memo := ""
	if len(parts) == 4 {
		memo = parts[3]
	}

	if i.state.Locked[from] {
		return nil, xerrors.VersionRuntime.Newf("account %s is locked", from)
	}
	if i.state.Balances[from] < amount {
		return nil, xerrors.VersionRuntime.Newf("insufficient balance: %s has %d, needs %d", from, i.state.Balances[from], amount)
	}
	i.state.Balances[from] -= amount
	i.state.Balances[to] += amount
	if memo != "" {
		i.state.Memos[to] = memo
	}

	attrs := []compat.Attribute{
		compat.NewAttribute("from", from),
		compat.NewAttribute("to", to),
		compat.NewAttribute("amount", strconv.FormatInt(amount, 10)),
	}
	if memo != "" {
		attrs = append(attrs, compat.NewAttribute("memo", memo))
	}
	return []compat.Event{{Kind: "transfer", Attributes: attrs}}, nil
}

func (i *instance) EndBlock(ctx context.Context, req compat.EndBlock) ([]compat.Event, error) {
	if err := i.loadState(); err != nil {
		return nil, err
	}
	return []compat.Event{{
		Kind:       "block",
		Attributes: []compat.Attribute{compat.NewAttribute("height", strconv.FormatInt(req.Height, 10))},
	}}, nil
}

func (i *instance) Commit(ctx context.Context) ([]byte, error) {
	if err := i.loadState(); err != nil {
		return nil, err
	}
	if err := i.store.PutJSON(stateKey, i.state); err != nil {
		return nil, err
	}
	meta, _, err := i.store.GetMeta()
	if err != nil {
		return nil, err
	}
	meta.Height++
	if err := i.store.PutMeta(meta); err != nil {
		return nil, err
	}
	return appHash(i.state, meta.Height)
}

func appHash(s State, height int64) ([]byte, error) {
	keys := make([]string, 0, len(s.Balances))
	for k := range s.Balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "vcurrent|height=%d|community=%d", height, s.Community)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%d,%s,%t", k, s.Balances[k], s.Memos[k], s.Locked[k])
	}
	return h.Sum(nil), nil
}

func (i *instance) Release(ctx context.Context) error {
	return i.store.Close()
}

// Migrate transforms a vledger working directory into vcurrent's shape:
// balances and memos carry over unchanged, every account starts unlocked,
// and the application height resets to 0.
func Migrate(ctx context.Context, workingDir string) error {
	ledgerStore, err := kvstore.Open(workingDir, "vledger-state", stateBackend)
	if err != nil {
		return err
	}
	defer ledgerStore.Close()

	ledgerMeta, ok, err := ledgerStore.GetMeta()
	if err != nil {
		return err
	}
	if !ok || !ledgerMeta.Ready {
		return xerrors.VersionRuntime.New("migrate vledger->vcurrent: source working directory is not a ready vledger instance")
	}
	var ledgerState vledger.State
	if ok, err := ledgerStore.GetJSON("vledger.state", &ledgerState); err != nil {
		return err
	} else if !ok {
		return xerrors.VersionRuntime.New("migrate vledger->vcurrent: vledger state missing")
	}

	curStore, err := kvstore.Open(workingDir, "vcurrent-state", stateBackend)
	if err != nil {
		return err
	}
	defer curStore.Close()

	newState := State{
		Balances:  ledgerState.Balances,
		Memos:     ledgerState.Memos,
		Locked:    make(map[string]bool, len(ledgerState.Balances)),
		Community: ledgerState.Community,
	}
	if err := curStore.PutJSON(stateKey, newState); err != nil {
		return err
	}
	return curStore.PutMeta(kvstore.Meta{Height: 0, ChainID: ledgerMeta.ChainID, Ready: true})
}
